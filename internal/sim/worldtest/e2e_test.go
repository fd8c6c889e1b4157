package worldtest

import (
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"waymesh.ai/internal/protocol"
)

func TestHandshakeAndMove(t *testing.T) {
	h := NewHarness(t)

	spawn := [3]float64{20.5, 0, 20.5}
	s := h.Connect("walker", &spawn)

	s.Act("m1", protocol.ActBody{Kind: protocol.ActMove, Target: [3]float64{26.5, 0, 20.5}})

	evs := s.WaitFor(10*time.Second, protocol.EvMoveDone, protocol.EvMoveRejected)
	last := evs[len(evs)-1]
	if last["type"] != protocol.EvMoveDone {
		t.Fatalf("move ended with %v", last)
	}
	if complete, _ := last["complete"].(bool); !complete {
		t.Fatalf("expected complete arrival, got %v", last)
	}

	accepted := false
	for _, ev := range evs {
		if ev["type"] == protocol.EvMoveAccepted && ev["request_id"] == "m1" {
			accepted = true
		}
	}
	if !accepted {
		t.Fatalf("no MOVE_ACCEPTED for request m1 in %v", evs)
	}
}

func TestQueryActReturnsStatus(t *testing.T) {
	h := NewHarness(t)
	s := h.Connect("asker", nil)

	s.Act("q1", protocol.ActBody{Kind: protocol.ActQuery})

	evs := s.WaitFor(5*time.Second, "STATUS")
	st := evs[len(evs)-1]
	if st["request_id"] != "q1" {
		t.Fatalf("status for wrong request: %v", st)
	}
	if st["state"] != "idle" {
		t.Fatalf("fresh agent state = %v", st["state"])
	}
}

func TestTwoAgentsAreIndependent(t *testing.T) {
	h := NewHarness(t)

	a := h.Connect("a", &[3]float64{10.5, 0, 10.5})
	b := h.Connect("b", &[3]float64{40.5, 0, 40.5})

	a.Act("ma", protocol.ActBody{Kind: protocol.ActMove, Target: [3]float64{14.5, 0, 10.5}})
	b.Act("mb", protocol.ActBody{Kind: protocol.ActMove, Target: [3]float64{44.5, 0, 40.5}})

	evA := a.WaitFor(10*time.Second, protocol.EvMoveDone)
	evB := b.WaitFor(10*time.Second, protocol.EvMoveDone)

	for name, evs := range map[string][]protocol.Event{"a": evA, "b": evB} {
		last := evs[len(evs)-1]
		if complete, _ := last["complete"].(bool); !complete {
			t.Fatalf("agent %s did not arrive: %v", name, last)
		}
	}
}

func TestDisconnectUnregistersAgent(t *testing.T) {
	h := NewHarness(t)

	// Drop one connection right after the handshake and one before reading
	// the WELCOME. Every join must be matched by a leave either way.
	s := h.Connect("ghost", nil)
	_ = s.Conn.Close()

	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       "vanisher",
	}
	if err := conn.WriteJSON(hello); err != nil {
		t.Fatalf("send HELLO: %v", err)
	}
	_ = conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if h.W.Metrics().Agents == 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("registry still holds %d agents after disconnects", h.W.Metrics().Agents)
}

func TestBadProtocolVersionIgnored(t *testing.T) {
	h := NewHarness(t)
	s := h.Connect("strict", nil)

	// A stale-version ACT must be dropped, not applied.
	msg := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: "waymesh/0",
		AgentID:         s.AgentID,
		Act:             protocol.ActBody{Kind: protocol.ActMove, Target: [3]float64{5.5, 0, 5.5}},
	}
	if err := s.Conn.WriteJSON(msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	s.Act("q", protocol.ActBody{Kind: protocol.ActQuery})
	evs := s.WaitFor(5*time.Second, "STATUS")
	for _, ev := range evs {
		if ev["type"] == protocol.EvMoveAccepted {
			t.Fatalf("stale-version act was accepted: %v", ev)
		}
	}
}
