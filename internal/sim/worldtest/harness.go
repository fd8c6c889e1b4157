// Package worldtest runs black-box scenarios against a live world over the
// real websocket transport. Tests here go through HELLO/WELCOME and ACT
// messages only, never through world internals, so they double as protocol
// conformance checks.
package worldtest

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"waymesh.ai/internal/protocol"
	"waymesh.ai/internal/sim/tuning"
	"waymesh.ai/internal/sim/world"
	"waymesh.ai/internal/transport/ws"
)

type Harness struct {
	T *testing.T
	W *world.World

	srv    *httptest.Server
	cancel context.CancelFunc
}

// NewHarness starts a flat world on a fast tick and serves it over httptest.
func NewHarness(t *testing.T) *Harness {
	t.Helper()

	tune := tuning.Defaults()
	tune.TickRateHz = 200

	w := world.New(world.Config{ID: "test", Cols: 64, Rows: 64, Seed: 7, Flat: true}, tune)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx) }()

	logger := log.New(os.Stderr, "[ws] ", 0)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger).Handler())
	srv := httptest.NewServer(mux)

	h := &Harness{T: t, W: w, srv: srv, cancel: cancel}
	t.Cleanup(h.Close)
	return h
}

func (h *Harness) Close() {
	h.srv.Close()
	h.cancel()
}

// Session is one connected agent.
type Session struct {
	T       *testing.T
	Conn    *websocket.Conn
	AgentID string
	Pos     [3]float64
}

// Connect dials the websocket endpoint and completes the handshake.
func (h *Harness) Connect(name string, spawn *[3]float64) *Session {
	h.T.Helper()

	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		h.T.Fatalf("dial: %v", err)
	}
	h.T.Cleanup(func() { _ = conn.Close() })

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       name,
		Spawn:           spawn,
	}
	if err := conn.WriteJSON(hello); err != nil {
		h.T.Fatalf("send HELLO: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		h.T.Fatalf("read WELCOME: %v", err)
	}
	if welcome.Type != protocol.TypeWelcome || welcome.AgentID == "" {
		h.T.Fatalf("bad welcome: %+v", welcome)
	}
	return &Session{T: h.T, Conn: conn, AgentID: welcome.AgentID, Pos: welcome.Pos}
}

// Act sends one ACT message.
func (s *Session) Act(requestID string, body protocol.ActBody) {
	s.T.Helper()
	msg := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		AgentID:         s.AgentID,
		RequestID:       requestID,
		Act:             body,
	}
	if err := s.Conn.WriteJSON(msg); err != nil {
		s.T.Fatalf("send ACT: %v", err)
	}
}

// WaitFor reads events until one of the wanted types arrives. It fails the
// test on timeout and returns every event seen up to and including the match.
func (s *Session) WaitFor(timeout time.Duration, types ...string) []protocol.Event {
	s.T.Helper()

	want := map[string]bool{}
	for _, ty := range types {
		want[ty] = true
	}

	deadline := time.Now().Add(timeout)
	var seen []protocol.Event
	for time.Now().Before(deadline) {
		_ = s.Conn.SetReadDeadline(deadline)
		_, raw, err := s.Conn.ReadMessage()
		if err != nil {
			s.T.Fatalf("waiting for %v: %v (saw %d events)", types, err, len(seen))
		}
		var ev protocol.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		seen = append(seen, ev)
		if ty, _ := ev["type"].(string); want[ty] {
			return seen
		}
	}
	s.T.Fatalf("timed out waiting for %v (saw %d events)", types, len(seen))
	return nil
}
