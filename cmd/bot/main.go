package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"waymesh.ai/internal/protocol"
)

// A minimal wander bot: joins, then keeps one MOVE_TO in flight, picking a
// fresh random target whenever the previous move finishes or is rejected.
func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name   = flag.String("name", "bot", "agent name")
		radius = flag.Float64("radius", 24, "wander radius around spawn")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var agentID string
	var home [3]float64
	seq := 0

	sendMove := func() {
		seq++
		target := [3]float64{
			home[0] + (rng.Float64()*2-1)**radius,
			0,
			home[2] + (rng.Float64()*2-1)**radius,
		}
		act := protocol.ActMsg{
			Type:            protocol.TypeAct,
			ProtocolVersion: protocol.Version,
			AgentID:         agentID,
			RequestID:       fmt.Sprintf("bot_%d", seq),
			Act:             protocol.ActBody{Kind: protocol.ActMove, Target: target},
		}
		_ = conn.WriteJSON(act)
		logger.Printf("MOVE_TO target=%.1f,%.1f", target[0], target[2])
	}

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			agentID = w.AgentID
			home = w.Pos
			logger.Printf("WELCOME agent_id=%s pos=%v tick_rate=%d", w.AgentID, w.Pos, w.TickRateHz)
			sendMove()

		case protocol.EvMoveDone, protocol.EvMoveRejected, protocol.EvReset:
			logger.Printf("%s", msg)
			sendMove()

		case protocol.EvStuck, protocol.EvRecovery, protocol.EvStateChange:
			logger.Printf("%s", msg)
		}
	}
}
