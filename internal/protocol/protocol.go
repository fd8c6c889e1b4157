// Package protocol defines the wire messages between behavior clients and the
// navigation server. Messages are JSON with a type tag; DecodeBase peeks the
// tag before full decoding.
package protocol

import (
	"encoding/json"
	"fmt"
)

const Version = "waymesh/1"

const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeAct     = "ACT"
	TypeEvent   = "EVENT"
	TypeError   = "ERROR"
)

// BaseMsg is the envelope every message starts with.
type BaseMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

func DecodeBase(raw []byte) (BaseMsg, error) {
	var b BaseMsg
	if err := json.Unmarshal(raw, &b); err != nil {
		return b, fmt.Errorf("bad envelope: %w", err)
	}
	if b.Type == "" {
		return b, fmt.Errorf("missing type")
	}
	return b, nil
}
