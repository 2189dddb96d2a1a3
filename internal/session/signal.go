// Package session implements the per-session signaling state machine:
// SDP/ICE exchange, room pairing, connect-time agreement, poll
// pacing, and liveness expiry.
package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// SignalType is the wire discriminator for Signal.
type SignalType string

const (
	SignalSetSDP       SignalType = "SetSDP"
	SignalAddCandidate SignalType = "AddCandidate"
	SignalJoinRoom     SignalType = "JoinRoom"
	SignalConnectAt    SignalType = "ConnectAt"
	SignalNextPoll     SignalType = "NextPoll"
)

// IceCandidate is the (candidate, sdpMid?, sdpMLineIndex?) tuple,
// wire-encoded as a 3-element JSON array.
type IceCandidate struct {
	Candidate     string
	SDPMid        *string
	SDPMLineIndex *uint16
}

// Empty reports whether this is the ICE terminator (empty candidate
// field).
func (c IceCandidate) Empty() bool { return c.Candidate == "" }

func (c IceCandidate) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{c.Candidate, c.SDPMid, c.SDPMLineIndex})
}

func (c *IceCandidate) UnmarshalJSON(data []byte) error {
	var tuple [3]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("signal: decode ice candidate tuple: %w", err)
	}
	if err := json.Unmarshal(tuple[0], &c.Candidate); err != nil {
		return fmt.Errorf("signal: decode candidate string: %w", err)
	}
	if len(tuple[1]) > 0 && string(tuple[1]) != "null" {
		if err := json.Unmarshal(tuple[1], &c.SDPMid); err != nil {
			return fmt.Errorf("signal: decode sdpMid: %w", err)
		}
	}
	if len(tuple[2]) > 0 && string(tuple[2]) != "null" {
		if err := json.Unmarshal(tuple[2], &c.SDPMLineIndex); err != nil {
			return fmt.Errorf("signal: decode sdpMLineIndex: %w", err)
		}
	}
	return nil
}

// Signal is the tagged union exchanged through the relay: a
// discriminator plus one payload field.
type Signal struct {
	Type SignalType

	SDP       string       // SetSDP
	Candidate IceCandidate // AddCandidate
	Room      string       // JoinRoom
	Timestamp time.Time    // ConnectAt, NextPoll
}

// CanSend reports whether a signal is client-originated; only
// client-originated signals may be enqueued via SendSignal.
func (s Signal) CanSend() bool {
	switch s.Type {
	case SignalSetSDP, SignalAddCandidate:
		return true
	default:
		return false
	}
}

type wireSignal struct {
	Type    SignalType      `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (s Signal) MarshalJSON() ([]byte, error) {
	var payload any
	switch s.Type {
	case SignalSetSDP:
		payload = s.SDP
	case SignalAddCandidate:
		payload = s.Candidate
	case SignalJoinRoom:
		payload = s.Room
	case SignalConnectAt, SignalNextPoll:
		payload = s.Timestamp.Unix()
	default:
		return nil, fmt.Errorf("signal: unknown type %q", s.Type)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireSignal{Type: s.Type, Payload: raw})
}

func (s *Signal) UnmarshalJSON(data []byte) error {
	var w wireSignal
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("signal: decode envelope: %w", err)
	}
	s.Type = w.Type

	switch w.Type {
	case SignalSetSDP:
		return json.Unmarshal(w.Payload, &s.SDP)
	case SignalAddCandidate:
		return json.Unmarshal(w.Payload, &s.Candidate)
	case SignalJoinRoom:
		return json.Unmarshal(w.Payload, &s.Room)
	case SignalConnectAt, SignalNextPoll:
		var secs int64
		if err := json.Unmarshal(w.Payload, &secs); err != nil {
			return fmt.Errorf("signal: decode timestamp: %w", err)
		}
		s.Timestamp = time.Unix(secs, 0).UTC()
		return nil
	default:
		return fmt.Errorf("signal: unsupported type %q", w.Type)
	}
}

// SetSDP builds a SetSDP signal.
func SetSDP(sdp string) Signal { return Signal{Type: SignalSetSDP, SDP: sdp} }

// AddCandidate builds an AddCandidate signal.
func AddCandidate(c IceCandidate) Signal { return Signal{Type: SignalAddCandidate, Candidate: c} }

// JoinRoom builds a JoinRoom signal.
func JoinRoom(code string) Signal { return Signal{Type: SignalJoinRoom, Room: code} }

// ConnectAt builds a ConnectAt signal.
func ConnectAt(at time.Time) Signal { return Signal{Type: SignalConnectAt, Timestamp: at} }

// NextPoll builds a NextPoll signal.
func NextPoll(at time.Time) Signal { return Signal{Type: SignalNextPoll, Timestamp: at} }
