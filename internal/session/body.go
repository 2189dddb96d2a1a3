package session

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"strconv"
	"time"
)

const (
	prefix    = "auth"
	keyLength = 32
)

// Body is the persisted Session body.
type Body struct {
	SentSDP     bool
	IceDone     bool
	Queue       []Signal
	Read        int
	ConnectAt   *time.Time
	SentJoin    bool
	ReadConnect bool
}

// Metadata is the persisted Session metadata. Service records the
// service tag a client asserts on its first poll, which gates room
// pairing on the second joiner.
type Metadata struct {
	KillAt   time.Time
	NextPoll time.Time
	Room     string // empty means absent
	Peer     string // empty means absent
	Service  string // empty means unset
}

type schema struct{ clock Clock }

func (schema) Prefix() string    { return prefix }
func (schema) KeyLength() int    { return keyLength }
func (schema) DefaultBody() Body { return Body{} }

func (s schema) DefaultMetadata() Metadata {
	now := s.clock.Now()
	return Metadata{
		KillAt:   now.Add(MaxConnection),
		NextPoll: now.Add(FirstPoll),
	}
}

// EncodeBody gob-encodes the body. Unlike the wire Signal JSON the
// HTTP layer emits, this encoding is only ever decoded by this
// package (it is stored, never sent to clients), so the stdlib-native
// binary codec needs no extra dependency.
func (schema) EncodeBody(b Body) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (schema) DecodeBody(raw []byte) (Body, error) {
	var b Body
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&b); err != nil {
		return Body{}, err
	}
	return b, nil
}

func (schema) EncodeMetadata(m Metadata) map[string]string {
	out := map[string]string{
		"kill_at":   formatTime(m.KillAt),
		"next_poll": formatTime(m.NextPoll),
		"room":      m.Room,
		"peer":      m.Peer,
		"service":   m.Service,
	}
	return out
}

func (schema) DecodeMetadata(raw map[string]string) (Metadata, error) {
	// kill_at and next_poll are required on every persisted session;
	// their absence is a fatal invariant violation, not a recoverable
	// decode error.
	if raw["kill_at"] == "" {
		return Metadata{}, fmt.Errorf("session: invariant violation: missing kill_at")
	}
	if raw["next_poll"] == "" {
		return Metadata{}, fmt.Errorf("session: invariant violation: missing next_poll")
	}

	killAt, err := parseTime(raw["kill_at"])
	if err != nil {
		return Metadata{}, err
	}
	nextPoll, err := parseTime(raw["next_poll"])
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{
		KillAt:   killAt,
		NextPoll: nextPoll,
		Room:     raw["room"],
		Peer:     raw["peer"],
		Service:  raw["service"],
	}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.Unix(), 10)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("session: parse timestamp metadata %q: %w", s, err)
	}
	return time.Unix(secs, 0).UTC(), nil
}
