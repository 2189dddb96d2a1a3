// Package room implements a two-slot rendezvous record: two peers
// seat into a named room, one as offer and one as answer, gated by a
// shared service tag. Rendezvous here means handing two tokens to
// each other through a persisted, store-backed record, not holding
// media connections open in process memory.
package room

import (
	"context"
	"encoding/json"
	"fmt"

	"rtc-signal/internal/record"
	"rtc-signal/internal/store"
)

const (
	prefix    = "room"
	keyLength = 6
)

// Body is the persisted Room body.
type Body struct {
	Service string `json:"service"`
	Offer   string `json:"offer"`
	Answer  string `json:"answer"` // empty means absent
}

// Metadata is empty for rooms: nothing about a room needs to be
// queryable without loading its body.
type Metadata struct{}

type schema struct{}

func (schema) Prefix() string            { return prefix }
func (schema) KeyLength() int            { return keyLength }
func (schema) DefaultBody() Body         { return Body{} }
func (schema) DefaultMetadata() Metadata { return Metadata{} }

func (schema) EncodeBody(b Body) ([]byte, error) { return json.Marshal(b) }
func (schema) DecodeBody(raw []byte) (Body, error) {
	var b Body
	err := json.Unmarshal(raw, &b)
	return b, err
}

func (schema) EncodeMetadata(Metadata) map[string]string          { return map[string]string{} }
func (schema) DecodeMetadata(map[string]string) (Metadata, error) { return Metadata{}, nil }

var roomSchema schema

// Room wraps the generic record with the two-slot join logic.
type Room struct {
	rec *record.Record[Body, Metadata]
}

// BucketKey returns the full "room:<code>" store key for code.
func BucketKey(code string) string {
	return fmt.Sprintf("%s:%s", prefix, code)
}

// Create allocates a fresh room with a random 6-character code.
func Create(ctx context.Context, s store.Store) (*Room, error) {
	rec, err := record.Create[Body, Metadata](ctx, s, roomSchema)
	if err != nil {
		return nil, err
	}
	return &Room{rec: rec}, nil
}

// Load fetches a room by code. Returns (nil, nil) if absent.
func Load(ctx context.Context, s store.Store, code string) (*Room, error) {
	rec, err := record.Load[Body, Metadata](ctx, s, roomSchema, code)
	if err != nil || rec == nil {
		return nil, err
	}
	return &Room{rec: rec}, nil
}

// Code returns this room's key.
func (r *Room) Code() string { return r.rec.Key }

// Write persists the room if modified.
func (r *Room) Write(ctx context.Context, s store.Store) error {
	return r.rec.Write(ctx, s)
}

// GetPeer returns the slot opposite token: if token is the offer, the
// answer slot (which may be empty) is returned; otherwise the offer
// slot is returned unconditionally — JoinRoom always fills offer
// before answer, so by the time a caller is resolving its peer, offer
// is guaranteed non-empty.
func (r *Room) GetPeer(token string) string {
	body := r.rec.Body
	if token == body.Offer {
		return body.Answer
	}
	return body.Offer
}

// JoinRoom attempts to seat token into an open slot, gated by
// service tag equality on the second join.
func (r *Room) JoinRoom(token, service string) error {
	body := &r.rec.Body

	isOffer := body.Offer == ""
	isAnswer := body.Answer == ""
	if !isOffer && !isAnswer {
		return ErrRoomFull
	}

	if isOffer {
		body.Service = service
		body.Offer = token
	} else if service != body.Service {
		return ErrRoomFull // deliberately identical to "room full"
	} else {
		body.Answer = token
	}

	r.rec.MarkModified()
	return nil
}
