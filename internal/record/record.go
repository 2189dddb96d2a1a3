// Package record implements a generic persisted-record layer: key
// generation, "<prefix>:<key>" encoding, lazy load, a dirty bit, and
// write-if-modified semantics, generic over a body type and a
// metadata type.
package record

import (
	"context"
	"crypto/rand"
	"fmt"

	"rtc-signal/internal/store"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// maxKeygenAttempts bounds the collision-retry loop. An unbounded
// retry loop is not an acceptable failure mode, so key generation
// instead returns an error after this many collisions (astronomically
// unlikely at the 32- and 6-character key lengths this package is
// used at).
const maxKeygenAttempts = 64

// Schema is the capability set a record kind must provide, letting
// the generic Record type stay polymorphic over record kinds without
// a type switch.
type Schema[B any, M any] interface {
	Prefix() string
	KeyLength() int
	DefaultBody() B
	DefaultMetadata() M
	EncodeBody(B) ([]byte, error)
	DecodeBody([]byte) (B, error)
	EncodeMetadata(M) map[string]string
	DecodeMetadata(map[string]string) (M, error)
}

// Record is a generic persisted record: a key, a body, metadata, and
// a dirty bit tracking whether Write needs to do anything.
type Record[B any, M any] struct {
	schema   Schema[B, M]
	Key      string
	Body     B
	HasBody  bool
	Metadata M
	modified bool
}

func bucketKey(prefix, key string) string {
	return fmt.Sprintf("%s:%s", prefix, key)
}

// randomKey draws a random string of length n over [A-Z0-9].
func randomKey(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("record: read random bytes: %w", err)
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}

// Create generates a fresh, collision-free key and returns a Record
// with the schema's default body and metadata, marked modified so a
// subsequent Write persists it unconditionally.
func Create[B any, M any](ctx context.Context, s store.Store, schema Schema[B, M]) (*Record[B, M], error) {
	var key string
	for attempt := 0; ; attempt++ {
		if attempt >= maxKeygenAttempts {
			return nil, fmt.Errorf("record: could not find a free %s key after %d attempts", schema.Prefix(), maxKeygenAttempts)
		}

		candidate, err := randomKey(schema.KeyLength())
		if err != nil {
			return nil, err
		}

		exists, err := s.Head(ctx, bucketKey(schema.Prefix(), candidate))
		if err != nil {
			return nil, err
		}
		if !exists {
			key = candidate
			break
		}
	}

	return &Record[B, M]{
		schema:   schema,
		Key:      key,
		Body:     schema.DefaultBody(),
		HasBody:  true,
		Metadata: schema.DefaultMetadata(),
		modified: true,
	}, nil
}

// Load fetches a record by key. It returns (nil, nil) if the key is
// absent.
func Load[B any, M any](ctx context.Context, s store.Store, schema Schema[B, M], key string) (*Record[B, M], error) {
	obj, err := s.Get(ctx, bucketKey(schema.Prefix(), key))
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return fromObject(schema, key, obj)
}

// FromListed builds a record directly from a List result, deriving
// the key by stripping the "<prefix>:" prefix. Only metadata is
// populated; callers that need the body should Load explicitly.
func FromListed[B any, M any](schema Schema[B, M], listed store.ListedObject) (*Record[B, M], error) {
	prefix := schema.Prefix() + ":"
	if len(listed.Key) <= len(prefix) {
		return nil, fmt.Errorf("record: invalid key %q for prefix %q", listed.Key, schema.Prefix())
	}
	key := listed.Key[len(prefix):]

	meta, err := schema.DecodeMetadata(listed.Metadata)
	if err != nil {
		return nil, err
	}

	return &Record[B, M]{
		schema:   schema,
		Key:      key,
		HasBody:  false,
		Metadata: meta,
		modified: false,
	}, nil
}

func fromObject[B any, M any](schema Schema[B, M], key string, obj *store.Object) (*Record[B, M], error) {
	meta, err := schema.DecodeMetadata(obj.Metadata)
	if err != nil {
		return nil, err
	}

	rec := &Record[B, M]{schema: schema, Key: key, Metadata: meta, modified: false}
	if len(obj.Body) > 0 {
		body, err := schema.DecodeBody(obj.Body)
		if err != nil {
			return nil, err
		}
		rec.Body = body
		rec.HasBody = true
	}
	return rec, nil
}

// BucketKey returns the "<prefix>:<key>" form used as the store key.
func (r *Record[B, M]) BucketKey() string {
	return bucketKey(r.schema.Prefix(), r.Key)
}

// MarkModified sets the dirty bit so the next Write persists.
func (r *Record[B, M]) MarkModified() {
	r.modified = true
}

// Modified reports the current dirty bit.
func (r *Record[B, M]) Modified() bool {
	return r.modified
}

// Write is a no-op unless the record is modified, in which case it
// serializes body and metadata and issues a Put.
func (r *Record[B, M]) Write(ctx context.Context, s store.Store) error {
	if !r.modified {
		return nil
	}
	if !r.HasBody {
		return fmt.Errorf("record: invariant violation: writing %s with no body", r.BucketKey())
	}

	body, err := r.schema.EncodeBody(r.Body)
	if err != nil {
		return err
	}
	metadata := r.schema.EncodeMetadata(r.Metadata)

	if err := s.Put(ctx, r.BucketKey(), body, metadata); err != nil {
		return err
	}
	r.modified = false
	return nil
}
