package record_test

import (
	"context"
	"encoding/json"
	"testing"

	"rtc-signal/internal/record"
	"rtc-signal/internal/store"
)

type fixtureBody struct {
	Value string
}

type fixtureMeta struct {
	Tag string
}

type fixtureSchema struct{}

func (fixtureSchema) Prefix() string               { return "fx" }
func (fixtureSchema) KeyLength() int                { return 8 }
func (fixtureSchema) DefaultBody() fixtureBody      { return fixtureBody{} }
func (fixtureSchema) DefaultMetadata() fixtureMeta  { return fixtureMeta{} }
func (fixtureSchema) EncodeBody(b fixtureBody) ([]byte, error) { return json.Marshal(b) }
func (fixtureSchema) DecodeBody(raw []byte) (fixtureBody, error) {
	var b fixtureBody
	err := json.Unmarshal(raw, &b)
	return b, err
}
func (fixtureSchema) EncodeMetadata(m fixtureMeta) map[string]string {
	return map[string]string{"tag": m.Tag}
}
func (fixtureSchema) DecodeMetadata(raw map[string]string) (fixtureMeta, error) {
	return fixtureMeta{Tag: raw["tag"]}, nil
}

func TestCreateLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	schema := fixtureSchema{}

	rec, err := record.Create[fixtureBody, fixtureMeta](ctx, s, schema)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(rec.Key) != 8 {
		t.Fatalf("key length = %d, want 8", len(rec.Key))
	}

	rec.Body.Value = "hello"
	rec.Metadata.Tag = "world"
	rec.MarkModified()
	if err := rec.Write(ctx, s); err != nil {
		t.Fatalf("Write: %v", err)
	}

	loaded, err := record.Load[fixtureBody, fixtureMeta](ctx, s, schema, rec.Key)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil {
		t.Fatal("Load returned nil for an existing key")
	}
	if loaded.Body.Value != "hello" || loaded.Metadata.Tag != "world" {
		t.Fatalf("loaded record = %+v, want Value=hello Tag=world", loaded)
	}
	if loaded.Modified() {
		t.Fatal("freshly loaded record should not be modified")
	}
}

func TestLoadMissingReturnsNil(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	schema := fixtureSchema{}

	loaded, err := record.Load[fixtureBody, fixtureMeta](ctx, s, schema, "NOSUCHKEY")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded != nil {
		t.Fatalf("Load of missing key = %+v, want nil", loaded)
	}
}

func TestWriteNoOpUnlessModified(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	schema := fixtureSchema{}

	rec, _ := record.Create[fixtureBody, fixtureMeta](ctx, s, schema)
	_ = rec.Write(ctx, s)

	loaded, _ := record.Load[fixtureBody, fixtureMeta](ctx, s, schema, rec.Key)
	loaded.Body.Value = "mutated but not marked"
	if err := loaded.Write(ctx, s); err != nil {
		t.Fatalf("Write: %v", err)
	}

	reloaded, _ := record.Load[fixtureBody, fixtureMeta](ctx, s, schema, rec.Key)
	if reloaded.Body.Value == "mutated but not marked" {
		t.Fatal("unmodified record's Write should not have persisted the mutation")
	}
}
