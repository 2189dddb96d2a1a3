package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	bolt "go.etcd.io/bbolt"
)

var (
	bodiesBucket   = []byte("bodies")
	metadataBucket = []byte("metadata")
)

// Bolt is a single-file embedded Store driver for local and dev
// deployments that don't warrant a Postgres instance. go.etcd.io/bbolt
// is already present in the retrieval pack as the engine underneath
// n0remac-robot-webrtc's sqlite/gorm storage; here it backs the object
// store directly instead of sitting under a relational layer.
type Bolt struct {
	db *bolt.DB
}

// NewBolt opens (creating if absent) a bbolt file at path.
func NewBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bodiesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metadataBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init bolt buckets: %w", err)
	}

	return &Bolt{db: db}, nil
}

// Close releases the underlying file lock.
func (b *Bolt) Close() error {
	return b.db.Close()
}

func (b *Bolt) Head(_ context.Context, key string) (bool, error) {
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bodiesBucket).Get([]byte(key)) != nil
		return nil
	})
	return found, err
}

func (b *Bolt) Get(_ context.Context, key string) (*Object, error) {
	var obj *Object
	err := b.db.View(func(tx *bolt.Tx) error {
		body := tx.Bucket(bodiesBucket).Get([]byte(key))
		if body == nil {
			return ErrNotFound
		}

		meta := map[string]string{}
		if raw := tx.Bucket(metadataBucket).Get([]byte(key)); raw != nil {
			if err := json.Unmarshal(raw, &meta); err != nil {
				return err
			}
		}

		bodyCopy := make([]byte, len(body))
		copy(bodyCopy, body)
		obj = &Object{Key: key, Body: bodyCopy, Metadata: meta}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (b *Bolt) Put(_ context.Context, key string, body []byte, metadata map[string]string) error {
	if metadata == nil {
		metadata = map[string]string{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bodiesBucket).Put([]byte(key), body); err != nil {
			return err
		}
		return tx.Bucket(metadataBucket).Put([]byte(key), raw)
	})
}

func (b *Bolt) List(_ context.Context, prefix string, includeMetadata bool) ([]ListedObject, error) {
	var out []ListedObject
	err := b.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(bodiesBucket).Cursor()
		prefixBytes := []byte(prefix)
		for k, _ := cursor.Seek(prefixBytes); k != nil && strings.HasPrefix(string(k), prefix); k, _ = cursor.Next() {
			entry := ListedObject{Key: string(k)}
			if includeMetadata {
				meta := map[string]string{}
				if raw := tx.Bucket(metadataBucket).Get(k); raw != nil {
					if err := json.Unmarshal(raw, &meta); err != nil {
						return err
					}
				}
				entry.Metadata = meta
			}
			out = append(out, entry)
		}
		return nil
	})
	return out, err
}

func (b *Bolt) Delete(_ context.Context, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bodiesBucket).Delete([]byte(key)); err != nil {
			return err
		}
		return tx.Bucket(metadataBucket).Delete([]byte(key))
	})
}
