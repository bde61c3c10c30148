package continuation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var continuationsBucket = []byte("continuations")

type boltRecord struct {
	ResponseID string    `json:"response_id"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BoltStore persists records in a single bbolt file. Records older than ttl read as absent;
// they are overwritten by the next turn of the same conversation.
type BoltStore struct {
	db  *bolt.DB
	ttl time.Duration
	now func() time.Time
}

func NewBoltStore(path string, ttl time.Duration) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create bolt directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(continuationsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &BoltStore{db: db, ttl: ttl, now: time.Now}, nil
}

func (s *BoltStore) Get(_ context.Context, conversationID string) (string, bool, error) {
	var rec boltRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(continuationsBucket).Get([]byte(conversationID))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return "", false, storeErr("bolt get", err)
	}
	if !found || s.expired(rec.UpdatedAt) {
		return "", false, nil
	}
	return rec.ResponseID, true, nil
}

func (s *BoltStore) Set(_ context.Context, conversationID, responseID string) error {
	v, err := json.Marshal(boltRecord{ResponseID: responseID, UpdatedAt: s.now().UTC()})
	if err != nil {
		return storeErr("bolt marshal", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(continuationsBucket).Put([]byte(conversationID), v)
	})
	if err != nil {
		return storeErr("bolt put", err)
	}
	return nil
}

// Prune deletes expired records. It is a no-op without ttl.
func (s *BoltStore) Prune(_ context.Context) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(continuationsBucket)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var rec boltRecord
			if err := json.Unmarshal(v, &rec); err != nil || s.expired(rec.UpdatedAt) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, storeErr("bolt prune", err)
	}
	return removed, nil
}

func (s *BoltStore) expired(updatedAt time.Time) bool {
	return s.ttl > 0 && s.now().Sub(updatedAt) > s.ttl
}

func (s *BoltStore) Close() error { return s.db.Close() }

var (
	_ Backend = (*BoltStore)(nil)
	_ Pruner  = (*BoltStore)(nil)
)
