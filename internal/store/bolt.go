package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var transcriptsBucket = []byte("transcripts")

// BoltArchive keeps one JSON-encoded transcript per session id in a bbolt file.
type BoltArchive struct {
	db *bolt.DB
}

var _ Archive = (*BoltArchive)(nil)

func OpenBoltArchive(path string) (*BoltArchive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open transcript archive: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(transcriptsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init transcript archive: %w", err)
	}
	return &BoltArchive{db: db}, nil
}

func (a *BoltArchive) Load(sessionID string) ([]Message, error) {
	var out []Message
	err := a.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(transcriptsBucket).Get([]byte(sessionID))
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, &out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *BoltArchive) Save(sessionID string, msgs []Message) error {
	b, err := json.Marshal(msgs)
	if err != nil {
		return err
	}
	return a.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(transcriptsBucket).Put([]byte(sessionID), b)
	})
}

func (a *BoltArchive) Close() error {
	return a.db.Close()
}
