// Package bolt stores history summaries in a BoltDB file.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/viant/tokenflow/service/dao"
	"github.com/viant/tokenflow/service/dao/history"
	"go.etcd.io/bbolt"
)

var summaryBucketKey = []byte("summaries")

// Store is a BoltDB backed history store.
type Store struct {
	db *bbolt.DB
}

var _ history.Store = (*Store)(nil)

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history %v: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(summaryBucketKey)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Save persists a summary.
func (s *Store) Save(_ context.Context, summary *history.Summary) error {
	if summary == nil {
		return dao.ErrNilEntity
	}
	if summary.InstanceID == "" {
		return dao.ErrInvalidID
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(summaryBucketKey).Put([]byte(summary.InstanceID), data)
	})
}

// Load returns a summary or dao.ErrNotFound.
func (s *Store) Load(_ context.Context, id string) (*history.Summary, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	var summary *history.Summary
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(summaryBucketKey).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %v", dao.ErrNotFound, id)
		}
		summary = &history.Summary{}
		return json.Unmarshal(data, summary)
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// Delete removes a summary.
func (s *Store) Delete(_ context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(summaryBucketKey).Delete([]byte(id))
	})
}

// List returns summaries matching parameters ordered by instance id.
func (s *Store) List(_ context.Context, parameters ...*dao.Parameter) ([]*history.Summary, error) {
	var result []*history.Summary
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(summaryBucketKey).ForEach(func(k, v []byte) error {
			summary := &history.Summary{}
			if err := json.Unmarshal(v, summary); err != nil {
				return fmt.Errorf("failed to unmarshal summary %s: %w", k, err)
			}
			if dao.Match(summary, parameters...) {
				result = append(result, summary)
			}
			return nil
		})
	})
	return result, err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
