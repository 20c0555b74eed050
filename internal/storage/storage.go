// Package storage provides persistent storage for the identification
// tooling. It uses BoltDB to keep per-user observation sets and the result
// records of completed identification sessions.
//
// The core inference packages never touch the store: they operate on plain
// in-memory slices. Storage exists for the calibrate/identify harnesses.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"touchident/internal/touch"
)

const (
	observationsBucket = "observations" // Per-user touch/target observation sets
	sessionsBucket     = "sessions"     // Identification session result records
)

// SessionRecord is the persisted outcome of one identification session.
type SessionRecord struct {
	ID        string      `json:"id"`
	TrueUser  int         `json:"true_user"`
	Users     []int       `json:"users"`
	Steps     int         `json:"steps"`
	Final     []float64   `json:"final"`
	History   [][]float64 `json:"history"`
	TopUser   int         `json:"top_user"`
	TopProb   float64     `json:"top_prob"`
	Correct   bool        `json:"correct"`
	StartedAt time.Time   `json:"started_at"`
}

// Store provides persistent storage backed by BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the database under dataPath and ensures the
// buckets exist.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "touchident.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(observationsBucket)); err != nil {
			return fmt.Errorf("create observations bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(sessionsBucket)); err != nil {
			return fmt.Errorf("create sessions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StoreObservations appends observations to a user's stored set. Keys are
// "<user>_<seq>", so a prefix scan returns them in insertion order.
func (s *Store) StoreObservations(user int, obs []touch.Observation) error {
	if err := touch.ValidateObservations(obs); err != nil {
		return fmt.Errorf("store observations: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(observationsBucket))
		for _, o := range obs {
			seq, err := b.NextSequence()
			if err != nil {
				return fmt.Errorf("observation sequence: %w", err)
			}
			data, err := json.Marshal(o)
			if err != nil {
				return fmt.Errorf("marshal observation: %w", err)
			}
			key := fmt.Sprintf("%06d_%012d", user, seq)
			if err := b.Put([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetObservations returns a user's stored observations in insertion order.
func (s *Store) GetObservations(user int) ([]touch.Observation, error) {
	var obs []touch.Observation

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(observationsBucket))
		c := b.Cursor()

		prefix := []byte(fmt.Sprintf("%06d_", user))
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var o touch.Observation
			if err := json.Unmarshal(v, &o); err != nil {
				continue // Skip malformed records
			}
			obs = append(obs, o)
		}
		return nil
	})

	return obs, err
}

// StoreSession persists a completed session record, keyed by start time so
// range scans return sessions chronologically.
func (s *Store) StoreSession(rec SessionRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(sessionsBucket))

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		key := fmt.Sprintf("%019d_%s", rec.StartedAt.UnixNano(), rec.ID)
		return b.Put([]byte(key), data)
	})
}

// GetSessions returns session records started within [start, end].
func (s *Store) GetSessions(start, end time.Time) ([]SessionRecord, error) {
	var sessions []SessionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(sessionsBucket))
		c := b.Cursor()

		startKey := []byte(fmt.Sprintf("%019d", start.UnixNano()))
		endKey := []byte(fmt.Sprintf("%019d", end.UnixNano()+1))

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) < 0; k, v = c.Next() {
			var rec SessionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			sessions = append(sessions, rec)
		}
		return nil
	})

	return sessions, err
}
