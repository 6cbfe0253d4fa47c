package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"peakload/internal/search"
	"peakload/internal/stats"
)

const (
	BucketTrials   = "trials"
	BucketSearches = "searches"
)

// TrialRecord is one persisted load-test run within a search session.
type TrialRecord struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Trial     search.Trial    `json:"trial"`
	Stats     *stats.RunStats `json:"stats"`
}

// SearchRecord is the final outcome of a throughput search.
type SearchRecord struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	SLA       search.SLA     `json:"sla"`
	Result    *search.Result `json:"result"`
}

// Store persists the audit trail of a session in a bbolt database.
type Store struct {
	db       *bbolt.DB
	filePath string
}

// Open creates or opens a store at the given path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range []string{BucketTrials, BucketSearches} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, filePath: path}, nil
}

// OpenSession creates a fresh per-invocation store under the user home dir.
func OpenSession() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(home, ".peakload", "sessions")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("session_%d.db", time.Now().UnixNano())
	return Open(filepath.Join(dir, filename))
}

func (s *Store) Path() string { return s.filePath }

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveTrial appends one run to the session's audit trail.
func (s *Store) SaveTrial(trial search.Trial, rs *stats.RunStats) error {
	record := TrialRecord{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Trial:     trial,
		Stats:     rs,
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketTrials))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		// Zero-padded sequence keys keep cursor order == insertion order
		return b.Put([]byte(fmt.Sprintf("%08d", seq)), data)
	})
}

// ListTrials returns all persisted runs in insertion order.
func (s *Store) ListTrials() ([]TrialRecord, error) {
	var records []TrialRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketTrials))
		return b.ForEach(func(_, v []byte) error {
			var record TrialRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// SaveSearch persists the final search verdict and returns its ID.
func (s *Store) SaveSearch(sla search.SLA, result *search.Result) (string, error) {
	record := SearchRecord{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		SLA:       sla,
		Result:    result,
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketSearches))
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return b.Put([]byte(record.ID), data)
	})
	if err != nil {
		return "", err
	}
	return record.ID, nil
}

// GetSearch loads one persisted search by ID.
func (s *Store) GetSearch(id string) (*SearchRecord, error) {
	var record SearchRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketSearches))
		v := b.Get([]byte(id))
		if v == nil {
			return fmt.Errorf("search %s not found", id)
		}
		return json.Unmarshal(v, &record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}
