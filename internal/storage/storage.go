// Package storage provides the durable inference log for the prediction
// service. It uses BoltDB as the underlying storage engine: every served
// prediction is appended as one record, records are never updated or deleted
// by this process, and readers (the drift checker) scan snapshots without
// blocking concurrent appends.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"winequality-api/internal/model"

	"go.etcd.io/bbolt"
)

const inferencesBucket = "inferences"

// InferenceRecord is the persisted form of one served prediction.
type InferenceRecord struct {
	Features         model.FeatureVector `json:"features"`
	PredictedQuality float64             `json:"predicted_quality"`
	Timestamp        time.Time           `json:"timestamp"`
}

// Store is the append-only inference log.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the inference log under dataPath.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "inference-log.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(inferencesBucket)); err != nil {
			return fmt.Errorf("create inferences bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Append writes one inference record. Each append is a single BoltDB
// transaction, so a record is either fully visible or absent; concurrent
// appends interleave but never corrupt each other. The key combines the
// arrival timestamp with the bucket sequence so simultaneous requests in the
// same nanosecond still get distinct keys.
func (s *Store) Append(record InferenceRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(inferencesBucket))

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal inference record: %w", err)
		}

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}

		key := fmt.Sprintf("%020d_%012d", record.Timestamp.UnixNano(), seq)
		return b.Put([]byte(key), data)
	})
}

// Count returns the number of records in the log.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(inferencesBucket)).Stats().KeyN
		return nil
	})
	return n, err
}

// Recent returns up to n most recent records in arrival order. The read runs
// on a BoltDB snapshot, so an append in flight at call time may be missed;
// that eventual consistency is fine for drift checking.
func (s *Store) Recent(n int) ([]InferenceRecord, error) {
	var records []InferenceRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(inferencesBucket)).Cursor()

		for k, v := c.Last(); k != nil && len(records) < n; k, v = c.Prev() {
			var record InferenceRecord
			if err := json.Unmarshal(v, &record); err != nil {
				continue // skip malformed records
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Cursor walked newest-first; restore arrival order.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// InRange returns records whose timestamps fall within [start, end].
func (s *Store) InRange(start, end time.Time) ([]InferenceRecord, error) {
	var records []InferenceRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(inferencesBucket)).Cursor()

		startKey := []byte(fmt.Sprintf("%020d", start.UnixNano()))
		for k, v := c.Seek(startKey); k != nil; k, v = c.Next() {
			var record InferenceRecord
			if err := json.Unmarshal(v, &record); err != nil {
				continue
			}
			if record.Timestamp.After(end) {
				break
			}
			records = append(records, record)
		}
		return nil
	})

	return records, err
}

// ExportCSV writes the full log as CSV with one row per prediction, using the
// inference_log.csv column layout consumed by external reporting tools:
// feature columns in schema order, then prediction, then timestamp.
func (s *Store) ExportCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := append(append([]string{}, model.FeatureNames...), "prediction", "timestamp")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(inferencesBucket)).Cursor()

		for k, v := c.First(); k != nil; k, v = c.Next() {
			var record InferenceRecord
			if err := json.Unmarshal(v, &record); err != nil {
				continue
			}

			row := make([]string, 0, len(model.FeatureNames)+2)
			for _, name := range model.FeatureNames {
				row = append(row, strconv.FormatFloat(record.Features[name], 'g', -1, 64))
			}
			row = append(row,
				strconv.FormatFloat(record.PredictedQuality, 'g', -1, 64),
				record.Timestamp.Format(time.RFC3339Nano),
			)
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}
