// Package bbolt implements ports.SnapshotStore using bbolt (embedded
// B+ tree). Each source gets its own sub-bucket holding the hash of the
// last raw fetch and a binary encoding of its rows; a flat runs bucket
// keeps the pipeline history. Writes are transactional, so a crash
// mid-write cannot corrupt previously committed data.
package bbolt

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/kakiii/kmatch/internal/ports"
)

// Bucket and key names
var (
	bucketSnapshots = []byte("snapshots")
	bucketRuns      = []byte("runs")
	keyHash         = []byte("hash")
	keyRows         = []byte("rows")
	keySavedAt      = []byte("saved_at")
)

// runKeyLayout is fixed-width so byte order and time order stay aligned
// under bbolt's lexicographic cursor.
const runKeyLayout = "2006-01-02T15:04:05.000000000"

// Store implements ports.SnapshotStore backed by bbolt.
type Store struct {
	db *bolt.DB
}

// NewStore opens (or creates) a bbolt database at the given path.
func NewStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot replaces the stored snapshot for source. The previous
// snapshot stays readable until the transaction commits.
func (s *Store) SaveSnapshot(source, hash string, rows []ports.Row) error {
	if source == "" {
		return fmt.Errorf("empty snapshot source")
	}

	blob, err := encodeRows(rows)
	if err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}
	savedAt := []byte(time.Now().UTC().Format(time.RFC3339))

	return s.db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(bucketSnapshots)
		if err != nil {
			return err
		}
		sb, err := root.CreateBucketIfNotExists([]byte(source))
		if err != nil {
			return err
		}
		if err := sb.Put(keyHash, []byte(hash)); err != nil {
			return err
		}
		if err := sb.Put(keySavedAt, savedAt); err != nil {
			return err
		}
		return sb.Put(keyRows, blob)
	})
}

// LoadSnapshot retrieves the latest snapshot for source.
// ok is false when no snapshot exists (fresh source).
func (s *Store) LoadSnapshot(source string) (string, []ports.Row, bool, error) {
	var hash string
	var blob []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketSnapshots)
		if root == nil {
			return nil
		}
		sb := root.Bucket([]byte(source))
		if sb == nil {
			return nil
		}
		hash = string(sb.Get(keyHash))
		// Copy bytes out of the transaction (bbolt slices are only valid within tx)
		if v := sb.Get(keyRows); v != nil {
			blob = make([]byte, len(v))
			copy(blob, v)
		}
		return nil
	})
	if err != nil {
		return "", nil, false, err
	}

	if hash == "" && blob == nil {
		return "", nil, false, nil
	}

	var rows []ports.Row
	if blob != nil {
		rows, err = decodeRows(blob)
		if err != nil {
			return "", nil, false, fmt.Errorf("snapshot for %s: %w", source, err)
		}
	}
	return hash, rows, true, nil
}

// SaveRun appends a pipeline run to the history.
func (s *Store) SaveRun(run ports.Run) error {
	if run.ID == "" {
		return fmt.Errorf("run has no id")
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	key := []byte(run.StartedAt.UTC().Format(runKeyLayout) + ":" + run.ID)

	return s.db.Update(func(tx *bolt.Tx) error {
		rb, err := tx.CreateBucketIfNotExists(bucketRuns)
		if err != nil {
			return err
		}
		return rb.Put(key, data)
	})
}

// ListRuns returns up to limit runs, newest first. limit <= 0 returns
// the full history.
func (s *Store) ListRuns(limit int) ([]ports.Run, error) {
	var out []ports.Run

	err := s.db.View(func(tx *bolt.Tx) error {
		rb := tx.Bucket(bucketRuns)
		if rb == nil {
			return nil
		}
		c := rb.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) == limit {
				break
			}
			var run ports.Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("decode run %q: %w", k, err)
			}
			out = append(out, run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSource removes the stored snapshot for source.
// Idempotent: deleting a nonexistent source is not an error.
func (s *Store) DeleteSource(source string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketSnapshots)
		if root == nil {
			return nil
		}
		err := root.DeleteBucket([]byte(source))
		if err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		return nil
	})
}
