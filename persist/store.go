// Package persist gives the textual memo snapshot format (memo.Serialize
// / memo.Deserialize) a durable, embedded-database backing: a BoltDB file
// keyed by (optimizer run id, stage index), so a long-running host can
// save a memo mid-optimization and reload it later for re-optimization
// (spec.md §4.E "Multi-stage", §4.G "Persisted state") without having to
// manage its own snapshot files.
package persist

import (
	"bytes"
	"fmt"

	"github.com/boltdb/bolt"

	"github.com/quantumish/cascadeopt/memo"
)

var bucketName = []byte("snapshots")

// Store is a BoltDB-backed key-value store of serialized memo snapshots.
// The textual format itself remains the wire/test contract (spec.md §6);
// Store only gives that format a place to live across process restarts.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) a BoltDB file at path and ensures
// its snapshot bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("persist: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying BoltDB file.
func (s *Store) Close() error { return s.db.Close() }

func snapshotKey(runID string, stage int) []byte {
	return []byte(fmt.Sprintf("%s/%d", runID, stage))
}

// Save serializes m via memo.Serialize and stores it under (runID,
// stage), overwriting any snapshot already stored at that key.
func (s *Store) Save(runID string, stage int, m *memo.Memo) error {
	var buf bytes.Buffer
	if err := m.Serialize(&buf); err != nil {
		return fmt.Errorf("persist: serialize: %w", err)
	}
	key := snapshotKey(runID, stage)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(key, buf.Bytes())
	})
}

// Load reconstructs the memo stored under (runID, stage), bound to the
// given providers (memo.Deserialize requires live cost/property
// providers; they are never themselves persisted). ok is false if no
// snapshot is stored at that key.
func (s *Store) Load(runID string, stage int, costP memo.CostProvider, propsP memo.PropertyProvider) (*memo.Memo, bool, error) {
	key := snapshotKey(runID, stage)
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get(key)
		if v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if data == nil {
		return nil, false, nil
	}
	m, err := memo.Deserialize(bytes.NewReader(data), costP, propsP)
	if err != nil {
		return nil, false, fmt.Errorf("persist: deserialize %s: %w", key, err)
	}
	return m, true, nil
}

// Delete removes any snapshot stored under (runID, stage). It is not an
// error if none exists.
func (s *Store) Delete(runID string, stage int) error {
	key := snapshotKey(runID, stage)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete(key)
	})
}

// Stages returns every stage index with a stored snapshot for runID, in
// ascending order.
func (s *Store) Stages(runID string) ([]int, error) {
	prefix := []byte(runID + "/")
	var stages []int
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			var stage int
			if _, err := fmt.Sscanf(string(k[len(prefix):]), "%d", &stage); err == nil {
				stages = append(stages, stage)
			}
		}
		return nil
	})
	return stages, err
}
