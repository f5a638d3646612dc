package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	gserrors "github.com/cuemby/groupsync/pkg/errors"
	"github.com/cuemby/groupsync/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketSnapshots = []byte("snapshots")
	bucketStats     = []byte("stats")
	bucketQueues    = []byte("queues")
)

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store in dataDir
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "groupsync.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketSnapshots, bucketStats, bucketQueues} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Snapshot operations

func (s *BoltStore) CreateSnapshot(ref types.SnapshotRef) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketSnapshots)
		name := []byte(ref.String())
		if root.Bucket(name) != nil {
			if err := root.DeleteBucket(name); err != nil {
				return err
			}
		}
		_, err := root.CreateBucket(name)
		return err
	})
	return stagingErr("create", ref, err)
}

func (s *BoltStore) BulkInsert(ref types.SnapshotRef, records []types.StagedIdentity) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := snapshotBucket(tx, ref)
		if err != nil {
			return err
		}
		for _, rec := range records {
			rec.Email = types.NormalizeEmail(rec.Email)
			if rec.Email == "" {
				continue
			}
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(rec.Email), data); err != nil {
				return err
			}
		}
		return nil
	})
	return stagingErr("insert", ref, err)
}

func (s *BoltStore) Count(ref types.SnapshotRef) (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := snapshotBucket(tx, ref)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			count++
			return nil
		})
	})
	return count, stagingErr("count", ref, err)
}

func (s *BoltStore) List(ref types.SnapshotRef) ([]types.StagedIdentity, error) {
	var records []types.StagedIdentity
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := snapshotBucket(tx, ref)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			var rec types.StagedIdentity
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
	})
	return records, stagingErr("list", ref, err)
}

func (s *BoltStore) SnapshotExists(ref types.SnapshotRef) (bool, error) {
	exists := false
	err := s.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(bucketSnapshots).Bucket([]byte(ref.String())) != nil
		return nil
	})
	return exists, stagingErr("exists", ref, err)
}

func (s *BoltStore) Drop(ref types.SnapshotRef) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketSnapshots)
		name := []byte(ref.String())
		if root.Bucket(name) == nil {
			return nil
		}
		return root.DeleteBucket(name)
	})
	return stagingErr("drop", ref, err)
}

func (s *BoltStore) AntiJoin(a, b types.SnapshotRef) ([]types.StagedIdentity, error) {
	var records []types.StagedIdentity
	err := s.db.View(func(tx *bolt.Tx) error {
		left, err := snapshotBucket(tx, a)
		if err != nil {
			return err
		}
		right, err := snapshotBucket(tx, b)
		if err != nil {
			return err
		}
		return left.ForEach(func(k, v []byte) error {
			if right.Get(k) != nil {
				return nil
			}
			var rec types.StagedIdentity
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
	})
	return records, stagingErr("anti-join", a, err)
}

func (s *BoltStore) DeleteWhereKeyIn(a, b types.SnapshotRef) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		left, err := snapshotBucket(tx, a)
		if err != nil {
			return err
		}
		right, err := snapshotBucket(tx, b)
		if err != nil {
			return err
		}

		// Collect first; deleting while iterating a bbolt cursor skips keys
		var keys [][]byte
		if err := left.ForEach(func(k, v []byte) error {
			if right.Get(k) != nil {
				keys = append(keys, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}

		for _, k := range keys {
			if err := left.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, stagingErr("delete-where-key-in", a, err)
}

func (s *BoltStore) DeleteKeys(ref types.SnapshotRef, keys []string) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := snapshotBucket(tx, ref)
		if err != nil {
			return err
		}
		for _, key := range keys {
			k := []byte(types.NormalizeEmail(key))
			if b.Get(k) == nil {
				continue
			}
			if err := b.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, stagingErr("delete", ref, err)
}

func snapshotBucket(tx *bolt.Tx, ref types.SnapshotRef) (*bolt.Bucket, error) {
	b := tx.Bucket(bucketSnapshots).Bucket([]byte(ref.String()))
	if b == nil {
		return nil, gserrors.ErrSnapshotNotFound
	}
	return b, nil
}

func stagingErr(op string, ref types.SnapshotRef, err error) error {
	if err == nil {
		return nil
	}
	return gserrors.NewStagingError(op, ref.String(), err)
}

// Stats operations

func (s *BoltStore) LoadStats(name string) (types.Stats, error) {
	stats := types.Stats{}
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketStats).Get([]byte(name))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &stats)
	})
	return stats, err
}

func (s *BoltStore) SaveStats(name string, stats types.Stats) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putStats(tx, name, stats)
	})
}

func (s *BoltStore) UpdateStats(name string, fn func(types.Stats) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		stats := types.Stats{}
		if data := tx.Bucket(bucketStats).Get([]byte(name)); data != nil {
			if err := json.Unmarshal(data, &stats); err != nil {
				return err
			}
		}
		if err := fn(stats); err != nil {
			return err
		}
		return putStats(tx, name, stats)
	})
}

func putStats(tx *bolt.Tx, name string, stats types.Stats) error {
	if stats == nil {
		stats = types.Stats{}
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketStats).Put([]byte(name), data)
}

// Queue operations

func (s *BoltStore) SaveCheckpoint(cp *types.Checkpoint) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(cp)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketQueues).Put([]byte(cp.Name), data)
	})
}

func (s *BoltStore) LoadCheckpoint(name string) (*types.Checkpoint, error) {
	var cp types.Checkpoint
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketQueues).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("queue %s: %w", name, gserrors.ErrNoCheckpoint)
		}
		return json.Unmarshal(data, &cp)
	})
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *BoltStore) DeleteCheckpoint(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueues).Delete([]byte(name))
	})
}
