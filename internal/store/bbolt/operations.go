package bbolt

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/loog-project/prefwatch/internal/store"
	"github.com/loog-project/prefwatch/pkg/plistdiff"
)

// SaveSnapshot stores a full snapshot, bumps the counter and moves the head.
func (s *Store) SaveSnapshot(
	_ context.Context,
	domain string,
	snapshot *store.Snapshot,
) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		revNum, err := s.claimNextRevision(tx, domain)
		if err != nil {
			return err
		}
		snapshot.ID = revNum

		// save the payload
		key := keyDomainRevision(domain, revNum)
		payload, err := s.codec.Marshal(snapshot)
		if err != nil {
			return err
		}
		if err = tx.Bucket(bucketSnapshots).Put(key, payload); err != nil {
			return err
		}
		if err = tx.Bucket(bucketHeads).Put([]byte(domain), payload); err != nil {
			return err
		}

		// update the index
		indexBytes, err := msgpack.Marshal(indexEntry{Snap: true})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketIndex).Put(key, indexBytes)
	})
}

// SaveRevision stores a change set, bumps the counter and moves the head to state.
func (s *Store) SaveRevision(
	_ context.Context,
	domain string,
	rev *store.Revision,
	state plistdiff.Value,
) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		revNum, err := s.claimNextRevision(tx, domain)
		if err != nil {
			return err
		}
		rev.ID = revNum

		chunkID := uint64(revNum) / chunkSize
		offset := uint16(revNum % chunkSize)
		recBytes, err := s.codec.Marshal(rev)
		if err != nil {
			return err
		}
		if err := s.putChunk(tx, domain, chunkID, offset, recBytes); err != nil {
			return err
		}
		idx := indexEntry{Snap: false, Chunk: chunkID, Offset: offset}
		idxBytes, err := msgpack.Marshal(&idx)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketIndex).Put(keyDomainRevision(domain, revNum), idxBytes); err != nil {
			return err
		}

		if state == nil {
			return tx.Bucket(bucketHeads).Delete([]byte(domain))
		}
		return s.putHead(tx, domain, &store.Snapshot{
			ID:         revNum,
			PreviousID: rev.PreviousID,
			Time:       rev.Time,
			Value:      store.Value{Value: state},
		})
	})
}

func (s *Store) GetSnapshot(_ context.Context, domain string, revID store.RevisionID) (*store.Snapshot, error) {
	var snapshot store.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		return s.readSnapshot(tx, domain, revID, &snapshot)
	})
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (s *Store) GetRevision(_ context.Context, domain string, revID store.RevisionID) (*store.Revision, error) {
	var rev store.Revision
	err := s.db.View(func(tx *bbolt.Tx) error {
		idx, err := readIndex(tx, domain, revID)
		if err != nil {
			return err
		}
		if idx.Snap {
			return errRevisionIsSnapshot
		}
		return s.readRevision(tx, domain, idx, &rev)
	})
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

func (s *Store) Get(_ context.Context, domain string, revID store.RevisionID) (*store.Snapshot, *store.Revision, error) {
	var (
		snapshot *store.Snapshot
		rev      *store.Revision
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		idx, err := readIndex(tx, domain, revID)
		if err != nil {
			return err
		}
		if idx.Snap {
			snapshot = new(store.Snapshot)
			return s.readSnapshot(tx, domain, revID, snapshot)
		}
		rev = new(store.Revision)
		return s.readRevision(tx, domain, idx, rev)
	})
	if err != nil {
		return nil, nil, err
	}
	return snapshot, rev, nil
}

// GetLatestRevision returns the highest committed revision for domain.
func (s *Store) GetLatestRevision(
	_ context.Context,
	domain string,
) (store.RevisionID, error) {
	// check cache first
	s.nextRevisionCounterMutex.RLock()
	if next, ok := s.nextRevisionCounter[domain]; ok {
		s.nextRevisionCounterMutex.RUnlock()
		return store.RevisionID(next - 1), nil
	}
	s.nextRevisionCounterMutex.RUnlock()

	var next uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketLatest).Get([]byte(domain))
		if v == nil {
			return store.ErrNotFound
		}
		next = binary.BigEndian.Uint64(v)
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.nextRevisionCounterMutex.Lock()
	s.nextRevisionCounter[domain] = next
	s.nextRevisionCounterMutex.Unlock()
	return store.RevisionID(next - 1), nil
}

func (s *Store) LatestState(_ context.Context, domain string) (*store.Snapshot, error) {
	var head store.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketHeads).Get([]byte(domain))
		if v == nil {
			return store.ErrNotFound
		}
		return s.codec.Unmarshal(v, &head)
	})
	if err != nil {
		return nil, err
	}
	return &head, nil
}

func (s *Store) Domains(_ context.Context) ([]string, error) {
	var domains []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketHeads).ForEach(func(k, _ []byte) error {
			domains = append(domains, string(k))
			return nil
		})
	})
	return domains, err
}

// WalkRevisions visits the index in key order, which groups revisions by
// domain and orders them by ID within a domain.
func (s *Store) WalkRevisions(fn func(domain string, snapshot *store.Snapshot, rev *store.Revision) bool) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketIndex).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			domain, n, err := splitDomainKey(k)
			if err != nil {
				return fmt.Errorf("%w: %q", err, k)
			}
			var idx indexEntry
			if err := msgpack.Unmarshal(v, &idx); err != nil {
				return err
			}

			revID := store.RevisionID(n)
			if idx.Snap {
				var snapshot store.Snapshot
				if err := s.readSnapshot(tx, domain, revID, &snapshot); err != nil {
					return fmt.Errorf("domain %s revision %s: %w", domain, revID, err)
				}
				if !fn(domain, &snapshot, nil) {
					return nil
				}
				continue
			}

			var rev store.Revision
			if err := s.readRevision(tx, domain, idx, &rev); err != nil {
				return fmt.Errorf("domain %s revision %s: %w", domain, revID, err)
			}
			if !fn(domain, nil, &rev) {
				return nil
			}
		}
		return nil
	})
}

func readIndex(tx *bbolt.Tx, domain string, revID store.RevisionID) (indexEntry, error) {
	var idx indexEntry
	idxBytes := tx.Bucket(bucketIndex).Get(keyDomainRevision(domain, revID))
	if idxBytes == nil {
		return idx, fmt.Errorf("%w: %w", store.ErrNotFound, errIndexEntryMissing)
	}
	err := msgpack.Unmarshal(idxBytes, &idx)
	return idx, err
}

func (s *Store) readSnapshot(tx *bbolt.Tx, domain string, revID store.RevisionID, out *store.Snapshot) error {
	v := tx.Bucket(bucketSnapshots).Get(keyDomainRevision(domain, revID))
	if v == nil {
		return store.ErrNotFound
	}
	return s.codec.Unmarshal(v, out)
}

func (s *Store) readRevision(tx *bbolt.Tx, domain string, idx indexEntry, out *store.Revision) error {
	chunkBytes := tx.Bucket(bucketChunks).Get(keyDomainChunk(domain, idx.Chunk))
	if chunkBytes == nil {
		return errRevisionChunkGap
	}
	var arr []rawRevision
	if err := s.codec.Unmarshal(chunkBytes, &arr); err != nil {
		return err
	}
	if int(idx.Offset) >= len(arr) || arr[idx.Offset].Data == nil {
		return errRevisionChunkGap
	}
	return s.codec.Unmarshal(arr[idx.Offset].Data, out)
}
