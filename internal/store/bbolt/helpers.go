package bbolt

import (
	"encoding/binary"
	"errors"

	"go.etcd.io/bbolt"

	"github.com/loog-project/prefwatch/internal/store"
)

func keyDomainRevision(domain string, id store.RevisionID) []byte {
	return keyDomainUint(domain, uint64(id))
}

func keyDomainChunk(domain string, chunk uint64) []byte {
	return keyDomainUint(domain, chunk)
}

func keyDomainUint(domain string, n uint64) []byte {
	buf := make([]byte, len(domain)+1+8)
	copy(buf, domain)
	buf[len(domain)] = '|'
	binary.BigEndian.PutUint64(buf[len(domain)+1:], n)
	return buf
}

// splitDomainKey reverses keyDomainUint.
func splitDomainKey(key []byte) (string, uint64, error) {
	if len(key) < 9 || key[len(key)-9] != '|' {
		return "", 0, errors.New("malformed key")
	}
	return string(key[:len(key)-9]), binary.BigEndian.Uint64(key[len(key)-8:]), nil
}

// claimNextRevision atomically increments the nextRevisionCounter in bucketLatest *and*
// updates the in-memory cache. It returns the newly assigned revision number.
func (s *Store) claimNextRevision(tx *bbolt.Tx, domain string) (store.RevisionID, error) {
	latest := tx.Bucket(bucketLatest)

	var next uint64
	if raw := latest.Get([]byte(domain)); raw != nil {
		next = binary.BigEndian.Uint64(raw)
	}
	revisionNumber := store.RevisionID(next)
	next++

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	if err := latest.Put([]byte(domain), buf); err != nil {
		return 0, err
	}

	// the cache must only see the new counter once the transaction commits
	tx.OnCommit(func() {
		s.nextRevisionCounterMutex.Lock()
		s.nextRevisionCounter[domain] = next
		s.nextRevisionCounterMutex.Unlock()
	})

	return revisionNumber, nil
}

// putChunk stores an encoded revision at offset inside its chunk value.
func (s *Store) putChunk(tx *bbolt.Tx, domain string, chunkID uint64, offset uint16, data []byte) error {
	bucket := tx.Bucket(bucketChunks)
	key := keyDomainChunk(domain, chunkID)

	var chunk []rawRevision
	if v := bucket.Get(key); v != nil {
		if err := s.codec.Unmarshal(v, &chunk); err != nil {
			return err
		}
	}
	if len(chunk) < chunkSize {
		grown := make([]rawRevision, chunkSize)
		copy(grown, chunk)
		chunk = grown
	}
	chunk[offset] = rawRevision{Data: data}

	encoded, err := s.codec.Marshal(chunk)
	if err != nil {
		return err
	}
	return bucket.Put(key, encoded)
}

// putHead replaces the latest state of domain.
func (s *Store) putHead(tx *bbolt.Tx, domain string, head *store.Snapshot) error {
	payload, err := s.codec.Marshal(head)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketHeads).Put([]byte(domain), payload)
}
