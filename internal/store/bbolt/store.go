package bbolt

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/loog-project/prefwatch/internal/store"
)

var (
	bucketSnapshots = []byte("snapshots")      // <domain>|rev     -> Snapshot
	bucketChunks    = []byte("revisionChunks") // <domain>|chunkID -> []rawRevision
	bucketIndex     = []byte("index")          // <domain>|rev     -> indexEntry
	bucketLatest    = []byte("latest")         // <domain>         -> uint64(next revision)
	bucketHeads     = []byte("heads")          // <domain>         -> Snapshot (latest state)
)

var (
	errIndexEntryMissing  = errors.New("index entry missing")
	errRevisionIsSnapshot = errors.New("revision is a snapshot")
	errRevisionChunkGap   = errors.New("revision chunk missing")
	errNotRevisionFile    = errors.New("not a revision file")
)

const chunkSize = 64 // revisions per chunk value

// ------------------------- index entry ---------------------------------------

type indexEntry struct {
	Snap   bool   `msgpack:"s"`
	Chunk  uint64 `msgpack:"c"`
	Offset uint16 `msgpack:"o"`
}

type rawRevision struct {
	Data []byte `msgpack:"d"`
}

// ------------------------- Store ---------------------------------------------

type Store struct {
	db    *bbolt.DB
	codec store.Codec

	nextRevisionCounterMutex sync.RWMutex
	nextRevisionCounter      map[string]uint64
}

var _ store.ChangeStore = (*Store)(nil)

// New opens (or creates) a BoltDB database file.
// Pass nil for [codec] to use the default MessagePack implementation.
// With durable unset, commits skip fsync.
func New(path string, codec store.Codec, durable bool) (*Store, error) {
	if codec == nil {
		codec = store.DefaultCodec
	}
	db, err := bbolt.Open(path, 0o644, &bbolt.Options{
		Timeout:      0,
		NoSync:       !durable,
		FreelistType: bbolt.FreelistMapType,
	})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketSnapshots, bucketChunks, bucketIndex, bucketLatest, bucketHeads} {
			if _, e := tx.CreateBucketIfNotExists(b); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create default buckets: %w", err)
	}
	return &Store{
		db:                  db,
		codec:               codec,
		nextRevisionCounter: make(map[string]uint64),
	}, nil
}

// Open opens an existing database file read-only. It waits at most timeout
// for a writer that holds the file lock. Writes on the returned Store fail.
func Open(path string, codec store.Codec, timeout time.Duration) (*Store, error) {
	if codec == nil {
		codec = store.DefaultCodec
	}
	// bbolt creates missing files even in read-only mode
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o644, &bbolt.Options{
		ReadOnly: true,
		Timeout:  timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	err = db.View(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketSnapshots, bucketChunks, bucketIndex, bucketLatest, bucketHeads} {
			if tx.Bucket(b) == nil {
				return fmt.Errorf("%w: bucket %s missing", errNotRevisionFile, b)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &Store{
		db:                  db,
		codec:               codec,
		nextRevisionCounter: make(map[string]uint64),
	}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.db.Path()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
