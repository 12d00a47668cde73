// Package supervisor implements ocred, the long-running daemon that owns a
// Library and Context and serves pkg/ipc requests over a Unix domain
// socket. It's the only thing in the module that expects to survive longer
// than a single CLI invocation, so it's also the only thing that persists
// container metadata — a worker goroutine dies with its process, but the
// record of what was running should still explain itself after a restart.
package supervisor

import (
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/project-ocre/ocre/pkg/ocreerr"
	"github.com/project-ocre/ocre/pkg/runtime"
)

var containersBucket = []byte("containers")

// ContainerRecord is the durable shadow of a container's creation
// parameters and last known status, used purely to reconcile state across a
// daemon restart — it is not the source of truth while the daemon is up;
// the in-memory Context is.
type ContainerRecord struct {
	ID       string         `json:"id"`
	Image    string         `json:"image"`
	Runtime  string         `json:"runtime"`
	Detached bool           `json:"detached"`

	Argv         []string        `json:"argv,omitempty"`
	Envp         []string        `json:"envp,omitempty"`
	Capabilities []string        `json:"capabilities,omitempty"`
	Mounts       []runtime.Mount `json:"mounts,omitempty"`

	StackSize uint32 `json:"stack_size,omitempty"`
	HeapSize  uint32 `json:"heap_size,omitempty"`

	Status    string    `json:"status"`
	ExitCode  int       `json:"exit_code"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is a bbolt-backed cache of ContainerRecord, keyed by container ID.
type Store struct {
	db *bolt.DB
}

// OpenStore opens (creating if needed) a bbolt database at path.
func OpenStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, ocreerr.IoErrorf("supervisor: open store %q: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(containersBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, ocreerr.IoErrorf("supervisor: initialize store %q: %w", path, err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put upserts a container record.
func (s *Store) Put(rec ContainerRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return ocreerr.IoErrorf("supervisor: marshal container record: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(containersBucket).Put([]byte(rec.ID), data)
	})
}

// Delete removes a container record.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(containersBucket).Delete([]byte(id))
	})
}

// List returns every stored container record.
func (s *Store) List() ([]ContainerRecord, error) {
	var records []ContainerRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(containersBucket).ForEach(func(k, v []byte) error {
			var rec ContainerRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, ocreerr.IoErrorf("supervisor: list container records: %w", err)
	}

	return records, nil
}
