// Package leveldb keeps every account namespace in one LevelDB database.
package leveldb

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/bnema/storacha-profile-cli/internal/ports"
	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/namespace"
	levelds "github.com/ipfs/go-ds-leveldb"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("store")

const agentsDirMode = 0o700

type Store struct {
	mu     sync.Mutex
	root   *levelds.Datastore
	closed bool
}

var _ ports.NamespaceStore = (*Store)(nil)

// New opens the database at path. An empty path keeps everything in memory.
func New(path string) (*Store, error) {
	if path != "" {
		if err := os.MkdirAll(path, agentsDirMode); err != nil {
			return nil, fmt.Errorf("create agents dir: %w", err)
		}
	}

	root, err := levelds.NewDatastore(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	log.Debugw("opened namespace store", "path", path)

	return &Store{root: root}, nil
}

func NewInMemory() (*Store, error) {
	return New("")
}

func (s *Store) Open(name string) (datastore.Datastore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("namespace store closed")
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("invalid namespace %q", name)
	}

	return namespace.Wrap(s.root, datastore.NewKey(name)), nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.root.Close()
}
