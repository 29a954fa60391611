package client

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/bnema/storacha-profile-cli/internal/ports"
	"golang.org/x/sync/singleflight"
)

// Manager caches one Handle per account.
type Manager struct {
	namespaces ports.NamespaceStore
	secrets    ports.SecretStore
	network    ports.Network
	clock      ports.Clock

	mu      sync.RWMutex
	clients map[domain.AccountID]*Handle
	group   singleflight.Group
}

func NewManager(namespaces ports.NamespaceStore, secrets ports.SecretStore, network ports.Network, clock ports.Clock) *Manager {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &Manager{
		namespaces: namespaces,
		secrets:    secrets,
		network:    network,
		clock:      clock,
		clients:    map[domain.AccountID]*Handle{},
	}
}

// InitializeClient returns the cached handle for id, opening it from the
// account's durable namespace on first use. Concurrent callers for the same
// id share one open.
func (m *Manager) InitializeClient(ctx context.Context, id domain.AccountID) (*Handle, error) {
	if handle, ok := m.GetClient(id); ok {
		return handle, nil
	}

	value, err, _ := m.group.Do(string(id), func() (any, error) {
		if handle, ok := m.GetClient(id); ok {
			return handle, nil
		}

		ds, err := m.namespaces.Open(NamespaceFor(id))
		if err != nil {
			return nil, fmt.Errorf("open namespace for %s: %w", id, err)
		}

		handle, err := openHandle(ctx, id, ds, m.secrets, m.network, m.clock)
		if err != nil {
			return nil, fmt.Errorf("open client for %s: %w", id, err)
		}

		m.mu.Lock()
		m.clients[id] = handle
		m.mu.Unlock()

		log.Debugw("client initialized", "account", id, "agent", handle.AgentDID())
		return handle, nil
	})
	if err != nil {
		return nil, err
	}

	return value.(*Handle), nil
}

func (m *Manager) GetClient(id domain.AccountID) (*Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	handle, ok := m.clients[id]
	return handle, ok
}

// RemoveClient drops the handle from memory only. The account namespace and
// agent key stay on disk so a later InitializeClient resumes the session.
func (m *Manager) RemoveClient(id domain.AccountID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.clients, id)
}

func (m *Manager) AccountIDs() []domain.AccountID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]domain.AccountID, 0, len(m.clients))
	for id := range m.clients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}
