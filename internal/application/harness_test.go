package application

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/storacha-profile-cli/internal/adapters/datastore/leveldb"
	"github.com/bnema/storacha-profile-cli/internal/adapters/network/memory"
	tomlrepo "github.com/bnema/storacha-profile-cli/internal/adapters/repo/toml"
	filestore "github.com/bnema/storacha-profile-cli/internal/adapters/secrets/file"
	"github.com/bnema/storacha-profile-cli/internal/client"
	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/bnema/storacha-profile-cli/internal/metrics"
	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

const (
	adaEmail    = "ada@example.com"
	bobEmail    = "bob@example.com"
	starterPlan = "did:web:starter.web3.storage"
)

type harness struct {
	t          *testing.T
	clock      *fakeClock
	network    *memory.Network
	namespaces *leveldb.Store
	secrets    *filestore.Store
	repo       *tomlrepo.Repository
	metrics    *metrics.Metrics
	cache      *client.Manager
	store      *Store
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.LoginTimeout = 5 * time.Second

	return cfg
}

func newHarness(t *testing.T, opts ...memory.Option) *harness {
	t.Helper()

	clock := newFakeClock()
	namespaces, err := leveldb.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = namespaces.Close() })

	config := viper.New()
	config.Set(tomlrepo.StatePathKey, filepath.Join(t.TempDir(), "state.toml"))
	repo, err := tomlrepo.NewRepository(config)
	require.NoError(t, err)

	h := &harness{
		t:          t,
		clock:      clock,
		network:    memory.New(append([]memory.Option{memory.WithClock(clock)}, opts...)...),
		namespaces: namespaces,
		secrets:    filestore.NewStore(t.TempDir()),
		repo:       repo,
		metrics:    metrics.New(),
	}
	h.store = h.newStore(testConfig())

	return h
}

// newStore builds a store with a fresh client cache over the same durable
// state, the way a second process would.
func (h *harness) newStore(cfg Config) *Store {
	h.cache = client.NewManager(h.namespaces, h.secrets, h.network, h.clock)

	return NewStore(h.cache, h.network, h.repo, h.clock, WithConfig(cfg), WithMetrics(h.metrics))
}

func (h *harness) register(email string, product string) {
	h.t.Helper()

	_, err := h.network.RegisterAccount(context.Background(), email, product)
	require.NoError(h.t, err)
}

func (h *harness) consoleSpace(email string, name string, abilities ...domain.Ability) string {
	h.t.Helper()

	did, err := h.network.CreateConsoleSpace(context.Background(), email, name, abilities...)
	require.NoError(h.t, err)

	return did
}

// signUp registers email with a plan, logs in and resolves a console space.
func (h *harness) signUp(email string) string {
	h.t.Helper()

	h.register(email, starterPlan)
	spaceDID := h.consoleSpace(email, "profile")
	require.NoError(h.t, h.store.Login(context.Background(), email))
	h.store.FetchSpaces(context.Background())
	require.Empty(h.t, h.store.State().Error)

	return spaceDID
}

func (h *harness) agentOf(email string) string {
	h.t.Helper()

	handle, ok := h.cache.GetClient(domain.AccountIDFromEmail(email))
	require.True(h.t, ok)

	return handle.AgentDID()
}

// dropDelegations empties the account's durable delegation records, leaving
// the agent key in place.
func (h *harness) dropDelegations(email string) {
	h.t.Helper()

	ctx := context.Background()
	ds, err := h.namespaces.Open(client.NamespaceFor(domain.AccountIDFromEmail(email)))
	require.NoError(h.t, err)

	results, err := ds.Query(ctx, query.Query{Prefix: "/delegations", KeysOnly: true})
	require.NoError(h.t, err)
	entries, err := results.Rest()
	require.NoError(h.t, err)
	require.NotEmpty(h.t, entries)

	for _, entry := range entries {
		require.NoError(h.t, ds.Delete(ctx, datastore.NewKey(entry.Key)))
	}
}
