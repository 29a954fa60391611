package toml

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/bnema/storacha-profile-cli/internal/ports"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T, statePath string) *Repository {
	t.Helper()

	config := viper.New()
	config.Set(StatePathKey, statePath)

	repo, err := NewRepository(config)
	require.NoError(t, err)

	return repo
}

func TestRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t, filepath.Join(t.TempDir(), "state.toml"))

	createdAt := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	first := domain.Account{
		ID:         domain.AccountIDFromEmail("ada@example.com"),
		Email:      "ada@example.com",
		AccountDID: "did:mailto:example.com:ada",
		AgentDID:   "did:key:z6MkAgentA",
		CreatedAt:  createdAt,
	}
	second := domain.Account{
		ID:         domain.AccountIDFromEmail("bob@example.com"),
		Email:      "bob@example.com",
		AccountDID: "did:mailto:example.com:bob",
		AgentDID:   "did:key:z6MkAgentB",
		CreatedAt:  createdAt.Add(time.Hour),
	}

	snapshot := ports.Snapshot{
		Accounts:            []domain.Account{first, second},
		CurrentAccount:      &second,
		IsAuthenticated:     true,
		PaymentPlanSelected: true,
	}
	require.NoError(t, repo.Save(context.Background(), snapshot))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snapshot, got)
}

func TestRepositoryLoadDropsDanglingCurrentAccount(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.toml")
	require.NoError(t, os.WriteFile(statePath, []byte(strings.Join([]string{
		"version = 1",
		"current_account = \"account-gone@example.com\"",
		"is_authenticated = true",
		"payment_plan_selected = true",
		"",
		"[[accounts]]",
		"id = \"account-ada@example.com\"",
		"email = \"ada@example.com\"",
		"account_did = \"did:mailto:example.com:ada\"",
		"agent_did = \"did:key:z6MkAgentA\"",
		"created_at = \"\"",
		"",
	}, "\n")), 0o600))

	repo := newTestRepository(t, statePath)

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got.Accounts, 1)
	assert.Nil(t, got.CurrentAccount)
	assert.False(t, got.IsAuthenticated)
	assert.False(t, got.PaymentPlanSelected)
}

func TestRepositorySaveCreatesDefaultPathAndEnforcesPermissions(t *testing.T) {
	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)

	repo, err := NewRepository(viper.New())
	require.NoError(t, err)

	require.NoError(t, repo.Save(context.Background(), ports.Snapshot{}))

	statePath := filepath.Join(homeDir, ".storacha", "state.toml")
	assert.Equal(t, statePath, repo.Path())
	info, err := os.Stat(statePath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRepositoryMissingFileLoadsEmptySnapshot(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t, filepath.Join(t.TempDir(), "missing", "state.toml"))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Accounts)
	assert.Nil(t, got.CurrentAccount)
	assert.False(t, got.IsAuthenticated)
}

func TestRepositoryLoadMalformedTOMLReturnsError(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.toml")
	require.NoError(t, os.WriteFile(statePath, []byte("accounts = ["), 0o600))

	repo := newTestRepository(t, statePath)

	_, err := repo.Load(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "decode state file")
}

func TestRepositorySaveCanceledContextReturnsContextError(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t, filepath.Join(t.TempDir(), "state.toml"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.Save(ctx, ports.Snapshot{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRepositoryConcurrentSavesAcrossInstancesLeaveReadableFile(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.toml")
	repoA := newTestRepository(t, statePath)
	repoB := newTestRepository(t, statePath)

	const perRepoWrites = 50
	start := make(chan struct{})
	errCh := make(chan error, perRepoWrites*2)
	var wg sync.WaitGroup
	wg.Add(2)

	write := func(repo *Repository, prefix string) {
		defer wg.Done()
		<-start
		for i := 0; i < perRepoWrites; i++ {
			account := domain.Account{ID: domain.AccountID(prefix + strconv.Itoa(i)), Email: prefix + "@example.com"}
			errCh <- repo.Save(context.Background(), ports.Snapshot{Accounts: []domain.Account{account}})
		}
	}

	go write(repoA, "account-a-")
	go write(repoB, "account-b-")

	close(start)
	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}

	got, err := repoA.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, got.Accounts, 1)
}

func TestRepositorySaveSerializedTOMLIncludesVersion(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.toml")
	repo := newTestRepository(t, statePath)

	require.NoError(t, repo.Save(context.Background(), ports.Snapshot{}))

	data, err := os.ReadFile(statePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "version = 1")
}

func TestRepositoryFutureSchemaVersionReturnsError(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.toml")
	require.NoError(t, os.WriteFile(statePath, []byte("version = 999\n\naccounts = []\n"), 0o600))

	repo := newTestRepository(t, statePath)

	_, err := repo.Load(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "unsupported state schema version")
}
