package pass

import (
	"context"
	"errors"
	"testing"

	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePutUsesPassInsert(t *testing.T) {
	t.Parallel()

	called := false
	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			called = true
			assert.Equal(t, context.Background(), ctx)
			assert.Equal(t, []string{"insert", "-m", "-f", "storacha/account-ada@example.com/agent_key"}, args)
			assert.Equal(t, "top-secret\n", input)
			return "", "", nil
		},
	}

	err := store.Put(context.Background(), "storacha/account-ada@example.com/agent_key", "top-secret")
	require.NoError(t, err)
	assert.True(t, called)
}

func TestStoreGetUsesPassShowAndTrimsTrailingNewline(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			assert.Equal(t, []string{"show", "storacha/account-ada@example.com/agent_key"}, args)
			assert.Empty(t, input)
			return "top-secret\n", "", nil
		},
	}

	value, err := store.Get(context.Background(), "storacha/account-ada@example.com/agent_key")
	require.NoError(t, err)
	assert.Equal(t, "top-secret", value)
}

func TestStoreDeleteUsesPassRemove(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			assert.Equal(t, []string{"rm", "-f", "storacha/account-ada@example.com/agent_key"}, args)
			assert.Empty(t, input)
			return "", "", nil
		},
	}

	err := store.Delete(context.Background(), "storacha/account-ada@example.com/agent_key")
	require.NoError(t, err)
}

func TestStoreGetReturnsClearError(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			return "", "entry not found", errors.New("exit status 1")
		},
	}

	_, err := store.Get(context.Background(), "storacha/account-ada@example.com/agent_key")
	require.Error(t, err)
	assert.ErrorContains(t, err, "pass get")
	assert.ErrorContains(t, err, "storacha/account-ada@example.com/agent_key")
	assert.ErrorContains(t, err, "entry not found")
}

func TestStoreGetMarksMissingEntryAsNotFound(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			return "", "Error: storacha/account-ada@example.com/agent_key is not in the password store.", errors.New("exit status 1")
		},
	}

	_, err := store.Get(context.Background(), "storacha/account-ada@example.com/agent_key")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStoreGetKeepsOnlyFirstLine(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			return "c2VlZA==\nlogin: ada@example.com\n", "", nil
		},
	}

	value, err := store.Get(context.Background(), "storacha/account-ada@example.com/agent_key")
	require.NoError(t, err)
	assert.Equal(t, "c2VlZA==", value)
}

func TestStoreTreatsUninitialisedStoreAsUnavailable(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			return "", "Error: password store is empty. Try \"pass init\".", errors.New("exit status 1")
		},
	}

	_, err := store.Get(context.Background(), "storacha/account-ada@example.com/agent_key")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestStoreDeleteIgnoresMissingEntry(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			return "", "Error: storacha/x is not in the password store.", errors.New("exit status 1")
		},
	}

	assert.NoError(t, store.Delete(context.Background(), "storacha/x"))
}

func TestStoreRejectsBadKeysAndValues(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			t.Fatalf("pass must not run, got %v", args)
			return "", "", nil
		},
	}

	for _, key := range []string{"", "   ", "../escape", "/"} {
		assert.Error(t, store.Put(context.Background(), key, "v"), key)
	}
	assert.ErrorContains(t, store.Put(context.Background(), "storacha/k", "two\nlines"), "single line")
}

func TestStoreNormalisesEntryPath(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			assert.Equal(t, []string{"rm", "-f", "storacha/account-ada@example.com/agent_key"}, args)
			return "", "", nil
		},
	}

	require.NoError(t, store.Delete(context.Background(), "/storacha//account-ada@example.com/agent_key/"))
}
