package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bnema/storacha-profile-cli/internal/adapters/datastore/leveldb"
	"github.com/bnema/storacha-profile-cli/internal/adapters/network/memory"
	filestore "github.com/bnema/storacha-profile-cli/internal/adapters/secrets/file"
	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/bnema/storacha-profile-cli/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEmail = "ada@example.com"

type fixture struct {
	network *memory.Network
	manager *Manager
}

func newFixture(t *testing.T, opts ...memory.Option) fixture {
	t.Helper()

	namespaces, err := leveldb.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = namespaces.Close() })

	network := memory.New(opts...)
	manager := NewManager(namespaces, filestore.NewStore(t.TempDir()), network, ports.SystemClock{})

	return fixture{network: network, manager: manager}
}

func (f fixture) login(t *testing.T, email string) *Handle {
	t.Helper()

	ctx := context.Background()
	_, err := f.network.RegisterAccount(ctx, email, "did:web:starter.web3.storage")
	require.NoError(t, err)

	handle, err := f.manager.InitializeClient(ctx, domain.AccountIDFromEmail(email))
	require.NoError(t, err)
	require.NoError(t, handle.Login(ctx, email))
	_, err = handle.Claim(ctx)
	require.NoError(t, err)

	return handle
}

func TestInitializeClientIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := domain.AccountIDFromEmail(testEmail)

	first, err := f.manager.InitializeClient(context.Background(), id)
	require.NoError(t, err)
	second, err := f.manager.InitializeClient(context.Background(), id)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, []domain.AccountID{id}, f.manager.AccountIDs())
}

func TestInitializeClientConcurrentCallersShareOneHandle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := domain.AccountIDFromEmail(testEmail)

	const callers = 16
	handles := make([]*Handle, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handle, err := f.manager.InitializeClient(context.Background(), id)
			assert.NoError(t, err)
			handles[i] = handle
		}(i)
	}
	wg.Wait()

	for _, handle := range handles {
		assert.Same(t, handles[0], handle)
	}
}

func TestGetClientDoesNotCreate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, ok := f.manager.GetClient("account-nobody@example.com")
	assert.False(t, ok)
	assert.Empty(t, f.manager.AccountIDs())
}

func TestRemoveClientKeepsDurableSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	handle := f.login(t, testEmail)

	spaceDID, err := f.network.CreateConsoleSpace(ctx, testEmail, "profile")
	require.NoError(t, err)
	_, err = handle.Claim(ctx)
	require.NoError(t, err)
	require.NoError(t, handle.SetCurrentSpace(ctx, spaceDID))

	f.manager.RemoveClient(handle.AccountID())
	_, ok := f.manager.GetClient(handle.AccountID())
	require.False(t, ok)

	restored, err := f.manager.InitializeClient(ctx, handle.AccountID())
	require.NoError(t, err)

	assert.NotSame(t, handle, restored)
	assert.Equal(t, handle.AgentDID(), restored.AgentDID())
	assert.Equal(t, handle.Accounts(), restored.Accounts())
	assert.Equal(t, handle.Spaces(), restored.Spaces())
	assert.Equal(t, spaceDID, restored.CurrentSpace())
	assert.True(t, restored.HasProofs(domain.Capability{Can: domain.AbilityUploadList, With: spaceDID}))
}

func TestHandlesSharingANamespaceKeepEachOthersDelegations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	stale := f.login(t, testEmail)
	f.manager.RemoveClient(stale.AccountID())

	fresh, err := f.manager.InitializeClient(ctx, stale.AccountID())
	require.NoError(t, err)

	console, err := f.network.CreateConsoleSpace(ctx, testEmail, "console")
	require.NoError(t, err)
	added, err := stale.Claim(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, added)

	created, err := fresh.CreateSpace(ctx, "fresh", AccountRef{DID: domain.MailtoDID(testEmail)})
	require.NoError(t, err)

	f.manager.RemoveClient(stale.AccountID())
	restored, err := f.manager.InitializeClient(ctx, stale.AccountID())
	require.NoError(t, err)

	dids := make([]string, 0, 2)
	for _, space := range restored.Spaces() {
		dids = append(dids, space.DID)
	}
	assert.ElementsMatch(t, []string{created.DID, console}, dids)
	assert.Equal(t, stale.Accounts(), restored.Accounts())
}

func TestHandleListsAccountsAndSpacesInArrivalOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	handle := f.login(t, testEmail)

	accounts := handle.Accounts()
	require.Len(t, accounts, 1)
	assert.Equal(t, domain.MailtoDID(testEmail), accounts[0].DID)
	assert.Equal(t, testEmail, accounts[0].Email)

	first, err := f.network.CreateConsoleSpace(ctx, testEmail, "first")
	require.NoError(t, err)
	second, err := f.network.CreateConsoleSpace(ctx, testEmail, "")
	require.NoError(t, err)

	added, err := handle.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = handle.Claim(ctx)
	require.NoError(t, err)
	assert.Zero(t, added)

	spaces := handle.Spaces()
	require.Len(t, spaces, 2)
	assert.Equal(t, domain.Space{ID: first, DID: first, Name: "first", Registered: true}, spaces[0])
	assert.Equal(t, second, spaces[1].DID)
	assert.Equal(t, second, spaces[1].Name)
}

func TestHandleClaimHonoursNetworkLag(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, memory.WithClaimLag(1))
	_, err := f.network.RegisterAccount(ctx, testEmail, "")
	require.NoError(t, err)

	handle, err := f.manager.InitializeClient(ctx, domain.AccountIDFromEmail(testEmail))
	require.NoError(t, err)
	require.NoError(t, handle.Login(ctx, testEmail))

	_, err = handle.Claim(ctx)
	require.NoError(t, err)
	assert.Empty(t, handle.Accounts())

	_, err = handle.Claim(ctx)
	require.NoError(t, err)
	assert.Len(t, handle.Accounts(), 1)
}

func TestHandleCreateSpaceIsUsableImmediately(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, memory.WithClaimLag(3))
	_, err := f.network.RegisterAccount(ctx, testEmail, "")
	require.NoError(t, err)
	handle, err := f.manager.InitializeClient(ctx, domain.AccountIDFromEmail(testEmail))
	require.NoError(t, err)
	require.NoError(t, handle.Login(ctx, testEmail))

	space, err := handle.CreateSpace(ctx, "fresh", AccountRef{})
	require.NoError(t, err)
	assert.False(t, space.Registered)
	assert.True(t, handle.HasProofs(domain.Capability{Can: domain.AbilitySpaceBlobAdd, With: space.DID}))

	_, err = handle.CreateSpace(ctx, "owned", AccountRef{DID: domain.MailtoDID(testEmail)})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestHandleUploadListRemove(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	handle := f.login(t, testEmail)

	space, err := handle.CreateSpace(ctx, "profile", handle.Accounts()[0])
	require.NoError(t, err)
	assert.True(t, space.Registered)

	root, err := handle.UploadFile(ctx, space.DID, domain.File{Name: "a.txt", Data: []byte("hello")})
	require.NoError(t, err)
	dir, err := handle.UploadDirectory(ctx, space.DID, []domain.File{{Name: domain.ProfileFileName, Data: []byte(`{"name":"Ada"}`)}})
	require.NoError(t, err)

	page, err := handle.ListUploads(ctx, space.DID, "", 1)
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, dir, page.Results[0].Root)
	assert.NotEmpty(t, page.Cursor)

	page, err = handle.ListUploads(ctx, space.DID, page.Cursor, 1)
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, root, page.Results[0].Root)
	assert.Empty(t, page.Cursor)

	data, err := f.network.Fetch(ctx, dir, domain.ProfileFileName)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ada"}`, string(data))

	require.NoError(t, handle.Remove(ctx, space.DID, dir, true))
	_, err = f.network.Fetch(ctx, dir, domain.ProfileFileName)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, f.network.SpaceUploads(space.DID))
}

func TestHandleIgnoresExpiredDelegations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	handle, err := f.manager.InitializeClient(ctx, domain.AccountIDFromEmail(testEmail))
	require.NoError(t, err)

	space := "did:key:z6MkexpiredSpace"
	_, err = handle.addDelegations(ctx, []domain.Delegation{
		{
			ID:           "expired",
			Audience:     handle.AgentDID(),
			Capabilities: []domain.Capability{{Can: domain.AbilityAll, With: space}},
			Expiration:   time.Now().Add(-time.Minute),
		},
		{
			ID:           "someone-else",
			Audience:     "did:key:z6MkOther",
			Capabilities: []domain.Capability{{Can: domain.AbilityAll, With: space}},
		},
	})
	require.NoError(t, err)

	assert.False(t, handle.HasProofs(domain.Capability{Can: domain.AbilityUploadAdd, With: space}))
	assert.Empty(t, handle.Spaces())
}

func TestSetCurrentSpaceValidatesDID(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	handle, err := f.manager.InitializeClient(context.Background(), domain.AccountIDFromEmail(testEmail))
	require.NoError(t, err)

	assert.Error(t, handle.SetCurrentSpace(context.Background(), "not-a-did"))
	assert.Empty(t, handle.CurrentSpace())
}
