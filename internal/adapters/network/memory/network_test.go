package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bnema/storacha-profile-cli/internal/didkey"
	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/bnema/storacha-profile-cli/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const email = "ada@example.com"

func newAgent(t *testing.T) string {
	t.Helper()

	did, _, err := didkey.Generate()
	require.NoError(t, err)

	return did
}

func proofIDs(delegations []domain.Delegation) []string {
	ids := make([]string, 0, len(delegations))
	for _, delegation := range delegations {
		ids = append(ids, delegation.ID)
	}

	return ids
}

func TestLoginRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	network := New()

	err := network.Login(context.Background(), "did:web:nope", email)
	assert.ErrorIs(t, err, didkey.ErrInvalidDID)

	err = network.Login(context.Background(), newAgent(t), "not-an-email")
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
}

func TestLoginWaitsForConfirmation(t *testing.T) {
	t.Parallel()

	network := New(WithLoginConfirmation(func(ctx context.Context, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := network.Login(ctx, newAgent(t), email)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClaimForUnknownAgentIsEmpty(t *testing.T) {
	t.Parallel()

	delegations, err := New().Claim(context.Background(), newAgent(t))
	require.NoError(t, err)
	assert.Empty(t, delegations)
}

func TestRegisterAfterLoginDelegatesAccount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	network := New()
	agent := newAgent(t)

	require.NoError(t, network.Login(ctx, agent, email))
	delegations, err := network.Claim(ctx, agent)
	require.NoError(t, err)
	assert.Empty(t, delegations)

	accountDID, err := network.RegisterAccount(ctx, email, "")
	require.NoError(t, err)
	assert.Equal(t, "did:mailto:example.com:ada", accountDID)

	delegations, err = network.Claim(ctx, agent)
	require.NoError(t, err)
	require.Len(t, delegations, 1)
	assert.Equal(t, []string{accountDID}, delegations[0].Resources())
	assert.Equal(t, email, delegations[0].Facts[domain.FactAccountEmail])
	assert.Equal(t, 2, network.Claims(agent))
}

func TestPlanGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	network := New()
	agent := newAgent(t)
	accountDID, err := network.RegisterAccount(ctx, email, "")
	require.NoError(t, err)

	_, err = network.PlanGet(ctx, agent, accountDID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, network.Login(ctx, agent, email))
	_, err = network.Claim(ctx, agent)
	require.NoError(t, err)

	_, err = network.PlanGet(ctx, agent, accountDID)
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)

	require.NoError(t, network.SetPlan(ctx, email, "did:web:lite.storacha.network"))
	plan, err := network.PlanGet(ctx, agent, accountDID)
	require.NoError(t, err)
	assert.True(t, plan.Active())

	_, err = network.PlanGet(ctx, agent, "did:mailto:example.com:nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, network.SetPlan(ctx, "nobody@example.com", "x"), domain.ErrNotFound)
}

func TestRestrictedConsoleSpaceLimitsAbilities(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	network := New()
	agent := newAgent(t)
	_, err := network.RegisterAccount(ctx, email, "")
	require.NoError(t, err)
	require.NoError(t, network.Login(ctx, agent, email))

	spaceDID, err := network.CreateConsoleSpace(ctx, email, "read-only", domain.AbilityUploadList)
	require.NoError(t, err)

	delegations, err := network.Claim(ctx, agent)
	require.NoError(t, err)
	proofs := proofIDs(delegations)

	_, err = network.UploadList(ctx, ports.Invocation{Issuer: agent, Can: domain.AbilityUploadList, With: spaceDID, Proofs: proofs}, "", 10)
	require.NoError(t, err)

	_, err = network.UploadFile(ctx, ports.Invocation{Issuer: agent, Can: domain.AbilitySpaceBlobAdd, With: spaceDID, Proofs: proofs}, ports.UploadFile{Data: []byte("x")})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	other := newAgent(t)
	_, err = network.UploadList(ctx, ports.Invocation{Issuer: other, Can: domain.AbilityUploadList, With: spaceDID, Proofs: proofs}, "", 10)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestUploadsAreContentAddressed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	network := New(WithGatewayHost("http", "gw.test"))
	agent := newAgent(t)

	result, err := network.CreateSpace(ctx, ports.CreateSpaceRequest{Agent: agent, Name: "scratch"})
	require.NoError(t, err)
	assert.False(t, result.Space.Registered)
	inv := ports.Invocation{Issuer: agent, With: result.Space.DID, Proofs: proofIDs(result.Delegations)}

	first, err := network.UploadFile(ctx, inv, ports.UploadFile{Name: "a", Data: []byte("same")})
	require.NoError(t, err)
	second, err := network.UploadFile(ctx, inv, ports.UploadFile{Name: "b", Data: []byte("same")})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, network.SpaceUploads(result.Space.DID))

	data, err := network.Fetch(ctx, first, "")
	require.NoError(t, err)
	assert.Equal(t, "same", string(data))
	assert.Equal(t, "http://"+first.String()+".gw.test", network.URL(first))

	_, err = network.UploadList(ctx, inv, "bogus", 10)
	assert.ErrorContains(t, err, "invalid cursor")

	err = network.UploadRemove(ctx, inv, first, false)
	require.NoError(t, err)
	err = network.UploadRemove(ctx, inv, first, false)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	data, err = network.Fetch(ctx, first, "")
	require.NoError(t, err, "blocks stay when shards are not removed")
	assert.Equal(t, "same", string(data))
}

func TestUploadDirectoryRequiresNames(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	network := New()
	agent := newAgent(t)
	result, err := network.CreateSpace(ctx, ports.CreateSpaceRequest{Agent: agent})
	require.NoError(t, err)
	inv := ports.Invocation{Issuer: agent, With: result.Space.DID, Proofs: proofIDs(result.Delegations)}

	_, err = network.UploadDirectory(ctx, inv, []ports.UploadFile{{Data: []byte("x")}})
	assert.ErrorContains(t, err, "without a name")

	root, err := network.UploadDirectory(ctx, inv, []ports.UploadFile{{Name: "profile.json", Data: []byte("{}")}})
	require.NoError(t, err)
	_, err = network.Fetch(ctx, root, "missing.json")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUnknownSpaceIsNotFound(t *testing.T) {
	t.Parallel()

	_, err := New().UploadList(context.Background(), ports.Invocation{With: "did:key:z6Mkmissing"}, "", 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
