package client

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bnema/storacha-profile-cli/internal/didkey"
	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/bnema/storacha-profile-cli/internal/ports"
	"github.com/ipfs/go-cid"
	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("client")

const (
	NamespacePrefix   = "storacha-account-"
	agentKeySecretFmt = "storacha/%s/agent_key"
)

var (
	delegationsPrefix = datastore.NewKey("/delegations")
	currentSpaceKey   = datastore.NewKey("/meta/current-space")
)

// storedDelegation is the durable record of one delegation. Records are keyed
// by delegation ID, so handles sharing a namespace never overwrite each
// other; Received and Seq restore arrival order.
type storedDelegation struct {
	Delegation domain.Delegation `json:"delegation"`
	Received   time.Time         `json:"received"`
	Seq        int               `json:"seq"`
}

func delegationKey(id string) datastore.Key {
	return delegationsPrefix.ChildString(id)
}

// AccountRef is an account the handle holds a delegation for.
type AccountRef struct {
	DID   string
	Email string
}

// Handle is the per-account session with the storage network. Its agent key
// lives in the secret store and its delegations in a durable namespace, so a
// new Handle for the same account resumes where the previous one stopped.
type Handle struct {
	accountID domain.AccountID
	agentDID  string
	network   ports.Network
	ds        datastore.Datastore
	clock     ports.Clock

	mu           sync.RWMutex
	delegations  []domain.Delegation
	seen         map[string]struct{}
	currentSpace string
}

func NamespaceFor(id domain.AccountID) string {
	return NamespacePrefix + string(id)
}

func AgentKeySecret(id domain.AccountID) string {
	return fmt.Sprintf(agentKeySecretFmt, id)
}

func openHandle(ctx context.Context, id domain.AccountID, ds datastore.Datastore, secrets ports.SecretStore, network ports.Network, clock ports.Clock) (*Handle, error) {
	agentDID, err := loadOrCreateAgent(ctx, id, secrets)
	if err != nil {
		return nil, err
	}

	h := &Handle{
		accountID: id,
		agentDID:  agentDID,
		network:   network,
		ds:        ds,
		clock:     clock,
		seen:      map[string]struct{}{},
	}

	if err := h.restore(ctx); err != nil {
		return nil, err
	}

	return h, nil
}

func loadOrCreateAgent(ctx context.Context, id domain.AccountID, secrets ports.SecretStore) (string, error) {
	key := AgentKeySecret(id)

	encoded, err := secrets.Get(ctx, key)
	if err == nil {
		seed, decodeErr := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
		if decodeErr != nil || len(seed) != ed25519.SeedSize {
			return "", fmt.Errorf("decode agent key for %s: invalid seed", id)
		}
		return didkey.FromPrivateKey(ed25519.NewKeyFromSeed(seed))
	}
	if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, domain.ErrSecretNotFound) {
		return "", fmt.Errorf("load agent key: %w", err)
	}

	did, priv, err := didkey.Generate()
	if err != nil {
		return "", err
	}
	if err := secrets.Put(ctx, key, base64.StdEncoding.EncodeToString(priv.Seed())); err != nil {
		return "", fmt.Errorf("store agent key: %w", err)
	}
	log.Debugw("created agent", "account", id, "agent", did)

	return did, nil
}

func (h *Handle) restore(ctx context.Context) error {
	results, err := h.ds.Query(ctx, query.Query{
		Prefix: delegationsPrefix.String(),
		Orders: []query.Order{query.OrderByKey{}},
	})
	if err != nil {
		return fmt.Errorf("query delegations: %w", err)
	}
	defer func() { _ = results.Close() }()

	var stored []storedDelegation
	for result := range results.Next() {
		if result.Error != nil {
			return fmt.Errorf("read delegation: %w", result.Error)
		}

		var record storedDelegation
		if err := json.Unmarshal(result.Value, &record); err != nil {
			return fmt.Errorf("decode delegation %s: %w", result.Key, err)
		}
		stored = append(stored, record)
	}

	sort.SliceStable(stored, func(i, j int) bool {
		if !stored[i].Received.Equal(stored[j].Received) {
			return stored[i].Received.Before(stored[j].Received)
		}
		return stored[i].Seq < stored[j].Seq
	})
	for _, record := range stored {
		h.appendLocked(record.Delegation)
	}

	current, err := h.ds.Get(ctx, currentSpaceKey)
	switch {
	case err == nil:
		h.currentSpace = string(current)
	case errors.Is(err, datastore.ErrNotFound):
	default:
		return fmt.Errorf("read current space: %w", err)
	}

	return nil
}

func (h *Handle) AccountID() domain.AccountID {
	return h.accountID
}

func (h *Handle) AgentDID() string {
	return h.agentDID
}

func (h *Handle) Login(ctx context.Context, email string) error {
	if err := h.network.Login(ctx, h.agentDID, email); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	return nil
}

// Claim fetches delegations issued to the agent and stores the new ones.
// It returns how many were new.
func (h *Handle) Claim(ctx context.Context) (int, error) {
	delegations, err := h.network.Claim(ctx, h.agentDID)
	if err != nil {
		return 0, fmt.Errorf("claim delegations: %w", err)
	}

	return h.addDelegations(ctx, delegations)
}

func (h *Handle) addDelegations(ctx context.Context, delegations []domain.Delegation) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	added := 0
	for _, delegation := range delegations {
		if _, ok := h.seen[delegation.ID]; ok {
			continue
		}

		data, err := json.Marshal(storedDelegation{
			Delegation: delegation,
			Received:   h.clock.Now(),
			Seq:        len(h.delegations),
		})
		if err != nil {
			return added, fmt.Errorf("encode delegation: %w", err)
		}
		if err := h.ds.Put(ctx, delegationKey(delegation.ID), data); err != nil {
			return added, fmt.Errorf("store delegation: %w", err)
		}

		h.appendLocked(delegation)
		added++
	}

	return added, nil
}

func (h *Handle) appendLocked(delegation domain.Delegation) {
	if _, ok := h.seen[delegation.ID]; ok {
		return
	}
	h.seen[delegation.ID] = struct{}{}
	h.delegations = append(h.delegations, delegation)
}

func (h *Handle) live() []domain.Delegation {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.clock.Now()
	live := make([]domain.Delegation, 0, len(h.delegations))
	for _, delegation := range h.delegations {
		if delegation.Audience != h.agentDID || delegation.Expired(now) {
			continue
		}
		live = append(live, delegation)
	}

	return live
}

// Proofs returns the live delegations allowing any of caps, or every live
// delegation when caps is empty.
func (h *Handle) Proofs(caps ...domain.Capability) []domain.Delegation {
	live := h.live()
	if len(caps) == 0 {
		return live
	}

	proofs := make([]domain.Delegation, 0, len(live))
	for _, delegation := range live {
		for _, capability := range caps {
			if delegation.Allows(capability) {
				proofs = append(proofs, delegation)
				break
			}
		}
	}

	return proofs
}

func (h *Handle) HasProofs(caps ...domain.Capability) bool {
	return len(h.Proofs(caps...)) > 0
}

// Accounts lists the accounts the agent was delegated, in the order the
// delegations arrived.
func (h *Handle) Accounts() []AccountRef {
	var accounts []AccountRef
	seen := map[string]struct{}{}
	for _, delegation := range h.live() {
		for _, resource := range delegation.Resources() {
			if !strings.HasPrefix(resource, "did:mailto:") {
				continue
			}
			if _, ok := seen[resource]; ok {
				continue
			}
			seen[resource] = struct{}{}
			accounts = append(accounts, AccountRef{DID: resource, Email: delegation.Facts[domain.FactAccountEmail]})
		}
	}

	return accounts
}

// Spaces lists the spaces the agent holds delegations for, in arrival order.
func (h *Handle) Spaces() []domain.Space {
	var spaces []domain.Space
	seen := map[string]struct{}{}
	for _, delegation := range h.live() {
		for _, resource := range delegation.Resources() {
			if !strings.HasPrefix(resource, didkey.Prefix) {
				continue
			}
			if _, ok := seen[resource]; ok {
				continue
			}
			seen[resource] = struct{}{}
			spaces = append(spaces, domain.NewSpace(
				resource,
				delegation.Facts[domain.FactSpaceName],
				delegation.Facts[domain.FactSpaceRegistered] == "true",
			))
		}
	}

	return spaces
}

func (h *Handle) SetCurrentSpace(ctx context.Context, space string) error {
	if err := domain.ValidateSpaceDID(space); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.currentSpace == space {
		return nil
	}
	if err := h.ds.Put(ctx, currentSpaceKey, []byte(space)); err != nil {
		return fmt.Errorf("store current space: %w", err)
	}
	h.currentSpace = space

	return nil
}

func (h *Handle) CurrentSpace() string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.currentSpace
}

// CreateSpace creates a space owned by account. The account must be passed
// explicitly: a space without one is reachable only from this agent.
func (h *Handle) CreateSpace(ctx context.Context, name string, account AccountRef) (domain.Space, error) {
	result, err := h.network.CreateSpace(ctx, ports.CreateSpaceRequest{
		Agent:   h.agentDID,
		Name:    name,
		Account: account.DID,
	})
	if err != nil {
		return domain.Space{}, fmt.Errorf("create space: %w", err)
	}

	if _, err := h.addDelegations(ctx, result.Delegations); err != nil {
		return domain.Space{}, err
	}

	return result.Space, nil
}

func (h *Handle) invocation(can domain.Ability, with string, also ...domain.Ability) ports.Invocation {
	caps := []domain.Capability{{Can: can, With: with}}
	for _, ability := range also {
		caps = append(caps, domain.Capability{Can: ability, With: with})
	}

	proofs := h.Proofs(caps...)
	ids := make([]string, 0, len(proofs))
	for _, proof := range proofs {
		ids = append(ids, proof.ID)
	}

	return ports.Invocation{Issuer: h.agentDID, Can: can, With: with, Proofs: ids}
}

func (h *Handle) UploadFile(ctx context.Context, space string, file domain.File) (cid.Cid, error) {
	root, err := h.network.UploadFile(ctx, h.invocation(domain.AbilitySpaceBlobAdd, space, domain.AbilityUploadAdd), toUploadFile(file))
	if err != nil {
		return cid.Undef, fmt.Errorf("upload file: %w", err)
	}

	return root, nil
}

func (h *Handle) UploadDirectory(ctx context.Context, space string, files []domain.File) (cid.Cid, error) {
	uploads := make([]ports.UploadFile, 0, len(files))
	for _, file := range files {
		uploads = append(uploads, toUploadFile(file))
	}

	root, err := h.network.UploadDirectory(ctx, h.invocation(domain.AbilitySpaceBlobAdd, space, domain.AbilityUploadAdd), uploads)
	if err != nil {
		return cid.Undef, fmt.Errorf("upload directory: %w", err)
	}

	return root, nil
}

func (h *Handle) ListUploads(ctx context.Context, space string, cursor string, size int) (ports.UploadPage, error) {
	page, err := h.network.UploadList(ctx, h.invocation(domain.AbilityUploadList, space), cursor, size)
	if err != nil {
		return ports.UploadPage{}, fmt.Errorf("list uploads: %w", err)
	}

	return page, nil
}

func (h *Handle) Remove(ctx context.Context, space string, root cid.Cid, shards bool) error {
	if err := h.network.UploadRemove(ctx, h.invocation(domain.AbilityUploadRemove, space), root, shards); err != nil {
		return fmt.Errorf("remove upload: %w", err)
	}

	return nil
}

func (h *Handle) PlanGet(ctx context.Context, account string) (domain.Plan, error) {
	plan, err := h.network.PlanGet(ctx, h.agentDID, account)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("get plan: %w", err)
	}

	return plan, nil
}

func toUploadFile(file domain.File) ports.UploadFile {
	return ports.UploadFile{Name: file.Name, ContentType: file.ContentType, Data: file.Data}
}
