// Package memory is an in-process storage network. It backs tests and the
// `sp dev serve` command.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bnema/storacha-profile-cli/internal/didkey"
	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/bnema/storacha-profile-cli/internal/ports"
	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/multiformats/go-multihash"
)

var log = logging.Logger("memnet")

const serviceDID = "did:web:memory.storage.network"

type ConfirmFunc func(ctx context.Context, email string) error

type Option func(*Network)

func WithClock(clock ports.Clock) Option {
	return func(n *Network) { n.clock = clock }
}

// WithClaimLag delays new delegations by lag additional claims, the way
// resources created in the console take a moment to propagate.
func WithClaimLag(lag int) Option {
	return func(n *Network) { n.claimLag = lag }
}

func WithLoginConfirmation(confirm ConfirmFunc) Option {
	return func(n *Network) { n.confirm = confirm }
}

func WithGatewayHost(scheme, host string) Option {
	return func(n *Network) {
		n.gatewayScheme = scheme
		n.gatewayHost = host
	}
}

type account struct {
	did     string
	email   string
	product string
	spaces  []string
	agents  []string
}

type pendingDelegation struct {
	delegation domain.Delegation
	visibleAt  int
}

type agent struct {
	did       string
	email     string
	confirmed bool
	claims    int
	issued    []pendingDelegation
}

type upload struct {
	root       cid.Cid
	shards     []cid.Cid
	size       uint64
	insertedAt time.Time
}

type space struct {
	did       string
	name      string
	owner     string
	abilities []domain.Ability
	uploads   []upload
}

type Network struct {
	clock         ports.Clock
	confirm       ConfirmFunc
	claimLag      int
	gatewayScheme string
	gatewayHost   string

	mu          sync.Mutex
	nonce       uint64
	accounts    map[string]*account
	byEmail     map[string]string
	agents      map[string]*agent
	spaces      map[string]*space
	delegations map[string]domain.Delegation
	blocks      map[cid.Cid][]byte
	dirs        map[cid.Cid]map[string]cid.Cid
}

var (
	_ ports.Network = (*Network)(nil)
	_ ports.Gateway = (*Network)(nil)
)

func New(opts ...Option) *Network {
	n := &Network{
		clock:         ports.SystemClock{},
		confirm:       func(context.Context, string) error { return nil },
		gatewayScheme: "https",
		gatewayHost:   domain.DefaultGatewayHost,
		accounts:      map[string]*account{},
		byEmail:       map[string]string{},
		agents:        map[string]*agent{},
		spaces:        map[string]*space{},
		delegations:   map[string]domain.Delegation{},
		blocks:        map[cid.Cid][]byte{},
		dirs:          map[cid.Cid]map[string]cid.Cid{},
	}
	for _, opt := range opts {
		opt(n)
	}

	return n
}

func (n *Network) Login(ctx context.Context, agentDID string, email string) error {
	if _, err := didkey.PublicKey(agentDID); err != nil {
		return err
	}
	if err := domain.ValidateEmail(email); err != nil {
		return err
	}

	requestID := uuid.NewString()
	log.Infow("login requested, awaiting email confirmation", "request", requestID, "email", email, "agent", agentDID)

	if err := n.confirm(ctx, email); err != nil {
		return fmt.Errorf("await confirmation: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("await confirmation: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	ag := n.agentLocked(agentDID)
	ag.email = email
	ag.confirmed = true

	if accountDID, ok := n.byEmail[email]; ok {
		n.attachAgentLocked(n.accounts[accountDID], ag)
	}
	log.Infow("login confirmed", "request", requestID, "email", email)

	return nil
}

func (n *Network) Claim(ctx context.Context, agentDID string) ([]domain.Delegation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	ag, ok := n.agents[agentDID]
	if !ok {
		return nil, nil
	}

	ag.claims++
	visible := make([]domain.Delegation, 0, len(ag.issued))
	for _, pending := range ag.issued {
		if pending.visibleAt <= ag.claims {
			visible = append(visible, pending.delegation)
		}
	}

	return visible, nil
}

func (n *Network) PlanGet(ctx context.Context, agentDID string, accountDID string) (domain.Plan, error) {
	if err := ctx.Err(); err != nil {
		return domain.Plan{}, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	acc, ok := n.accounts[accountDID]
	if !ok {
		return domain.Plan{}, fmt.Errorf("account %s: %w", accountDID, domain.ErrNotFound)
	}
	if !n.agentHoldsLocked(agentDID, accountDID) {
		return domain.Plan{}, fmt.Errorf("%w: %s on %s", domain.ErrUnauthorized, domain.AbilityPlanGet, accountDID)
	}
	if acc.product == "" {
		return domain.Plan{}, domain.ErrPlanNotFound
	}

	return domain.Plan{Product: acc.product}, nil
}

func (n *Network) CreateSpace(ctx context.Context, req ports.CreateSpaceRequest) (ports.CreateSpaceResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.CreateSpaceResult{}, err
	}
	if _, err := didkey.PublicKey(req.Agent); err != nil {
		return ports.CreateSpaceResult{}, err
	}

	spaceDID, _, err := didkey.Generate()
	if err != nil {
		return ports.CreateSpaceResult{}, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	var owner *account
	if req.Account != "" {
		acc, ok := n.accounts[req.Account]
		if !ok || !n.agentHoldsLocked(req.Agent, req.Account) {
			return ports.CreateSpaceResult{}, fmt.Errorf("%w: space/create for %s", domain.ErrUnauthorized, req.Account)
		}
		owner = acc
	}

	sp := &space{did: spaceDID, name: req.Name, abilities: []domain.Ability{domain.AbilityAll}}
	n.spaces[spaceDID] = sp

	ag := n.agentLocked(req.Agent)
	direct := n.issueLocked(ag, sp, 0)

	if owner != nil {
		sp.owner = owner.did
		owner.spaces = append(owner.spaces, spaceDID)
		for _, other := range owner.agents {
			if other == ag.did {
				continue
			}
			n.issueLocked(n.agents[other], sp, n.claimLag)
		}
	}

	return ports.CreateSpaceResult{
		Space:       domain.NewSpace(spaceDID, req.Name, owner != nil),
		Delegations: []domain.Delegation{direct},
	}, nil
}

func (n *Network) UploadFile(ctx context.Context, inv ports.Invocation, file ports.UploadFile) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	sp, err := n.authorizeLocked(inv, domain.AbilitySpaceBlobAdd, domain.AbilityUploadAdd)
	if err != nil {
		return cid.Undef, err
	}

	root, err := n.putBlockLocked(cid.Raw, file.Data)
	if err != nil {
		return cid.Undef, err
	}
	n.recordUploadLocked(sp, upload{root: root, shards: []cid.Cid{root}, size: uint64(len(file.Data))})

	return root, nil
}

type directoryNode struct {
	Entries []directoryEntry `json:"entries"`
}

type directoryEntry struct {
	Name string `json:"name"`
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

func (n *Network) UploadDirectory(ctx context.Context, inv ports.Invocation, files []ports.UploadFile) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	sp, err := n.authorizeLocked(inv, domain.AbilitySpaceBlobAdd, domain.AbilityUploadAdd)
	if err != nil {
		return cid.Undef, err
	}

	node := directoryNode{Entries: make([]directoryEntry, 0, len(files))}
	links := make(map[string]cid.Cid, len(files))
	shards := make([]cid.Cid, 0, len(files)+1)
	var size uint64
	for _, file := range files {
		if file.Name == "" {
			return cid.Undef, fmt.Errorf("directory entry without a name")
		}
		leaf, err := n.putBlockLocked(cid.Raw, file.Data)
		if err != nil {
			return cid.Undef, err
		}
		links[file.Name] = leaf
		shards = append(shards, leaf)
		size += uint64(len(file.Data))
		node.Entries = append(node.Entries, directoryEntry{Name: file.Name, CID: leaf.String(), Size: len(file.Data)})
	}

	encoded, err := json.Marshal(node)
	if err != nil {
		return cid.Undef, fmt.Errorf("encode directory: %w", err)
	}
	root, err := n.putBlockLocked(cid.DagJSON, encoded)
	if err != nil {
		return cid.Undef, err
	}
	n.dirs[root] = links
	shards = append(shards, root)

	n.recordUploadLocked(sp, upload{root: root, shards: shards, size: size})

	return root, nil
}

// UploadList pages through a space's uploads, newest first.
func (n *Network) UploadList(ctx context.Context, inv ports.Invocation, cursor string, size int) (ports.UploadPage, error) {
	if err := ctx.Err(); err != nil {
		return ports.UploadPage{}, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	sp, err := n.authorizeLocked(inv, domain.AbilityUploadList)
	if err != nil {
		return ports.UploadPage{}, err
	}

	start := 0
	if cursor != "" {
		start, err = strconv.Atoi(cursor)
		if err != nil || start < 0 {
			return ports.UploadPage{}, fmt.Errorf("invalid cursor %q", cursor)
		}
	}
	if size <= 0 {
		size = 25
	}

	total := len(sp.uploads)
	page := ports.UploadPage{}
	for i := start; i < total && len(page.Results) < size; i++ {
		u := sp.uploads[total-1-i]
		page.Results = append(page.Results, ports.Upload{
			Root:       u.root,
			Shards:     append([]cid.Cid(nil), u.shards...),
			Size:       u.size,
			InsertedAt: u.insertedAt,
		})
	}
	if next := start + len(page.Results); next < total {
		page.Cursor = strconv.Itoa(next)
	}

	return page, nil
}

func (n *Network) UploadRemove(ctx context.Context, inv ports.Invocation, root cid.Cid, shards bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	sp, err := n.authorizeLocked(inv, domain.AbilityUploadRemove)
	if err != nil {
		return err
	}

	index := -1
	for i, u := range sp.uploads {
		if u.root.Equals(root) {
			index = i
			break
		}
	}
	if index < 0 {
		return fmt.Errorf("upload %s: %w", root, domain.ErrNotFound)
	}

	removed := sp.uploads[index]
	sp.uploads = append(sp.uploads[:index], sp.uploads[index+1:]...)

	if shards {
		for _, shard := range removed.shards {
			if !n.referencedLocked(shard) {
				delete(n.blocks, shard)
				delete(n.dirs, shard)
			}
		}
	}

	return nil
}

func (n *Network) Fetch(ctx context.Context, root cid.Cid, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	target := root
	if path != "" {
		links, ok := n.dirs[root]
		if !ok {
			return nil, fmt.Errorf("%s/%s: %w", root, path, domain.ErrNotFound)
		}
		leaf, ok := links[path]
		if !ok {
			return nil, fmt.Errorf("%s/%s: %w", root, path, domain.ErrNotFound)
		}
		target = leaf
	}

	data, ok := n.blocks[target]
	if !ok {
		return nil, fmt.Errorf("%s: %w", target, domain.ErrNotFound)
	}

	return append([]byte(nil), data...), nil
}

func (n *Network) URL(root cid.Cid) string {
	return domain.GatewayURLWithScheme(n.gatewayScheme, root.String(), n.gatewayHost)
}

func (n *Network) agentLocked(did string) *agent {
	ag, ok := n.agents[did]
	if !ok {
		ag = &agent{did: did}
		n.agents[did] = ag
	}

	return ag
}

func (n *Network) attachAgentLocked(acc *account, ag *agent) {
	for _, existing := range acc.agents {
		if existing == ag.did {
			return
		}
	}
	acc.agents = append(acc.agents, ag.did)

	n.issueDelegationLocked(ag, []domain.Capability{{Can: domain.AbilityAll, With: acc.did}}, map[string]string{
		domain.FactAccountEmail: acc.email,
	}, n.claimLag)

	for _, spaceDID := range acc.spaces {
		n.issueLocked(ag, n.spaces[spaceDID], n.claimLag)
	}
}

func (n *Network) issueLocked(ag *agent, sp *space, lag int) domain.Delegation {
	caps := make([]domain.Capability, 0, len(sp.abilities))
	for _, ability := range sp.abilities {
		caps = append(caps, domain.Capability{Can: ability, With: sp.did})
	}

	return n.issueDelegationLocked(ag, caps, map[string]string{
		domain.FactSpaceName:       sp.name,
		domain.FactSpaceRegistered: strconv.FormatBool(sp.owner != ""),
	}, lag)
}

func (n *Network) issueDelegationLocked(ag *agent, caps []domain.Capability, facts map[string]string, lag int) domain.Delegation {
	n.nonce++
	delegation := domain.Delegation{
		Issuer:       serviceDID,
		Audience:     ag.did,
		Capabilities: caps,
		Facts:        facts,
	}

	encoded, _ := json.Marshal(struct {
		Delegation domain.Delegation
		Nonce      uint64
	}{delegation, n.nonce})
	id, err := dagJSONPrefix.Sum(encoded)
	if err == nil {
		delegation.ID = id.String()
	} else {
		delegation.ID = strconv.FormatUint(n.nonce, 10)
	}

	n.delegations[delegation.ID] = delegation
	ag.issued = append(ag.issued, pendingDelegation{delegation: delegation, visibleAt: ag.claims + 1 + lag})

	return delegation
}

// agentHoldsLocked reports whether the agent has claimed a delegation on
// resource.
func (n *Network) agentHoldsLocked(agentDID string, resource string) bool {
	ag, ok := n.agents[agentDID]
	if !ok {
		return false
	}
	for _, pending := range ag.issued {
		if pending.visibleAt > ag.claims {
			continue
		}
		for _, capability := range pending.delegation.Capabilities {
			if capability.With == resource {
				return true
			}
		}
	}

	return false
}

func (n *Network) authorizeLocked(inv ports.Invocation, abilities ...domain.Ability) (*space, error) {
	sp, ok := n.spaces[inv.With]
	if !ok {
		return nil, fmt.Errorf("space %s: %w", inv.With, domain.ErrNotFound)
	}

	now := n.clock.Now()
	for _, ability := range abilities {
		required := domain.Capability{Can: ability, With: inv.With}
		granted := false
		for _, id := range inv.Proofs {
			delegation, ok := n.delegations[id]
			if !ok || delegation.Audience != inv.Issuer || delegation.Expired(now) {
				continue
			}
			if delegation.Allows(required) {
				granted = true
				break
			}
		}
		if !granted {
			return nil, fmt.Errorf("%w: %s on %s", domain.ErrUnauthorized, ability, inv.With)
		}
	}

	return sp, nil
}

var (
	rawPrefix     = cid.Prefix{Version: 1, Codec: cid.Raw, MhType: multihash.SHA2_256, MhLength: -1}
	dagJSONPrefix = cid.Prefix{Version: 1, Codec: cid.DagJSON, MhType: multihash.SHA2_256, MhLength: -1}
)

func (n *Network) putBlockLocked(codec uint64, data []byte) (cid.Cid, error) {
	prefix := rawPrefix
	if codec == cid.DagJSON {
		prefix = dagJSONPrefix
	}

	c, err := prefix.Sum(data)
	if err != nil {
		return cid.Undef, fmt.Errorf("hash block: %w", err)
	}
	n.blocks[c] = append([]byte(nil), data...)

	return c, nil
}

func (n *Network) recordUploadLocked(sp *space, u upload) {
	for i, existing := range sp.uploads {
		if existing.root.Equals(u.root) {
			sp.uploads = append(sp.uploads[:i], sp.uploads[i+1:]...)
			break
		}
	}
	u.insertedAt = n.clock.Now()
	sp.uploads = append(sp.uploads, u)
}

func (n *Network) referencedLocked(block cid.Cid) bool {
	for _, sp := range n.spaces {
		for _, u := range sp.uploads {
			for _, shard := range u.shards {
				if shard.Equals(block) {
					return true
				}
			}
		}
	}

	return false
}
