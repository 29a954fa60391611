package memory

import (
	"context"
	"fmt"

	"github.com/bnema/storacha-profile-cli/internal/didkey"
	"github.com/bnema/storacha-profile-cli/internal/domain"
)

// The console methods model actions a person takes on the storage network's
// web console: creating an account, picking a plan, creating spaces.

// RegisterAccount creates the account for email if it does not exist and
// returns its DID. Agents that already confirmed a login for email are
// delegated the account.
func (n *Network) RegisterAccount(ctx context.Context, email string, product string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := domain.ValidateEmail(email); err != nil {
		return "", err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if did, ok := n.byEmail[email]; ok {
		if product != "" {
			n.accounts[did].product = product
		}
		return did, nil
	}

	acc := &account{did: domain.MailtoDID(email), email: email, product: product}
	n.accounts[acc.did] = acc
	n.byEmail[email] = acc.did

	for _, ag := range n.agents {
		if ag.confirmed && ag.email == email {
			n.attachAgentLocked(acc, ag)
		}
	}
	log.Infow("account registered", "email", email, "account", acc.did)

	return acc.did, nil
}

func (n *Network) SetPlan(ctx context.Context, email string, product string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	did, ok := n.byEmail[email]
	if !ok {
		return fmt.Errorf("account %s: %w", email, domain.ErrNotFound)
	}
	n.accounts[did].product = product

	return nil
}

// CreateConsoleSpace creates a space owned by the account for email. Every
// agent of the account is delegated the space after the configured claim
// lag. With no abilities the delegation grants "*".
func (n *Network) CreateConsoleSpace(ctx context.Context, email string, name string, abilities ...domain.Ability) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	spaceDID, _, err := didkey.Generate()
	if err != nil {
		return "", err
	}
	if len(abilities) == 0 {
		abilities = []domain.Ability{domain.AbilityAll}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	did, ok := n.byEmail[email]
	if !ok {
		return "", fmt.Errorf("account %s: %w", email, domain.ErrNotFound)
	}
	acc := n.accounts[did]

	sp := &space{did: spaceDID, name: name, owner: acc.did, abilities: abilities}
	n.spaces[spaceDID] = sp
	acc.spaces = append(acc.spaces, spaceDID)

	for _, agentDID := range acc.agents {
		n.issueLocked(n.agents[agentDID], sp, n.claimLag)
	}
	log.Infow("console space created", "email", email, "space", spaceDID, "name", name)

	return spaceDID, nil
}

// SpaceUploads reports how many uploads a space holds.
func (n *Network) SpaceUploads(spaceDID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	sp, ok := n.spaces[spaceDID]
	if !ok {
		return 0
	}

	return len(sp.uploads)
}

// Claims reports how many claims an agent has made.
func (n *Network) Claims(agentDID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	ag, ok := n.agents[agentDID]
	if !ok {
		return 0
	}

	return ag.claims
}
