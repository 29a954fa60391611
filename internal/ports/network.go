package ports

import (
	"context"
	"time"

	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/ipfs/go-cid"
)

// Invocation is a request to exercise one capability, carrying the
// delegations that prove the issuer may do so.
type Invocation struct {
	Issuer string
	Can    domain.Ability
	With   string
	Proofs []string
}

type CreateSpaceRequest struct {
	Agent string
	Name  string
	// Account receives a delegation for the new space. Leaving it empty
	// creates a space only the creating agent can reach.
	Account string
}

type CreateSpaceResult struct {
	Space       domain.Space
	Delegations []domain.Delegation
}

type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

type Upload struct {
	Root       cid.Cid
	Shards     []cid.Cid
	Size       uint64
	InsertedAt time.Time
}

type UploadPage struct {
	Results []Upload
	Cursor  string
}

// Network is the remote storage service.
type Network interface {
	// Login blocks until the email owner confirms the agent or ctx ends.
	Login(ctx context.Context, agent string, email string) error
	Claim(ctx context.Context, agent string) ([]domain.Delegation, error)
	PlanGet(ctx context.Context, agent string, account string) (domain.Plan, error)
	CreateSpace(ctx context.Context, req CreateSpaceRequest) (CreateSpaceResult, error)
	UploadFile(ctx context.Context, inv Invocation, file UploadFile) (cid.Cid, error)
	UploadDirectory(ctx context.Context, inv Invocation, files []UploadFile) (cid.Cid, error)
	UploadList(ctx context.Context, inv Invocation, cursor string, size int) (UploadPage, error)
	UploadRemove(ctx context.Context, inv Invocation, root cid.Cid, shards bool) error
}

// Gateway reads content by address.
type Gateway interface {
	Fetch(ctx context.Context, root cid.Cid, path string) ([]byte, error)
	URL(root cid.Cid) string
}
