package ports

import (
	"context"

	"github.com/bnema/storacha-profile-cli/internal/domain"
)

// Snapshot is the part of the store state that survives restarts.
type Snapshot struct {
	Accounts            []domain.Account
	CurrentAccount      *domain.Account
	IsAuthenticated     bool
	PaymentPlanSelected bool
}

type StateRepository interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snapshot Snapshot) error
}
