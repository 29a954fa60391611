package application

import (
	"sync"

	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/puzpuzpuz/xsync/v2"
)

// spaceLocks serializes space-scoped operations per (account, space) pair,
// so two uploads to one space never interleave their steps.
type spaceLocks struct {
	locks *xsync.MapOf[string, *sync.Mutex]
}

func newSpaceLocks() *spaceLocks {
	return &spaceLocks{locks: xsync.NewMapOf[*sync.Mutex]()}
}

func (l *spaceLocks) lock(account domain.AccountID, space string) func() {
	mu, _ := l.locks.LoadOrCompute(string(account)+"|"+space, func() *sync.Mutex {
		return &sync.Mutex{}
	})
	mu.Lock()

	return mu.Unlock
}
