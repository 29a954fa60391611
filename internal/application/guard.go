package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/bnema/storacha-profile-cli/internal/metrics"
	"github.com/bnema/storacha-profile-cli/internal/ports"
	logging "github.com/ipfs/go-log/v2"
)

var guardLog = logging.Logger("guard")

const (
	DefaultGuardRetries = 2
	DefaultGuardBackoff = time.Second
)

// ProofSource is the part of a client handle the guard needs.
type ProofSource interface {
	HasProofs(caps ...domain.Capability) bool
	Claim(ctx context.Context) (int, error)
}

// Guard makes sure a handle holds delegations before a space-scoped call.
// Authorization can change out of band, so it claims from the network when
// nothing usable is held.
type Guard struct {
	clock   ports.Clock
	backoff time.Duration
	metrics *metrics.Metrics
}

func NewGuard(clock ports.Clock, backoff time.Duration, m *metrics.Metrics) *Guard {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if backoff < 0 {
		backoff = 0
	}

	return &Guard{clock: clock, backoff: backoff, metrics: m}
}

// EnsureProofs returns once src holds a delegation covering any of caps, or
// any delegation at all when caps is empty. Each of the retries+1 attempts
// checks, claims and checks again; attempt i is followed by a (i+1)*backoff
// pause. Claim failures are retried like empty claims.
func (g *Guard) EnsureProofs(ctx context.Context, src ProofSource, retries int, caps ...domain.Capability) error {
	if retries < 0 {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if src.HasProofs(caps...) {
			g.metrics.ObserveGuard(metrics.GuardReady)
			return nil
		}

		guardLog.Debugw("no proofs held, claiming", "attempt", attempt+1, "of", retries+1)
		added, err := src.Claim(ctx)
		g.metrics.ObserveClaim(err)
		if err != nil {
			lastErr = err
			guardLog.Warnw("claim failed", "attempt", attempt+1, "error", err)
		} else if src.HasProofs(caps...) {
			guardLog.Debugw("proofs available after claim", "attempt", attempt+1, "added", added)
			g.metrics.ObserveGuard(metrics.GuardClaimed)
			return nil
		}

		if attempt == retries {
			break
		}
		g.metrics.ObserveGuard(metrics.GuardRetry)
		if err := g.sleep(ctx, time.Duration(attempt+1)*g.backoff); err != nil {
			return err
		}
	}

	g.metrics.ObserveGuard(metrics.GuardExhausted)
	if lastErr != nil {
		return errors.Join(domain.ErrProofsUnavailable, lastErr)
	}

	return domain.ErrProofsUnavailable
}

// EnsureCapability checks for one specific capability and claims once more
// when it is missing.
func (g *Guard) EnsureCapability(ctx context.Context, src ProofSource, capability domain.Capability) error {
	if src.HasProofs(capability) {
		return nil
	}

	guardLog.Warnw("no proofs for capability, claiming again", "can", capability.Can, "with", capability.With)
	_, err := src.Claim(ctx)
	g.metrics.ObserveClaim(err)
	if err != nil {
		return fmt.Errorf("claim delegations for %s: %w", capability.Can, err)
	}
	if !src.HasProofs(capability) {
		return fmt.Errorf("%w: no proofs available for %s on %s", domain.ErrUnauthorized, capability.Can, capability.With)
	}

	return nil
}

func (g *Guard) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-g.clock.After(d):
		return nil
	}
}
