package application

import (
	"context"
	"sync"
	"time"

	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/raulk/clock"
)

// fakeClock drives a mock clock that never blocks: Now moves time forward a
// millisecond so uploads get distinct timestamps, and After advances the mock
// past the deadline before returning the fired channel.
type fakeClock struct {
	mu     sync.Mutex
	mock   *clock.Mock
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	return &fakeClock{mock: mock}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mock.Add(time.Millisecond)
	return c.mock.Now()
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sleeps = append(c.sleeps, d)
	fired := c.mock.After(d)
	c.mock.Add(d)

	return fired
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]time.Duration(nil), c.sleeps...)
}

// stuckClock never fires, so only context cancellation ends a sleep.
type stuckClock struct{}

func (stuckClock) Now() time.Time                       { return time.Unix(0, 0).UTC() }
func (stuckClock) After(time.Duration) <-chan time.Time { return nil }

// fakeSource holds proofs once readyAfter claims have been made.
type fakeSource struct {
	mu         sync.Mutex
	readyAfter int
	claims     int
	claimErr   error
	allowed    map[domain.Capability]bool
}

func (s *fakeSource) HasProofs(caps ...domain.Capability) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readyAfter < 0 || s.claims < s.readyAfter {
		return false
	}
	if len(caps) == 0 || s.allowed == nil {
		return true
	}
	for _, capability := range caps {
		if s.allowed[capability] {
			return true
		}
	}

	return false
}

func (s *fakeSource) Claim(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.claims++
	if s.claimErr != nil {
		return 0, s.claimErr
	}

	return 1, nil
}

func (s *fakeSource) Claims() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.claims
}
