package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/storacha-profile-cli/internal/client"
	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/bnema/storacha-profile-cli/internal/metrics"
	"github.com/bnema/storacha-profile-cli/internal/ports"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("store")

// ClientCache is the client instance cache the store draws handles from.
type ClientCache interface {
	InitializeClient(ctx context.Context, id domain.AccountID) (*client.Handle, error)
	GetClient(id domain.AccountID) (*client.Handle, bool)
	RemoveClient(id domain.AccountID)
	AccountIDs() []domain.AccountID
}

type Config struct {
	LoginTimeout     time.Duration
	LoginRetryWait   time.Duration
	PlanTimeout      time.Duration
	GuardRetries     int
	GuardBackoff     time.Duration
	ContentsPageSize int
	ProfilePageSize  int
}

func DefaultConfig() Config {
	return Config{
		LoginTimeout:     5 * time.Minute,
		LoginRetryWait:   time.Second,
		PlanTimeout:      10 * time.Second,
		GuardRetries:     DefaultGuardRetries,
		GuardBackoff:     DefaultGuardBackoff,
		ContentsPageSize: 25,
		ProfilePageSize:  100,
	}
}

type Option func(*Store)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

func WithConfig(cfg Config) Option {
	return func(s *Store) { s.cfg = cfg }
}

// Store owns the application state. Every action mutates it through update,
// and subscribers receive a copy after each change.
type Store struct {
	cache   ClientCache
	gateway ports.Gateway
	repo    ports.StateRepository
	clock   ports.Clock
	cfg     Config
	metrics *metrics.Metrics
	guard   *Guard
	locks   *spaceLocks

	mu          sync.RWMutex
	state       State
	subscribers map[int]func(State)
	nextSubID   int
}

func NewStore(cache ClientCache, gateway ports.Gateway, repo ports.StateRepository, clock ports.Clock, opts ...Option) *Store {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	s := &Store{
		cache:       cache,
		gateway:     gateway,
		repo:        repo,
		clock:       clock,
		cfg:         DefaultConfig(),
		locks:       newSpaceLocks(),
		state:       initialState(),
		subscribers: map[int]func(State){},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.guard = NewGuard(clock, s.cfg.GuardBackoff, s.metrics)

	return s
}

func (s *Store) Guard() *Guard {
	return s.guard
}

// Restore loads the persisted snapshot and reattaches the current account's
// client from its durable namespace. A client that fails to open is logged;
// the first operation that needs it reports the failure.
func (s *Store) Restore(ctx context.Context) error {
	snapshot, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	restored := fromSnapshot(snapshot)
	s.update(func(st *State) { *st = restored })

	if restored.CurrentAccount != nil {
		if _, err := s.cache.InitializeClient(ctx, restored.CurrentAccount.ID); err != nil {
			log.Warnw("reattach client", "account", restored.CurrentAccount.ID, "error", err)
		}
	}

	return nil
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state.Clone()
}

// Subscribe registers fn to receive the state after every change. The
// returned func unregisters it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	snapshot := s.state.Clone()
	subscribers := make([]func(State), 0, len(s.subscribers))
	for _, subscriber := range s.subscribers {
		subscribers = append(subscribers, subscriber)
	}
	s.mu.Unlock()

	for _, subscriber := range subscribers {
		subscriber(snapshot)
	}
}

// updateFor applies fn only while id is still the current account, so a
// slow call never writes results into another account's state.
func (s *Store) updateFor(id domain.AccountID, fn func(*State)) bool {
	applied := false
	s.update(func(st *State) {
		if st.isCurrent(id) {
			fn(st)
			applied = true
		}
	})
	if !applied {
		log.Debugw("dropped stale result", "account", id)
	}

	return applied
}

func (s *Store) persist(ctx context.Context) error {
	if err := s.repo.Save(ctx, s.State().Snapshot()); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	return nil
}

func (s *Store) persistBestEffort(ctx context.Context) {
	if err := s.persist(ctx); err != nil {
		log.Warnw("persist state", "error", err)
	}
}

func (s *Store) ClearError() {
	s.update(func(st *State) { st.Error = "" })
}

func (s *Store) ClearProfileError() {
	s.update(func(st *State) { st.ProfileError = "" })
}

// Reset evicts every cached client and returns the store to its initial
// state. Durable namespaces are left alone.
func (s *Store) Reset(ctx context.Context) {
	started := time.Now()
	for _, id := range s.cache.AccountIDs() {
		s.cache.RemoveClient(id)
	}
	s.update(func(st *State) { *st = initialState() })
	s.persistBestEffort(ctx)
	s.observe(OpReset, started, nil)
}

func (s *Store) current() (domain.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state.CurrentAccount == nil {
		return domain.Account{}, false
	}

	return *s.state.CurrentAccount, true
}

func (s *Store) currentAndSelected() (domain.Account, domain.Space, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state.CurrentAccount == nil || s.state.SelectedSpace == nil {
		return domain.Account{}, domain.Space{}, false
	}

	return *s.state.CurrentAccount, *s.state.SelectedSpace, true
}

func (s *Store) handleFor(id domain.AccountID) (*client.Handle, error) {
	handle, ok := s.cache.GetClient(id)
	if !ok {
		return nil, domain.ErrClientNotInitialized
	}

	return handle, nil
}

// claimBestEffort refreshes delegations; a failure only means the handle
// keeps what it already has.
func (s *Store) claimBestEffort(ctx context.Context, handle *client.Handle, reason string) {
	added, err := handle.Claim(ctx)
	s.metrics.ObserveClaim(err)
	if err != nil {
		log.Warnw("claim delegations", "reason", reason, "account", handle.AccountID(), "error", err)
		return
	}
	log.Debugw("claimed delegations", "reason", reason, "account", handle.AccountID(), "added", added)
}

// checkPlan reports whether the account has a payment plan. It never
// blocks longer than the plan timeout and treats every failure as "no plan".
func (s *Store) checkPlan(ctx context.Context, handle *client.Handle, accountDID string) (bool, string) {
	if accountDID == "" {
		return false, ""
	}

	planCtx, cancel := context.WithTimeout(ctx, s.cfg.PlanTimeout)
	defer cancel()

	plan, err := handle.PlanGet(planCtx, accountDID)
	if err != nil {
		log.Infow("payment plan not available", "account", accountDID, "error", err)
		return false, ""
	}

	return plan.Active(), plan.Product
}

func (s *Store) observe(op Operation, started time.Time, err error) {
	s.metrics.ObserveOperation(string(op), started, err)
}

func (s *Store) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clock.After(d):
		return nil
	}
}
