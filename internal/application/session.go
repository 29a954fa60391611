package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/storacha-profile-cli/internal/client"
	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/samber/lo"
)

// Login authenticates email by email confirmation and makes the account
// current. It fails with domain.ErrNoAccountAfterLogin when the network has
// no account for the address, which callers show as first-time setup help.
func (s *Store) Login(ctx context.Context, email string) (err error) {
	started := time.Now()
	s.update(func(st *State) {
		st.IsLoading = true
		st.Error = ""
	})
	defer func() {
		if err != nil {
			s.update(func(st *State) {
				st.IsLoading = false
				st.Error = err.Error()
			})
		}
		s.observe(OpLogin, started, err)
	}()

	if err := domain.ValidateEmail(email); err != nil {
		return err
	}
	email = strings.TrimSpace(email)

	id := domain.AccountIDFromEmail(email)
	handle, err := s.cache.InitializeClient(ctx, id)
	if err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}

	loginCtx, cancel := context.WithTimeoutCause(ctx, s.cfg.LoginTimeout, domain.ErrLoginTimeout)
	defer cancel()

	log.Infow("waiting for email confirmation", "email", email, "agent", handle.AgentDID())
	if err := handle.Login(loginCtx, email); err != nil {
		if errors.Is(context.Cause(loginCtx), domain.ErrLoginTimeout) {
			return fmt.Errorf("login after %s: %w", s.cfg.LoginTimeout, domain.ErrLoginTimeout)
		}
		return err
	}

	s.claimBestEffort(ctx, handle, "login")
	accounts := handle.Accounts()
	if len(accounts) == 0 {
		log.Infow("no account visible yet, retrying claim", "email", email, "wait", s.cfg.LoginRetryWait)
		if err := s.sleep(ctx, s.cfg.LoginRetryWait); err != nil {
			return err
		}
		s.claimBestEffort(ctx, handle, "login retry")
		accounts = handle.Accounts()
	}
	if len(accounts) == 0 {
		return domain.ErrNoAccountAfterLogin
	}

	ref := pickAccount(accounts, domain.MailtoDID(email))
	planSelected, product := s.checkPlan(ctx, handle, ref.DID)

	account := domain.Account{
		ID:         id,
		Email:      email,
		AccountDID: ref.DID,
		AgentDID:   handle.AgentDID(),
		CreatedAt:  s.clock.Now(),
	}

	s.update(func(st *State) {
		st.clearAccountScoped()
		st.CurrentAccount = &account
		st.IsAuthenticated = true
		st.Accounts = upsertAccount(st.Accounts, account)
		st.PaymentPlanSelected = planSelected
		st.PlanProduct = product
		st.IsLoading = false
	})
	log.Infow("logged in", "account", id, "did", ref.DID, "plan", planSelected)

	return s.persist(ctx)
}

// Logout detaches the current account's client from the cache and clears
// every account-scoped field. The account's durable namespace is kept, so
// switching back needs no new email confirmation.
func (s *Store) Logout(ctx context.Context) {
	started := time.Now()
	if account, ok := s.current(); ok {
		s.cache.RemoveClient(account.ID)
	}
	s.update(func(st *State) { st.signOut() })
	s.persistBestEffort(ctx)
	s.observe(OpLogout, started, nil)
}

// SwitchAccount makes a known account current and resolves its space.
// Failures land in State.Error.
func (s *Store) SwitchAccount(ctx context.Context, id domain.AccountID) {
	started := time.Now()

	account, ok := s.knownAccount(id)
	if !ok {
		s.update(func(st *State) { st.Error = domain.ErrAccountNotFound.Error() })
		s.observe(OpSwitchAccount, started, domain.ErrAccountNotFound)
		return
	}

	handle, err := s.cache.InitializeClient(ctx, id)
	if err != nil {
		err = fmt.Errorf("initialize client: %w", err)
		s.update(func(st *State) { st.Error = err.Error() })
		s.observe(OpSwitchAccount, started, err)
		return
	}

	s.claimBestEffort(ctx, handle, "switch account")

	accountDID := account.AccountDID
	if accounts := handle.Accounts(); len(accounts) > 0 {
		accountDID = pickAccount(accounts, account.AccountDID).DID
	}
	planSelected, product := s.checkPlan(ctx, handle, accountDID)

	s.update(func(st *State) {
		st.clearAccountScoped()
		current := account
		st.CurrentAccount = &current
		st.IsAuthenticated = true
		st.PaymentPlanSelected = planSelected
		st.PlanProduct = product
	})
	s.persistBestEffort(ctx)
	s.observe(OpSwitchAccount, started, nil)

	s.FetchSpaces(ctx)
}

// AddAccount records account as known. Known ids are left untouched.
func (s *Store) AddAccount(ctx context.Context, account domain.Account) {
	started := time.Now()
	changed := false
	s.update(func(st *State) {
		if lo.ContainsBy(st.Accounts, func(a domain.Account) bool { return a.ID == account.ID }) {
			return
		}
		st.Accounts = append(st.Accounts, account)
		changed = true
	})
	if changed {
		s.persistBestEffort(ctx)
	}
	s.observe(OpAddAccount, started, nil)
}

// RemoveAccount forgets the account and evicts its client. Removing the
// current account signs out.
func (s *Store) RemoveAccount(ctx context.Context, id domain.AccountID) {
	started := time.Now()
	s.cache.RemoveClient(id)
	s.update(func(st *State) {
		st.Accounts = lo.Reject(st.Accounts, func(a domain.Account, _ int) bool { return a.ID == id })
		if st.isCurrent(id) {
			st.signOut()
		}
	})
	s.persistBestEffort(ctx)
	s.observe(OpRemoveAccount, started, nil)
}

func (s *Store) knownAccount(id domain.AccountID) (domain.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.Find(s.state.Accounts, func(a domain.Account) bool { return a.ID == id })
}

// pickAccount prefers the account with the wanted DID and falls back to the
// first one the handle reports.
func pickAccount(accounts []client.AccountRef, want string) client.AccountRef {
	if ref, ok := lo.Find(accounts, func(ref client.AccountRef) bool { return ref.DID == want }); ok {
		return ref
	}

	return accounts[0]
}

// upsertAccount replaces the entry with the same id, or appends.
func upsertAccount(accounts []domain.Account, account domain.Account) []domain.Account {
	updated := lo.Reject(accounts, func(a domain.Account, _ int) bool { return a.ID == account.ID })

	return append(updated, account)
}
