package application

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/samber/lo"
)

// FetchSpaces discovers the current account's spaces and selects the first
// one, then lists its contents. Only one space per account is used. Without
// a current account it does nothing; failures land in State.Error.
func (s *Store) FetchSpaces(ctx context.Context) {
	account, ok := s.current()
	if !ok {
		return
	}

	started := time.Now()
	err := s.fetchSpaces(ctx, account)
	s.observe(OpFetchSpaces, started, err)
}

func (s *Store) fetchSpaces(ctx context.Context, account domain.Account) error {
	s.update(func(st *State) { st.IsLoadingSpaces = true })

	fail := func(err error) error {
		s.update(func(st *State) {
			st.IsLoadingSpaces = false
			if st.isCurrent(account.ID) {
				st.Error = err.Error()
			}
		})
		return err
	}

	handle, err := s.cache.InitializeClient(ctx, account.ID)
	if err != nil {
		return fail(fmt.Errorf("initialize client: %w", err))
	}

	s.claimBestEffort(ctx, handle, "fetch spaces")

	if err := s.guard.EnsureProofs(ctx, handle, s.cfg.GuardRetries); err != nil {
		return fail(err)
	}

	spaces := handle.Spaces()
	if len(spaces) == 0 {
		s.update(func(st *State) {
			st.IsLoadingSpaces = false
			if st.isCurrent(account.ID) {
				st.Spaces = nil
				st.SelectedSpace = nil
				st.Error = domain.ErrNoSpace.Error()
			}
		})
		return domain.ErrNoSpace
	}

	selected := spaces[0]
	if len(spaces) > 1 {
		log.Infow("several spaces visible, using the first", "account", account.ID, "space", selected.DID, "count", len(spaces))
	}
	if err := handle.SetCurrentSpace(ctx, selected.DID); err != nil {
		return fail(err)
	}

	applied := false
	s.update(func(st *State) {
		st.IsLoadingSpaces = false
		if st.isCurrent(account.ID) {
			st.Spaces = []domain.Space{selected}
			space := selected
			st.SelectedSpace = &space
			applied = true
		}
	})
	if !applied {
		return nil
	}

	s.FetchSpaceContents(ctx, selected.ID)

	return nil
}

// VisibleSpaces lists every space the current account's agent holds
// delegations for, in arrival order. State.Spaces keeps only the one in use;
// this is how the others are found.
func (s *Store) VisibleSpaces(ctx context.Context) ([]domain.Space, error) {
	account, ok := s.current()
	if !ok {
		return nil, domain.ErrNoAccountSelected
	}

	handle, err := s.cache.InitializeClient(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("initialize client: %w", err)
	}

	s.claimBestEffort(ctx, handle, "list spaces")
	if err := s.guard.EnsureProofs(ctx, handle, s.cfg.GuardRetries); err != nil {
		return nil, err
	}

	return handle.Spaces(), nil
}

// CreateSpace creates a space owned by the current account and appends it to
// State.Spaces. It does not select it.
func (s *Store) CreateSpace(ctx context.Context, name string) (space domain.Space, err error) {
	started := time.Now()
	defer func() { s.observe(OpCreateSpace, started, err) }()

	account, ok := s.current()
	if !ok {
		return domain.Space{}, domain.ErrNoAccountSelected
	}
	handle, err := s.handleFor(account.ID)
	if err != nil {
		return domain.Space{}, err
	}

	s.update(func(st *State) { st.IsLoadingSpaces = true })
	defer func() {
		s.update(func(st *State) {
			st.IsLoadingSpaces = false
			if err != nil && st.isCurrent(account.ID) {
				st.Error = err.Error()
			}
		})
	}()

	s.claimBestEffort(ctx, handle, "create space")
	if err = s.guard.EnsureProofs(ctx, handle, s.cfg.GuardRetries); err != nil {
		return domain.Space{}, err
	}

	accounts := handle.Accounts()
	if len(accounts) == 0 {
		return domain.Space{}, fmt.Errorf("%w in client", domain.ErrAccountNotFound)
	}
	owner := pickAccount(accounts, account.AccountDID)

	space, err = handle.CreateSpace(ctx, name, owner)
	if err != nil {
		return domain.Space{}, err
	}

	s.updateFor(account.ID, func(st *State) {
		if !lo.ContainsBy(st.Spaces, func(existing domain.Space) bool { return existing.ID == space.ID }) {
			st.Spaces = append(st.Spaces, space)
		}
	})
	log.Infow("space created", "account", account.ID, "space", space.DID, "name", space.Name)

	return space, nil
}

// DeleteSpace always fails: the storage network cannot delete spaces.
func (s *Store) DeleteSpace(_ context.Context, spaceID string) {
	started := time.Now()
	log.Debugw("space deletion requested", "space", spaceID)
	s.update(func(st *State) { st.Error = domain.ErrSpaceDeletionUnsupported.Error() })
	s.observe(OpDeleteSpace, started, domain.ErrSpaceDeletionUnsupported)
}

// SelectSpace sets State.SelectedSpace. A nil space clears it.
func (s *Store) SelectSpace(space *domain.Space) {
	s.update(func(st *State) {
		if space == nil {
			st.SelectedSpace = nil
			return
		}
		selected := *space
		st.SelectedSpace = &selected
	})
}
