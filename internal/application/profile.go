package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/storacha-profile-cli/internal/client"
	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/bnema/storacha-profile-cli/internal/ports"
	"github.com/ipfs/go-cid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const (
	profileContentType = "application/json"
	historyParallelism = 4
)

// LoadProfile resolves the current profile of the selected space. Uploads
// are probed newest first for a profile.json; the remembered profile
// address is tried last. Finding none is not an error.
func (s *Store) LoadProfile(ctx context.Context) {
	started := time.Now()

	account, space, ok := s.currentAndSelected()
	if !ok {
		s.update(func(st *State) { st.ProfileError = domain.ErrNoAccountOrSpace.Error() })
		s.observe(OpLoadProfile, started, domain.ErrNoAccountOrSpace)
		return
	}

	unlock := s.locks.lock(account.ID, space.ID)
	defer unlock()

	s.update(func(st *State) {
		st.IsLoadingProfile = true
		st.ProfileError = ""
	})

	version, found, err := s.resolveProfile(ctx, account, space.ID)
	s.update(func(st *State) {
		st.IsLoadingProfile = false
		if !st.isCurrent(account.ID) {
			return
		}
		if err != nil {
			st.ProfileError = err.Error()
			return
		}
		if !found {
			st.Profile = nil
			st.ProfileCID = ""
			return
		}
		profile := version.Profile
		st.Profile = &profile
		st.ProfileCID = version.CID
	})
	s.observe(OpLoadProfile, started, err)
}

func (s *Store) resolveProfile(ctx context.Context, account domain.Account, spaceID string) (domain.ProfileVersion, bool, error) {
	uploads, err := s.profileCandidates(ctx, account, spaceID)
	if err != nil {
		return domain.ProfileVersion{}, false, err
	}

	candidates := make(domain.ProfileLog, 0, len(uploads))
	for _, upload := range uploads {
		candidates = append(candidates, domain.ProfileVersion{CID: upload.Root.String(), InsertedAt: upload.InsertedAt})
	}

	probed := map[string]struct{}{}
	for _, candidate := range candidates.NewestFirst() {
		probed[candidate.CID] = struct{}{}
		profile, err := s.fetchProfile(ctx, candidate.CID)
		if err != nil {
			log.Debugw("no profile in upload", "root", candidate.CID, "error", err)
			continue
		}
		candidate.Profile = profile
		return candidate, true, nil
	}

	s.mu.RLock()
	remembered := s.state.ProfileCID
	s.mu.RUnlock()
	if _, seen := probed[remembered]; remembered != "" && !seen {
		profile, err := s.fetchProfile(ctx, remembered)
		if err == nil {
			return domain.ProfileVersion{CID: remembered, Profile: profile}, true, nil
		}
		log.Debugw("remembered profile not reachable", "root", remembered, "error", err)
	}

	return domain.ProfileVersion{}, false, nil
}

func (s *Store) profileCandidates(ctx context.Context, account domain.Account, spaceID string) ([]ports.Upload, error) {
	handle, err := s.handleFor(account.ID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.EnsureProofs(ctx, handle, s.cfg.GuardRetries); err != nil {
		return nil, err
	}
	if err := handle.SetCurrentSpace(ctx, spaceID); err != nil {
		return nil, err
	}

	page, err := handle.ListUploads(ctx, spaceID, "", s.cfg.ProfilePageSize)
	if err != nil {
		return nil, err
	}

	return page.Results, nil
}

func (s *Store) fetchProfile(ctx context.Context, address string) (domain.Profile, error) {
	root, err := cid.Parse(address)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("parse profile address %q: %w", address, err)
	}

	data, err := s.gateway.Fetch(ctx, root, domain.ProfileFileName)
	if err != nil {
		return domain.Profile{}, err
	}

	return domain.DecodeProfile(data)
}

// SaveProfile uploads profile as a new profile.json and makes it current.
// Earlier versions stay in the space. It returns the new address.
func (s *Store) SaveProfile(ctx context.Context, profile domain.Profile) (address string, err error) {
	started := time.Now()
	defer func() { s.observe(OpSaveProfile, started, err) }()

	account, space, ok := s.currentAndSelected()
	if !ok {
		return "", domain.ErrNoAccountOrSpace
	}

	unlock := s.locks.lock(account.ID, space.ID)
	defer unlock()

	s.update(func(st *State) {
		st.IsSavingProfile = true
		st.ProfileError = ""
	})

	root, stored, err := s.saveProfileLocked(ctx, account, space.ID, profile)
	if err != nil {
		s.update(func(st *State) {
			st.IsSavingProfile = false
			if st.isCurrent(account.ID) {
				st.ProfileError = err.Error()
			}
		})
		return "", err
	}

	address = root.String()
	saved := stored
	s.update(func(st *State) {
		st.IsSavingProfile = false
		if st.isCurrent(account.ID) {
			st.Profile = &saved
			st.ProfileCID = address
		}
	})

	_ = s.fetchContentsLocked(ctx, account, space.ID)

	return address, nil
}

// saveProfileLocked uploads profile and returns the document as a later load
// will see it.
func (s *Store) saveProfileLocked(ctx context.Context, account domain.Account, spaceID string, profile domain.Profile) (cid.Cid, domain.Profile, error) {
	if err := profile.Validate(); err != nil {
		return cid.Undef, domain.Profile{}, err
	}
	data, err := profile.Encode()
	if err != nil {
		return cid.Undef, domain.Profile{}, err
	}
	stored, err := domain.DecodeProfile(data)
	if err != nil {
		return cid.Undef, domain.Profile{}, err
	}

	handle, err := s.prepareWrite(ctx, account, spaceID)
	if err != nil {
		return cid.Undef, domain.Profile{}, err
	}
	s.reclaimForWrite(ctx, handle, spaceID)

	root, err := handle.UploadDirectory(ctx, spaceID, []domain.File{{
		Name:        domain.ProfileFileName,
		ContentType: profileContentType,
		Data:        data,
	}})
	if err != nil {
		return cid.Undef, domain.Profile{}, err
	}
	log.Infow("profile saved", "account", account.ID, "space", spaceID, "root", root)

	return root, stored, nil
}

// reclaimForWrite claims once more when no write proof is held. The upload
// itself reports a missing proof.
func (s *Store) reclaimForWrite(ctx context.Context, handle *client.Handle, spaceID string) {
	if handle.HasProofs(blobAdd(spaceID)) {
		return
	}
	s.claimBestEffort(ctx, handle, "write proof")
}

// UploadAvatar uploads an image for the profile and returns its address.
// It does not change the profile.
func (s *Store) UploadAvatar(ctx context.Context, file domain.File) (address string, err error) {
	started := time.Now()
	defer func() { s.observe(OpUploadAvatar, started, err) }()

	account, space, ok := s.currentAndSelected()
	if !ok {
		return "", domain.ErrNoAccountOrSpace
	}

	unlock := s.locks.lock(account.ID, space.ID)
	defer unlock()

	handle, err := s.prepareWrite(ctx, account, space.ID)
	if err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}
	s.reclaimForWrite(ctx, handle, space.ID)

	root, err := handle.UploadFile(ctx, space.ID, file)
	if err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}

	return root.String(), nil
}

// DeleteProfile removes the current profile upload.
func (s *Store) DeleteProfile(ctx context.Context) (err error) {
	started := time.Now()
	defer func() { s.observe(OpDeleteProfile, started, err) }()

	s.mu.RLock()
	account, space, address := s.state.CurrentAccount, s.state.SelectedSpace, s.state.ProfileCID
	s.mu.RUnlock()
	if account == nil || space == nil || address == "" {
		return domain.ErrNoProfile
	}

	if err := s.DeleteFromSpace(ctx, space.ID, address); err != nil {
		s.updateFor(account.ID, func(st *State) { st.ProfileError = err.Error() })
		return err
	}

	s.updateFor(account.ID, func(st *State) {
		st.Profile = nil
		st.ProfileCID = ""
	})

	return nil
}

// ProfileHistory returns every profile.json version in the selected space,
// newest first.
func (s *Store) ProfileHistory(ctx context.Context) (history domain.ProfileLog, err error) {
	started := time.Now()
	defer func() { s.observe(OpProfileHistory, started, err) }()

	account, space, ok := s.currentAndSelected()
	if !ok {
		return nil, domain.ErrNoAccountOrSpace
	}

	unlock := s.locks.lock(account.ID, space.ID)
	defer unlock()

	uploads, err := s.profileCandidates(ctx, account, space.ID)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	found := make([]*domain.ProfileVersion, len(uploads))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(historyParallelism)
	for i, upload := range uploads {
		i, upload := i, upload
		group.Go(func() error {
			address := upload.Root.String()
			profile, err := s.fetchProfile(groupCtx, address)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			}
			mu.Lock()
			found[i] = &domain.ProfileVersion{CID: address, InsertedAt: upload.InsertedAt, Profile: profile}
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	history = lo.FilterMap(found, func(version *domain.ProfileVersion, _ int) (domain.ProfileVersion, bool) {
		if version == nil {
			return domain.ProfileVersion{}, false
		}
		return *version, true
	})

	return history.NewestFirst(), nil
}
