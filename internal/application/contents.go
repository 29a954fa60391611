package application

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/storacha-profile-cli/internal/client"
	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/bnema/storacha-profile-cli/internal/ports"
	"github.com/ipfs/go-cid"
	"github.com/samber/lo"
)

// FetchSpaceContents replaces the listing for spaceID with the network's.
// Without a current account it does nothing; failures land in State.Error.
func (s *Store) FetchSpaceContents(ctx context.Context, spaceID string) {
	account, ok := s.current()
	if !ok {
		return
	}

	started := time.Now()
	unlock := s.locks.lock(account.ID, spaceID)
	err := s.fetchContentsLocked(ctx, account, spaceID)
	unlock()
	s.observe(OpFetchSpaceContents, started, err)
}

func (s *Store) fetchContentsLocked(ctx context.Context, account domain.Account, spaceID string) error {
	s.update(func(st *State) { st.IsLoadingContents = true })

	contents, err := s.listContents(ctx, account, spaceID)
	s.update(func(st *State) {
		st.IsLoadingContents = false
		if !st.isCurrent(account.ID) {
			return
		}
		if err != nil {
			st.Error = err.Error()
			return
		}
		st.SpaceContents[spaceID] = contents
	})

	return err
}

func (s *Store) listContents(ctx context.Context, account domain.Account, spaceID string) ([]domain.Content, error) {
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

	page, err := handle.ListUploads(ctx, spaceID, "", s.cfg.ContentsPageSize)
	if err != nil {
		return nil, err
	}

	return lo.Map(page.Results, func(upload ports.Upload, _ int) domain.Content {
		return s.toContent(upload)
	}), nil
}

func (s *Store) toContent(upload ports.Upload) domain.Content {
	address := upload.Root.String()

	return domain.Content{
		ID:         address,
		Name:       address,
		CID:        address,
		GatewayURL: s.gateway.URL(upload.Root),
		Size:       upload.Size,
		UploadedAt: upload.InsertedAt,
	}
}

// UploadToSpace uploads file into spaceID and refreshes the listing. It
// returns the content address of the upload.
func (s *Store) UploadToSpace(ctx context.Context, spaceID string, file domain.File) (root cid.Cid, err error) {
	started := time.Now()
	defer func() { s.observe(OpUploadToSpace, started, err) }()

	account, ok := s.current()
	if !ok {
		return cid.Undef, domain.ErrNoAccountSelected
	}

	unlock := s.locks.lock(account.ID, spaceID)
	defer unlock()

	s.update(func(st *State) { st.IsLoadingContents = true })

	root, err = s.uploadLocked(ctx, account, spaceID, file)
	if err != nil {
		s.update(func(st *State) {
			st.IsLoadingContents = false
			if st.isCurrent(account.ID) {
				st.Error = err.Error()
			}
		})
		return cid.Undef, err
	}

	_ = s.fetchContentsLocked(ctx, account, spaceID)

	return root, nil
}

func (s *Store) uploadLocked(ctx context.Context, account domain.Account, spaceID string, file domain.File) (cid.Cid, error) {
	handle, err := s.prepareWrite(ctx, account, spaceID)
	if err != nil {
		return cid.Undef, err
	}
	if err := s.guard.EnsureCapability(ctx, handle, blobAdd(spaceID)); err != nil {
		return cid.Undef, err
	}

	root, err := handle.UploadFile(ctx, spaceID, file)
	if err != nil {
		return cid.Undef, err
	}
	log.Infow("uploaded", "account", account.ID, "space", spaceID, "name", file.Name, "root", root)

	return root, nil
}

// prepareWrite is the readiness sequence shared by every write: refresh
// delegations, require some proof, pin the working space.
func (s *Store) prepareWrite(ctx context.Context, account domain.Account, spaceID string) (*client.Handle, error) {
	handle, err := s.handleFor(account.ID)
	if err != nil {
		return nil, err
	}

	s.claimBestEffort(ctx, handle, "write")

	if err := s.guard.EnsureProofs(ctx, handle, s.cfg.GuardRetries); err != nil {
		return nil, err
	}
	if err := handle.SetCurrentSpace(ctx, spaceID); err != nil {
		return nil, err
	}

	return handle, nil
}

// DeleteFromSpace removes an upload and its shards, then refreshes the
// listing. Without a current account it does nothing.
func (s *Store) DeleteFromSpace(ctx context.Context, spaceID string, contentID string) (err error) {
	account, ok := s.current()
	if !ok {
		return nil
	}

	started := time.Now()
	defer func() { s.observe(OpDeleteFromSpace, started, err) }()

	unlock := s.locks.lock(account.ID, spaceID)
	defer unlock()

	if err := s.removeLocked(ctx, account, spaceID, contentID); err != nil {
		s.updateFor(account.ID, func(st *State) { st.Error = err.Error() })
		return err
	}

	_ = s.fetchContentsLocked(ctx, account, spaceID)

	return nil
}

func (s *Store) removeLocked(ctx context.Context, account domain.Account, spaceID string, contentID string) error {
	handle, err := s.handleFor(account.ID)
	if err != nil {
		return err
	}
	if err := s.guard.EnsureProofs(ctx, handle, s.cfg.GuardRetries); err != nil {
		return err
	}
	if err := handle.SetCurrentSpace(ctx, spaceID); err != nil {
		return err
	}

	root, err := cid.Parse(contentID)
	if err != nil {
		return fmt.Errorf("parse content id %q: %w", contentID, err)
	}

	if err := handle.Remove(ctx, spaceID, root, true); err != nil {
		return err
	}
	log.Infow("removed", "account", account.ID, "space", spaceID, "root", root)

	return nil
}

func blobAdd(spaceID string) domain.Capability {
	return domain.Capability{Can: domain.AbilitySpaceBlobAdd, With: spaceID}
}
