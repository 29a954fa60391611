package chain

import (
	"context"
	"errors"
	"fmt"

	filestore "github.com/bnema/storacha-profile-cli/internal/adapters/secrets/file"
	passstore "github.com/bnema/storacha-profile-cli/internal/adapters/secrets/pass"
	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/bnema/storacha-profile-cli/internal/ports"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("secrets")

// Store keeps agent keys in primary and uses fallback whenever primary fails
// for a reason other than cancellation. A key found only in fallback while
// primary is reachable is copied into primary.
type Store struct {
	primary  ports.SecretStore
	fallback ports.SecretStore
}

var _ ports.SecretStore = (*Store)(nil)

var (
	errNilPrimaryStore  = errors.New("primary secret store is nil")
	errNilFallbackStore = errors.New("fallback secret store is nil")
)

func NewStore(primary ports.SecretStore, fallback ports.SecretStore) *Store {
	store, err := NewStoreChecked(primary, fallback)
	if err != nil {
		panic(err)
	}

	return store
}

func NewStoreChecked(primary ports.SecretStore, fallback ports.SecretStore) (*Store, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	return &Store{primary: primary, fallback: fallback}, nil
}

// NewPassFirstWithFileFallback keeps agent keys in pass when it is installed
// and initialised, and in files under fileRoot otherwise.
func NewPassFirstWithFileFallback(fileRoot string) (*Store, error) {
	return NewStoreChecked(passstore.NewStore(), filestore.NewStore(fileRoot))
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	_, err := withFallback(ctx, "put", key,
		func(backend ports.SecretStore) (struct{}, error) {
			return struct{}{}, backend.Put(ctx, key, value)
		},
		s.primary, s.fallback,
	)

	return err
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.primary.Get(ctx, key)
	if err == nil {
		return value, nil
	}
	if isCancellation(err) {
		return "", err
	}

	log.Debugw("primary secret backend failed, using fallback", "op", "get", "key", key, "error", err)
	value, fallbackErr := s.fallback.Get(ctx, key)
	if fallbackErr != nil {
		return "", combine("get", err, fallbackErr)
	}

	if errors.Is(err, domain.ErrSecretNotFound) {
		if promoteErr := s.primary.Put(ctx, key, value); promoteErr != nil {
			log.Warnw("could not copy secret into primary backend", "key", key, "error", promoteErr)
		} else {
			log.Infow("copied secret into primary backend", "key", key)
		}
	}

	return value, nil
}

// Delete removes key from both backends. A backend without the key is not
// an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	var errs []error
	for _, backend := range []ports.SecretStore{s.primary, s.fallback} {
		err := backend.Delete(ctx, key)
		if isCancellation(err) {
			return err
		}
		if err != nil && !errors.Is(err, domain.ErrSecretNotFound) {
			errs = append(errs, err)
		}
	}

	if len(errs) == 2 {
		return combine("delete", errs[0], errs[1])
	}
	if len(errs) == 1 {
		log.Debugw("secret backend delete failed", "key", key, "error", errs[0])
	}

	return nil
}

// withFallback runs op on primary and, unless that succeeds or was
// cancelled, on fallback.
func withFallback[T any](ctx context.Context, name string, key string, op func(ports.SecretStore) (T, error), primary, fallback ports.SecretStore) (T, error) {
	result, err := op(primary)
	if err == nil || isCancellation(err) {
		return result, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}

	log.Debugw("primary secret backend failed, using fallback", "op", name, "key", key, "error", err)
	result, fallbackErr := op(fallback)
	if fallbackErr == nil {
		return result, nil
	}

	return result, combine(name, err, fallbackErr)
}

func combine(op string, primaryErr, fallbackErr error) error {
	return fmt.Errorf("primary backend %s failed: %w; fallback backend %s failed: %w", op, primaryErr, op, fallbackErr)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
