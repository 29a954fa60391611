// Package pass keeps agent keys in the standard unix password manager.
package pass

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path"
	"strings"
	"sync"

	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/bnema/storacha-profile-cli/internal/ports"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("secrets")

// ErrUnavailable means pass is not installed or has no initialised store.
var ErrUnavailable = errors.New("pass command unavailable")

type runFunc func(ctx context.Context, input string, args ...string) (stdout string, stderr string, err error)

type Store struct {
	run runFunc

	lookOnce sync.Once
	binary   string
	lookErr  error
}

var _ ports.SecretStore = (*Store)(nil)

func NewStore() *Store {
	s := &Store{}
	s.run = s.runPass

	return s
}

// Put inserts value as a single-line entry, replacing any previous one.
func (s *Store) Put(ctx context.Context, key string, value string) error {
	entry, err := entryName(ctx, key)
	if err != nil {
		return err
	}
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("pass put %q: value must be a single line", key)
	}

	_, stderr, err := s.run(ctx, value+"\n", "insert", "-m", "-f", entry)
	if err != nil {
		return classify("put", entry, err, stderr)
	}
	log.Debugw("stored secret in pass", "key", entry)

	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	entry, err := entryName(ctx, key)
	if err != nil {
		return "", err
	}

	stdout, stderr, err := s.run(ctx, "", "show", entry)
	if err != nil {
		return "", classify("get", entry, err, stderr)
	}

	// Only the first line is the secret; pass allows notes after it.
	value, _, _ := strings.Cut(stdout, "\n")

	return strings.TrimSuffix(value, "\r"), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	entry, err := entryName(ctx, key)
	if err != nil {
		return err
	}

	_, stderr, err := s.run(ctx, "", "rm", "-f", entry)
	if err != nil && !isNotInStore(stderr) {
		return classify("delete", entry, err, stderr)
	}

	return nil
}

// entryName checks ctx and normalises key into a pass entry path.
func entryName(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	trimmed := strings.Trim(strings.TrimSpace(key), "/")
	if trimmed == "" {
		return "", errors.New("secret key is empty")
	}
	cleaned := path.Clean(trimmed)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid secret key %q", key)
	}

	return cleaned, nil
}

func (s *Store) runPass(ctx context.Context, input string, args ...string) (string, string, error) {
	s.lookOnce.Do(func() {
		s.binary, s.lookErr = exec.LookPath("pass")
		if errors.Is(s.lookErr, exec.ErrNotFound) {
			log.Debugw("pass not installed")
			s.lookErr = ErrUnavailable
		}
	})
	if s.lookErr != nil {
		if errors.Is(s.lookErr, ErrUnavailable) {
			return "", "", ErrUnavailable
		}
		return "", "", fmt.Errorf("locate pass command: %w", s.lookErr)
	}

	cmd := exec.CommandContext(ctx, s.binary, args...)
	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), strings.TrimSpace(stderr.String()), err
}

func isNotInStore(stderr string) bool {
	return strings.Contains(stderr, "is not in the password store")
}

func isUninitialised(stderr string) bool {
	return strings.Contains(stderr, "pass init") || strings.Contains(stderr, "password store is empty")
}

// classify maps pass failures onto the errors callers branch on.
func classify(op string, entry string, err error, stderr string) error {
	switch {
	case errors.Is(err, ErrUnavailable):
	case isNotInStore(stderr):
		err = errors.Join(domain.ErrSecretNotFound, err)
	case isUninitialised(stderr):
		err = errors.Join(ErrUnavailable, err)
	}

	if stderr == "" {
		return fmt.Errorf("pass %s %q: %w", op, entry, err)
	}

	return fmt.Errorf("pass %s %q: %w: %s", op, entry, err, stderr)
}
