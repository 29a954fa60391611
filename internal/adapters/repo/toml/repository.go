package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/bnema/storacha-profile-cli/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	StatePathKey    = "state.path"
	stateFileMode   = 0o600
	stateDirMode    = 0o700
	stateConfigDir  = ".storacha"
	stateConfigFile = "state.toml"
	tempFilePattern = ".state-*.toml.tmp"
)

// Repository persists the store snapshot as a TOML file.
type Repository struct {
	statePath string
	mu        *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.StateRepository = (*Repository)(nil)

func NewRepository(cfg *viper.Viper) (*Repository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	statePath := cfg.GetString(StatePathKey)
	if statePath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		statePath = filepath.Join(homeDir, stateConfigDir, stateConfigFile)
	}

	statePath, err := normalizeStatePath(statePath)
	if err != nil {
		return nil, err
	}

	return &Repository{statePath: statePath, mu: lockForPath(statePath)}, nil
}

func (r *Repository) Path() string {
	return r.statePath
}

// Load returns the zero snapshot when no state file exists yet.
func (r *Repository) Load(ctx context.Context) (ports.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return ports.Snapshot{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return ports.Snapshot{}, err
	}

	return fromSchema(file), nil
}

func (r *Repository) Save(ctx context.Context, snapshot ports.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file := toSchema(snapshot)

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.statePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{}, nil
		}
		return fileSchema{}, fmt.Errorf("read state file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode state file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func normalizeStatePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve state path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.statePath), stateDirMode); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode state file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.statePath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}

	if err := tempFile.Chmod(stateFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp state file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tempName, r.statePath); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}

	cleanup = false

	if err := os.Chmod(r.statePath, stateFileMode); err != nil {
		return fmt.Errorf("chmod state file: %w", err)
	}

	return nil
}

func toSchema(snapshot ports.Snapshot) fileSchema {
	file := fileSchema{
		IsAuthenticated:     snapshot.IsAuthenticated,
		PaymentPlanSelected: snapshot.PaymentPlanSelected,
		Accounts:            make([]accountSchema, 0, len(snapshot.Accounts)),
	}
	for _, account := range snapshot.Accounts {
		file.Accounts = append(file.Accounts, toAccountSchema(account))
	}
	if snapshot.CurrentAccount != nil {
		file.CurrentAccount = string(snapshot.CurrentAccount.ID)
	}

	return file
}

// fromSchema resolves the current account against the stored list. A
// current id without a matching entry loads as logged out.
func fromSchema(file fileSchema) ports.Snapshot {
	snapshot := ports.Snapshot{
		PaymentPlanSelected: file.PaymentPlanSelected,
		Accounts:            make([]domain.Account, 0, len(file.Accounts)),
	}
	for _, entry := range file.Accounts {
		account := fromAccountSchema(entry)
		snapshot.Accounts = append(snapshot.Accounts, account)
		if file.CurrentAccount != "" && entry.ID == file.CurrentAccount {
			current := account
			snapshot.CurrentAccount = &current
		}
	}
	snapshot.IsAuthenticated = file.IsAuthenticated && snapshot.CurrentAccount != nil
	if snapshot.CurrentAccount == nil {
		snapshot.PaymentPlanSelected = false
	}

	return snapshot
}

func toAccountSchema(account domain.Account) accountSchema {
	return accountSchema{
		ID:         string(account.ID),
		Email:      account.Email,
		AccountDID: account.AccountDID,
		AgentDID:   account.AgentDID,
		CreatedAt:  formatTime(account.CreatedAt),
	}
}

func fromAccountSchema(account accountSchema) domain.Account {
	return domain.Account{
		ID:         domain.AccountID(account.ID),
		Email:      account.Email,
		AccountDID: account.AccountDID,
		AgentDID:   account.AgentDID,
		CreatedAt:  parseTime(account.CreatedAt),
	}
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.UTC().Format(time.RFC3339Nano)
}
