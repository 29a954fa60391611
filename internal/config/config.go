// Package config resolves CLI settings from ~/.storacha/config.toml and
// SP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/storacha-profile-cli/internal/application"
	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/spf13/viper"
)

const (
	EnvPrefix  = "SP"
	ConfigDir  = ".storacha"
	ConfigFile = "config.toml"

	DefaultEndpoint = "http://127.0.0.1:8787/rpc/v0"
)

const (
	KeyStatePath       = "state.path"
	KeyAgentsPath      = "agents.path"
	KeySecretsPath     = "secrets.path"
	KeySecretsBackend  = "secrets.backend"
	KeyNetworkEndpoint = "network.endpoint"
	KeyGatewayHost     = "gateway.host"
	KeyGatewayScheme   = "gateway.scheme"
	KeyGatewayDial     = "gateway.dial"
	KeyLoginTimeout    = "login.timeout"
	KeyLoginRetryWait  = "login.retry_wait"
	KeyPlanTimeout     = "plan.timeout"
	KeyGuardRetries    = "guard.retries"
	KeyGuardBackoff    = "guard.backoff"
	KeyContentsPage    = "contents.page_size"
	KeyProfilePage     = "profile.page_size"
)

const (
	SecretsChain = "chain"
	SecretsFile  = "file"
	SecretsPass  = "pass"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	StatePath       string
	AgentsPath      string
	SecretsPath     string
	SecretsBackend  string
	NetworkEndpoint string
	GatewayHost     string
	GatewayScheme   string
	// GatewayDial pins every gateway request to one address, for wildcard
	// subdomain gateways served from a local dev server.
	GatewayDial string
	Store       application.Config

	viper *viper.Viper
}

// Viper returns the resolved settings for adapters that read their own keys.
func (c Config) Viper() *viper.Viper {
	return c.viper
}

// Load reads the config file (if any) and the environment. An explicit
// configPath must exist; the default one may be absent.
func Load(configPath string) (Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home directory: %w", err)
	}
	root := filepath.Join(homeDir, ConfigDir)

	v := viper.New()
	setDefaults(v, root)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("toml")
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configPath, err)
		}
	} else {
		v.SetConfigFile(filepath.Join(root, ConfigFile))
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper, root string) {
	store := application.DefaultConfig()

	v.SetDefault(KeyStatePath, filepath.Join(root, "state.toml"))
	v.SetDefault(KeyAgentsPath, filepath.Join(root, "agents"))
	v.SetDefault(KeySecretsPath, filepath.Join(root, "secrets"))
	v.SetDefault(KeySecretsBackend, SecretsChain)
	v.SetDefault(KeyNetworkEndpoint, DefaultEndpoint)
	v.SetDefault(KeyGatewayHost, domain.DefaultGatewayHost)
	v.SetDefault(KeyGatewayScheme, "https")
	v.SetDefault(KeyGatewayDial, "")
	v.SetDefault(KeyLoginTimeout, store.LoginTimeout)
	v.SetDefault(KeyLoginRetryWait, store.LoginRetryWait)
	v.SetDefault(KeyPlanTimeout, store.PlanTimeout)
	v.SetDefault(KeyGuardRetries, store.GuardRetries)
	v.SetDefault(KeyGuardBackoff, store.GuardBackoff)
	v.SetDefault(KeyContentsPage, store.ContentsPageSize)
	v.SetDefault(KeyProfilePage, store.ProfilePageSize)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		StatePath:       v.GetString(KeyStatePath),
		AgentsPath:      v.GetString(KeyAgentsPath),
		SecretsPath:     v.GetString(KeySecretsPath),
		SecretsBackend:  strings.ToLower(strings.TrimSpace(v.GetString(KeySecretsBackend))),
		NetworkEndpoint: strings.TrimSpace(v.GetString(KeyNetworkEndpoint)),
		GatewayHost:     strings.TrimSpace(v.GetString(KeyGatewayHost)),
		GatewayScheme:   strings.ToLower(strings.TrimSpace(v.GetString(KeyGatewayScheme))),
		GatewayDial:     strings.TrimSpace(v.GetString(KeyGatewayDial)),
		Store: application.Config{
			LoginTimeout:     v.GetDuration(KeyLoginTimeout),
			LoginRetryWait:   v.GetDuration(KeyLoginRetryWait),
			PlanTimeout:      v.GetDuration(KeyPlanTimeout),
			GuardRetries:     v.GetInt(KeyGuardRetries),
			GuardBackoff:     v.GetDuration(KeyGuardBackoff),
			ContentsPageSize: v.GetInt(KeyContentsPage),
			ProfilePageSize:  v.GetInt(KeyProfilePage),
		},
		viper: v,
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	switch c.SecretsBackend {
	case SecretsChain, SecretsFile, SecretsPass:
	default:
		errs = append(errs, fmt.Errorf("%s: unknown backend %q", KeySecretsBackend, c.SecretsBackend))
	}
	switch c.GatewayScheme {
	case "http", "https":
	default:
		errs = append(errs, fmt.Errorf("%s: unsupported scheme %q", KeyGatewayScheme, c.GatewayScheme))
	}
	if c.NetworkEndpoint == "" {
		errs = append(errs, fmt.Errorf("%s is required", KeyNetworkEndpoint))
	}
	if c.Store.GuardRetries < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyGuardRetries))
	}
	errs = append(errs, positive(KeyLoginTimeout, c.Store.LoginTimeout)...)
	errs = append(errs, positive(KeyPlanTimeout, c.Store.PlanTimeout)...)
	if c.Store.GuardBackoff < 0 || c.Store.LoginRetryWait < 0 {
		errs = append(errs, fmt.Errorf("%s and %s must not be negative", KeyGuardBackoff, KeyLoginRetryWait))
	}
	if c.Store.ContentsPageSize <= 0 || c.Store.ProfilePageSize <= 0 {
		errs = append(errs, fmt.Errorf("%s and %s must be positive", KeyContentsPage, KeyProfilePage))
	}

	if len(errs) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func positive(key string, d time.Duration) []error {
	if d <= 0 {
		return []error{fmt.Errorf("%s must be positive", key)}
	}

	return nil
}
