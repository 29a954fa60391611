package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/storacha-profile-cli/internal/application"
	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load("")

	require.NoError(t, err)
	root := filepath.Join(home, ".storacha")
	assert.Equal(t, filepath.Join(root, "state.toml"), cfg.StatePath)
	assert.Equal(t, filepath.Join(root, "agents"), cfg.AgentsPath)
	assert.Equal(t, filepath.Join(root, "secrets"), cfg.SecretsPath)
	assert.Equal(t, SecretsChain, cfg.SecretsBackend)
	assert.Equal(t, DefaultEndpoint, cfg.NetworkEndpoint)
	assert.Equal(t, domain.DefaultGatewayHost, cfg.GatewayHost)
	assert.Equal(t, "https", cfg.GatewayScheme)
	assert.Empty(t, cfg.GatewayDial)
	assert.Equal(t, application.DefaultConfig(), cfg.Store)
	assert.Equal(t, cfg.StatePath, cfg.Viper().GetString(KeyStatePath))
}

func TestLoadReadsConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	root := filepath.Join(home, ".storacha")
	require.NoError(t, os.MkdirAll(root, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(root, "config.toml"), []byte(`
[network]
endpoint = "http://node.test/rpc/v0"

[gateway]
host = "gw.test"
scheme = "http"
dial = "127.0.0.1:9999"

[guard]
retries = 5
backoff = "250ms"

[profile]
page_size = 10
`), 0o600))

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "http://node.test/rpc/v0", cfg.NetworkEndpoint)
	assert.Equal(t, "gw.test", cfg.GatewayHost)
	assert.Equal(t, "http", cfg.GatewayScheme)
	assert.Equal(t, "127.0.0.1:9999", cfg.GatewayDial)
	assert.Equal(t, 5, cfg.Store.GuardRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Store.GuardBackoff)
	assert.Equal(t, 10, cfg.Store.ProfilePageSize)
	assert.Equal(t, 25, cfg.Store.ContentsPageSize)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(t.TempDir(), "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte("[secrets]\nbackend = \"pass\"\n"), 0o600))
	t.Setenv("SP_SECRETS_BACKEND", "file")
	t.Setenv("SP_LOGIN_TIMEOUT", "90s")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, SecretsFile, cfg.SecretsBackend)
	assert.Equal(t, 90*time.Second, cfg.Store.LoginTimeout)
}

func TestExplicitConfigMustExist(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "backend", mutate: func(c *Config) { c.SecretsBackend = "vault" }, want: `unknown backend "vault"`},
		{name: "scheme", mutate: func(c *Config) { c.GatewayScheme = "ftp" }, want: `unsupported scheme "ftp"`},
		{name: "endpoint", mutate: func(c *Config) { c.NetworkEndpoint = "" }, want: "network.endpoint is required"},
		{name: "retries", mutate: func(c *Config) { c.Store.GuardRetries = -1 }, want: "guard.retries must not be negative"},
		{name: "login timeout", mutate: func(c *Config) { c.Store.LoginTimeout = 0 }, want: "login.timeout must be positive"},
		{name: "page size", mutate: func(c *Config) { c.Store.ProfilePageSize = 0 }, want: "must be positive"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()

			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateAcceptsZeroRetries(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Store.GuardRetries = 0

	assert.NoError(t, cfg.Validate())
}

func validConfig() Config {
	return Config{
		SecretsBackend:  SecretsChain,
		GatewayScheme:   "https",
		NetworkEndpoint: DefaultEndpoint,
		Store:           application.DefaultConfig(),
	}
}
