package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	leveldbstore "github.com/bnema/storacha-profile-cli/internal/adapters/datastore/leveldb"
	gatewayhttp "github.com/bnema/storacha-profile-cli/internal/adapters/gateway/http"
	"github.com/bnema/storacha-profile-cli/internal/adapters/network/rpc"
	statusadapter "github.com/bnema/storacha-profile-cli/internal/adapters/render/status"
	tomlrepo "github.com/bnema/storacha-profile-cli/internal/adapters/repo/toml"
	chainstore "github.com/bnema/storacha-profile-cli/internal/adapters/secrets/chain"
	filestore "github.com/bnema/storacha-profile-cli/internal/adapters/secrets/file"
	passstore "github.com/bnema/storacha-profile-cli/internal/adapters/secrets/pass"
	"github.com/bnema/storacha-profile-cli/internal/application"
	"github.com/bnema/storacha-profile-cli/internal/client"
	"github.com/bnema/storacha-profile-cli/internal/config"
	"github.com/bnema/storacha-profile-cli/internal/metrics"
	"github.com/bnema/storacha-profile-cli/internal/ports"
	"github.com/spf13/cobra"
)

type app struct {
	cfg            config.Config
	store          *application.Store
	metrics        *metrics.Metrics
	statusRenderer func(application.State, statusadapter.RenderOptions) (string, error)
	now            func() time.Time

	closers []func() error
}

func wireApp(ctx context.Context, opts *rootOptions) (_ *app, err error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:            cfg,
		metrics:        metrics.New(),
		statusRenderer: statusadapter.Render,
		now:            time.Now,
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, a.close())
		}
	}()

	namespaces, err := leveldbstore.New(cfg.AgentsPath)
	if err != nil {
		return nil, fmt.Errorf("wire agent store: %w", err)
	}
	a.closers = append(a.closers, namespaces.Close)

	secretStore, err := newSecretStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("wire secret store: %w", err)
	}

	network, closeNetwork, err := rpc.NewClient(ctx, cfg.NetworkEndpoint, nil)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		closeNetwork()
		return nil
	})

	var gatewayOpts []gatewayhttp.Option
	if cfg.GatewayDial != "" {
		gatewayOpts = append(gatewayOpts, gatewayhttp.WithDialAddress(cfg.GatewayDial))
	}
	gateway, err := gatewayhttp.New(cfg.GatewayScheme, cfg.GatewayHost, gatewayOpts...)
	if err != nil {
		return nil, fmt.Errorf("wire gateway: %w", err)
	}

	repo, err := tomlrepo.NewRepository(cfg.Viper())
	if err != nil {
		return nil, fmt.Errorf("wire state repository: %w", err)
	}

	clock := ports.SystemClock{}
	cache := client.NewManager(namespaces, secretStore, network, clock)
	a.store = application.NewStore(cache, gateway, repo, clock,
		application.WithConfig(cfg.Store),
		application.WithMetrics(a.metrics),
	)

	if err := a.store.Restore(ctx); err != nil {
		return nil, err
	}

	return a, nil
}

func newSecretStore(cfg config.Config) (ports.SecretStore, error) {
	switch cfg.SecretsBackend {
	case config.SecretsFile:
		return filestore.NewStore(cfg.SecretsPath), nil
	case config.SecretsPass:
		return passstore.NewStore(), nil
	default:
		return chainstore.NewPassFirstWithFileFallback(cfg.SecretsPath)
	}
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil

	return errors.Join(errs...)
}

// withApp wires the application for one command run and tears it down after.
func withApp(opts *rootOptions, fn func(cmd *cobra.Command, args []string, app *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		a, err := wireApp(cmd.Context(), opts)
		if err != nil {
			return err
		}
		defer func() {
			if writeErr := a.metrics.WriteTextfile(opts.metricsTextfile); writeErr != nil {
				err = errors.Join(err, writeErr)
			}
			err = errors.Join(err, a.close())
		}()

		return fn(cmd, args, a)
	}
}

// channelError turns the message a set-and-return operation left in its
// channel into an error.
func channelError(store *application.Store, op application.Operation) error {
	if msg := store.State().ErrorFor(op); msg != "" {
		return errors.New(msg)
	}

	return nil
}
