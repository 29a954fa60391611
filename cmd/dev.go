package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gatewayhttp "github.com/bnema/storacha-profile-cli/internal/adapters/gateway/http"
	"github.com/bnema/storacha-profile-cli/internal/adapters/network/memory"
	"github.com/bnema/storacha-profile-cli/internal/adapters/network/rpc"
	"github.com/bnema/storacha-profile-cli/internal/config"
	"github.com/bnema/storacha-profile-cli/internal/domain"
	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
)

var devLog = logging.Logger("dev")

const (
	defaultDevListen      = "127.0.0.1:8787"
	defaultDevGatewayHost = "ipfs.localhost"
	devShutdownTimeout    = 5 * time.Second
)

func newDevCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Run and administer an in-memory storage network for local work",
	}

	cmd.AddCommand(
		newDevServeCmd(),
		newDevRegisterCmd(opts),
		newDevSetPlanCmd(opts),
		newDevCreateSpaceCmd(opts),
	)

	return cmd
}

// newDevHandler serves the network and its console over JSON-RPC and the
// network's content as a subdomain gateway on every other path.
func newDevHandler(network *memory.Network, gatewayHost string) http.Handler {
	return rpc.NewHandler(network, network, gatewayhttp.Handler(network, gatewayHost))
}

func newDevServeCmd() *cobra.Command {
	var (
		listen       string
		gatewayHost  string
		claimLag     int
		confirmDelay time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an in-memory network with RPC and gateway endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			listener, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("listen %s: %w", listen, err)
			}

			network := memory.New(
				memory.WithClaimLag(claimLag),
				memory.WithGatewayHost("http", gatewayHost),
				memory.WithLoginConfirmation(delayedConfirmation(confirmDelay)),
			)
			server := &http.Server{
				Handler:           newDevHandler(network, gatewayHost),
				ReadHeaderTimeout: 10 * time.Second,
			}

			addr := listener.Addr().String()
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Serving on http://%s%s\n", addr, rpc.DefaultPath)
			_, _ = fmt.Fprintln(out, "Point sp at it with:")
			_, _ = fmt.Fprintf(out, "  export SP_NETWORK_ENDPOINT=http://%s%s\n", addr, rpc.DefaultPath)
			_, _ = fmt.Fprintf(out, "  export SP_GATEWAY_SCHEME=http SP_GATEWAY_HOST=%s SP_GATEWAY_DIAL=%s\n", gatewayHost, addr)

			errCh := make(chan error, 1)
			go func() { errCh <- server.Serve(listener) }()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			devLog.Infow("shutting down", "addr", addr)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), devShutdownTimeout)
			defer cancel()

			return server.Shutdown(shutdownCtx)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&listen, "listen", defaultDevListen, "Address to listen on")
	flags.StringVar(&gatewayHost, "gateway-host", defaultDevGatewayHost, "Gateway host; content is served at <cid>.<host>")
	flags.IntVar(&claimLag, "claim-lag", 0, "Claims that return nothing before delegations show up")
	flags.DurationVar(&confirmDelay, "confirm-delay", 0, "How long each login waits for the simulated email confirmation")

	return cmd
}

func delayedConfirmation(delay time.Duration) memory.ConfirmFunc {
	return func(ctx context.Context, email string) error {
		if delay <= 0 {
			return nil
		}
		devLog.Infow("waiting before confirming login", "email", email, "delay", delay)

		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
}

// withConsole dials the console of the configured network endpoint.
func withConsole(opts *rootOptions, fn func(cmd *cobra.Command, args []string, console rpc.Console) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(opts.configPath)
		if err != nil {
			return err
		}

		console, closer, err := rpc.NewConsoleClient(cmd.Context(), cfg.NetworkEndpoint, nil)
		if err != nil {
			return err
		}
		defer closer()

		return fn(cmd, args, console)
	}
}

func newDevRegisterCmd(opts *rootOptions) *cobra.Command {
	var plan string

	cmd := &cobra.Command{
		Use:   "register <email>",
		Short: "Create an account on the dev network",
		Args:  cobra.ExactArgs(1),
		RunE: withConsole(opts, func(cmd *cobra.Command, args []string, console rpc.Console) error {
			did, err := console.RegisterAccount(cmd.Context(), args[0], plan)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (plan: %s)\n", did, domain.PlanLabel(plan))
			return err
		}),
	}

	cmd.Flags().StringVar(&plan, "plan", "did:web:starter.web3.storage", "Payment plan product (empty for none)")

	return cmd
}

func newDevSetPlanCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-plan <email> <product>",
		Short: "Select a payment plan for an account",
		Args:  cobra.ExactArgs(2),
		RunE: withConsole(opts, func(cmd *cobra.Command, args []string, console rpc.Console) error {
			if err := console.SetPlan(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Plan for %s: %s\n", args[0], domain.PlanLabel(args[1]))
			return err
		}),
	}
}

func newDevCreateSpaceCmd(opts *rootOptions) *cobra.Command {
	var abilities []string

	cmd := &cobra.Command{
		Use:   "create-space <email> <name>",
		Short: "Create a space for an account, as the web console would",
		Args:  cobra.ExactArgs(2),
		RunE: withConsole(opts, func(cmd *cobra.Command, args []string, console rpc.Console) error {
			granted := make([]domain.Ability, 0, len(abilities))
			for _, ability := range abilities {
				granted = append(granted, domain.Ability(ability))
			}

			did, err := console.CreateConsoleSpace(cmd.Context(), args[0], args[1], granted...)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), did)
			return err
		}),
	}

	cmd.Flags().StringSliceVar(&abilities, "ability", nil, "Restrict the account's delegation to these abilities (default: all)")

	return cmd
}
