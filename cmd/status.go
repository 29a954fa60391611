package cmd

import (
	"encoding/json"
	"fmt"
	"slices"

	statusadapter "github.com/bnema/storacha-profile-cli/internal/adapters/render/status"
	"github.com/bnema/storacha-profile-cli/internal/application"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var (
		asJSON      bool
		spaceRef    string
		maxContents int
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show accounts, the selected space, its uploads and the profile",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, app *app) error {
			if app.store.State().CurrentAccount != nil {
				// Lookup failures stay in the state and are rendered.
				if err := resolveSpace(cmd, app, spaceRef); err == nil && app.store.State().SelectedSpace != nil {
					app.store.LoadProfile(cmd.Context())
				}
			}

			return writeStateOutput(cmd, app, app.store.State(), maxContents, asJSON)
		}),
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the state as JSON")
	cmd.Flags().StringVar(&spaceRef, "space", "", "Space DID or name (default: the account's first space)")
	cmd.Flags().IntVar(&maxContents, "max-uploads", 10, "Uploads to list (0 lists all)")

	return cmd
}

func writeStateOutput(cmd *cobra.Command, app *app, state application.State, maxContents int, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	}

	rendered, err := app.statusRenderer(state, statusadapter.RenderOptions{
		Now:         app.now(),
		MaxContents: maxContents,
	})
	if err != nil {
		return fmt.Errorf("render status: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func newResetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget every account and sign out",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, app *app) error {
			app.store.Reset(cmd.Context())
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "State reset.")
			return err
		}),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)

	return keys
}
