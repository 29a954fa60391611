package cmd

import (
	"fmt"
	"strings"

	"github.com/bnema/storacha-profile-cli/internal/application"
	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newSpaceCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "space",
		Short: "Inspect and create spaces of the current account",
	}

	cmd.AddCommand(
		newSpaceListCmd(opts),
		newSpaceCreateCmd(opts),
		newSpaceDeleteCmd(opts),
	)

	return cmd
}

func newSpaceListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List spaces the current account can use",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, app *app) error {
			if err := resolveSpace(cmd, app, ""); err != nil {
				return err
			}

			spaces, err := app.store.VisibleSpaces(cmd.Context())
			if err != nil {
				return err
			}

			state := app.store.State()
			for _, space := range spaces {
				marker := " "
				if state.SelectedSpace != nil && state.SelectedSpace.ID == space.ID {
					marker = "*"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\t%s\n", marker, space.DID, space.Name)
			}

			return nil
		}),
	}
}

func newSpaceCreateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a space owned by the current account",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, app *app) error {
			space, err := app.store.CreateSpace(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", space.Name, space.DID)
			return err
		}),
	}
}

func newSpaceDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <did>",
		Short: "Delete a space (not supported by the network)",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, app *app) error {
			app.store.DeleteSpace(cmd.Context(), args[0])
			return channelError(app.store, application.OpDeleteSpace)
		}),
	}
}

// resolveSpace loads the current account's spaces and, when ref names any
// space the agent can reach, selects it instead of the default pick.
func resolveSpace(cmd *cobra.Command, app *app, ref string) error {
	if app.store.State().CurrentAccount == nil {
		return domain.ErrNoAccountSelected
	}

	app.store.FetchSpaces(cmd.Context())
	if err := channelError(app.store, application.OpFetchSpaces); err != nil {
		return err
	}

	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}

	spaces, err := app.store.VisibleSpaces(cmd.Context())
	if err != nil {
		return err
	}

	for _, space := range spaces {
		if space.DID == ref || space.Name == ref {
			selected := space
			app.store.SelectSpace(&selected)
			app.store.FetchSpaceContents(cmd.Context(), selected.ID)
			return channelError(app.store, application.OpFetchSpaceContents)
		}
	}

	return fmt.Errorf("space %q: %w", ref, domain.ErrNotFound)
}

// requireSpace resolves like resolveSpace and fails when nothing is selected.
func requireSpace(cmd *cobra.Command, app *app, ref string) (domain.Space, error) {
	if err := resolveSpace(cmd, app, ref); err != nil {
		return domain.Space{}, err
	}

	selected := app.store.State().SelectedSpace
	if selected == nil {
		return domain.Space{}, domain.ErrNoSpace
	}

	return *selected, nil
}
