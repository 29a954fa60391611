package cmd

import (
	"fmt"
	"strings"

	"github.com/bnema/storacha-profile-cli/internal/application"
	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newAccountCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage locally known accounts",
	}

	cmd.AddCommand(
		newAccountListCmd(opts),
		newAccountAddCmd(opts),
		newAccountSwitchCmd(opts),
		newAccountRemoveCmd(opts),
	)

	return cmd
}

func newAccountListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known accounts",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, app *app) error {
			state := app.store.State()
			for _, account := range state.Accounts {
				marker := " "
				if state.CurrentAccount != nil && state.CurrentAccount.ID == account.ID {
					marker = "*"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\t%s\t%s\n", marker, account.ID, account.Email, account.AccountDID)
			}

			return nil
		}),
	}
}

func newAccountAddCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <email>",
		Short: "Remember an account without logging in",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, app *app) error {
			email := strings.TrimSpace(args[0])
			if err := domain.ValidateEmail(email); err != nil {
				return err
			}

			app.store.AddAccount(cmd.Context(), domain.Account{
				ID:         domain.AccountIDFromEmail(email),
				Email:      email,
				AccountDID: domain.MailtoDID(email),
				CreatedAt:  app.now().UTC(),
			})

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", domain.AccountIDFromEmail(email))
			return err
		}),
	}
}

func newAccountSwitchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <email|id>",
		Short: "Make a known account current",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, app *app) error {
			id := resolveAccountRef(app.store.State(), args[0])
			app.store.SwitchAccount(cmd.Context(), id)

			// The switch itself only fails when the account did not become
			// current; anything left in the channel after that came from
			// space discovery.
			state := app.store.State()
			if state.CurrentAccount == nil || state.CurrentAccount.ID != id {
				if err := channelError(app.store, application.OpSwitchAccount); err != nil {
					return err
				}
				return fmt.Errorf("%s: %w", args[0], domain.ErrAccountNotFound)
			}

			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Switched to %s\n", state.CurrentAccount.Email); err != nil {
				return err
			}
			if msg := state.ErrorFor(application.OpFetchSpaces); msg != "" {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", msg)
			}

			return nil
		}),
	}
}

func newAccountRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <email|id>",
		Short: "Forget a known account",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, app *app) error {
			id := resolveAccountRef(app.store.State(), args[0])
			if !knowsAccount(app.store.State(), id) {
				return fmt.Errorf("%s: %w", args[0], domain.ErrAccountNotFound)
			}

			app.store.RemoveAccount(cmd.Context(), id)
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
			return err
		}),
	}
}

// resolveAccountRef accepts either an account id or the account's email.
func resolveAccountRef(state application.State, ref string) domain.AccountID {
	ref = strings.TrimSpace(ref)
	for _, account := range state.Accounts {
		if string(account.ID) == ref || strings.EqualFold(account.Email, ref) {
			return account.ID
		}
	}

	return domain.AccountIDFromEmail(ref)
}

func knowsAccount(state application.State, id domain.AccountID) bool {
	for _, account := range state.Accounts {
		if account.ID == id {
			return true
		}
	}

	return false
}
