package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Log in to an account by email confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, app *app) error {
			email := args[0]
			if err := domain.ValidateEmail(email); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Check the inbox of %s and click the confirmation link.\n", email)
			login := func(ctx context.Context) error { return app.store.Login(ctx, email) }

			var err error
			if quiet {
				err = login(cmd.Context())
			} else {
				err = runWithSpinner(cmd.Context(), cmd.ErrOrStderr(), "Waiting for email confirmation...", login)
			}
			if errors.Is(err, domain.ErrNoAccountAfterLogin) {
				return fmt.Errorf("%w (sign up at https://console.storacha.network)", err)
			}
			if err != nil {
				return err
			}

			state := app.store.State()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", state.CurrentAccount.Email, state.CurrentAccount.AccountDID)
			if !state.PaymentPlanSelected {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No payment plan selected yet; uploads stay unavailable until one is.")
				return nil
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Plan: %s\n", domain.PlanLabel(state.PlanProduct))
			return err
		}),
	}

	cmd.Flags().BoolVar(&quiet, "quiet", false, "Do not show a spinner while waiting")

	return cmd
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out of the current account",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, app *app) error {
			current := app.store.State().CurrentAccount
			app.store.Logout(cmd.Context())
			if current == nil {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Signed out of %s\n", current.Email)
			return err
		}),
	}
}
