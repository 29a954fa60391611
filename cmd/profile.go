package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bnema/storacha-profile-cli/internal/application"
	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newProfileCmd(opts *rootOptions) *cobra.Command {
	var spaceRef string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show and edit the participant profile stored in a space",
	}
	cmd.PersistentFlags().StringVar(&spaceRef, "space", "", "Space DID or name (default: the account's first space)")

	cmd.AddCommand(
		newProfileShowCmd(opts, &spaceRef),
		newProfileSaveCmd(opts, &spaceRef),
		newProfileDeleteCmd(opts, &spaceRef),
		newProfileHistoryCmd(opts, &spaceRef),
	)

	return cmd
}

// loadProfile resolves the space and its current profile. A missing
// profile leaves State.Profile nil.
func loadProfile(cmd *cobra.Command, app *app, spaceRef string) error {
	if _, err := requireSpace(cmd, app, spaceRef); err != nil {
		return err
	}

	app.store.LoadProfile(cmd.Context())
	return channelError(app.store, application.OpLoadProfile)
}

func newProfileShowCmd(opts *rootOptions, spaceRef *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current profile",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, app *app) error {
			if err := loadProfile(cmd, app, *spaceRef); err != nil {
				return err
			}

			state := app.store.State()
			if state.Profile == nil {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "No profile yet. Create one with `sp profile save --name <name>`.")
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(state.Profile)
			}

			return writeProfile(cmd, *state.Profile, state.ProfileCID)
		}),
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the profile document as JSON")

	return cmd
}

func writeProfile(cmd *cobra.Command, profile domain.Profile, address string) error {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "name:\t%s\n", profile.Name)
	if profile.Bio != "" {
		_, _ = fmt.Fprintf(out, "bio:\t%s\n", profile.Bio)
	}
	if profile.AvatarCID != "" {
		_, _ = fmt.Fprintf(out, "avatar:\t%s\n", profile.AvatarCID)
	}
	for _, name := range sortedKeys(profile.SocialLinks) {
		_, _ = fmt.Fprintf(out, "%s:\t%s\n", name, profile.SocialLinks[name])
	}
	if !profile.UpdatedAt.IsZero() {
		_, _ = fmt.Fprintf(out, "updated:\t%s\n", humanize.Time(profile.UpdatedAt))
	}
	_, err := fmt.Fprintf(out, "address:\t%s\n", address)
	return err
}

func newProfileSaveCmd(opts *rootOptions, spaceRef *string) *cobra.Command {
	var (
		name       string
		bio        string
		avatarPath string
		links      map[string]string
		meta       map[string]string
	)

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save a new profile version",
		Long:  "save writes a new profile.json to the space. Fields not given keep their current values; earlier versions stay in the space.",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, app *app) error {
			if err := loadProfile(cmd, app, *spaceRef); err != nil {
				return err
			}

			now := app.now().UTC()
			profile := domain.Profile{CreatedAt: now}
			if current := app.store.State().Profile; current != nil {
				profile = current.Clone()
			}

			flags := cmd.Flags()
			if flags.Changed("name") {
				profile.Name = strings.TrimSpace(name)
			}
			if flags.Changed("bio") {
				profile.Bio = bio
			}
			profile.SocialLinks = mergeStrings(profile.SocialLinks, links)
			if len(meta) > 0 {
				if profile.Metadata == nil {
					profile.Metadata = map[string]any{}
				}
				for key, value := range meta {
					profile.Metadata[key] = value
				}
			}

			if avatarPath != "" {
				avatar, err := readFile(avatarPath, "")
				if err != nil {
					return err
				}
				address, err := app.store.UploadAvatar(cmd.Context(), avatar)
				if err != nil {
					return err
				}
				profile.AvatarCID = address
			}

			profile.UpdatedAt = now
			profile.Version = domain.ProfileSchemaVersion

			address, err := app.store.SaveProfile(cmd.Context(), profile)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Saved profile %s\n", address)
			return err
		}),
	}

	flags := cmd.Flags()
	flags.StringVar(&name, "name", "", "Display name")
	flags.StringVar(&bio, "bio", "", "Short biography")
	flags.StringVar(&avatarPath, "avatar", "", "Image file to upload as the avatar")
	flags.StringToStringVar(&links, "link", nil, "Social link as name=url (repeatable; empty url removes)")
	flags.StringToStringVar(&meta, "meta", nil, "Metadata entry as key=value (repeatable)")

	return cmd
}

func newProfileDeleteCmd(opts *rootOptions, spaceRef *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Remove the current profile version from the space",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, app *app) error {
			if err := loadProfile(cmd, app, *spaceRef); err != nil {
				return err
			}

			address := app.store.State().ProfileCID
			if err := app.store.DeleteProfile(cmd.Context()); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted profile %s\n", address)
			return err
		}),
	}
}

func newProfileHistoryCmd(opts *rootOptions, spaceRef *string) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List every profile version in the space, newest first",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, app *app) error {
			if _, err := requireSpace(cmd, app, *spaceRef); err != nil {
				return err
			}

			history, err := app.store.ProfileHistory(cmd.Context())
			if err != nil {
				return err
			}

			for _, version := range history {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n",
					version.CID,
					version.InsertedAt.UTC().Format("2006-01-02 15:04:05"),
					version.Profile.Name,
				)
			}

			return nil
		}),
	}
}

// mergeStrings applies updates to base. An empty value deletes the key.
func mergeStrings(base map[string]string, updates map[string]string) map[string]string {
	if len(updates) == 0 {
		return base
	}

	merged := make(map[string]string, len(base)+len(updates))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range updates {
		if strings.TrimSpace(value) == "" {
			delete(merged, key)
			continue
		}
		merged[key] = value
	}

	return merged
}
