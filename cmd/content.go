package cmd

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newContentCmd(opts *rootOptions) *cobra.Command {
	var spaceRef string

	cmd := &cobra.Command{
		Use:   "content",
		Short: "List, upload and remove content in a space",
	}
	cmd.PersistentFlags().StringVar(&spaceRef, "space", "", "Space DID or name (default: the account's first space)")

	cmd.AddCommand(
		newContentListCmd(opts, &spaceRef),
		newContentUploadCmd(opts, &spaceRef),
		newContentRemoveCmd(opts, &spaceRef),
	)

	return cmd
}

func newContentListCmd(opts *rootOptions, spaceRef *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the newest uploads of the space",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, app *app) error {
			if _, err := requireSpace(cmd, app, *spaceRef); err != nil {
				return err
			}

			for _, content := range app.store.State().Contents() {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n",
					content.CID,
					humanize.Bytes(content.Size),
					content.UploadedAt.UTC().Format("2006-01-02 15:04:05"),
					content.GatewayURL,
				)
			}

			return nil
		}),
	}
}

func newContentUploadCmd(opts *rootOptions, spaceRef *string) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file to the space",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, app *app) error {
			space, err := requireSpace(cmd, app, *spaceRef)
			if err != nil {
				return err
			}

			file, err := readFile(args[0], name)
			if err != nil {
				return err
			}

			root, err := app.store.UploadToSpace(cmd.Context(), space.ID, file)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", root, domain.GatewayURLWithScheme(app.cfg.GatewayScheme, root.String(), app.cfg.GatewayHost))
			return err
		}),
	}

	cmd.Flags().StringVar(&name, "name", "", "File name to store (default: the base name of <file>)")

	return cmd
}

func newContentRemoveCmd(opts *rootOptions, spaceRef *string) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <cid>",
		Aliases: []string{"remove"},
		Short:   "Remove an upload and its blocks from the space",
		Args:    cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, app *app) error {
			space, err := requireSpace(cmd, app, *spaceRef)
			if err != nil {
				return err
			}

			if err := app.store.DeleteFromSpace(cmd.Context(), space.ID, args[0]); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return err
		}),
	}
}

func readFile(path string, name string) (domain.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.File{}, fmt.Errorf("read %s: %w", path, err)
	}
	if name == "" {
		name = filepath.Base(path)
	}

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return domain.File{Name: name, ContentType: contentType, Data: data}, nil
}
