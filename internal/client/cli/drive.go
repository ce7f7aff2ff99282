package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/cipherdrop/internal/client/api"
	"github.com/dmitrijs2005/cipherdrop/internal/client/services"
)

func newDriveCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Manage files in your personal drive (requires --token)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.config.Token == "" {
				return errors.New("drive commands need a token: pass --token or set CIPHERDROP_TOKEN")
			}
			return a.setup()
		},
	}
	cmd.AddCommand(
		newDriveUploadCmd(a),
		newDriveListCmd(a),
		newDriveGetCmd(a),
		newDriveRemoveCmd(a),
		newDriveMoveCmd(a),
		newDriveCopyCmd(a),
	)
	return cmd
}

func (a *App) drive() *services.Drive {
	return services.NewDrive(a.api, a.log)
}

func (a *App) printFile(f api.DriveFile) {
	folder := f.FolderID
	if folder == "" {
		folder = "/"
	}
	fmt.Fprintf(a.out, "%s  %s  folder=%s  %d bytes\n", f.ID, f.Name, folder, f.Size)
}

func newDriveUploadCmd(a *App) *cobra.Command {
	var folder string
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			f, err := a.drive().Upload(ctx, args[0], folder)
			if err != nil {
				return err
			}
			a.printFile(f)
			return nil
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "target folder id")
	return cmd
}

func newDriveListCmd(a *App) *cobra.Command {
	var folder string
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List files in a folder",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			listing, err := a.drive().List(ctx, folder)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSIZE\tTYPE\tUPDATED")
			for _, f := range listing.Files {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", f.ID, f.Name, f.Size, f.Type, f.UpdatedAt.Local().Format(time.RFC3339))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "used %d of %d bytes\n", listing.StorageUsed, listing.Quota)
			return nil
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "folder id (default: root)")
	return cmd
}

func newDriveGetCmd(a *App) *cobra.Command {
	var (
		output string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Download a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			name, content, err := a.drive().Get(ctx, args[0])
			if err != nil {
				return err
			}
			return a.save(name, content, output, force)
		},
	}
	addOutputFlags(cmd, &output, &force)
	return cmd
}

func newDriveRemoveCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			if err := a.drive().Remove(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "deleted", args[0])
			return nil
		},
	}
}

func newDriveMoveCmd(a *App) *cobra.Command {
	var name, folder string
	cmd := &cobra.Command{
		Use:   "mv <id>",
		Short: "Rename a file or move it to another folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			var namePtr, folderPtr *string
			if cmd.Flags().Changed("name") {
				namePtr = &name
			}
			if cmd.Flags().Changed("folder") {
				folderPtr = &folder
			}
			f, err := a.drive().Move(ctx, args[0], namePtr, folderPtr)
			if err != nil {
				return err
			}
			a.printFile(f)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new file name")
	cmd.Flags().StringVar(&folder, "folder", "", `target folder id ("" is the root)`)
	return cmd
}

func newDriveCopyCmd(a *App) *cobra.Command {
	var folder string
	cmd := &cobra.Command{
		Use:   "cp <id>",
		Short: "Copy a file; clashing names get a numbered suffix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			var folderPtr *string
			if cmd.Flags().Changed("folder") {
				folderPtr = &folder
			}
			f, err := a.drive().Copy(ctx, args[0], folderPtr)
			if err != nil {
				return err
			}
			a.printFile(f)
			return nil
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "target folder id")
	return cmd
}
