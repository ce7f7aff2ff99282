package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newRequestCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Ask someone to send you a file",
	}
	cmd.AddCommand(
		newRequestCreateCmd(a),
		newRequestFulfillCmd(a),
		newRequestStatusCmd(a),
		newRequestFetchCmd(a),
		newRequestListCmd(a),
	)
	return cmd
}

func newRequestCreateCmd(a *App) *cobra.Command {
	var (
		password         string
		askPassword      bool
		deleteOnDownload bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a request and print the upload link",
		Long: `Create a request and print the link to hand to the sender.
The key is kept in the local database. With a password the key is also
stored wrapped on the server, so the file can be fetched from any machine.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if askPassword && password == "" {
				pw, err := GetNewPassword(a.reader, a.errOut)
				if err != nil {
					return err
				}
				password = pw
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			reqs, err := a.requests(ctx)
			if err != nil {
				return err
			}
			created, err := reqs.Create(ctx, password, deleteOnDownload)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "id:      %s\nexpires: %s\nlink:    %s\n",
				created.ID, created.ExpiresAt.Local().Format(time.RFC1123), created.Link)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "also store the key on the server, wrapped with this password")
	cmd.Flags().BoolVarP(&askPassword, "ask-password", "p", false, "prompt for the wrapping password")
	cmd.Flags().BoolVarP(&deleteOnDownload, "delete-on-download", "d", false, "delete the file after the first fetch")
	return cmd
}

func newRequestFulfillCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "fulfill <link> <file>",
		Short: "Encrypt a file and upload it to a request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			reqs, err := a.requests(ctx)
			if err != nil {
				return err
			}
			if err := reqs.Fulfill(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "uploaded")
			return nil
		},
	}
}

func newRequestStatusCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id|link>",
		Short: "Show whether a request has been fulfilled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			reqs, err := a.requests(ctx)
			if err != nil {
				return err
			}
			st, err := reqs.Status(ctx, args[0])
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "status:\t%s\n", st.Status)
			fmt.Fprintf(tw, "expires:\t%s\n", st.ExpiresAt.Local().Format(time.RFC1123))
			if st.File != nil {
				fmt.Fprintf(tw, "file:\t%s (%s, %d bytes)\n", st.File.Name, st.File.Type, st.File.Size)
			}
			if st.FulfilledAt != nil {
				fmt.Fprintf(tw, "fulfilled:\t%s\n", st.FulfilledAt.Local().Format(time.RFC1123))
			}
			if st.DownloadedAt != nil {
				fmt.Fprintf(tw, "downloaded:\t%s\n", st.DownloadedAt.Local().Format(time.RFC1123))
			}
			return tw.Flush()
		},
	}
}

func newRequestFetchCmd(a *App) *cobra.Command {
	var (
		password string
		output   string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "fetch <id|link>",
		Short: "Download and decrypt the file sent to a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			reqs, err := a.requests(ctx)
			if err != nil {
				return err
			}
			has, err := reqs.HasKey(ctx, args[0])
			if err != nil {
				return err
			}
			if !has && password == "" {
				st, err := reqs.Status(ctx, args[0])
				if err != nil {
					return err
				}
				if st.KeyWrap != nil {
					if password, err = GetPassword(a.reader, "Request password", a.errOut); err != nil {
						return err
					}
				}
			}

			name, plaintext, err := reqs.Fetch(ctx, args[0], password)
			if err != nil {
				return err
			}
			return a.save(name, plaintext, output, force)
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "password the key was wrapped with")
	addOutputFlags(cmd, &output, &force)
	return cmd
}

func newRequestListCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List requests whose keys are stored on this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			reqs, err := a.requests(ctx)
			if err != nil {
				return err
			}
			pending, err := reqs.Pending(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tEXPIRES\tDELETE ON DOWNLOAD")
			for _, r := range pending {
				fmt.Fprintf(tw, "%s\t%s\t%t\n", r.ID, r.ExpiresAt.Local().Format(time.RFC3339), r.DeleteOnDownload)
			}
			return tw.Flush()
		},
	}
}
