package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/cipherdrop/internal/client/services"
	"github.com/dmitrijs2005/cipherdrop/internal/filex"
)

func newSendCmd(a *App) *cobra.Command {
	var (
		opts        services.SendOptions
		askPassword bool
	)

	cmd := &cobra.Command{
		Use:   "send <file>",
		Short: "Encrypt a file and print its share link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if askPassword && opts.Password == "" {
				pw, err := GetNewPassword(a.reader, a.errOut)
				if err != nil {
					return err
				}
				opts.Password = pw
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			link, err := services.NewSender(a.api, a.log).SendFile(ctx, args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, link)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.ExpiryHours, "expires", "e", 24, "hours until the share expires")
	cmd.Flags().BoolVarP(&opts.DeleteOnDownload, "delete-on-download", "d", false, "delete the file after its first download")
	cmd.Flags().StringVar(&opts.Password, "password", "", "protect the link with a password")
	cmd.Flags().BoolVarP(&askPassword, "ask-password", "p", false, "prompt for a password")
	return cmd
}

func newReceiveCmd(a *App) *cobra.Command {
	var (
		password string
		output   string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "receive <link>",
		Short: "Download and decrypt a shared file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			link := args[0]
			needs, err := services.NeedsPassword(link)
			if err != nil {
				return err
			}
			if needs && password == "" {
				if password, err = GetPassword(a.reader, "Password", a.errOut); err != nil {
					return err
				}
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			name, plaintext, err := services.NewReceiver(a.api, a.log).ReceiveShare(ctx, link, password)
			if err != nil {
				return err
			}
			return a.save(name, plaintext, output, force)
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "password of a protected link")
	addOutputFlags(cmd, &output, &force)
	return cmd
}

func addOutputFlags(cmd *cobra.Command, output *string, force *bool) {
	cmd.Flags().StringVarP(output, "output", "o", "", `output path, "-" for stdout (default: the original file name)`)
	cmd.Flags().BoolVarP(force, "force", "f", false, "overwrite an existing file")
}

// save writes data to output, or to the base of name in the working
// directory. Server-supplied names never pick the directory.
func (a *App) save(name string, data []byte, output string, force bool) error {
	if output == "-" {
		_, err := a.out.Write(data)
		return err
	}
	if output == "" {
		output = filepath.Base(filepath.Clean("/" + name))
		if output == "/" || output == "." {
			output = "download"
		}
	}
	if err := filex.WriteFileSafe(output, data, force); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "saved %s (%d bytes)\n", output, len(data))
	return nil
}
