// Package cli provides the cipherdrop command tree.
package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dmitrijs2005/cipherdrop/internal/client/api"
	"github.com/dmitrijs2005/cipherdrop/internal/client/config"
	"github.com/dmitrijs2005/cipherdrop/internal/client/repositories/requests"
	"github.com/dmitrijs2005/cipherdrop/internal/client/services"
	"github.com/dmitrijs2005/cipherdrop/internal/common"
	"github.com/dmitrijs2005/cipherdrop/internal/filex"
	"github.com/dmitrijs2005/cipherdrop/internal/logging"
)

const (
	appName       = "cipherdrop"
	defaultDBFile = "client.db"
)

// Version is set by the build.
var Version = "dev"

// App carries what commands share: configuration, I/O and the lazily built
// API client and local database.
type App struct {
	config  *config.Config
	reader  *bufio.Reader
	out     io.Writer
	errOut  io.Writer
	verbose bool

	log      logging.Logger
	closeLog func()
	api      *api.Client
	db       *sql.DB
}

func NewApp(c *config.Config, in io.Reader, out, errOut io.Writer) *App {
	return &App{config: c, reader: bufio.NewReader(in), out: out, errOut: errOut, log: logging.Nop(), closeLog: func() {}}
}

// NewRootCmd creates the root command.
func NewRootCmd(a *App) *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "End-to-end encrypted file sharing",
		Long: `cipherdrop ` + Version + `
Encrypts files locally and shares them through a cipherdrop server.
Keys travel only in the part of the link after '#', which never reaches
the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.Close()
		},
	}

	config.BindFlags(root.PersistentFlags(), a.config)
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log protocol steps to stderr")

	root.AddCommand(
		newSendCmd(a),
		newReceiveCmd(a),
		newRequestCmd(a),
		newDriveCmd(a),
		newTokenCmd(a),
	)
	return root
}

func (a *App) setup() error {
	if a.verbose {
		l, closeLog, err := logging.New(a.config.LogBackend, a.errOut)
		if err != nil {
			return err
		}
		a.log, a.closeLog = l, closeLog
	}

	opts := []api.Option{
		api.WithRetries(a.config.Retries),
		api.WithLogger(a.log),
	}
	if a.config.Token != "" {
		opts = append(opts, api.WithToken(a.config.Token))
	}
	if f, ok := a.errOut.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		opts = append(opts, api.WithProgress(newProgress(a.errOut)))
	}
	a.api = api.New(a.config.ServerURL, opts...)
	return nil
}

// Close releases the local database and flushes the logger.
func (a *App) Close() {
	if a.db != nil {
		_ = a.db.Close()
		a.db = nil
	}
	a.closeLog()
}

// commandContext bounds one command by the configured timeout.
func (a *App) commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if a.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.Timeout)
}

func (a *App) requests(ctx context.Context) (*services.Requests, error) {
	if a.db == nil {
		path := a.config.DBPath
		if path == "" {
			dir, err := filex.DataDir(appName)
			if err != nil {
				return nil, err
			}
			path = filepath.Join(dir, defaultDBFile)
		}
		db, err := requests.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		a.db = db
	}
	return services.NewRequests(a.api, requests.NewSQLiteRepository(a.db), a.log), nil
}

// UserMessage renders err for the terminal. Protocol errors show their
// message only, so a bad password reads "incorrect password or corrupted
// file" rather than a wrapped chain.
func UserMessage(err error) string {
	var e *common.Error
	if errors.As(err, &e) && e.Kind != common.KindUnexpected {
		return e.Message
	}
	return err.Error()
}
