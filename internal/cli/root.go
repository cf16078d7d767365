// Package cli implements the activerow command line: init, insert, update,
// get and bulk-insert against a configured SQLite or PostgreSQL store.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/activerow/pkg/activerow"
	"github.com/mesh-intelligence/activerow/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	verbose   bool
}

var flags rootFlags

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	flags = rootFlags{}

	root := &cobra.Command{
		Use:   "activerow",
		Short: "Insert, update and read rows through the activerow engine",
		Long: `activerow maps table rows to records with dirty tracking, validation
and RETURNING-aware statement generation.

Tables listed in config.yaml get their resource name, required fields and
touch column from there. Any other table is opened with defaults.`,
		Version:       activerow.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: ./.activerow or the user config dir)")
	pf.StringVar(&flags.dataDir, "data-dir", "", "SQLite data directory (overrides config.yaml)")
	pf.BoolVar(&flags.jsonMode, "json", false, "print rows as JSON")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log generated statements to stderr")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newInsertCmd(),
		newUpdateCmd(),
		newGetCmd(),
		newBulkInsertCmd(),
	)
	return root
}

// Execute runs the root command and exits the process.
func Execute() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "activerow:", err)
		return exitCode(err)
	}
	return exitSuccess
}

// cliError carries the exit code for an error.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

// userError marks bad input: unknown columns, validation failures,
// missing rows.
func userError(err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: exitUserError, err: err}
}

// sysError marks failures of the environment: unreadable config, store
// connection errors.
func sysError(err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: exitSysError, err: err}
}

func exitCode(err error) int {
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	if errors.Is(err, types.ErrStoreExecution) {
		return exitSysError
	}
	return exitUserError
}

// classify picks the exit code for an error returned by the engine.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, types.ErrValidationFailed),
		errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrUnknownColumn),
		errors.Is(err, types.ErrBatchColumnMismatch),
		errors.Is(err, types.ErrTableNotFound):
		return userError(err)
	}
	return sysError(err)
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if flags.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
