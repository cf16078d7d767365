package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/activerow/internal/paths"
	"github.com/mesh-intelligence/activerow/pkg/types"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the configuration and data directories",
		Long: `Init writes a default config.yaml (unless one exists), creates the data
directory and opens the store once to confirm the configured tables exist.

Without --config-dir or ACTIVEROW_CONFIG_DIR the configuration goes to
./.activerow.`,
		Args: cobra.NoArgs,
		RunE: runInit,
	}
}

func runInit(cmd *cobra.Command, _ []string) error {
	configDir, err := initConfigDir()
	if err != nil {
		return sysError(err)
	}
	dataDir, err := paths.ResolveDataDir(flags.dataDir, "")
	if err != nil {
		return sysError(err)
	}

	written, err := writeDefaultConfig(configDir, types.Config{
		Backend: types.BackendSQLite,
		DataDir: dataDir,
	})
	if err != nil {
		return sysError(err)
	}

	s, err := openSession(cmd, configDir)
	if err != nil {
		return err
	}
	if err := s.close(); err != nil {
		return sysError(err)
	}

	out := cmd.OutOrStdout()
	if written {
		fmt.Fprintf(out, "wrote %s\n", paths.ConfigFile(configDir))
	}
	fmt.Fprintf(out, "activerow initialized (%s)\n", s.cfg.Backend)
	return nil
}

// initConfigDir differs from ResolveConfigDir in its fallback: init creates
// a project-local directory instead of using the user directory.
func initConfigDir() (string, error) {
	if flags.configDir != "" || os.Getenv(paths.EnvConfigDir) != "" {
		return paths.ResolveConfigDir(flags.configDir)
	}
	return paths.LocalConfigDir()
}
