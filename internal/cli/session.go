package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/activerow/internal/paths"
	"github.com/mesh-intelligence/activerow/pkg/activerow"
	"github.com/mesh-intelligence/activerow/pkg/record"
	"github.com/mesh-intelligence/activerow/pkg/types"
)

// session is an attached backend for the duration of one command.
type session struct {
	backend activerow.Backend
	cfg     types.Config
}

// attach resolves the configuration directory and opens a session on it.
func attach(cmd *cobra.Command) (*session, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return nil, sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	return openSession(cmd, configDir)
}

func openSession(cmd *cobra.Command, configDir string) (*session, error) {
	cfg, err := loadConfig(configDir)
	if err != nil {
		return nil, sysError(err)
	}
	b, err := activerow.NewBackend(activerow.Options{Logger: newLogger(cmd.ErrOrStderr())})
	if err != nil {
		return nil, sysError(err)
	}
	if err := b.Attach(cmd.Context(), cfg); err != nil {
		return nil, classify(fmt.Errorf("attach %s: %w", cfg.Backend, err))
	}
	return &session{backend: b, cfg: cfg}, nil
}

// table returns the configured table, or opens name with a default row
// type when config.yaml does not list it. name may be schema-qualified.
func (s *session) table(ctx context.Context, name string) (*record.Table, error) {
	tbl, err := s.backend.GetTable(name)
	if err == nil {
		return tbl, nil
	}
	if !errors.Is(err, types.ErrTableNotFound) {
		return nil, sysError(err)
	}

	spec := types.TableSpec{Name: name}
	if schema, table, ok := strings.Cut(name, "."); ok {
		spec = types.TableSpec{Schema: schema, Name: table}
	}
	tbl, err = s.backend.RegisterTable(ctx, spec, record.RowType{Resource: spec.Name})
	if err != nil {
		return nil, classify(err)
	}
	return tbl, nil
}

func (s *session) close() error {
	return s.backend.Detach()
}
