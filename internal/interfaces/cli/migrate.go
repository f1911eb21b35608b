package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/trialscope/pkg/errors"
)

// NewMigrateCmd builds the results-store schema commands.
func NewMigrateCmd(f Factories) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the results-store schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd, f, func(m Migrator) error {
					if err := m.Up(); err != nil {
						return err
					}
					return printStatus(cmd, m)
				})
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations (default 1 step)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n < 1 {
						return errors.InvalidParam("steps must be a positive integer")
					}
					steps = n
				}
				return withMigrator(cmd, f, func(m Migrator) error {
					if err := m.Rollback(steps); err != nil {
						return err
					}
					return printStatus(cmd, m)
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd, f, func(m Migrator) error {
					return printStatus(cmd, m)
				})
			},
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the schema version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil || v < 0 {
					return errors.InvalidParam("version must be a non-negative integer")
				}
				return withMigrator(cmd, f, func(m Migrator) error {
					if err := m.Force(v); err != nil {
						return err
					}
					return printStatus(cmd, m)
				})
			},
		},
	)
	return cmd
}

func withMigrator(cmd *cobra.Command, f Factories, fn func(Migrator) error) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if f.Migrator == nil {
		return errors.Internal("migrator factory is not configured")
	}
	ctx, cancel := commandContext(cmd, cc)
	defer cancel()

	m, err := f.Migrator(ctx, cc)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

type migrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

func (s migrationStatus) String() string {
	if s.Dirty {
		return fmt.Sprintf("schema version %d (dirty)", s.Version)
	}
	return fmt.Sprintf("schema version %d", s.Version)
}

func printStatus(cmd *cobra.Command, m Migrator) error {
	v, dirty, err := m.Status()
	if err != nil {
		return err
	}
	return PrintResult(cmd, migrationStatus{Version: v, Dirty: dirty})
}
