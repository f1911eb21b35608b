package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/trialscope/pkg/errors"
)

// NewCooldownCmd builds the commands that inspect and clear upstream
// cooldowns recorded after rate-limit signals.
func NewCooldownCmd(f Factories) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cooldown",
		Short: "Inspect or clear upstream rate-limit cooldowns",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show the remaining cooldown per upstream source",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withGate(cmd, f, func(ctx context.Context, rt *Runtime) error {
					view := cooldownView{}
					for _, src := range rt.Sources {
						d, err := rt.Gate.Remaining(ctx, src)
						if err != nil {
							return err
						}
						view = append(view, cooldownEntry{Source: src, Remaining: d.Round(time.Second).String(), Active: d > 0})
					}
					return PrintResult(cmd, view)
				})
			},
		},
		&cobra.Command{
			Use:   "clear <source>...",
			Short: "Clear the cooldown of one or more upstream sources",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withGate(cmd, f, func(ctx context.Context, rt *Runtime) error {
					for _, src := range args {
						src = strings.ToLower(strings.TrimSpace(src))
						if err := rt.Gate.Clear(ctx, src); err != nil {
							return err
						}
						fmt.Fprintf(cmd.OutOrStdout(), "cleared cooldown for %s\n", src)
					}
					return nil
				})
			},
		},
	)
	return cmd
}

// withGate runs fn against a runtime that has a cooldown gate.
func withGate(cmd *cobra.Command, f Factories, fn func(ctx context.Context, rt *Runtime) error) error {
	return withRuntime(cmd, f, func(ctx context.Context, _ *CLIContext, rt *Runtime) error {
		if rt.Gate == nil {
			return errors.InvalidParam("cooldowns are kept in redis; set redis.enabled")
		}
		return fn(ctx, rt)
	})
}

type cooldownEntry struct {
	Source    string `json:"source"`
	Remaining string `json:"remaining"`
	Active    bool   `json:"active"`
}

type cooldownView []cooldownEntry

func (v cooldownView) String() string {
	lines := make([]string, 0, len(v))
	for _, e := range v {
		state := "clear"
		if e.Active {
			state = e.Remaining
		}
		lines = append(lines, e.Source+": "+state)
	}
	return strings.Join(lines, "\n")
}
