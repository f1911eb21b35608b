package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/trialscope/internal/application/enrichment"
	"github.com/turtacn/trialscope/internal/infrastructure/export"
)

// NewSummaryCmd builds the command that writes every mechanism record of a
// drug to a JSON file.
func NewSummaryCmd(f Factories) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "summary <drug>",
		Short: "Write the mechanism records of a drug to a JSON summary",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			drug := strings.TrimSpace(strings.Join(args, " "))
			return withRuntime(cmd, f, func(ctx context.Context, cc *CLIContext, rt *Runtime) error {
				var sum *enrichment.Summary
				err := guarded(ctx, cc, rt, "summary:"+strings.ToLower(drug), func(ctx context.Context) error {
					var err error
					sum, err = rt.Pipelines.Summary(ctx, drug)
					return err
				})
				if err != nil {
					return err
				}

				path := out
				if path == "" {
					path = filepath.Join(cc.Config.Pipeline.OutputDir, "summary.json")
				}
				if err := export.WriteJSON(path, sum); err != nil {
					return err
				}
				return PrintResult(cmd, summaryView{Summary: sum, File: path})
			})
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "summary file (default: <output-dir>/summary.json)")
	return cmd
}

type summaryView struct {
	*enrichment.Summary
	File string `json:"file"`
}

func (v summaryView) String() string {
	if len(v.Mechanisms) == 0 {
		return fmt.Sprintf("No mechanism records found for %s (written to %s)", v.DrugName, v.File)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Wrote %d mechanism records for %s to %s", len(v.Mechanisms), v.DrugName, v.File)
	for _, m := range v.Mechanisms {
		fmt.Fprintf(&sb, "\n  %s  %s  %s", m.ChEMBLID, m.MechanismOfAction, m.TargetName)
	}
	return sb.String()
}

func (v summaryView) TableHeaders() []string {
	return []string{"chembl_id", "mechanism_of_action", "target_name"}
}

func (v summaryView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Mechanisms))
	for _, m := range v.Mechanisms {
		rows = append(rows, []string{m.ChEMBLID, m.MechanismOfAction, m.TargetName})
	}
	return rows
}

// NewApprovalYearCmd builds the command that prints a drug's first approval
// year.
func NewApprovalYearCmd(f Factories) *cobra.Command {
	return &cobra.Command{
		Use:   "approval-year <drug>",
		Short: "Print the first approval year of a drug",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			drug := strings.TrimSpace(strings.Join(args, " "))
			return withRuntime(cmd, f, func(ctx context.Context, cc *CLIContext, rt *Runtime) error {
				view := approvalYearView{Drug: drug}
				err := guarded(ctx, cc, rt, "approval-year:"+strings.ToLower(drug), func(ctx context.Context) error {
					year, ok, err := rt.Pipelines.ApprovalYear(ctx, drug)
					if ok {
						view.Year = &year
					}
					return err
				})
				if err != nil {
					return err
				}
				return PrintResult(cmd, view)
			})
		},
	}
}

type approvalYearView struct {
	Drug string `json:"drug"`
	Year *int   `json:"first_approval"`
}

func (v approvalYearView) String() string {
	if v.Year == nil {
		return v.Drug + ": NA"
	}
	return fmt.Sprintf("%s: %d", v.Drug, *v.Year)
}
