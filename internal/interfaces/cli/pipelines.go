package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/trialscope/internal/application/pipeline"
	"github.com/turtacn/trialscope/internal/infrastructure/httpclient"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/pkg/errors"
)

const (
	runLockTTL   = 2 * time.Hour
	blockTimeout = 5 * time.Second
)

type pipelineRun func(ctx context.Context, svc pipeline.Service, input string) (*pipeline.Report, error)

// NewDrugsCmd builds the drug-centric pipeline command.
func NewDrugsCmd(f Factories) *cobra.Command {
	return newPipelineCmd(f, "drugs <disease>", "List trials for a disease with extracted drugs, mechanism and target",
		pipeline.PipelineDrugs,
		func(ctx context.Context, svc pipeline.Service, input string) (*pipeline.Report, error) {
			return svc.Drugs(ctx, input)
		})
}

// NewDiseaseCmd builds the disease-centric pipeline command.
func NewDiseaseCmd(f Factories) *cobra.Command {
	return newPipelineCmd(f, "disease <disease>", "Aggregate identifiers, mechanisms, targets and approval per trial of a disease",
		pipeline.PipelineDisease,
		func(ctx context.Context, svc pipeline.Service, input string) (*pipeline.Report, error) {
			return svc.Disease(ctx, input)
		})
}

// NewTargetCmd builds the target-centric pipeline command.
func NewTargetCmd(f Factories) *cobra.Command {
	return newPipelineCmd(f, "target <gene-symbol|CHEMBL-id>", "List drugs, indications and trials for a target",
		pipeline.PipelineTarget,
		func(ctx context.Context, svc pipeline.Service, input string) (*pipeline.Report, error) {
			return svc.Target(ctx, input)
		})
}

func newPipelineCmd(f Factories, use, short, name string, run pipelineRun) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := strings.TrimSpace(strings.Join(args, " "))
			return withRuntime(cmd, f, func(ctx context.Context, cc *CLIContext, rt *Runtime) error {
				var rep *pipeline.Report
				err := guarded(ctx, cc, rt, name+":"+strings.ToLower(input), func(ctx context.Context) error {
					var err error
					rep, err = run(ctx, rt.Pipelines, input)
					return err
				})
				if rep != nil {
					if perr := PrintResult(cmd, newRunView(rep, rt.Outputs)); perr != nil && err == nil {
						err = perr
					}
				}
				return err
			})
		},
	}
}

// withRuntime resolves the CLI context, builds the runtime and runs fn.
func withRuntime(cmd *cobra.Command, f Factories, fn func(ctx context.Context, cc *CLIContext, rt *Runtime) error) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd, cc)
	defer cancel()

	if f.Runtime == nil {
		return errors.Internal("runtime factory is not configured")
	}
	rt, err := f.Runtime(ctx, cc)
	if err != nil {
		return err
	}
	defer rt.close()
	return fn(ctx, cc, rt)
}

// guarded runs fn behind the cooldown gate and the run lock. A rate-limit
// error from fn starts a cooldown for the source that raised it.
func guarded(ctx context.Context, cc *CLIContext, rt *Runtime, lockName string, fn func(context.Context) error) error {
	if rt.Gate != nil {
		if err := rt.Gate.Check(ctx, rt.Sources...); err != nil {
			return err
		}
	}
	if rt.Locker != nil {
		unlock, err := rt.Locker.Lock(ctx, lockName, runLockTTL)
		if err != nil {
			return err
		}
		defer func() {
			if err := unlock(context.Background()); err != nil {
				cc.Logger.Warn("failed to release run lock", logging.String("lock", lockName), logging.Err(err))
			}
		}()
	}

	err := fn(ctx)
	if err != nil && errors.IsRateLimited(err) && rt.Gate != nil {
		if src, ok := httpclient.RateLimitedSource(err); ok {
			bctx, cancel := context.WithTimeout(context.Background(), blockTimeout)
			defer cancel()
			if berr := rt.Gate.Block(bctx, src, errors.RetryAfterOf(err)); berr != nil {
				cc.Logger.Warn("failed to record cooldown", logging.Source(src), logging.Err(berr))
			}
		}
	}
	return err
}

// runView is the printable outcome of a pipeline run.
type runView struct {
	Pipeline string   `json:"pipeline"`
	Input    string   `json:"input"`
	RunID    string   `json:"run_id"`
	Status   string   `json:"status"`
	Rows     int      `json:"rows"`
	Elapsed  string   `json:"elapsed"`
	Files    []string `json:"files,omitempty"`

	headers []string
	rows    [][]string
}

func newRunView(rep *pipeline.Report, outputs map[string]string) *runView {
	v := &runView{}
	if rep.Run != nil {
		v.Pipeline = rep.Run.Pipeline
		v.Input = rep.Run.Input
		v.RunID = rep.Run.ID.String()
		v.Status = rep.Run.Status
		v.Rows = rep.Run.Rows
		v.Elapsed = rep.Run.FinishedAt.Sub(rep.Run.StartedAt).Round(time.Millisecond).String()
	}
	for _, t := range rep.Tables() {
		if p, ok := outputs[t.Name]; ok {
			v.Files = append(v.Files, p)
		}
	}
	sort.Strings(v.Files)

	if t := rep.Table; t != nil {
		v.headers = t.Columns
		for _, r := range t.Rows {
			v.rows = append(v.rows, t.Values(r))
		}
	}
	return v
}

func (v *runView) String() string {
	s := fmt.Sprintf("%s %q: %d rows (%s) in %s", v.Pipeline, v.Input, v.Rows, v.Status, v.Elapsed)
	if len(v.Files) > 0 {
		s += "\nwritten: " + strings.Join(v.Files, ", ")
	}
	return s
}

func (v *runView) TableHeaders() []string { return v.headers }

func (v *runView) TableRows() [][]string { return v.rows }
