// Package pipeline provides the drug-centric, disease-centric and
// target-centric batch pipelines. Each pipeline gathers its inputs from the
// trial registry, runs them through the shared enrichment engine and emits one
// or more result tables to the configured sinks.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/turtacn/trialscope/internal/application/enrichment"
	domain "github.com/turtacn/trialscope/internal/domain/enrichment"
	"github.com/turtacn/trialscope/internal/domain/result"
	"github.com/turtacn/trialscope/internal/domain/trial"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/trialscope/internal/intelligence/drug_extractor"
	"github.com/turtacn/trialscope/pkg/errors"
)

// Pipeline names. They double as run names and as the names of the primary
// output tables.
const (
	PipelineDrugs   = "extracted_drugs_with_moa_target"
	PipelineDisease = "disease_pipeline"
	PipelineTarget  = "target_pipeline"
	PipelineSummary = "summary"

	// TableExtractions holds the raw model output of the drug pipeline.
	TableExtractions = "llm_extracted_drugs"
)

// Service runs the batch pipelines.
type Service interface {
	// Drugs lists trials for disease with the extracted drugs and, per drug,
	// one mechanism and one target.
	Drugs(ctx context.Context, disease string) (*Report, error)
	// Disease lists trials for disease with aggregated identifiers,
	// mechanisms, targets, modalities and approval tiers per drug.
	Disease(ctx context.Context, disease string) (*Report, error)
	// Target lists drug, indication and trial rows for a target.
	Target(ctx context.Context, target string) (*Report, error)
	// Summary lists every mechanism record of a drug.
	Summary(ctx context.Context, drugName string) (*enrichment.Summary, error)
	// ApprovalYear returns the first approval year of a drug.
	ApprovalYear(ctx context.Context, drugName string) (int, bool, error)
}

// TrialExtractor extracts drug names from the interventions of each trial.
type TrialExtractor interface {
	ExtractTrials(ctx context.Context, trials []trial.Trial) ([]drug_extractor.Extraction, error)
}

// SinkFactory returns the sink a named table is written to; nil skips it.
type SinkFactory func(table string) result.Sink

// Options tunes pipeline behaviour.
type Options struct {
	// RowLimit caps the number of trials processed; zero means all.
	RowLimit int
	// WidenWithMeSH also queries trials for the MeSH term of the disease.
	WidenWithMeSH bool
}

// Deps are the collaborators of the pipeline service. Normalizer, Sinks and
// Runs are optional.
type Deps struct {
	Engine     *enrichment.Engine
	Trials     trial.Repository
	Extractor  TrialExtractor
	Normalizer domain.DiseaseNormalizer
	Sinks      SinkFactory
	Runs       result.RunRecorder
	Logger     logging.Logger
	Metrics    *prometheus.AppMetrics
	Options    Options
}

// Report is the outcome of one pipeline run. Table is the primary output;
// Extra holds auxiliary tables written alongside it.
type Report struct {
	Run   *result.Run
	Table *result.Table
	Extra []*result.Table
}

// Tables returns the auxiliary tables followed by the primary table.
func (r *Report) Tables() []*result.Table {
	out := make([]*result.Table, 0, len(r.Extra)+1)
	out = append(out, r.Extra...)
	if r.Table != nil {
		out = append(out, r.Table)
	}
	return out
}

type serviceImpl struct {
	engine     *enrichment.Engine
	trials     trial.Repository
	extractor  TrialExtractor
	normalizer domain.DiseaseNormalizer
	sinks      SinkFactory
	runs       result.RunRecorder
	logger     logging.Logger
	metrics    *prometheus.AppMetrics
	opts       Options
	now        func() time.Time
}

// NewService returns a pipeline Service.
func NewService(deps Deps) Service {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &serviceImpl{
		engine:     deps.Engine,
		trials:     deps.Trials,
		extractor:  deps.Extractor,
		normalizer: deps.Normalizer,
		sinks:      deps.Sinks,
		runs:       deps.Runs,
		logger:     logger.Named("pipeline"),
		metrics:    deps.Metrics,
		opts:       deps.Options,
		now:        time.Now,
	}
}

// execute runs body as the named pipeline. Tables the body produced are
// written even when it stopped early, so that a rerun after a rate-limit
// pause upserts over the partial output.
func (s *serviceImpl) execute(ctx context.Context, pipeline, input string, body func(ctx context.Context, rep *Report) error) (*Report, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, errors.InvalidParam(pipeline + ": input is required")
	}

	start := s.now()
	rep := &Report{Run: result.NewRun(pipeline, input, start)}
	log := s.logger.With(logging.String("pipeline", pipeline), logging.String("run_id", rep.Run.ID.String()))
	log.Info("pipeline started", logging.String("input", input))

	err := body(ctx, rep)
	if werr := s.write(ctx, rep); werr != nil && err == nil {
		err = werr
	}

	rows := rep.Table.Len()
	status := result.RunSucceeded
	switch {
	case errors.IsRateLimited(err):
		status = result.RunRateLimited
	case err != nil:
		status = result.RunFailed
	}
	rep.Run.Finish(rows, status, err, s.now())
	elapsed := rep.Run.FinishedAt.Sub(start)
	s.metrics.RecordPipelineRun(pipeline, rows, elapsed, err)

	if s.runs != nil {
		if rerr := s.runs.RecordRun(ctx, rep.Run); rerr != nil {
			log.Warn("failed to record run", logging.Err(rerr))
		}
	}

	if err != nil {
		log.Error("pipeline stopped",
			logging.String("status", status), logging.Int("rows", rows), logging.Duration("elapsed", elapsed),
			logging.Duration("retry_after", errors.RetryAfterOf(err)), logging.Err(err))
		return rep, err
	}
	log.Info("pipeline finished", logging.Int("rows", rows), logging.Duration("elapsed", elapsed))
	return rep, nil
}

func (s *serviceImpl) write(ctx context.Context, rep *Report) error {
	if s.sinks == nil {
		return nil
	}
	var first error
	for _, t := range rep.Tables() {
		sink := s.sinks(t.Name)
		if sink == nil {
			continue
		}
		if err := sink.Write(ctx, t); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// fetchTrials returns trials for disease, widened with its MeSH term when
// enabled, capped at the row limit.
func (s *serviceImpl) fetchTrials(ctx context.Context, disease string) ([]trial.Trial, error) {
	trials, err := s.trials.ForCondition(ctx, disease)
	if err != nil {
		return nil, err
	}
	s.logger.Info("fetched trials", logging.String("condition", disease), logging.Int("trials", len(trials)))

	if s.opts.WidenWithMeSH && s.normalizer != nil {
		more, err := s.meshTrials(ctx, disease)
		if err != nil {
			return nil, err
		}
		trials = trial.Merge(trials, more)
	}

	if s.opts.RowLimit > 0 && len(trials) > s.opts.RowLimit {
		s.logger.Info("applying row limit", logging.Int("trials", len(trials)), logging.Int("limit", s.opts.RowLimit))
	}
	return trial.Limit(trials, s.opts.RowLimit), nil
}

func (s *serviceImpl) meshTrials(ctx context.Context, disease string) ([]trial.Trial, error) {
	term, ok, err := s.normalizer.NormalizeDisease(ctx, disease)
	if err != nil {
		if errors.IsRateLimited(err) {
			return nil, err
		}
		s.metrics.RecordDegraded("ncbi", "normalize_disease", errors.GetCode(err).String())
		s.logger.Warn("disease normalization degraded",
			logging.Source("ncbi"), logging.Op("normalize_disease"), logging.String("name", disease), logging.Err(err))
		return nil, nil
	}
	if !ok || domain.EqualFold(term, disease) {
		return nil, nil
	}

	trials, err := s.trials.ForCondition(ctx, strings.ToLower(term))
	if err != nil {
		return nil, err
	}
	s.logger.Info("fetched trials for mesh term", logging.String("term", term), logging.Int("trials", len(trials)))
	return trials, nil
}

func (s *serviceImpl) Summary(ctx context.Context, drugName string) (*enrichment.Summary, error) {
	drugName = strings.TrimSpace(drugName)
	if drugName == "" {
		return nil, errors.InvalidParam("summary: drug name is required")
	}
	start := s.now()
	sum, err := s.engine.Summary(ctx, drugName)
	rows := 0
	if sum != nil {
		rows = len(sum.Mechanisms)
	}
	s.metrics.RecordPipelineRun(PipelineSummary, rows, s.now().Sub(start), err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("summary built", logging.String("drug", drugName), logging.Int("mechanisms", rows))
	return sum, nil
}

func (s *serviceImpl) ApprovalYear(ctx context.Context, drugName string) (int, bool, error) {
	if strings.TrimSpace(drugName) == "" {
		return 0, false, errors.InvalidParam("approval year: drug name is required")
	}
	return s.engine.FirstApprovalYear(ctx, drugName)
}
