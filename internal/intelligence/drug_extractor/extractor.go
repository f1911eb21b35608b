// Package drug_extractor turns free-text trial intervention lists into core
// drug names using a conversational model with a fixed few-shot prompt.
package drug_extractor

import (
	"context"

	"github.com/turtacn/trialscope/internal/domain/enrichment"
	"github.com/turtacn/trialscope/internal/domain/trial"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/pkg/errors"
)

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Extraction is the extractor output for one trial.
type Extraction struct {
	NCTID             string   `json:"nct_id"`
	OriginalDrugNames string   `json:"original_drug_names"`
	ExtractedDrugs    []string `json:"extracted_drugs"`
}

// Extractor implements enrichment.DrugMentionExtractor.
type Extractor struct {
	generator Generator
	logger    logging.Logger
}

var _ enrichment.DrugMentionExtractor = (*Extractor)(nil)

// NewExtractor returns an Extractor backed by generator.
func NewExtractor(generator Generator, logger logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Extractor{generator: generator, logger: logger.Named("drug_extractor")}
}

// ExtractDrugs returns the drug names the model finds in interventions.
// An empty model answer yields an empty, non-nil slice.
func (e *Extractor) ExtractDrugs(ctx context.Context, interventions string) ([]string, error) {
	prompt, err := BuildPrompt(interventions)
	if err != nil {
		return nil, err
	}
	resp, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeAIInferenceFailed, "drug_extractor: extract drugs")
	}
	return ParseResponse(resp), nil
}

// ExtractTrials runs ExtractDrugs for every trial in order. A failed
// extraction is logged and yields an empty drug list for that trial; a
// rate-limit signal stops the batch and is returned with the results so far.
func (e *Extractor) ExtractTrials(ctx context.Context, trials []trial.Trial) ([]Extraction, error) {
	out := make([]Extraction, 0, len(trials))
	for i, t := range trials {
		e.logger.Info("extracting drugs",
			logging.Int("row", i+1), logging.Int("total", len(trials)), logging.String("nct_id", t.NCTID))

		drugs, err := e.ExtractDrugs(ctx, t.DrugNames)
		if err != nil {
			if errors.IsRateLimited(err) {
				return out, err
			}
			e.logger.Warn("drug extraction failed",
				logging.Op("extract_drugs"), logging.String("nct_id", t.NCTID), logging.Err(err))
			drugs = []string{}
		}
		out = append(out, Extraction{NCTID: t.NCTID, OriginalDrugNames: t.DrugNames, ExtractedDrugs: drugs})
	}
	e.logger.Info("extraction finished", logging.Int("rows", len(out)))
	return out, nil
}
