package enrichment

import (
	"context"
	"strings"

	domain "github.com/turtacn/trialscope/internal/domain/enrichment"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
)

// Indications returns the indication records of moleculeID; nil when the
// lookup degraded.
func (e *Engine) Indications(ctx context.Context, moleculeID string) ([]domain.IndicationRecord, error) {
	recs, err := e.kb.Indications(ctx, moleculeID)
	if err != nil {
		return nil, e.degrade("drug_indication", err, logging.String("id", moleculeID))
	}
	return recs, nil
}

// Classify returns the approval tier of moleculeID for disease. A molecule
// with no indication records, or whose indication lookup degraded, is
// Unknown.
func (e *Engine) Classify(ctx context.Context, moleculeID, disease string) (domain.ApprovalTier, error) {
	if strings.TrimSpace(disease) == "" {
		return domain.ApprovalUnknown, nil
	}
	recs, err := e.Indications(ctx, moleculeID)
	if err != nil {
		return domain.ApprovalUnknown, err
	}
	tier := domain.ClassifyIndications(disease, recs)
	e.metrics.RecordApproval(tier.String())
	e.logger.Debug("classified approval",
		logging.String("id", moleculeID), logging.String("disease", disease),
		logging.Int("indications", len(recs)), logging.String("tier", tier.String()))
	return tier, nil
}
