package enrichment

import (
	"context"
	"strings"

	domain "github.com/turtacn/trialscope/internal/domain/enrichment"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
)

// Resolve maps name to at most one molecule identifier. Tiers are tried in
// order and the first hit of the first tier with any hits wins; later hits
// and later tiers are never compared. A tier whose query fails counts as zero
// hits. ok is false when every tier is empty.
func (e *Engine) Resolve(ctx context.Context, name string) (domain.CandidateIdentifier, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.CandidateIdentifier{}, false, nil
	}

	for _, tier := range e.tiers {
		ids, err := e.kb.SearchMolecules(ctx, name, tier)
		if err != nil {
			if err := e.degrade("molecule_search", err, logging.String("name", name), logging.String("tier", tier.String())); err != nil {
				return domain.CandidateIdentifier{}, false, err
			}
			continue
		}
		if len(ids) == 0 {
			continue
		}
		e.logger.Debug("resolved name",
			logging.String("name", name), logging.String("id", ids[0]), logging.String("tier", tier.String()), logging.Int("hits", len(ids)))
		return domain.CandidateIdentifier{ID: ids[0], Tier: tier}, true, nil
	}

	e.logger.Info("no identifier for name", logging.String("name", name))
	return domain.CandidateIdentifier{}, false, nil
}

// ResolveTarget maps a gene symbol or target identifier to a target
// identifier. Inputs starting with CHEMBL, in any case, are returned as is.
func (e *Engine) ResolveTarget(ctx context.Context, input string) (string, bool, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", false, nil
	}
	if id := strings.ToUpper(input); strings.HasPrefix(id, "CHEMBL") {
		return id, true, nil
	}

	ids, err := e.kb.SearchTargetsByGeneSymbol(ctx, input)
	if err != nil {
		return "", false, e.degrade("target_search", err, logging.String("name", input))
	}
	if len(ids) == 0 {
		e.logger.Info("no target for symbol", logging.String("name", input))
		return "", false, nil
	}
	return ids[0], true, nil
}
