package enrichment

import (
	"context"
	"strings"

	domain "github.com/turtacn/trialscope/internal/domain/enrichment"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
)

// Mechanisms returns one record per mechanism-of-action entry of moleculeID,
// with target names resolved through TargetName.
//
// When the mechanism source returns no entries, the target of the molecule's
// first activity record is used instead and a single record with mechanism
// "unknown" is emitted. A failed mechanism query is not an empty result and
// does not trigger that fallback.
func (e *Engine) Mechanisms(ctx context.Context, moleculeID string) ([]domain.MechanismRecord, error) {
	mechs, err := e.kb.MechanismsForMolecule(ctx, moleculeID)
	if err != nil {
		return nil, e.degrade("mechanism", err, logging.String("id", moleculeID))
	}

	if len(mechs) == 0 {
		return e.activityFallback(ctx, moleculeID)
	}

	out := make([]domain.MechanismRecord, 0, len(mechs))
	for _, m := range mechs {
		rec := domain.MechanismRecord{
			MoleculeID: moleculeID,
			Mechanism:  strings.TrimSpace(m.MechanismOfAction),
			TargetID:   m.TargetID,
			TargetName: domain.SentinelUnknown,
			Provenance: domain.ProvenancePrimary,
		}
		if rec.Mechanism == "" {
			rec.Mechanism = domain.SentinelUnknown
		}
		if m.TargetID != "" {
			name, err := e.TargetName(ctx, m.TargetID)
			if err != nil {
				return nil, err
			}
			rec.TargetName = name
		}
		out = append(out, rec)
	}
	return out, nil
}

func (e *Engine) activityFallback(ctx context.Context, moleculeID string) ([]domain.MechanismRecord, error) {
	targetID, ok, err := e.kb.FirstActivityTarget(ctx, moleculeID)
	if err != nil {
		return nil, e.degrade("activity", err, logging.String("id", moleculeID))
	}
	if !ok {
		e.logger.Debug("no mechanism or activity records", logging.String("id", moleculeID))
		return nil, nil
	}

	rec := domain.MechanismRecord{
		MoleculeID: moleculeID,
		Mechanism:  domain.SentinelUnknown,
		TargetID:   targetID,
		TargetName: domain.SentinelUnknown,
		Provenance: domain.ProvenanceFallback,
	}
	if targetID != "" {
		name, err := e.TargetName(ctx, targetID)
		if err != nil {
			return nil, err
		}
		rec.TargetName = name
	}
	return []domain.MechanismRecord{rec}, nil
}

// Target fetches target detail; nil when the lookup degraded.
func (e *Engine) Target(ctx context.Context, targetID string) (*domain.Target, error) {
	if strings.TrimSpace(targetID) == "" {
		return nil, nil
	}
	t, err := e.kb.Target(ctx, targetID)
	if err != nil {
		return nil, e.degrade("target", err, logging.String("id", targetID))
	}
	return t, nil
}

// TargetName returns the target's first gene symbol, else its preferred
// name, else "unknown".
func (e *Engine) TargetName(ctx context.Context, targetID string) (string, error) {
	t, err := e.Target(ctx, targetID)
	if err != nil {
		return "", err
	}
	if t == nil {
		return domain.SentinelUnknown, nil
	}
	if sym, ok := t.GeneSymbol(); ok {
		return sym, nil
	}
	if name := strings.TrimSpace(t.PrefName); name != "" {
		return name, nil
	}
	return domain.SentinelUnknown, nil
}

// TargetType returns the target's type, or "NA".
func (e *Engine) TargetType(ctx context.Context, targetID string) (string, error) {
	t, err := e.Target(ctx, targetID)
	if err != nil {
		return "", err
	}
	if t == nil || strings.TrimSpace(t.TargetType) == "" {
		return domain.SentinelNA, nil
	}
	return t.TargetType, nil
}
