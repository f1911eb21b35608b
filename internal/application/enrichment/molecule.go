package enrichment

import (
	"context"
	"strings"

	domain "github.com/turtacn/trialscope/internal/domain/enrichment"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
)

// DrugRef is a molecule acting on a target.
type DrugRef struct {
	ID   string `json:"chembl_id"`
	Name string `json:"name"`
}

// Molecule fetches molecule detail; nil when the lookup degraded.
func (e *Engine) Molecule(ctx context.Context, id string) (*domain.Molecule, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	m, err := e.kb.Molecule(ctx, id)
	if err != nil {
		return nil, e.degrade("molecule", err, logging.String("id", id))
	}
	return m, nil
}

// Modality returns the molecule type, or "NA".
func (e *Engine) Modality(ctx context.Context, id string) (string, error) {
	m, err := e.Molecule(ctx, id)
	if err != nil {
		return "", err
	}
	if m == nil || strings.TrimSpace(m.MoleculeType) == "" {
		return domain.SentinelNA, nil
	}
	return m.MoleculeType, nil
}

// FirstApprovalYear looks name up by exact preferred name, follows the
// parent molecule when there is one, and returns its first approval year.
func (e *Engine) FirstApprovalYear(ctx context.Context, name string) (int, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, false, nil
	}
	tier := domain.MatchTier{Field: domain.FieldPrefName, Mode: domain.ModeExact}
	ids, err := e.kb.SearchMolecules(ctx, name, tier)
	if err != nil {
		return 0, false, e.degrade("molecule_search", err, logging.String("name", name))
	}
	if len(ids) == 0 {
		return 0, false, nil
	}

	m, err := e.Molecule(ctx, ids[0])
	if err != nil || m == nil {
		return 0, false, err
	}
	if m.ParentID != "" && m.ParentID != m.ID {
		parent, err := e.Molecule(ctx, m.ParentID)
		if err != nil {
			return 0, false, err
		}
		if parent != nil {
			m = parent
		}
	}
	if m.FirstApproval <= 0 {
		return 0, false, nil
	}
	return m.FirstApproval, true, nil
}

// DrugsForTarget lists the molecules with a mechanism on targetID,
// deduplicated by identifier in source order. Name is the preferred name,
// else the identifier.
func (e *Engine) DrugsForTarget(ctx context.Context, targetID string) ([]DrugRef, error) {
	mechs, err := e.kb.MechanismsForTarget(ctx, targetID)
	if err != nil {
		return nil, e.degrade("mechanism_by_target", err, logging.String("id", targetID))
	}

	seen := make(map[string]struct{}, len(mechs))
	var out []DrugRef
	for _, m := range mechs {
		if m.MoleculeID == "" {
			continue
		}
		if _, dup := seen[m.MoleculeID]; dup {
			continue
		}
		seen[m.MoleculeID] = struct{}{}

		ref := DrugRef{ID: m.MoleculeID, Name: m.MoleculeID}
		mol, err := e.Molecule(ctx, m.MoleculeID)
		if err != nil {
			return nil, err
		}
		if mol != nil && strings.TrimSpace(mol.PrefName) != "" {
			ref.Name = mol.PrefName
		}
		out = append(out, ref)
	}
	return out, nil
}
