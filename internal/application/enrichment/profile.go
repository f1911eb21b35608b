package enrichment

import (
	"context"

	domain "github.com/turtacn/trialscope/internal/domain/enrichment"
)

// Profile is everything the engine knows about one named entity.
type Profile struct {
	Name       string                   `json:"name"`
	Resolved   bool                     `json:"resolved"`
	ID         string                   `json:"chembl_id,omitempty"`
	Tier       string                   `json:"tier,omitempty"`
	Mechanisms []domain.MechanismRecord `json:"mechanisms"`
	Modality   string                   `json:"modality"`
	Approval   domain.ApprovalTier      `json:"approval"`
}

// Profile resolves name, then enriches and classifies the identifier against
// disease. An unresolved name yields a profile of sentinels.
func (e *Engine) Profile(ctx context.Context, name, disease string) (*Profile, error) {
	p := &Profile{
		Name:       name,
		Mechanisms: []domain.MechanismRecord{},
		Modality:   domain.SentinelNA,
		Approval:   domain.ApprovalUnknown,
	}

	cand, ok, err := e.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return p, nil
	}
	p.Resolved = true
	p.ID = cand.ID
	p.Tier = cand.Tier.String()

	mechs, err := e.Mechanisms(ctx, cand.ID)
	if err != nil {
		return nil, err
	}
	if mechs != nil {
		p.Mechanisms = mechs
	}
	if p.Modality, err = e.Modality(ctx, cand.ID); err != nil {
		return nil, err
	}
	if p.Approval, err = e.Classify(ctx, cand.ID, disease); err != nil {
		return nil, err
	}
	return p, nil
}

// SummaryMechanism is one mechanism line of a Summary.
type SummaryMechanism struct {
	ChEMBLID          string `json:"chembl_id"`
	MechanismOfAction string `json:"mechanism_of_action"`
	TargetName        string `json:"target_name"`
}

// Summary lists every mechanism record found for a drug name.
type Summary struct {
	DrugName   string             `json:"drug_name"`
	Mechanisms []SummaryMechanism `json:"mechanisms"`
}

// Summary resolves drugName and lists its mechanism records.
func (e *Engine) Summary(ctx context.Context, drugName string) (*Summary, error) {
	s := &Summary{DrugName: drugName, Mechanisms: []SummaryMechanism{}}

	cand, ok, err := e.Resolve(ctx, drugName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s, nil
	}
	mechs, err := e.Mechanisms(ctx, cand.ID)
	if err != nil {
		return nil, err
	}
	for _, m := range mechs {
		s.Mechanisms = append(s.Mechanisms, SummaryMechanism{
			ChEMBLID:          m.MoleculeID,
			MechanismOfAction: m.Mechanism,
			TargetName:        m.TargetName,
		})
	}
	return s, nil
}
