package enrichment

import "context"

// KnowledgeBase is the set of molecule and target lookups the engine consumes.
//
// Implementations return errors from pkg/errors: CodeNotFound for a missing
// entity, CodeDataSourceRateLimited when the source asks callers to back off,
// CodeDataSourceUnavailable for other non-success responses and transport
// failures, and CodeDataSourceParseError for undecodable bodies. An empty
// result is not an error.
type KnowledgeBase interface {
	// SearchMolecules returns molecule identifiers matching name under tier,
	// in source order.
	SearchMolecules(ctx context.Context, name string, tier MatchTier) ([]string, error)

	// Molecule returns molecule detail.
	Molecule(ctx context.Context, id string) (*Molecule, error)

	// MechanismsForMolecule returns mechanism records of a molecule.
	MechanismsForMolecule(ctx context.Context, moleculeID string) ([]Mechanism, error)

	// MechanismsForTarget returns mechanism records acting on a target.
	MechanismsForTarget(ctx context.Context, targetID string) ([]Mechanism, error)

	// FirstActivityTarget returns the target of the molecule's first activity
	// record. ok is false when there are no activity records.
	FirstActivityTarget(ctx context.Context, moleculeID string) (targetID string, ok bool, err error)

	// Target returns target detail.
	Target(ctx context.Context, id string) (*Target, error)

	// SearchTargetsByGeneSymbol returns target identifiers whose component
	// synonym equals symbol, case-insensitively.
	SearchTargetsByGeneSymbol(ctx context.Context, symbol string) ([]string, error)

	// Indications returns the drug indications of a molecule.
	Indications(ctx context.Context, moleculeID string) ([]IndicationRecord, error)
}

// DiseaseNormalizer maps free-text disease names to a controlled-vocabulary
// term. ok is false when the vocabulary has no entry.
type DiseaseNormalizer interface {
	NormalizeDisease(ctx context.Context, disease string) (term string, ok bool, err error)
}

// DrugMentionExtractor turns free-text intervention descriptions into drug
// names.
type DrugMentionExtractor interface {
	ExtractDrugs(ctx context.Context, interventions string) ([]string, error)
}
