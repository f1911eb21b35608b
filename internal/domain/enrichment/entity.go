// Package enrichment holds the data model and the pure decision rules of the
// resolution, enrichment and aggregation engine: keyword extraction,
// two-level aggregation and indication term overlap. Knowledge-base access is
// expressed through the ports in interfaces.go.
package enrichment

import (
	"strconv"
	"strings"
)

// Sentinel values stand in for genuinely missing fields.
const (
	// SentinelUnknown is used for mechanism text, target names and keywords.
	SentinelUnknown = "unknown"
	// SentinelNA is used for aggregated columns and pipeline output.
	SentinelNA = "NA"
)

// IsSentinel reports whether v is empty or one of the sentinels,
// case-insensitively.
func IsSentinel(v string) bool {
	t := strings.TrimSpace(v)
	return t == "" || strings.EqualFold(t, SentinelUnknown) || strings.EqualFold(t, SentinelNA)
}

// MatchField is the molecule attribute a search tier matches against.
type MatchField int

const (
	FieldPrefName MatchField = iota
	// FieldSynonym is the normalized synonym field.
	FieldSynonym
	// FieldMoleculeSynonym is the synonym as recorded on the molecule.
	FieldMoleculeSynonym
)

func (f MatchField) String() string {
	switch f {
	case FieldPrefName:
		return "pref_name"
	case FieldSynonym:
		return "synonym"
	case FieldMoleculeSynonym:
		return "molecule_synonym"
	default:
		return "field(" + strconv.Itoa(int(f)) + ")"
	}
}

// MatchMode selects exact or substring matching. Both are case-insensitive.
type MatchMode int

const (
	ModeExact MatchMode = iota
	ModePartial
)

func (m MatchMode) String() string {
	if m == ModePartial {
		return "partial"
	}
	return "exact"
}

// MatchTier is one step of the resolution cascade.
type MatchTier struct {
	Field MatchField
	Mode  MatchMode
}

func (t MatchTier) String() string {
	return t.Mode.String() + ":" + t.Field.String()
}

// DefaultTiers is the resolution cascade: exact preferred name, exact on both
// synonym fields, then the same three as substring matches.
var DefaultTiers = []MatchTier{
	{Field: FieldPrefName, Mode: ModeExact},
	{Field: FieldSynonym, Mode: ModeExact},
	{Field: FieldMoleculeSynonym, Mode: ModeExact},
	{Field: FieldPrefName, Mode: ModePartial},
	{Field: FieldSynonym, Mode: ModePartial},
	{Field: FieldMoleculeSynonym, Mode: ModePartial},
}

// CandidateIdentifier is a resolved knowledge-base identifier and the tier
// that produced it.
type CandidateIdentifier struct {
	ID   string    `json:"id"`
	Tier MatchTier `json:"-"`
}

// Provenance records which source produced a MechanismRecord.
type Provenance string

const (
	ProvenancePrimary  Provenance = "mechanism"
	ProvenanceFallback Provenance = "activity"
)

// MechanismRecord is one (molecule, mechanism, target) triple.
// TargetID is empty when the source recorded no target.
type MechanismRecord struct {
	MoleculeID string     `json:"chembl_id"`
	Mechanism  string     `json:"mechanism_of_action"`
	TargetID   string     `json:"target_chembl_id,omitempty"`
	TargetName string     `json:"target_name"`
	Provenance Provenance `json:"provenance"`
}

// HasKnownTarget reports whether the record carries a usable target name.
func (r MechanismRecord) HasKnownTarget() bool {
	return !IsSentinel(r.TargetName)
}

// HasKnownMechanism reports whether the record carries mechanism text.
func (r MechanismRecord) HasKnownMechanism() bool {
	return !IsSentinel(r.Mechanism)
}

// ShortForm renders "<target>: <keyword>", with "NA" as the keyword when the
// mechanism text is missing. ok is false when the target name is unknown.
func (r MechanismRecord) ShortForm() (string, bool) {
	if !r.HasKnownTarget() {
		return "", false
	}
	if !r.HasKnownMechanism() {
		return r.TargetName + ": " + SentinelNA, true
	}
	return r.TargetName + ": " + Keyword(r.Mechanism), true
}

// IndicationRecord is one drug indication from the knowledge base.
type IndicationRecord struct {
	EFOTerm     string
	MeSHHeading string
	// RefTexts are free-text reference snippets.
	RefTexts []string
	// Phase is the raw max_phase_for_ind value; nil when absent.
	Phase *float64
}

// DisplayName is the EFO term, else the MeSH heading, else SentinelNA.
func (r IndicationRecord) DisplayName() string {
	if strings.TrimSpace(r.EFOTerm) != "" {
		return r.EFOTerm
	}
	if strings.TrimSpace(r.MeSHHeading) != "" {
		return r.MeSHHeading
	}
	return SentinelNA
}

// CandidateTexts returns the non-empty texts compared against a disease name.
func (r IndicationRecord) CandidateTexts() []string {
	out := make([]string, 0, 2+len(r.RefTexts))
	for _, t := range append([]string{r.EFOTerm, r.MeSHHeading}, r.RefTexts...) {
		if strings.TrimSpace(t) != "" {
			out = append(out, t)
		}
	}
	return out
}

// IsApprovedPhase reports whether the record's phase equals 4.
func (r IndicationRecord) IsApprovedPhase() bool {
	return r.Phase != nil && *r.Phase == 4
}

// ApprovalTier classifies a drug-indication pair.
type ApprovalTier int

const (
	ApprovalUnknown ApprovalTier = iota
	ApprovalNotApproved
	ApprovalApproved
)

func (a ApprovalTier) String() string {
	switch a {
	case ApprovalApproved:
		return "Approved"
	case ApprovalNotApproved:
		return "Not Approved"
	default:
		return "Unknown"
	}
}

// MarshalText renders the tier as its display string.
func (a ApprovalTier) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// TierForPhase classifies a single indication by phase alone: phase 4 is
// Approved, any other present phase NotApproved, absent Unknown.
func TierForPhase(r IndicationRecord) ApprovalTier {
	if r.Phase == nil {
		return ApprovalUnknown
	}
	if r.IsApprovedPhase() {
		return ApprovalApproved
	}
	return ApprovalNotApproved
}

// Molecule is the subset of molecule detail the engine consumes.
type Molecule struct {
	ID            string
	ParentID      string
	PrefName      string
	MoleculeType  string
	FirstApproval int
	Synonyms      []string
}

// ComponentSynonym is one synonym of a target component.
type ComponentSynonym struct {
	Synonym string
	SynType string
}

// SynTypeGeneSymbol is the synonym type tag of a gene symbol.
const SynTypeGeneSymbol = "GENE_SYMBOL"

// Target is the subset of target detail the engine consumes.
type Target struct {
	ID         string
	PrefName   string
	TargetType string
	// Synonyms lists component synonyms in source order across components.
	Synonyms []ComponentSynonym
}

// GeneSymbol returns the first GENE_SYMBOL synonym.
func (t Target) GeneSymbol() (string, bool) {
	for _, s := range t.Synonyms {
		if s.SynType == SynTypeGeneSymbol && strings.TrimSpace(s.Synonym) != "" {
			return s.Synonym, true
		}
	}
	return "", false
}

// Mechanism is one raw mechanism-of-action record.
type Mechanism struct {
	MoleculeID        string
	MechanismOfAction string
	TargetID          string
}
