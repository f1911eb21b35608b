package chembl

import (
	"encoding/json"
	"strconv"
	"strings"
)

type pageMeta struct {
	Limit      int     `json:"limit"`
	Offset     int     `json:"offset"`
	Next       *string `json:"next"`
	TotalCount int     `json:"total_count"`
}

type moleculeSynonymDTO struct {
	MoleculeSynonym string `json:"molecule_synonym"`
	Synonyms        string `json:"synonyms"`
	SynType         string `json:"syn_type"`
}

type moleculeHierarchyDTO struct {
	MoleculeChEMBLID string `json:"molecule_chembl_id"`
	ParentChEMBLID   string `json:"parent_chembl_id"`
}

type moleculeDTO struct {
	MoleculeChEMBLID  string                `json:"molecule_chembl_id"`
	PrefName          *string               `json:"pref_name"`
	MoleculeType      *string               `json:"molecule_type"`
	FirstApproval     *int                  `json:"first_approval"`
	MoleculeSynonyms  []moleculeSynonymDTO  `json:"molecule_synonyms"`
	MoleculeHierarchy *moleculeHierarchyDTO `json:"molecule_hierarchy"`
}

type moleculeListDTO struct {
	Molecules []moleculeDTO `json:"molecules"`
	PageMeta  pageMeta      `json:"page_meta"`
}

type mechanismDTO struct {
	MoleculeChEMBLID  string  `json:"molecule_chembl_id"`
	MechanismOfAction *string `json:"mechanism_of_action"`
	TargetChEMBLID    *string `json:"target_chembl_id"`
	ActionType        *string `json:"action_type"`
}

type mechanismListDTO struct {
	Mechanisms []mechanismDTO `json:"mechanisms"`
	PageMeta   pageMeta       `json:"page_meta"`
}

type activityDTO struct {
	TargetChEMBLID *string `json:"target_chembl_id"`
}

type activityListDTO struct {
	Activities []activityDTO `json:"activities"`
}

type componentSynonymDTO struct {
	ComponentSynonym string `json:"component_synonym"`
	SynType          string `json:"syn_type"`
}

type targetComponentDTO struct {
	TargetComponentSynonyms []componentSynonymDTO `json:"target_component_synonyms"`
}

type targetDTO struct {
	TargetChEMBLID   string               `json:"target_chembl_id"`
	PrefName         *string              `json:"pref_name"`
	TargetType       *string              `json:"target_type"`
	TargetComponents []targetComponentDTO `json:"target_components"`
}

type targetListDTO struct {
	Targets  []targetDTO `json:"targets"`
	PageMeta pageMeta    `json:"page_meta"`
}

type indicationRefDTO struct {
	RefType string `json:"ref_type"`
	RefID   string `json:"ref_id"`
	RefText string `json:"ref_text"`
}

type drugIndicationDTO struct {
	MoleculeChEMBLID string             `json:"molecule_chembl_id"`
	EFOTerm          *string            `json:"efo_term"`
	MeSHHeading      *string            `json:"mesh_heading"`
	MaxPhaseForInd   phaseValue         `json:"max_phase_for_ind"`
	IndicationRefs   []indicationRefDTO `json:"indication_refs"`
}

type drugIndicationListDTO struct {
	DrugIndications []drugIndicationDTO `json:"drug_indications"`
	PageMeta        pageMeta            `json:"page_meta"`
}

// phaseValue accepts the phase as a JSON number, a numeric string such as
// "4.0", or null. Anything unparsable leaves it unset.
type phaseValue struct {
	value *float64
}

func (p *phaseValue) UnmarshalJSON(data []byte) error {
	p.value = nil
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		raw = strings.TrimSpace(s)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		p.value = &f
	}
	return nil
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
