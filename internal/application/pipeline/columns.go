package pipeline

import (
	"strings"

	domain "github.com/turtacn/trialscope/internal/domain/enrichment"
	"github.com/turtacn/trialscope/internal/domain/result"
	"github.com/turtacn/trialscope/internal/domain/trial"
	"github.com/turtacn/trialscope/internal/intelligence/drug_extractor"
)

// Trial column names.
const (
	ColNCTID             = "nct_id"
	ColConditionName     = "condition_name"
	ColPhase             = "phase"
	ColOverallStatus     = "overall_status"
	ColSponsor           = "sponsor"
	ColSourceClass       = "source_class"
	ColOfficialTitle     = "official_title"
	ColDrugNames         = "drug_names"
	ColInterventionTypes = "intervention_types"

	ColOriginalDrugNames = "original_drug_names"
	ColExtractedDrugs    = "extracted_drugs"
)

// TrialColumns is the column layout of a trial row.
var TrialColumns = []string{
	ColNCTID, ColConditionName, ColPhase, ColOverallStatus, ColSponsor,
	ColSourceClass, ColOfficialTitle, ColDrugNames, ColInterventionTypes,
}

// trialRow renders t as a row of TrialColumns.
func trialRow(t trial.Trial) result.Row {
	return result.Row{
		ColNCTID:             t.NCTID,
		ColConditionName:     t.ConditionName,
		ColPhase:             t.Phase,
		ColOverallStatus:     t.OverallStatus,
		ColSponsor:           t.Sponsor,
		ColSourceClass:       t.SourceClass,
		ColOfficialTitle:     t.OfficialTitle,
		ColDrugNames:         t.DrugNames,
		ColInterventionTypes: t.InterventionTypes,
	}
}

func withColumns(base []string, extra ...string) []string {
	out := make([]string, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}

// extractionTable renders model output as the extraction table.
func extractionTable(exts []drug_extractor.Extraction) *result.Table {
	t := result.NewTable(TableExtractions,
		[]string{ColNCTID, ColOriginalDrugNames, ColExtractedDrugs}, []string{ColNCTID})
	for _, e := range exts {
		t.Append(result.Row{
			ColNCTID:             e.NCTID,
			ColOriginalDrugNames: e.OriginalDrugNames,
			ColExtractedDrugs:    strings.Join(e.ExtractedDrugs, domain.InnerSeparator),
		})
	}
	return t
}

// orNA maps empty and sentinel values to SentinelNA.
func orNA(v string) string {
	if domain.IsSentinel(v) {
		return domain.SentinelNA
	}
	return v
}
