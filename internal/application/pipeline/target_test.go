package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/turtacn/trialscope/internal/domain/enrichment"
	"github.com/turtacn/trialscope/internal/domain/result"
	"github.com/turtacn/trialscope/internal/domain/trial"
	"github.com/turtacn/trialscope/pkg/errors"
)

func targetFixture() *fixture {
	f := newFixture()
	kb := f.kb
	kb.symbols["ABL1"] = []string{"CHEMBL1862"}
	kb.byTarget["CHEMBL1862"] = []domain.Mechanism{
		{MoleculeID: "CHEMBL941", TargetID: "CHEMBL1862"},
		{MoleculeID: "CHEMBL941", TargetID: "CHEMBL1862"},
		{MoleculeID: "CHEMBL999", TargetID: "CHEMBL1862"},
	}
	kb.addTarget("CHEMBL1936", "KIT", "SINGLE PROTEIN")
	kb.mechanisms["CHEMBL941"] = append(kb.mechanisms["CHEMBL941"],
		domain.Mechanism{MoleculeID: "CHEMBL941", MechanismOfAction: "Stem cell growth factor receptor inhibitor", TargetID: "CHEMBL1936"})
	kb.indications["CHEMBL941"] = []domain.IndicationRecord{
		{EFOTerm: "chronic myeloid leukemia", Phase: phase(4)},
		{MeSHHeading: "Gastrointestinal Stromal Tumors", Phase: phase(3)},
		{},
	}

	f.trials.byDrug[drugTrialKey{"imatinib", "chronic myeloid leukemia"}] = []trial.Trial{
		{NCTID: "NCT10", Phase: "PHASE3", OverallStatus: "COMPLETED", Sponsor: "Novartis", InterventionTypes: "DRUG"},
		{NCTID: "NCT11", Phase: "PHASE2"},
		{NCTID: "NCT10", Phase: "PHASE3"},
	}
	f.trials.byDrug[drugTrialKey{"Gleevec", "Gastrointestinal Stromal Tumors"}] = []trial.Trial{{NCTID: "NCT20"}}
	return f
}

func TestTarget(t *testing.T) {
	f := targetFixture()

	rep, err := f.service().Target(context.Background(), "ABL1")
	require.NoError(t, err)
	require.Equal(t, 5, rep.Table.Len())
	rows := rep.Table.Rows

	assert.Equal(t, result.Row{
		ColTargetSymbol: "ABL1", ColDrugName: "imatinib", ColTargetMoA: "ABL1: inhibitor",
		ColIndication: "chronic myeloid leukemia", ColTargetApproval: "Approved", ColTargetModality: "Small molecule",
		ColNCTID: "NCT10", ColPhase: "PHASE3", ColOverallStatus: "COMPLETED", ColSponsor: "Novartis",
		ColSourceClass: "", ColOfficialTitle: "", ColInterventionTypes: "DRUG",
	}, rows[0])
	assert.Equal(t, "NCT11", rows[1][ColNCTID])

	assert.Equal(t, "Gastrointestinal Stromal Tumors", rows[2][ColIndication])
	assert.Equal(t, "Not Approved", rows[2][ColTargetApproval])
	assert.Equal(t, "NCT20", rows[2][ColNCTID])

	assert.Equal(t, "NA", rows[3][ColIndication])
	assert.Equal(t, "Unknown", rows[3][ColTargetApproval])
	assert.Equal(t, "", rows[3][ColNCTID])

	assert.Equal(t, result.Row{
		ColTargetSymbol: "ABL1", ColDrugName: "CHEMBL999", ColTargetMoA: "NA",
		ColIndication: "NA", ColTargetApproval: "NA", ColTargetModality: "NA",
		ColNCTID: "", ColPhase: "", ColOverallStatus: "", ColSponsor: "",
		ColSourceClass: "", ColOfficialTitle: "", ColInterventionTypes: "",
	}, rows[4])

	assert.NotContains(t, f.trials.drugQueries, drugTrialKey{"Imatinib", "Gastrointestinal Stromal Tumors"})
	assert.Contains(t, f.trials.drugQueries, drugTrialKey{"STI-571", "Gastrointestinal Stromal Tumors"})
	assert.NotContains(t, f.trials.drugQueries, drugTrialKey{"Gleevec", "chronic myeloid leukemia"})

	assert.Same(t, rep.Table, f.sinks.tables[PipelineTarget])
	assert.Equal(t, targetKey, rep.Table.KeyColumns)
}

func TestTarget_ChEMBLIDPassesThrough(t *testing.T) {
	f := targetFixture()

	rep, err := f.service().Target(context.Background(), "chembl1862")
	require.NoError(t, err)
	require.Equal(t, 5, rep.Table.Len())
	assert.Equal(t, "chembl1862", rep.Table.Rows[0][ColTargetSymbol])
	assert.Equal(t, "imatinib", rep.Table.Rows[0][ColDrugName])
	assert.Equal(t, "ABL1: inhibitor", rep.Table.Rows[0][ColTargetMoA])
	assert.False(t, f.logger.HasMessage("warn", "no drugs found for target"))
}

func TestTarget_NoDrugsForTarget(t *testing.T) {
	f := targetFixture()

	rep, err := f.service().Target(context.Background(), "CHEMBL0000")
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Table.Len())
	assert.True(t, f.logger.HasMessage("warn", "no drugs found for target"))
}

func TestTarget_UnknownSymbol(t *testing.T) {
	f := targetFixture()

	_, err := f.service().Target(context.Background(), "NOPE1")
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, result.RunFailed, f.runs.runs[0].Status)
}

func TestTarget_TrialQueryFailureDegrades(t *testing.T) {
	f := targetFixture()
	f.trials.drugErr = errors.New(errors.CodeDatabaseError, "timeout")

	rep, err := f.service().Target(context.Background(), "ABL1")
	require.NoError(t, err)
	require.Equal(t, 4, rep.Table.Len())
	for _, r := range rep.Table.Rows {
		assert.Equal(t, "", r[ColNCTID])
	}
	assert.True(t, f.logger.HasMessage("warn", "trial query degraded"))
}

func TestTarget_RateLimited(t *testing.T) {
	f := targetFixture()
	f.kb.errs["indication:CHEMBL999"] = errors.RateLimited(5*time.Second, "429")

	rep, err := f.service().Target(context.Background(), "ABL1")
	assert.True(t, errors.IsRateLimited(err))
	assert.Equal(t, 4, rep.Table.Len())
	assert.Equal(t, result.RunRateLimited, f.runs.runs[0].Status)
}
