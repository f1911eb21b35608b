package pipeline

import (
	"context"
	"strings"

	"github.com/turtacn/trialscope/internal/application/enrichment"
	domain "github.com/turtacn/trialscope/internal/domain/enrichment"
	"github.com/turtacn/trialscope/internal/domain/result"
	"github.com/turtacn/trialscope/internal/domain/trial"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/pkg/errors"
)

// Target pipeline columns.
const (
	ColTargetSymbol   = "Target Symbol"
	ColDrugName       = "Drug Name"
	ColTargetMoA      = "MoA"
	ColIndication     = "Indication"
	ColTargetApproval = "Approval Status"
	ColTargetModality = "Modality"
)

var targetColumns = []string{
	ColTargetSymbol, ColDrugName, ColTargetMoA, ColIndication, ColTargetApproval, ColTargetModality,
	ColNCTID, ColPhase, ColOverallStatus, ColSponsor, ColSourceClass, ColOfficialTitle, ColInterventionTypes,
}

var targetKey = []string{ColTargetSymbol, ColDrugName, ColIndication, ColNCTID}

// drugContext is what the target pipeline knows about one drug before
// looking at its indications.
type drugContext struct {
	ref      enrichment.DrugRef
	moaShort string
	modality string
}

func (s *serviceImpl) Target(ctx context.Context, target string) (*Report, error) {
	target = strings.TrimSpace(target)
	return s.execute(ctx, PipelineTarget, target, func(ctx context.Context, rep *Report) error {
		rep.Table = result.NewTable(PipelineTarget, targetColumns, targetKey)

		targetID, ok, err := s.engine.ResolveTarget(ctx, target)
		if err != nil {
			return err
		}
		if !ok {
			return errors.NotFound("target " + target)
		}
		s.logger.Info("using target", logging.String("input", target), logging.String("target_id", targetID))

		drugs, err := s.engine.DrugsForTarget(ctx, targetID)
		if err != nil {
			return err
		}
		if len(drugs) == 0 {
			s.logger.Warn("no drugs found for target", logging.String("target_id", targetID))
			return nil
		}
		s.logger.Info("found drugs for target", logging.String("target_id", targetID), logging.Int("drugs", len(drugs)))

		for _, ref := range drugs {
			dc, err := s.describeDrug(ctx, ref, targetID)
			if err != nil {
				return err
			}
			if err := s.addTargetRows(ctx, rep.Table, target, dc); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *serviceImpl) describeDrug(ctx context.Context, ref enrichment.DrugRef, targetID string) (drugContext, error) {
	dc := drugContext{ref: ref}
	var err error
	if dc.modality, err = s.engine.Modality(ctx, ref.ID); err != nil {
		return dc, err
	}
	recs, err := s.engine.Mechanisms(ctx, ref.ID)
	if err != nil {
		return dc, err
	}
	shorts := make([]string, 0, len(recs))
	for _, r := range recs {
		if r.TargetID != targetID {
			continue
		}
		if short, ok := r.ShortForm(); ok {
			shorts = append(shorts, short)
		}
	}
	dc.moaShort = domain.Aggregate([][]string{shorts})
	return dc, nil
}

func (s *serviceImpl) addTargetRows(ctx context.Context, t *result.Table, symbol string, dc drugContext) error {
	base := func(indication, approval string) result.Row {
		row := result.Row{
			ColTargetSymbol:   symbol,
			ColDrugName:       dc.ref.Name,
			ColTargetMoA:      dc.moaShort,
			ColIndication:     indication,
			ColTargetApproval: approval,
			ColTargetModality: dc.modality,
		}
		for _, c := range []string{ColNCTID, ColPhase, ColOverallStatus, ColSponsor, ColSourceClass, ColOfficialTitle, ColInterventionTypes} {
			row[c] = ""
		}
		return row
	}

	inds, err := s.engine.Indications(ctx, dc.ref.ID)
	if err != nil {
		return err
	}
	if len(inds) == 0 {
		t.Append(base(domain.SentinelNA, domain.SentinelNA))
		return nil
	}

	for _, ind := range inds {
		name := ind.DisplayName()
		approval := domain.TierForPhase(ind).String()

		trials, err := s.trialsForDrug(ctx, dc.ref, name)
		if err != nil {
			return err
		}
		if len(trials) == 0 {
			t.Append(base(name, approval))
			continue
		}
		for _, tr := range trials {
			row := base(name, approval)
			row[ColNCTID] = tr.NCTID
			row[ColPhase] = tr.Phase
			row[ColOverallStatus] = tr.OverallStatus
			row[ColSponsor] = tr.Sponsor
			row[ColSourceClass] = tr.SourceClass
			row[ColOfficialTitle] = tr.OfficialTitle
			row[ColInterventionTypes] = tr.InterventionTypes
			t.Append(row)
		}
	}
	return nil
}

// trialsForDrug returns trials for the drug and indication, deduplicated by
// nct id. When the preferred name finds none, each molecule synonym is tried
// and their trials are merged.
func (s *serviceImpl) trialsForDrug(ctx context.Context, ref enrichment.DrugRef, indication string) ([]trial.Trial, error) {
	if domain.IsSentinel(indication) {
		return nil, nil
	}
	found := trial.Merge(s.queryDrugTrials(ctx, ref.Name, indication))
	if len(found) > 0 {
		return found, nil
	}

	mol, err := s.engine.Molecule(ctx, ref.ID)
	if err != nil || mol == nil {
		return nil, err
	}
	for _, syn := range mol.Synonyms {
		if strings.TrimSpace(syn) == "" || domain.EqualFold(syn, ref.Name) {
			continue
		}
		found = trial.Merge(found, s.queryDrugTrials(ctx, syn, indication))
	}
	if len(found) > 0 {
		s.logger.Debug("trials found through synonyms",
			logging.String("drug", ref.Name), logging.String("indication", indication), logging.Int("trials", len(found)))
	}
	return found, nil
}

// queryDrugTrials queries the registry; a failed query degrades to no trials.
func (s *serviceImpl) queryDrugTrials(ctx context.Context, drug, indication string) []trial.Trial {
	trials, err := s.trials.ForDrugAndIndication(ctx, drug, indication)
	if err != nil {
		s.metrics.RecordDegraded("aact", "trials_for_drug", errors.GetCode(err).String())
		s.logger.Warn("trial query degraded",
			logging.Source("aact"), logging.Op("trials_for_drug"),
			logging.String("drug", drug), logging.String("indication", indication), logging.Err(err))
		return nil
	}
	return trials
}
