package pipeline

import (
	"context"
	"strings"

	domain "github.com/turtacn/trialscope/internal/domain/enrichment"
	"github.com/turtacn/trialscope/internal/domain/result"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
)

// Disease pipeline columns.
const (
	ColChEMBLID       = "chembl_id"
	ColMoAShort       = "moa_short"
	ColTargetType     = "target_type"
	ColModality       = "modality"
	ColApprovalStatus = "approval_status"
)

// drugColumns accumulates the per-drug aggregated columns of one trial.
type drugColumns struct {
	ids, moas, shorts, targets, targetTypes, modalities, approvals domain.Column
}

func (c *drugColumns) fill(row result.Row) {
	row[ColChEMBLID] = c.ids.String()
	row[ColMoA] = c.moas.String()
	row[ColMoAShort] = c.shorts.String()
	row[ColTarget] = c.targets.String()
	row[ColTargetType] = c.targetTypes.String()
	row[ColModality] = c.modalities.String()
	row[ColApprovalStatus] = c.approvals.String()
}

func (s *serviceImpl) Disease(ctx context.Context, disease string) (*Report, error) {
	disease = strings.ToLower(strings.TrimSpace(disease))
	return s.execute(ctx, PipelineDisease, disease, func(ctx context.Context, rep *Report) error {
		trials, err := s.fetchTrials(ctx, disease)
		if err != nil {
			return err
		}

		exts, err := s.extractor.ExtractTrials(ctx, trials)
		rep.Table = result.NewTable(PipelineDisease,
			withColumns(TrialColumns, ColExtractedDrugs, ColChEMBLID, ColMoA, ColMoAShort,
				ColTarget, ColTargetType, ColModality, ColApprovalStatus),
			[]string{ColNCTID})
		if err != nil {
			return err
		}

		for i, ext := range exts {
			var cols drugColumns
			for _, name := range ext.ExtractedDrugs {
				if err := s.addDrug(ctx, &cols, name, disease); err != nil {
					return err
				}
			}

			row := trialRow(trials[i])
			row[ColExtractedDrugs] = strings.Join(ext.ExtractedDrugs, domain.InnerSeparator)
			cols.fill(row)
			rep.Table.Append(row)
			s.logger.Debug("trial enriched",
				logging.String("nct_id", ext.NCTID), logging.Int("drugs", len(ext.ExtractedDrugs)))
		}
		return nil
	})
}

// addDrug profiles one drug against disease and adds one entity to every
// column.
func (s *serviceImpl) addDrug(ctx context.Context, cols *drugColumns, name, disease string) error {
	p, err := s.engine.Profile(ctx, name, disease)
	if err != nil {
		return err
	}

	moas := make([]string, 0, len(p.Mechanisms))
	shorts := make([]string, 0, len(p.Mechanisms))
	targets := make([]string, 0, len(p.Mechanisms))
	types := make([]string, 0, len(p.Mechanisms))
	for _, m := range p.Mechanisms {
		moas = append(moas, m.Mechanism)
		targets = append(targets, m.TargetName)
		if short, ok := m.ShortForm(); ok {
			shorts = append(shorts, short)
		}
		if m.TargetID == "" {
			continue
		}
		tt, err := s.engine.TargetType(ctx, m.TargetID)
		if err != nil {
			return err
		}
		types = append(types, tt)
	}

	approval := domain.SentinelNA
	if p.Resolved {
		approval = p.Approval.String()
	}

	cols.ids.Add(p.ID)
	cols.moas.Add(moas...)
	cols.shorts.Add(shorts...)
	cols.targets.Add(targets...)
	cols.targetTypes.Add(types...)
	cols.modalities.Add(p.Modality)
	cols.approvals.Add(approval)
	return nil
}
