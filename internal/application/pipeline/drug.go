package pipeline

import (
	"context"
	"strings"

	domain "github.com/turtacn/trialscope/internal/domain/enrichment"
	"github.com/turtacn/trialscope/internal/domain/result"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
)

// Drug pipeline columns.
const (
	ColMoA    = "moa"
	ColTarget = "target"
)

// drugListSeparator joins the per-drug mechanism and target values of a trial.
const drugListSeparator = "; "

func (s *serviceImpl) Drugs(ctx context.Context, disease string) (*Report, error) {
	disease = strings.ToLower(strings.TrimSpace(disease))
	return s.execute(ctx, PipelineDrugs, disease, func(ctx context.Context, rep *Report) error {
		trials, err := s.fetchTrials(ctx, disease)
		if err != nil {
			return err
		}

		exts, err := s.extractor.ExtractTrials(ctx, trials)
		rep.Extra = append(rep.Extra, extractionTable(exts))
		rep.Table = result.NewTable(PipelineDrugs,
			withColumns(TrialColumns, ColExtractedDrugs, ColMoA, ColTarget), []string{ColNCTID})
		if err != nil {
			return err
		}

		for i, ext := range exts {
			t := trials[i]
			drugs := ext.ExtractedDrugs
			moas := make([]string, 0, len(drugs))
			targets := make([]string, 0, len(drugs))
			for _, name := range drugs {
				moa, target, err := s.moaAndTarget(ctx, name)
				if err != nil {
					return err
				}
				moas = append(moas, moa)
				targets = append(targets, target)
			}

			row := trialRow(t)
			row[ColExtractedDrugs] = strings.Join(drugs, domain.InnerSeparator)
			row[ColMoA] = strings.Join(moas, drugListSeparator)
			row[ColTarget] = strings.Join(targets, drugListSeparator)
			rep.Table.Append(row)
			s.logger.Debug("trial enriched", logging.String("nct_id", t.NCTID), logging.Int("drugs", len(drugs)))
		}
		return nil
	})
}

// moaAndTarget resolves name and picks one mechanism and target for it: the
// first record with both known, else the first record, else sentinels.
func (s *serviceImpl) moaAndTarget(ctx context.Context, name string) (string, string, error) {
	cand, ok, err := s.engine.Resolve(ctx, name)
	if err != nil {
		return "", "", err
	}
	if !ok {
		return domain.SentinelNA, domain.SentinelNA, nil
	}
	recs, err := s.engine.Mechanisms(ctx, cand.ID)
	if err != nil {
		return "", "", err
	}
	moa, target := pickMechanism(recs)
	return moa, target, nil
}

func pickMechanism(recs []domain.MechanismRecord) (string, string) {
	for _, r := range recs {
		if r.HasKnownMechanism() && r.HasKnownTarget() {
			return r.Mechanism, r.TargetName
		}
	}
	if len(recs) > 0 {
		return orNA(recs[0].Mechanism), orNA(recs[0].TargetName)
	}
	return domain.SentinelNA, domain.SentinelNA
}
