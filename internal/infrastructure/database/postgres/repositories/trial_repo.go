package repositories

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/turtacn/trialscope/internal/domain/trial"
	"github.com/turtacn/trialscope/internal/infrastructure/database/postgres"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/trialscope/pkg/errors"
)

const trialSelect = `
	SELECT
		s.nct_id,
		c.downcase_name AS condition_name,
		s.phase,
		s.overall_status,
		s.source AS sponsor,
		s.source_class,
		s.official_title,
		STRING_AGG(i.name, ', ') AS drug_names,
		STRING_AGG(i.intervention_type, ', ') AS intervention_types
	FROM ctgov.conditions c
	JOIN ctgov.studies s ON c.nct_id = s.nct_id
	JOIN ctgov.interventions i ON s.nct_id = i.nct_id
	WHERE c.downcase_name = $1
		AND s.study_type = 'INTERVENTIONAL'
		AND i.intervention_type IN ('DRUG', 'BIOLOGICAL')`

const trialGroupBy = `
	GROUP BY s.nct_id, c.downcase_name, s.phase, s.overall_status, s.source, s.source_class, s.official_title
	ORDER BY s.nct_id`

const (
	conditionQuery         = trialSelect + trialGroupBy
	drugAndIndicationQuery = trialSelect + `
		AND LOWER(i.name) LIKE $2` + trialGroupBy
)

type postgresTrialRepo struct {
	conn    *postgres.Connection
	log     logging.Logger
	metrics *prometheus.AppMetrics
}

// NewPostgresTrialRepo reads trials from an AACT database.
func NewPostgresTrialRepo(conn *postgres.Connection, log logging.Logger, metrics *prometheus.AppMetrics) trial.Repository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &postgresTrialRepo{conn: conn, log: log.Named("aact"), metrics: metrics}
}

func (r *postgresTrialRepo) executor() queryExecutor {
	return r.conn.DB()
}

func (r *postgresTrialRepo) ForCondition(ctx context.Context, condition string) ([]trial.Trial, error) {
	condition = strings.ToLower(strings.TrimSpace(condition))
	if condition == "" {
		return nil, errors.InvalidParam("condition must not be empty")
	}
	return r.query(ctx, "for_condition", conditionQuery, condition)
}

func (r *postgresTrialRepo) ForDrugAndIndication(ctx context.Context, drug, indication string) ([]trial.Trial, error) {
	drug = strings.ToLower(strings.TrimSpace(drug))
	indication = strings.ToLower(strings.TrimSpace(indication))
	if drug == "" || indication == "" {
		return nil, errors.InvalidParam("drug and indication must not be empty")
	}
	return r.query(ctx, "for_drug_and_indication", drugAndIndicationQuery, indication, "%"+drug+"%")
}

func (r *postgresTrialRepo) query(ctx context.Context, name, query string, args ...interface{}) ([]trial.Trial, error) {
	start := time.Now()
	defer func() { r.metrics.RecordTrialQuery(name, time.Since(start)) }()

	rows, err := r.executor().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to query trials").WithDetail(name)
	}
	defer rows.Close()

	var out []trial.Trial
	for rows.Next() {
		t, err := scanTrial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to iterate trials").WithDetail(name)
	}

	r.log.Debug("trial query finished",
		logging.String("query", name), logging.Int("rows", len(out)),
		logging.Duration("took", time.Since(start)))
	return out, nil
}

func scanTrial(s scanner) (*trial.Trial, error) {
	var (
		t                                               trial.Trial
		condition, phase, status, sponsor, class, title sql.NullString
		drugNames, interventionTypes                    sql.NullString
	)
	err := s.Scan(&t.NCTID, &condition, &phase, &status, &sponsor, &class, &title, &drugNames, &interventionTypes)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to scan trial")
	}
	t.ConditionName = condition.String
	t.Phase = phase.String
	t.OverallStatus = status.String
	t.Sponsor = sponsor.String
	t.SourceClass = class.String
	t.OfficialTitle = title.String
	t.DrugNames = drugNames.String
	t.InterventionTypes = interventionTypes.String
	return &t, nil
}
