package repositories

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/turtacn/trialscope/internal/domain/result"
	"github.com/turtacn/trialscope/internal/infrastructure/database/postgres"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/pkg/errors"
)

const upsertResultQuery = `
	INSERT INTO pipeline_results (pipeline, row_key, data, updated_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (pipeline, row_key)
	DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`

const selectResultsQuery = `
	SELECT data FROM pipeline_results
	WHERE pipeline = $1
	ORDER BY updated_at, row_key`

const insertRunQuery = `
	INSERT INTO pipeline_runs (id, pipeline, input, status, rows, error, started_at, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// ResultRepository stores pipeline rows keyed by (pipeline, row key). A row
// written again under the same key replaces the stored one.
type ResultRepository struct {
	conn *postgres.Connection
	log  logging.Logger
}

var (
	_ result.Sink        = (*ResultRepository)(nil)
	_ result.RunRecorder = (*ResultRepository)(nil)
)

// NewResultRepository binds the results store to conn.
func NewResultRepository(conn *postgres.Connection, log logging.Logger) *ResultRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ResultRepository{conn: conn, log: log.Named("results")}
}

// Name implements result.Sink.
func (r *ResultRepository) Name() string { return "postgres" }

// Write upserts every row of t in one transaction.
func (r *ResultRepository) Write(ctx context.Context, t *result.Table) error {
	if t.Len() == 0 {
		return nil
	}
	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to begin results transaction")
	}
	if err := r.upsertRows(ctx, tx, t); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			r.log.Error("failed to roll back results transaction", logging.Err(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to commit results")
	}
	r.log.Info("results upserted", logging.String("pipeline", t.Name), logging.Int("rows", t.Len()))
	return nil
}

func (r *ResultRepository) upsertRows(ctx context.Context, exec queryExecutor, t *result.Table) error {
	for _, row := range t.Rows {
		data, err := json.Marshal(row)
		if err != nil {
			return errors.Wrap(err, errors.CodeSerialization, "failed to encode result row")
		}
		if _, err := exec.ExecContext(ctx, upsertResultQuery, t.Name, t.KeyOf(row), data); err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "failed to upsert result row").WithDetail(t.Name)
		}
	}
	return nil
}

// Rows returns the stored rows of pipeline, oldest first.
func (r *ResultRepository) Rows(ctx context.Context, pipeline string) ([]result.Row, error) {
	rows, err := r.conn.DB().QueryContext(ctx, selectResultsQuery, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to query results")
	}
	defer rows.Close()

	var out []result.Row
	for rows.Next() {
		row, err := scanResultRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to iterate results")
	}
	return out, nil
}

func scanResultRow(s scanner) (result.Row, error) {
	var data []byte
	if err := s.Scan(&data); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to scan result row")
	}
	row := result.Row{}
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, errors.Wrap(err, errors.CodeSerialization, "failed to decode result row")
	}
	return row, nil
}

// RecordRun implements result.RunRecorder.
func (r *ResultRepository) RecordRun(ctx context.Context, run *result.Run) error {
	var errText sql.NullString
	if run.Error != "" {
		errText = sql.NullString{String: run.Error, Valid: true}
	}
	_, err := r.conn.DB().ExecContext(ctx, insertRunQuery,
		run.ID, run.Pipeline, run.Input, run.Status, run.Rows, errText, run.StartedAt, run.FinishedAt)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to record pipeline run")
	}
	return nil
}
