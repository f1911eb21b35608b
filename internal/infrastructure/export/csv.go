// Package export writes pipeline tables to local files and fans a table out to
// every configured sink.
package export

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/turtacn/trialscope/internal/domain/result"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/pkg/errors"
)

// FileSink is a sink backed by a file on local disk.
type FileSink interface {
	result.Sink
	Path() string
}

// CSVSink writes a table to a CSV file. When the file already exists and the
// table has key columns, rows are merged by key: an existing row with the same
// key is replaced in place and new keys are appended. Columns already in the
// file keep their position; new columns are appended to the header.
type CSVSink struct {
	path   string
	logger logging.Logger
}

var _ FileSink = (*CSVSink)(nil)

// NewCSVSink returns a CSVSink writing to path.
func NewCSVSink(path string, logger logging.Logger) *CSVSink {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CSVSink{path: path, logger: logger.Named("csv_sink")}
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Path() string { return s.path }

// Write merges t into the file.
func (s *CSVSink) Write(ctx context.Context, t *result.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	merged := t
	if len(t.KeyColumns) > 0 {
		existing, err := ReadCSV(s.path)
		if err != nil {
			return err
		}
		if existing != nil {
			merged = mergeTables(existing, t)
		}
	}

	if err := writeAtomic(s.path, func(w io.Writer) error { return encodeCSV(w, merged) }); err != nil {
		return err
	}
	s.logger.Info("csv written",
		logging.String("path", s.path), logging.Int("rows", merged.Len()), logging.Int("new_rows", t.Len()))
	return nil
}

// ReadCSV loads a CSV file with a header row. A missing file yields nil.
func ReadCSV(path string) (*result.Table, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageError, "open csv").WithDetail(path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSerialization, "parse csv").WithDetail(path)
	}
	if len(records) == 0 {
		return &result.Table{}, nil
	}

	t := &result.Table{Columns: records[0]}
	for _, rec := range records[1:] {
		row := make(result.Row, len(t.Columns))
		for i, c := range t.Columns {
			if i < len(rec) {
				row[c] = rec[i]
			}
		}
		t.Append(row)
	}
	return t, nil
}

// mergeTables returns existing with incoming upserted by incoming's key.
// Rows sharing a key are matched slot by slot: the n-th incoming row with a
// key replaces the n-th existing row with that key. Existing rows beyond the
// incoming count for a replaced key are dropped; incoming rows beyond the
// existing count are appended in incoming order.
func mergeTables(existing, incoming *result.Table) *result.Table {
	out := &result.Table{
		Name:       incoming.Name,
		Columns:    unionColumns(existing.Columns, incoming.Columns),
		KeyColumns: incoming.KeyColumns,
	}

	groups := make(map[string][]result.Row, len(incoming.Rows))
	for _, r := range incoming.Rows {
		k := incoming.KeyOf(r)
		groups[k] = append(groups[k], r)
	}

	used := make(map[string]int, len(groups))
	for _, r := range existing.Rows {
		k := incoming.KeyOf(r)
		group, ok := groups[k]
		if !ok {
			out.Append(r)
			continue
		}
		if n := used[k]; n < len(group) {
			out.Append(group[n])
			used[k] = n + 1
		}
	}

	seen := make(map[string]int, len(groups))
	for _, r := range incoming.Rows {
		k := incoming.KeyOf(r)
		n := seen[k]
		seen[k] = n + 1
		if n >= used[k] {
			out.Append(r)
		}
	}
	return out
}

func unionColumns(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, c := range list {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

func encodeCSV(w io.Writer, t *result.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	for _, r := range t.Rows {
		if err := cw.Write(t.Values(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeAtomic writes through a temporary file in the target directory and
// renames it over path.
func writeAtomic(path string, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.CodeStorageError, "create output directory").WithDetail(dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, errors.CodeStorageError, "create temp file").WithDetail(path)
	}
	defer os.Remove(tmp.Name())

	if err := fill(tmp); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.CodeSerialization, "encode output").WithDetail(path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.CodeStorageError, "close temp file").WithDetail(path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, errors.CodeStorageError, "replace output file").WithDetail(path)
	}
	return nil
}
