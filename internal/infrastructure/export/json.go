package export

import (
	"context"
	"encoding/json"
	"io"

	"github.com/turtacn/trialscope/internal/domain/result"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
)

// JSONSink writes a table as a JSON array of row objects, replacing the file.
type JSONSink struct {
	path   string
	logger logging.Logger
}

var _ FileSink = (*JSONSink)(nil)

// NewJSONSink returns a JSONSink writing to path.
func NewJSONSink(path string, logger logging.Logger) *JSONSink {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &JSONSink{path: path, logger: logger.Named("json_sink")}
}

func (s *JSONSink) Name() string { return "json" }

func (s *JSONSink) Path() string { return s.path }

func (s *JSONSink) Write(ctx context.Context, t *result.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rows := make([]result.Row, 0, t.Len())
	for _, r := range t.Rows {
		full := make(result.Row, len(t.Columns))
		for _, c := range t.Columns {
			full[c] = r[c]
		}
		rows = append(rows, full)
	}
	if err := WriteJSON(s.path, rows); err != nil {
		return err
	}
	s.logger.Info("json written", logging.String("path", s.path), logging.Int("rows", len(rows)))
	return nil
}

// WriteJSON writes v to path as two-space indented JSON.
func WriteJSON(path string, v interface{}) error {
	return writeAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}
