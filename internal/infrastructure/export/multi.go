package export

import (
	"context"
	"strings"

	"github.com/turtacn/trialscope/internal/domain/result"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/trialscope/pkg/errors"
)

// Uploader copies a local file to remote storage and returns its object key.
type Uploader interface {
	UploadFile(ctx context.Context, path string) (string, error)
}

// UploadingSink writes through a file sink and then uploads the file.
type UploadingSink struct {
	file     FileSink
	uploader Uploader
	logger   logging.Logger
}

// NewUploadingSink wraps file so that every successful write is uploaded.
func NewUploadingSink(file FileSink, uploader Uploader, logger logging.Logger) *UploadingSink {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &UploadingSink{file: file, uploader: uploader, logger: logger.Named("upload_sink")}
}

func (s *UploadingSink) Name() string { return s.file.Name() + "+upload" }

func (s *UploadingSink) Write(ctx context.Context, t *result.Table) error {
	if err := s.file.Write(ctx, t); err != nil {
		return err
	}
	key, err := s.uploader.UploadFile(ctx, s.file.Path())
	if err != nil {
		return errors.Wrap(err, errors.CodeStorageError, "upload export").WithDetail(s.file.Path())
	}
	s.logger.Info("export uploaded", logging.String("path", s.file.Path()), logging.String("key", key))
	return nil
}

// MultiSink writes a table to every sink in order. A failing sink does not
// stop the others; the failures are reported together.
type MultiSink struct {
	sinks   []result.Sink
	logger  logging.Logger
	metrics *prometheus.AppMetrics
}

var _ result.Sink = (*MultiSink)(nil)

// NewMultiSink returns a sink fanning out to sinks. Nil entries are skipped.
func NewMultiSink(logger logging.Logger, metrics *prometheus.AppMetrics, sinks ...result.Sink) *MultiSink {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	kept := make([]result.Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &MultiSink{sinks: kept, logger: logger.Named("sinks"), metrics: metrics}
}

func (m *MultiSink) Name() string { return "multi" }

// Sinks returns the wrapped sinks.
func (m *MultiSink) Sinks() []result.Sink { return m.sinks }

func (m *MultiSink) Write(ctx context.Context, t *result.Table) error {
	var (
		failed []string
		first  error
	)
	for _, s := range m.sinks {
		err := s.Write(ctx, t)
		m.metrics.RecordSinkWrite(s.Name(), err)
		if err != nil {
			m.logger.Error("sink write failed",
				logging.String("sink", s.Name()), logging.String("table", t.Name), logging.Err(err))
			failed = append(failed, s.Name())
			if first == nil {
				first = err
			}
			continue
		}
		m.logger.Debug("sink written", logging.String("sink", s.Name()), logging.Int("rows", t.Len()))
	}
	if first != nil {
		return errors.New(errors.CodeStorageError, "sink write failed").
			WithDetail(strings.Join(failed, ",")).WithCause(first)
	}
	return nil
}
