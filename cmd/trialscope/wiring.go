package main

import (
	"context"
	"path/filepath"

	"github.com/turtacn/trialscope/internal/application/enrichment"
	"github.com/turtacn/trialscope/internal/application/pipeline"
	domain "github.com/turtacn/trialscope/internal/domain/enrichment"
	"github.com/turtacn/trialscope/internal/domain/result"
	"github.com/turtacn/trialscope/internal/infrastructure/chembl"
	"github.com/turtacn/trialscope/internal/infrastructure/database/postgres"
	"github.com/turtacn/trialscope/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/trialscope/internal/infrastructure/database/redis"
	"github.com/turtacn/trialscope/internal/infrastructure/export"
	"github.com/turtacn/trialscope/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/trialscope/internal/infrastructure/ncbi"
	"github.com/turtacn/trialscope/internal/infrastructure/ollama"
	"github.com/turtacn/trialscope/internal/infrastructure/storage/minio"
	"github.com/turtacn/trialscope/internal/intelligence/drug_extractor"
	"github.com/turtacn/trialscope/internal/interfaces/cli"
)

// Upstream sources guarded by the cooldown gate.
var upstreamSources = []string{"chembl", "ncbi", "ollama"}

// buildRuntime wires the clients, stores and sinks named by the config. Only
// the knowledge base is mandatory; the trial database connects on first use.
func buildRuntime(ctx context.Context, cc *cli.CLIContext) (*cli.Runtime, error) {
	cfg := cc.Config
	log := cc.Logger
	var closers closeList

	kb, err := chembl.NewClient(cfg.ChEMBL, log, nil)
	if err != nil {
		return nil, err
	}
	engine := enrichment.NewEngine(kb, enrichment.WithLogger(log))

	llm, err := ollama.NewClient(cfg.LLM, log, nil)
	if err != nil {
		return nil, err
	}
	extractor := drug_extractor.NewExtractor(llm, log)

	var normalizer domain.DiseaseNormalizer
	if cfg.Pipeline.WidenWithMeSH {
		nc, err := ncbi.NewClient(cfg.NCBI, log, nil)
		if err != nil {
			return nil, err
		}
		normalizer = nc
	}

	trials := newLazyTrials(cfg.Database, log)
	closers.add(trials.Close)

	var (
		resultRepo *repositories.ResultRepository
		publisher  *kafka.RowPublisher
		uploader   export.Uploader
	)
	if cfg.Results.Enabled {
		conn, err := postgres.NewConnection("results", cfg.Results, log)
		if err != nil {
			closers.closeAll()
			return nil, err
		}
		closers.add(conn.Close)
		resultRepo = repositories.NewResultRepository(conn, log)
	}
	if cfg.Kafka.Enabled {
		publisher, err = kafka.NewRowPublisher(cfg.Kafka, log)
		if err != nil {
			closers.closeAll()
			return nil, err
		}
		closers.add(publisher.Close)
	}
	if cfg.MinIO.Enabled {
		up, err := minio.NewExportUploader(cfg.MinIO, log)
		if err != nil {
			closers.closeAll()
			return nil, err
		}
		uploader = up
	}

	rt := &cli.Runtime{
		Sources: upstreamSources,
		Outputs: make(map[string]string),
	}
	if cfg.Redis.Enabled {
		rc, err := redis.NewClient(cfg.Redis, log)
		if err != nil {
			closers.closeAll()
			return nil, err
		}
		closers.add(rc.Close)
		rt.Gate = redis.NewCooldownGate(rc, log)
		rt.Locker = runLocker{lock: redis.NewRunLock(rc, log)}
	}

	outputDir := cfg.Pipeline.OutputDir
	for _, name := range []string{pipeline.TableExtractions, pipeline.PipelineDrugs, pipeline.PipelineDisease, pipeline.PipelineTarget} {
		rt.Outputs[name] = filepath.Join(outputDir, name+".csv")
	}
	sinks := func(table string) result.Sink {
		var file export.FileSink = export.NewCSVSink(filepath.Join(outputDir, table+".csv"), log)
		var primary result.Sink = file
		if uploader != nil {
			primary = export.NewUploadingSink(file, uploader, log)
		}
		out := []result.Sink{primary, export.NewJSONSink(filepath.Join(outputDir, table+".json"), log)}
		if resultRepo != nil {
			out = append(out, resultRepo)
		}
		if publisher != nil {
			out = append(out, publisher)
		}
		return export.NewMultiSink(log, nil, out...)
	}

	deps := pipeline.Deps{
		Engine:     engine,
		Trials:     trials,
		Extractor:  extractor,
		Normalizer: normalizer,
		Sinks:      sinks,
		Logger:     log,
		Options: pipeline.Options{
			RowLimit:      cfg.Pipeline.RowLimit,
			WidenWithMeSH: cfg.Pipeline.WidenWithMeSH,
		},
	}
	if resultRepo != nil {
		deps.Runs = resultRepo
	}
	rt.Pipelines = pipeline.NewService(deps)
	rt.Close = closers.closeAll
	return rt, nil
}

// buildMigrator opens the results store and returns its schema migrator.
func buildMigrator(ctx context.Context, cc *cli.CLIContext) (cli.Migrator, error) {
	conn, err := postgres.NewConnection("results", cc.Config.Results, cc.Logger)
	if err != nil {
		return nil, err
	}
	m, err := postgres.NewMigrator(conn.DB(), cc.Logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return m, nil
}

// closeList closes resources in reverse order of acquisition.
type closeList []func() error

func (c *closeList) add(fn func() error) { *c = append(*c, fn) }

func (c *closeList) closeAll() error {
	var first error
	for i := len(*c) - 1; i >= 0; i-- {
		if err := (*c)[i](); err != nil && first == nil {
			first = err
		}
	}
	*c = nil
	return first
}
