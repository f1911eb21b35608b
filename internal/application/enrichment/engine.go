// Package enrichment is the resolution and enrichment engine. It resolves free
// text names to knowledge-base identifiers through an ordered cascade of match
// tiers, enriches identifiers with mechanism, target and approval data, and
// degrades every lookup failure to a sentinel except a rate-limit signal,
// which is returned so the caller can pause the whole run.
//
// The engine is sequential and holds no cache: identical lookups issued twice
// query the knowledge base twice.
package enrichment

import (
	domain "github.com/turtacn/trialscope/internal/domain/enrichment"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/trialscope/pkg/errors"
)

// sourceLabel tags engine log entries and degraded-lookup metrics.
const sourceLabel = "knowledge_base"

// Degrade reasons.
const (
	reasonNotFound  = "not_found"
	reasonTransient = "transient"
	reasonMalformed = "malformed"
)

// Engine runs resolution and enrichment against a KnowledgeBase.
type Engine struct {
	kb      domain.KnowledgeBase
	tiers   []domain.MatchTier
	logger  logging.Logger
	metrics *prometheus.AppMetrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records degraded lookups and approval tiers on m.
func WithMetrics(m *prometheus.AppMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTiers replaces the resolution cascade.
func WithTiers(tiers ...domain.MatchTier) Option {
	return func(e *Engine) {
		if len(tiers) > 0 {
			e.tiers = append([]domain.MatchTier(nil), tiers...)
		}
	}
}

// NewEngine returns an Engine over kb using domain.DefaultTiers.
func NewEngine(kb domain.KnowledgeBase, opts ...Option) *Engine {
	e := &Engine{
		kb:     kb,
		tiers:  domain.DefaultTiers,
		logger: logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("enrichment")
	return e
}

// degrade absorbs a lookup failure. It returns err unchanged when err is a
// rate-limit signal and nil otherwise, after logging the failure.
func (e *Engine) degrade(op string, err error, fields ...logging.Field) error {
	if errors.IsRateLimited(err) {
		return err
	}

	reason := reasonTransient
	switch {
	case errors.IsNotFound(err):
		reason = reasonNotFound
	case errors.IsCode(err, errors.CodeDataSourceParseError):
		reason = reasonMalformed
	}
	e.metrics.RecordDegraded(sourceLabel, op, reason)

	all := make([]logging.Field, 0, len(fields)+4)
	all = append(all, logging.Source(sourceLabel), logging.Op(op), logging.String("reason", reason))
	all = append(all, fields...)
	all = append(all, logging.Err(err))
	if reason == reasonNotFound {
		e.logger.Debug("lookup returned no entity", all...)
	} else {
		e.logger.Warn("lookup degraded", all...)
	}
	return nil
}
