package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/trialscope/internal/application/enrichment"
	domain "github.com/turtacn/trialscope/internal/domain/enrichment"
	"github.com/turtacn/trialscope/internal/infrastructure/httpclient"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/pkg/errors"
)

// Lookups is the slice of the enrichment engine served over HTTP.
type Lookups interface {
	Resolve(ctx context.Context, name string) (domain.CandidateIdentifier, bool, error)
	Mechanisms(ctx context.Context, moleculeID string) ([]domain.MechanismRecord, error)
	Classify(ctx context.Context, moleculeID, disease string) (domain.ApprovalTier, error)
	Profile(ctx context.Context, name, disease string) (*enrichment.Profile, error)
	Summary(ctx context.Context, drugName string) (*enrichment.Summary, error)
	FirstApprovalYear(ctx context.Context, name string) (int, bool, error)
}

// Cooldown refuses lookups while an upstream source is cooling down and
// starts a cooldown when a lookup is rate limited.
type Cooldown interface {
	Check(ctx context.Context, sources ...string) error
	Block(ctx context.Context, source string, d time.Duration) error
}

// LookupHandler serves the /api/v1 lookup endpoints.
type LookupHandler struct {
	engine  Lookups
	gate    Cooldown
	sources []string
	logger  logging.Logger
}

// NewLookupHandler creates a LookupHandler. gate may be nil.
func NewLookupHandler(engine Lookups, gate Cooldown, sources []string, logger logging.Logger) *LookupHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &LookupHandler{engine: engine, gate: gate, sources: sources, logger: logger.Named("lookup")}
}

// ResolveResponse is the body of GET /resolve.
type ResolveResponse struct {
	Name     string `json:"name"`
	Resolved bool   `json:"resolved"`
	ID       string `json:"chembl_id"`
	Tier     string `json:"tier,omitempty"`
}

// MechanismsResponse is the body of GET /molecules/:id/mechanisms.
type MechanismsResponse struct {
	ID         string                   `json:"chembl_id"`
	Mechanisms []domain.MechanismRecord `json:"mechanisms"`
}

// ApprovalResponse is the body of GET /molecules/:id/approval.
type ApprovalResponse struct {
	ID       string              `json:"chembl_id"`
	Disease  string              `json:"disease"`
	Approval domain.ApprovalTier `json:"approval"`
}

// ApprovalYearResponse is the body of GET /approval-year.
type ApprovalYearResponse struct {
	Name          string `json:"name"`
	FirstApproval *int   `json:"first_approval"`
}

// Resolve handles GET /resolve?name=.
func (h *LookupHandler) Resolve(c *gin.Context) {
	name, err := requiredQuery(c, "name")
	if err != nil {
		writeAppError(c, err)
		return
	}
	h.serve(c, func(ctx context.Context) (interface{}, error) {
		cand, ok, err := h.engine.Resolve(ctx, name)
		if err != nil {
			return nil, err
		}
		resp := ResolveResponse{Name: name, Resolved: ok, ID: domain.SentinelNA}
		if ok {
			resp.ID = cand.ID
			resp.Tier = cand.Tier.String()
		}
		return resp, nil
	})
}

// Mechanisms handles GET /molecules/:id/mechanisms.
func (h *LookupHandler) Mechanisms(c *gin.Context) {
	id := strings.ToUpper(strings.TrimSpace(c.Param("id")))
	h.serve(c, func(ctx context.Context) (interface{}, error) {
		recs, err := h.engine.Mechanisms(ctx, id)
		if err != nil {
			return nil, err
		}
		if recs == nil {
			recs = []domain.MechanismRecord{}
		}
		return MechanismsResponse{ID: id, Mechanisms: recs}, nil
	})
}

// Approval handles GET /molecules/:id/approval?disease=.
func (h *LookupHandler) Approval(c *gin.Context) {
	id := strings.ToUpper(strings.TrimSpace(c.Param("id")))
	disease, err := requiredQuery(c, "disease")
	if err != nil {
		writeAppError(c, err)
		return
	}
	h.serve(c, func(ctx context.Context) (interface{}, error) {
		tier, err := h.engine.Classify(ctx, id, disease)
		if err != nil {
			return nil, err
		}
		return ApprovalResponse{ID: id, Disease: disease, Approval: tier}, nil
	})
}

// Profile handles GET /profile?name=&disease=. disease is optional.
func (h *LookupHandler) Profile(c *gin.Context) {
	name, err := requiredQuery(c, "name")
	if err != nil {
		writeAppError(c, err)
		return
	}
	disease := strings.TrimSpace(c.Query("disease"))
	h.serve(c, func(ctx context.Context) (interface{}, error) {
		return h.engine.Profile(ctx, name, disease)
	})
}

// Summary handles GET /summary?name=.
func (h *LookupHandler) Summary(c *gin.Context) {
	name, err := requiredQuery(c, "name")
	if err != nil {
		writeAppError(c, err)
		return
	}
	h.serve(c, func(ctx context.Context) (interface{}, error) {
		return h.engine.Summary(ctx, name)
	})
}

// ApprovalYear handles GET /approval-year?name=.
func (h *LookupHandler) ApprovalYear(c *gin.Context) {
	name, err := requiredQuery(c, "name")
	if err != nil {
		writeAppError(c, err)
		return
	}
	h.serve(c, func(ctx context.Context) (interface{}, error) {
		year, ok, err := h.engine.FirstApprovalYear(ctx, name)
		if err != nil {
			return nil, err
		}
		resp := ApprovalYearResponse{Name: name}
		if ok {
			resp.FirstApproval = &year
		}
		return resp, nil
	})
}

// serve runs fn behind the cooldown gate and writes its result as JSON.
func (h *LookupHandler) serve(c *gin.Context, fn func(ctx context.Context) (interface{}, error)) {
	ctx := c.Request.Context()
	if h.gate != nil {
		if err := h.gate.Check(ctx, h.sources...); err != nil {
			writeAppError(c, err)
			return
		}
	}

	body, err := fn(ctx)
	if err != nil {
		h.startCooldown(err)
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, body)
}

func (h *LookupHandler) startCooldown(err error) {
	if h.gate == nil {
		return
	}
	src, ok := httpclient.RateLimitedSource(err)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if berr := h.gate.Block(ctx, src, errors.RetryAfterOf(err)); berr != nil {
		h.logger.Warn("failed to record cooldown", logging.Source(src), logging.Err(berr))
	}
}
