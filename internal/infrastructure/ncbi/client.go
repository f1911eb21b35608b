// Package ncbi normalizes disease names to MeSH headings through the NCBI
// E-utilities esearch endpoint.
package ncbi

import (
	"context"
	"encoding/xml"
	"net/url"
	"strings"

	"github.com/turtacn/trialscope/internal/config"
	"github.com/turtacn/trialscope/internal/domain/enrichment"
	"github.com/turtacn/trialscope/internal/infrastructure/httpclient"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/trialscope/pkg/errors"
)

// SourceName labels NCBI in logs and metrics.
const SourceName = "ncbi"

const meshTermsField = "MeSH Terms"

// Client is an enrichment.DiseaseNormalizer backed by the MeSH database.
type Client struct {
	http   *httpclient.Client
	apiKey string
	email  string
	logger logging.Logger
}

var _ enrichment.DiseaseNormalizer = (*Client)(nil)

// NewClient builds a Client from cfg. A 429 without Retry-After reports
// cfg.RateLimitRetry as the wait.
func NewClient(cfg config.NCBIConfig, logger logging.Logger, metrics *prometheus.AppMetrics) (*Client, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	hc, err := httpclient.New(SourceName, cfg.BaseURL,
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithRateLimit(cfg.RPS, 1),
		httpclient.WithDefaultRetryAfter(cfg.RateLimitRetry),
		httpclient.WithAccept("application/xml"),
		httpclient.WithLogger(logger),
		httpclient.WithMetrics(metrics),
	)
	if err != nil {
		return nil, err
	}
	return &Client{http: hc, apiKey: cfg.APIKey, email: cfg.Email, logger: logger.With(logging.Source(SourceName))}, nil
}

type eSearchResult struct {
	XMLName  xml.Name  `xml:"eSearchResult"`
	Count    int       `xml:"Count"`
	TermSets []termSet `xml:"TranslationStack>TermSet"`
}

type termSet struct {
	Term  string `xml:"Term"`
	Field string `xml:"Field"`
}

// NormalizeDisease returns the MeSH heading esearch maps disease to.
// ok is false when the translation carries no MeSH Terms entry.
func (c *Client) NormalizeDisease(ctx context.Context, disease string) (string, bool, error) {
	disease = strings.TrimSpace(disease)
	if disease == "" {
		return "", false, nil
	}

	q := url.Values{}
	q.Set("db", "mesh")
	q.Set("term", disease)
	q.Set("retmode", "xml")
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	if c.email != "" {
		q.Set("email", c.email)
		q.Set("tool", "trialscope")
	}

	body, err := c.http.Get(ctx, "esearch", "esearch.fcgi", q)
	if err != nil {
		return "", false, err
	}
	term, ok, err := ParseMeSHTerm(body)
	if err != nil {
		return "", false, err
	}
	if !ok {
		c.logger.Debug("no MeSH term for disease", logging.String("disease", disease))
	}
	return term, ok, nil
}

// ParseMeSHTerm extracts the first "MeSH Terms" entry of an esearch
// translation stack, with quotes and the field tag stripped.
func ParseMeSHTerm(body []byte) (string, bool, error) {
	var res eSearchResult
	if err := xml.Unmarshal(body, &res); err != nil {
		return "", false, errors.Wrap(err, errors.CodeDataSourceParseError, "ncbi: decode esearch response")
	}
	for _, ts := range res.TermSets {
		if strings.TrimSpace(ts.Field) != meshTermsField {
			continue
		}
		term := strings.ReplaceAll(ts.Term, `"`, "")
		term = strings.ReplaceAll(term, "[MeSH Terms]", "")
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		return term, true, nil
	}
	return "", false, nil
}
