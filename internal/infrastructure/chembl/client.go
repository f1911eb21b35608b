// Package chembl implements the enrichment knowledge base against the ChEMBL
// REST API (https://www.ebi.ac.uk/chembl/api/data).
package chembl

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/turtacn/trialscope/internal/config"
	"github.com/turtacn/trialscope/internal/domain/enrichment"
	"github.com/turtacn/trialscope/internal/infrastructure/httpclient"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/prometheus"
)

// SourceName labels ChEMBL in logs and metrics.
const SourceName = "chembl"

const (
	defaultPageLimit = 200
	listLimit        = 1000
	maxPages         = 50
)

// Client is a ChEMBL-backed enrichment.KnowledgeBase.
type Client struct {
	http      *httpclient.Client
	pageLimit int
	logger    logging.Logger
}

var _ enrichment.KnowledgeBase = (*Client)(nil)

// NewClient builds a Client from cfg.
func NewClient(cfg config.ChEMBLConfig, logger logging.Logger, metrics *prometheus.AppMetrics) (*Client, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	hc, err := httpclient.New(SourceName, cfg.BaseURL,
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithRateLimit(cfg.RPS, cfg.Burst),
		httpclient.WithRetryMax(cfg.RetryMax),
		httpclient.WithRetryWait(cfg.RetryWaitMin, cfg.RetryWaitMax),
		httpclient.WithUserAgent(cfg.UserAgent),
		httpclient.WithLogger(logger),
		httpclient.WithMetrics(metrics),
	)
	if err != nil {
		return nil, err
	}
	pageLimit := cfg.PageLimit
	if pageLimit <= 0 {
		pageLimit = defaultPageLimit
	}
	return &Client{http: hc, pageLimit: pageLimit, logger: logger.With(logging.Source(SourceName))}, nil
}

// searchFilter returns the molecule.json filter parameter for tier.
func searchFilter(tier enrichment.MatchTier) string {
	var field string
	switch tier.Field {
	case enrichment.FieldSynonym:
		field = "molecule_synonyms__synonym"
	case enrichment.FieldMoleculeSynonym:
		field = "molecule_synonyms__molecule_synonym"
	default:
		field = "pref_name"
	}
	if tier.Mode == enrichment.ModePartial {
		return field + "__icontains"
	}
	return field + "__iexact"
}

// SearchMolecules returns the molecule ids of the first result page in
// source order.
func (c *Client) SearchMolecules(ctx context.Context, name string, tier enrichment.MatchTier) ([]string, error) {
	q := url.Values{}
	q.Set(searchFilter(tier), name)
	q.Set("limit", strconv.Itoa(c.pageLimit))

	var resp moleculeListDTO
	if err := c.http.GetJSON(ctx, "molecule_search", "molecule.json", q, &resp); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.Molecules))
	for _, m := range resp.Molecules {
		if m.MoleculeChEMBLID != "" {
			ids = append(ids, m.MoleculeChEMBLID)
		}
	}
	return ids, nil
}

// Molecule fetches molecule detail.
func (c *Client) Molecule(ctx context.Context, id string) (*enrichment.Molecule, error) {
	var dto moleculeDTO
	if err := c.http.GetJSON(ctx, "molecule", "molecule/"+url.PathEscape(id)+".json", nil, &dto); err != nil {
		return nil, err
	}
	m := &enrichment.Molecule{
		ID:           dto.MoleculeChEMBLID,
		PrefName:     str(dto.PrefName),
		MoleculeType: str(dto.MoleculeType),
	}
	if m.ID == "" {
		m.ID = id
	}
	if dto.FirstApproval != nil {
		m.FirstApproval = *dto.FirstApproval
	}
	if dto.MoleculeHierarchy != nil {
		m.ParentID = dto.MoleculeHierarchy.ParentChEMBLID
	}
	for _, s := range dto.MoleculeSynonyms {
		if v := strings.TrimSpace(s.MoleculeSynonym); v != "" {
			m.Synonyms = append(m.Synonyms, v)
		}
	}
	return m, nil
}

// MechanismsForMolecule lists mechanism records of a molecule.
func (c *Client) MechanismsForMolecule(ctx context.Context, moleculeID string) ([]enrichment.Mechanism, error) {
	return c.mechanisms(ctx, "mechanism_by_molecule", "molecule_chembl_id", moleculeID)
}

// MechanismsForTarget lists mechanism records acting on a target.
func (c *Client) MechanismsForTarget(ctx context.Context, targetID string) ([]enrichment.Mechanism, error) {
	return c.mechanisms(ctx, "mechanism_by_target", "target_chembl_id", targetID)
}

func (c *Client) mechanisms(ctx context.Context, op, key, value string) ([]enrichment.Mechanism, error) {
	var out []enrichment.Mechanism
	err := c.paginate(ctx, op, "mechanism.json", url.Values{key: {value}}, func(q url.Values) (*pageMeta, error) {
		var resp mechanismListDTO
		if err := c.http.GetJSON(ctx, op, "mechanism.json", q, &resp); err != nil {
			return nil, err
		}
		for _, m := range resp.Mechanisms {
			out = append(out, enrichment.Mechanism{
				MoleculeID:        m.MoleculeChEMBLID,
				MechanismOfAction: str(m.MechanismOfAction),
				TargetID:          str(m.TargetChEMBLID),
			})
		}
		return &resp.PageMeta, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FirstActivityTarget returns the target id of the molecule's first activity.
func (c *Client) FirstActivityTarget(ctx context.Context, moleculeID string) (string, bool, error) {
	q := url.Values{}
	q.Set("molecule_chembl_id", moleculeID)
	q.Set("limit", "1")

	var resp activityListDTO
	if err := c.http.GetJSON(ctx, "activity", "activity.json", q, &resp); err != nil {
		return "", false, err
	}
	if len(resp.Activities) == 0 {
		return "", false, nil
	}
	return str(resp.Activities[0].TargetChEMBLID), true, nil
}

// Target fetches target detail. Component synonyms are flattened in source
// order across components.
func (c *Client) Target(ctx context.Context, id string) (*enrichment.Target, error) {
	var dto targetDTO
	if err := c.http.GetJSON(ctx, "target", "target/"+url.PathEscape(id)+".json", nil, &dto); err != nil {
		return nil, err
	}
	t := &enrichment.Target{
		ID:         dto.TargetChEMBLID,
		PrefName:   str(dto.PrefName),
		TargetType: str(dto.TargetType),
	}
	if t.ID == "" {
		t.ID = id
	}
	for _, comp := range dto.TargetComponents {
		for _, s := range comp.TargetComponentSynonyms {
			t.Synonyms = append(t.Synonyms, enrichment.ComponentSynonym{Synonym: s.ComponentSynonym, SynType: s.SynType})
		}
	}
	return t, nil
}

// SearchTargetsByGeneSymbol returns the first target whose component synonym
// equals symbol case-insensitively.
func (c *Client) SearchTargetsByGeneSymbol(ctx context.Context, symbol string) ([]string, error) {
	q := url.Values{}
	q.Set("target_components__target_component_synonyms__component_synonym__iexact", symbol)
	q.Set("limit", "1")

	var resp targetListDTO
	if err := c.http.GetJSON(ctx, "target_search", "target.json", q, &resp); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.Targets))
	for _, t := range resp.Targets {
		if t.TargetChEMBLID != "" {
			ids = append(ids, t.TargetChEMBLID)
		}
	}
	return ids, nil
}

// Indications lists the drug indications of a molecule.
func (c *Client) Indications(ctx context.Context, moleculeID string) ([]enrichment.IndicationRecord, error) {
	const op = "drug_indication"
	var out []enrichment.IndicationRecord
	err := c.paginate(ctx, op, "drug_indication.json", url.Values{"molecule_chembl_id": {moleculeID}}, func(q url.Values) (*pageMeta, error) {
		var resp drugIndicationListDTO
		if err := c.http.GetJSON(ctx, op, "drug_indication.json", q, &resp); err != nil {
			return nil, err
		}
		for _, d := range resp.DrugIndications {
			rec := enrichment.IndicationRecord{
				EFOTerm:     str(d.EFOTerm),
				MeSHHeading: str(d.MeSHHeading),
				Phase:       d.MaxPhaseForInd.value,
			}
			for _, ref := range d.IndicationRefs {
				if t := strings.TrimSpace(ref.RefText); t != "" {
					rec.RefTexts = append(rec.RefTexts, t)
				}
			}
			out = append(out, rec)
		}
		return &resp.PageMeta, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// paginate walks limit/offset pages until page_meta.next is empty.
func (c *Client) paginate(ctx context.Context, op, path string, base url.Values, fetch func(q url.Values) (*pageMeta, error)) error {
	offset := 0
	for page := 0; page < maxPages; page++ {
		q := url.Values{}
		for k, v := range base {
			q[k] = v
		}
		q.Set("limit", strconv.Itoa(listLimit))
		q.Set("offset", strconv.Itoa(offset))

		meta, err := fetch(q)
		if err != nil {
			return err
		}
		if meta == nil || meta.Next == nil || *meta.Next == "" {
			return nil
		}
		step := meta.Limit
		if step <= 0 {
			step = listLimit
		}
		offset += step
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	c.logger.Warn("pagination truncated", logging.Op(op), logging.String("path", path), logging.Int("pages", maxPages))
	return nil
}
