package chembl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/trialscope/internal/config"
	"github.com/turtacn/trialscope/internal/domain/enrichment"
	"github.com/turtacn/trialscope/pkg/errors"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	c, err := NewClient(config.ChEMBLConfig{
		BaseURL:      server.URL,
		Timeout:      5 * time.Second,
		RetryMax:     1,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 2 * time.Millisecond,
	}, nil, nil)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func TestSearchFilter(t *testing.T) {
	cases := map[string]enrichment.MatchTier{
		"pref_name__iexact":                           {Field: enrichment.FieldPrefName, Mode: enrichment.ModeExact},
		"molecule_synonyms__synonym__iexact":          {Field: enrichment.FieldSynonym, Mode: enrichment.ModeExact},
		"molecule_synonyms__molecule_synonym__iexact": {Field: enrichment.FieldMoleculeSynonym, Mode: enrichment.ModeExact},
		"pref_name__icontains":                        {Field: enrichment.FieldPrefName, Mode: enrichment.ModePartial},
		"molecule_synonyms__synonym__icontains":       {Field: enrichment.FieldSynonym, Mode: enrichment.ModePartial},
	}
	for want, tier := range cases {
		assert.Equal(t, want, searchFilter(tier))
	}
}

func TestSearchMolecules(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/molecule.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "aspirin", r.URL.Query().Get("molecule_synonyms__synonym__iexact"))
		assert.Equal(t, "200", r.URL.Query().Get("limit"))
		writeJSON(w, `{"molecules":[{"molecule_chembl_id":"CHEMBL25"},{"molecule_chembl_id":"CHEMBL2"}],"page_meta":{"next":null}}`)
	})
	c := newTestClient(t, mux)

	ids, err := c.SearchMolecules(context.Background(), "aspirin", enrichment.MatchTier{Field: enrichment.FieldSynonym})
	require.NoError(t, err)
	assert.Equal(t, []string{"CHEMBL25", "CHEMBL2"}, ids)
}

func TestMolecule(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/molecule/CHEMBL25.json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{
			"molecule_chembl_id":"CHEMBL25",
			"pref_name":"ASPIRIN",
			"molecule_type":"Small molecule",
			"first_approval":1950,
			"molecule_hierarchy":{"molecule_chembl_id":"CHEMBL25","parent_chembl_id":"CHEMBL25"},
			"molecule_synonyms":[{"molecule_synonym":"Acetylsalicylic Acid"},{"molecule_synonym":" "},{"molecule_synonym":"Aspirin"}]
		}`)
	})
	c := newTestClient(t, mux)

	m, err := c.Molecule(context.Background(), "CHEMBL25")
	require.NoError(t, err)
	assert.Equal(t, "ASPIRIN", m.PrefName)
	assert.Equal(t, "Small molecule", m.MoleculeType)
	assert.Equal(t, 1950, m.FirstApproval)
	assert.Equal(t, "CHEMBL25", m.ParentID)
	assert.Equal(t, []string{"Acetylsalicylic Acid", "Aspirin"}, m.Synonyms)
}

func TestMolecule_NotFound(t *testing.T) {
	c := newTestClient(t, http.NewServeMux())
	_, err := c.Molecule(context.Background(), "CHEMBL0")
	assert.True(t, errors.IsNotFound(err))
}

func TestMechanismsForMolecule_Paginates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/mechanism.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "CHEMBL25", r.URL.Query().Get("molecule_chembl_id"))
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))
		switch r.URL.Query().Get("offset") {
		case "0":
			writeJSON(w, `{"mechanisms":[{"molecule_chembl_id":"CHEMBL25","mechanism_of_action":"Cyclooxygenase inhibitor","target_chembl_id":"CHEMBL221"}],
				"page_meta":{"limit":1000,"offset":0,"next":"/chembl/api/data/mechanism.json?offset=1000"}}`)
		default:
			writeJSON(w, `{"mechanisms":[{"molecule_chembl_id":"CHEMBL25","mechanism_of_action":null,"target_chembl_id":null}],
				"page_meta":{"limit":1000,"offset":1000,"next":null}}`)
		}
	})
	c := newTestClient(t, mux)

	mechs, err := c.MechanismsForMolecule(context.Background(), "CHEMBL25")
	require.NoError(t, err)
	require.Len(t, mechs, 2)
	assert.Equal(t, enrichment.Mechanism{MoleculeID: "CHEMBL25", MechanismOfAction: "Cyclooxygenase inhibitor", TargetID: "CHEMBL221"}, mechs[0])
	assert.Equal(t, "", mechs[1].TargetID)
}

func TestMechanismsForTarget(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/mechanism.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "CHEMBL203", r.URL.Query().Get("target_chembl_id"))
		writeJSON(w, `{"mechanisms":[{"molecule_chembl_id":"CHEMBL939","mechanism_of_action":"Epidermal growth factor receptor erbB1 inhibitor","target_chembl_id":"CHEMBL203"}],"page_meta":{}}`)
	})
	c := newTestClient(t, mux)

	mechs, err := c.MechanismsForTarget(context.Background(), "CHEMBL203")
	require.NoError(t, err)
	require.Len(t, mechs, 1)
	assert.Equal(t, "CHEMBL939", mechs[0].MoleculeID)
}

func TestFirstActivityTarget(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/activity.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		if r.URL.Query().Get("molecule_chembl_id") == "CHEMBL1" {
			writeJSON(w, `{"activities":[{"target_chembl_id":"CHEMBL612"}]}`)
			return
		}
		writeJSON(w, `{"activities":[]}`)
	})
	c := newTestClient(t, mux)

	id, ok, err := c.FirstActivityTarget(context.Background(), "CHEMBL1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "CHEMBL612", id)

	_, ok, err = c.FirstActivityTarget(context.Background(), "CHEMBL2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTarget(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/target/CHEMBL221.json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"target_chembl_id":"CHEMBL221","pref_name":"Cyclooxygenase-1","target_type":"SINGLE PROTEIN",
			"target_components":[{"target_component_synonyms":[
				{"component_synonym":"COX-1","syn_type":"UNIPROT"},
				{"component_synonym":"PTGS1","syn_type":"GENE_SYMBOL"}]}]}`)
	})
	c := newTestClient(t, mux)

	tgt, err := c.Target(context.Background(), "CHEMBL221")
	require.NoError(t, err)
	assert.Equal(t, "Cyclooxygenase-1", tgt.PrefName)
	assert.Equal(t, "SINGLE PROTEIN", tgt.TargetType)
	sym, ok := tgt.GeneSymbol()
	assert.True(t, ok)
	assert.Equal(t, "PTGS1", sym)
}

func TestSearchTargetsByGeneSymbol(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/target.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "EGFR", r.URL.Query().Get("target_components__target_component_synonyms__component_synonym__iexact"))
		writeJSON(w, `{"targets":[{"target_chembl_id":"CHEMBL203"}]}`)
	})
	c := newTestClient(t, mux)

	ids, err := c.SearchTargetsByGeneSymbol(context.Background(), "EGFR")
	require.NoError(t, err)
	assert.Equal(t, []string{"CHEMBL203"}, ids)
}

func TestIndications_PhaseShapes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/drug_indication.json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"drug_indications":[
			{"efo_term":"type 2 diabetes mellitus","mesh_heading":"Diabetes Mellitus, Type 2","max_phase_for_ind":"4.0",
			 "indication_refs":[{"ref_type":"FDA","ref_text":"Label text"}]},
			{"efo_term":null,"mesh_heading":"Obesity","max_phase_for_ind":2},
			{"efo_term":"asthma","max_phase_for_ind":null},
			{"efo_term":"pain","max_phase_for_ind":"n/a"}
		],"page_meta":{"next":null}}`)
	})
	c := newTestClient(t, mux)

	recs, err := c.Indications(context.Background(), "CHEMBL1431")
	require.NoError(t, err)
	require.Len(t, recs, 4)

	require.NotNil(t, recs[0].Phase)
	assert.Equal(t, 4.0, *recs[0].Phase)
	assert.Equal(t, []string{"Label text"}, recs[0].RefTexts)

	assert.Equal(t, "Obesity", recs[1].DisplayName())
	require.NotNil(t, recs[1].Phase)
	assert.Equal(t, 2.0, *recs[1].Phase)

	assert.Nil(t, recs[2].Phase)
	assert.Nil(t, recs[3].Phase)
}

func TestRateLimitPropagates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/mechanism.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	c := newTestClient(t, mux)

	_, err := c.MechanismsForMolecule(context.Background(), "CHEMBL25")
	assert.True(t, errors.IsRateLimited(err))
	assert.Equal(t, 7*time.Second, errors.RetryAfterOf(err))
}
