// Package trial defines the clinical-trial entity read from the AACT registry
// and the repository contract used to query it.
package trial

import (
	"context"
	"strings"
)

// Trial is one interventional study with its drug and biological
// interventions aggregated.
type Trial struct {
	NCTID             string `json:"nct_id"`
	ConditionName     string `json:"condition_name"`
	Phase             string `json:"phase"`
	OverallStatus     string `json:"overall_status"`
	Sponsor           string `json:"sponsor"`
	SourceClass       string `json:"source_class"`
	OfficialTitle     string `json:"official_title"`
	DrugNames         string `json:"drug_names"`
	InterventionTypes string `json:"intervention_types"`
}

// Repository queries trials. Condition and indication names are compared
// against the registry's lower-cased condition name.
type Repository interface {
	// ForCondition returns trials whose condition equals condition.
	ForCondition(ctx context.Context, condition string) ([]Trial, error)

	// ForDrugAndIndication returns trials for indication whose intervention
	// names contain drug.
	ForDrugAndIndication(ctx context.Context, drug, indication string) ([]Trial, error)
}

// Merge appends trials from more onto base, skipping nct ids already present
// and trials without an id. First occurrence order is kept.
func Merge(base []Trial, more ...[]Trial) []Trial {
	seen := make(map[string]struct{}, len(base))
	out := make([]Trial, 0, len(base))
	add := func(list []Trial) {
		for _, t := range list {
			id := strings.TrimSpace(t.NCTID)
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, t)
		}
	}
	add(base)
	for _, list := range more {
		add(list)
	}
	return out
}

// Limit returns at most n trials; n <= 0 means no limit.
func Limit(trials []Trial, n int) []Trial {
	if n <= 0 || len(trials) <= n {
		return trials
	}
	return trials[:n]
}
