package enrichment

import (
	"context"
	"sync"

	domain "github.com/turtacn/trialscope/internal/domain/enrichment"
	"github.com/turtacn/trialscope/pkg/errors"
)

// fakeKB is an in-memory KnowledgeBase. Errors keyed by operation name are
// returned instead of data; calls are counted per operation.
type fakeKB struct {
	mu sync.Mutex

	search        map[domain.MatchTier]map[string][]string
	molecules     map[string]*domain.Molecule
	mechanisms    map[string][]domain.Mechanism
	byTarget      map[string][]domain.Mechanism
	activities    map[string]string
	targets       map[string]*domain.Target
	symbolTargets map[string][]string
	indications   map[string][]domain.IndicationRecord

	errs  map[string]error
	calls map[string]int
}

func newFakeKB() *fakeKB {
	return &fakeKB{
		search:        map[domain.MatchTier]map[string][]string{},
		molecules:     map[string]*domain.Molecule{},
		mechanisms:    map[string][]domain.Mechanism{},
		byTarget:      map[string][]domain.Mechanism{},
		activities:    map[string]string{},
		targets:       map[string]*domain.Target{},
		symbolTargets: map[string][]string{},
		indications:   map[string][]domain.IndicationRecord{},
		errs:          map[string]error{},
		calls:         map[string]int{},
	}
}

func (f *fakeKB) hit(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.errs[op]
}

func (f *fakeKB) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeKB) addSearch(tier domain.MatchTier, name string, ids ...string) {
	if f.search[tier] == nil {
		f.search[tier] = map[string][]string{}
	}
	f.search[tier][name] = ids
}

func (f *fakeKB) SearchMolecules(_ context.Context, name string, tier domain.MatchTier) ([]string, error) {
	if err := f.hit("search:" + tier.String()); err != nil {
		return nil, err
	}
	return f.search[tier][name], nil
}

func (f *fakeKB) Molecule(_ context.Context, id string) (*domain.Molecule, error) {
	if err := f.hit("molecule"); err != nil {
		return nil, err
	}
	m, ok := f.molecules[id]
	if !ok {
		return nil, errors.NotFound("molecule " + id)
	}
	return m, nil
}

func (f *fakeKB) MechanismsForMolecule(_ context.Context, id string) ([]domain.Mechanism, error) {
	if err := f.hit("mechanism"); err != nil {
		return nil, err
	}
	return f.mechanisms[id], nil
}

func (f *fakeKB) MechanismsForTarget(_ context.Context, id string) ([]domain.Mechanism, error) {
	if err := f.hit("mechanism_by_target"); err != nil {
		return nil, err
	}
	return f.byTarget[id], nil
}

func (f *fakeKB) FirstActivityTarget(_ context.Context, id string) (string, bool, error) {
	if err := f.hit("activity"); err != nil {
		return "", false, err
	}
	t, ok := f.activities[id]
	return t, ok, nil
}

func (f *fakeKB) Target(_ context.Context, id string) (*domain.Target, error) {
	if err := f.hit("target"); err != nil {
		return nil, err
	}
	t, ok := f.targets[id]
	if !ok {
		return nil, errors.NotFound("target " + id)
	}
	return t, nil
}

func (f *fakeKB) SearchTargetsByGeneSymbol(_ context.Context, symbol string) ([]string, error) {
	if err := f.hit("target_search"); err != nil {
		return nil, err
	}
	return f.symbolTargets[symbol], nil
}

func (f *fakeKB) Indications(_ context.Context, id string) ([]domain.IndicationRecord, error) {
	if err := f.hit("indication"); err != nil {
		return nil, err
	}
	return f.indications[id], nil
}
