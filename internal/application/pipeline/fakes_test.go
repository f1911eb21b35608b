package pipeline

import (
	"context"
	"sync"

	domain "github.com/turtacn/trialscope/internal/domain/enrichment"
	"github.com/turtacn/trialscope/internal/domain/result"
	"github.com/turtacn/trialscope/internal/domain/trial"
	"github.com/turtacn/trialscope/internal/intelligence/drug_extractor"
	"github.com/turtacn/trialscope/pkg/errors"
)

// fakeKB serves molecules by exact preferred name only. errs forces an error
// for an operation and identifier ("" matches any identifier).
type fakeKB struct {
	names       map[string]string
	molecules   map[string]*domain.Molecule
	mechanisms  map[string][]domain.Mechanism
	byTarget    map[string][]domain.Mechanism
	targets     map[string]*domain.Target
	symbols     map[string][]string
	indications map[string][]domain.IndicationRecord
	errs        map[string]error
}

func newFakeKB() *fakeKB {
	return &fakeKB{
		names:       map[string]string{},
		molecules:   map[string]*domain.Molecule{},
		mechanisms:  map[string][]domain.Mechanism{},
		byTarget:    map[string][]domain.Mechanism{},
		targets:     map[string]*domain.Target{},
		symbols:     map[string][]string{},
		indications: map[string][]domain.IndicationRecord{},
		errs:        map[string]error{},
	}
}

func (f *fakeKB) err(op, id string) error {
	if err, ok := f.errs[op+":"+id]; ok {
		return err
	}
	return f.errs[op+":"]
}

func (f *fakeKB) SearchMolecules(_ context.Context, name string, tier domain.MatchTier) ([]string, error) {
	if err := f.err("search", name); err != nil {
		return nil, err
	}
	if tier.Field != domain.FieldPrefName || tier.Mode != domain.ModeExact {
		return nil, nil
	}
	if id, ok := f.names[name]; ok {
		return []string{id}, nil
	}
	return nil, nil
}

func (f *fakeKB) Molecule(_ context.Context, id string) (*domain.Molecule, error) {
	if err := f.err("molecule", id); err != nil {
		return nil, err
	}
	m, ok := f.molecules[id]
	if !ok {
		return nil, errors.NotFound("molecule " + id)
	}
	return m, nil
}

func (f *fakeKB) MechanismsForMolecule(_ context.Context, id string) ([]domain.Mechanism, error) {
	if err := f.err("mechanism", id); err != nil {
		return nil, err
	}
	return f.mechanisms[id], nil
}

func (f *fakeKB) MechanismsForTarget(_ context.Context, id string) ([]domain.Mechanism, error) {
	return f.byTarget[id], f.err("mechanism_by_target", id)
}

func (f *fakeKB) FirstActivityTarget(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func (f *fakeKB) Target(_ context.Context, id string) (*domain.Target, error) {
	t, ok := f.targets[id]
	if !ok {
		return nil, errors.NotFound("target " + id)
	}
	return t, nil
}

func (f *fakeKB) SearchTargetsByGeneSymbol(_ context.Context, symbol string) ([]string, error) {
	return f.symbols[symbol], nil
}

func (f *fakeKB) Indications(_ context.Context, id string) ([]domain.IndicationRecord, error) {
	if err := f.err("indication", id); err != nil {
		return nil, err
	}
	return f.indications[id], nil
}

// addDrug registers a molecule with one mechanism on target.
func (f *fakeKB) addDrug(name, id, moa, targetID string) {
	f.names[name] = id
	f.molecules[id] = &domain.Molecule{ID: id, PrefName: name, MoleculeType: "Small molecule"}
	f.mechanisms[id] = append(f.mechanisms[id], domain.Mechanism{MoleculeID: id, MechanismOfAction: moa, TargetID: targetID})
}

func (f *fakeKB) addTarget(id, symbol, targetType string) {
	t := &domain.Target{ID: id, PrefName: id + " protein", TargetType: targetType}
	if symbol != "" {
		t.Synonyms = []domain.ComponentSynonym{{Synonym: symbol, SynType: domain.SynTypeGeneSymbol}}
	}
	f.targets[id] = t
}

type drugTrialKey struct{ drug, indication string }

type fakeTrials struct {
	mu          sync.Mutex
	byCondition map[string][]trial.Trial
	byDrug      map[drugTrialKey][]trial.Trial
	conditions  []string
	drugQueries []drugTrialKey
	err         error
	drugErr     error
}

func newFakeTrials() *fakeTrials {
	return &fakeTrials{byCondition: map[string][]trial.Trial{}, byDrug: map[drugTrialKey][]trial.Trial{}}
}

func (f *fakeTrials) ForCondition(_ context.Context, condition string) ([]trial.Trial, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conditions = append(f.conditions, condition)
	if f.err != nil {
		return nil, f.err
	}
	return f.byCondition[condition], nil
}

func (f *fakeTrials) ForDrugAndIndication(_ context.Context, drug, indication string) ([]trial.Trial, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := drugTrialKey{drug, indication}
	f.drugQueries = append(f.drugQueries, k)
	if f.drugErr != nil {
		return nil, f.drugErr
	}
	return f.byDrug[k], nil
}

// fakeExtractor returns fixed drug lists per nct id.
type fakeExtractor struct {
	drugs map[string][]string
	err   error
	// stopAfter returns err after this many trials when err is set.
	stopAfter int
}

func (f *fakeExtractor) ExtractTrials(_ context.Context, trials []trial.Trial) ([]drug_extractor.Extraction, error) {
	out := make([]drug_extractor.Extraction, 0, len(trials))
	for i, t := range trials {
		if f.err != nil && i >= f.stopAfter {
			return out, f.err
		}
		drugs := f.drugs[t.NCTID]
		if drugs == nil {
			drugs = []string{}
		}
		out = append(out, drug_extractor.Extraction{NCTID: t.NCTID, OriginalDrugNames: t.DrugNames, ExtractedDrugs: drugs})
	}
	return out, nil
}

type fakeNormalizer struct {
	term string
	ok   bool
	err  error
}

func (f fakeNormalizer) NormalizeDisease(context.Context, string) (string, bool, error) {
	return f.term, f.ok, f.err
}

// captureSinks records every table written, by name.
type captureSinks struct {
	mu     sync.Mutex
	tables map[string]*result.Table
	err    error
}

func newCaptureSinks() *captureSinks {
	return &captureSinks{tables: map[string]*result.Table{}}
}

func (c *captureSinks) factory(string) result.Sink { return c }

func (c *captureSinks) Name() string { return "capture" }

func (c *captureSinks) Write(_ context.Context, t *result.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[t.Name] = t
	return c.err
}

type fakeRuns struct {
	runs []*result.Run
	err  error
}

func (f *fakeRuns) RecordRun(_ context.Context, r *result.Run) error {
	f.runs = append(f.runs, r)
	return f.err
}
