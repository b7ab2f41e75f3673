package manager

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compath-server/internal/domain"
)

// fakeProtein and fakePathway implement the model contract in memory.

type fakeProtein struct {
	symbol   string
	pathways []string
}

func (p *fakeProtein) HGNCSymbol() string   { return p.symbol }
func (p *fakeProtein) PathwayIDs() []string { return p.pathways }

type fakePathway struct {
	id    string
	name  string
	genes domain.GeneSet
}

func (p *fakePathway) ResourceID() string      { return p.id }
func (p *fakePathway) Name() string            { return p.name }
func (p *fakePathway) URL() string             { return "https://example.org/pathway/" + p.id }
func (p *fakePathway) GeneSet() domain.GeneSet { return p.genes }

// fakeStore is an in-memory persistence collaborator.
type fakeStore struct {
	pathways map[string]*fakePathway
	proteins []*fakeProtein

	bulkCalls int
	failWith  error
}

func (s *fakeStore) PathwayByID(_ context.Context, id string) (domain.Pathway, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	pathway, ok := s.pathways[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return pathway, nil
}

func (s *fakeStore) PathwayByName(_ context.Context, name string) (domain.Pathway, error) {
	for _, pathway := range s.pathways {
		if pathway.name == name {
			return pathway, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeStore) AllPathways(_ context.Context) ([]domain.Pathway, error) {
	var all []domain.Pathway
	for _, pathway := range s.pathways {
		all = append(all, pathway)
	}
	return all, nil
}

func (s *fakeStore) SearchPathways(_ context.Context, query string, limit int) ([]domain.Pathway, error) {
	var matches []domain.Pathway
	for _, pathway := range s.pathways {
		if strings.Contains(pathway.name, query) {
			matches = append(matches, pathway)
		}
		if limit > 0 && len(matches) == limit {
			break
		}
	}
	return matches, nil
}

func (s *fakeStore) CountPathways(_ context.Context) (int64, error) {
	return int64(len(s.pathways)), nil
}

func (s *fakeStore) ProteinsBySymbols(_ context.Context, symbols []string) ([]domain.Protein, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	s.bulkCalls++
	want := domain.NewGeneSet(symbols...)
	var matches []domain.Protein
	for _, protein := range s.proteins {
		if want.Contains(protein.symbol) {
			matches = append(matches, protein)
		}
	}
	return matches, nil
}

func (s *fakeStore) ProteinBySymbol(_ context.Context, symbol string) (domain.Protein, error) {
	for _, protein := range s.proteins {
		if protein.symbol == symbol {
			return protein, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeStore) SearchProteins(_ context.Context, query string, limit int) ([]domain.Protein, error) {
	var matches []domain.Protein
	for _, protein := range s.proteins {
		if strings.Contains(protein.symbol, query) {
			matches = append(matches, protein)
		}
		if limit > 0 && len(matches) == limit {
			break
		}
	}
	return matches, nil
}

func (s *fakeStore) CountProteins(_ context.Context) (int64, error) {
	return int64(len(s.proteins)), nil
}

func (s *fakeStore) LoadGeneSets(_ context.Context, _ []domain.PathwayRecord) error { return nil }
func (s *fakeStore) Close() error                                                  { return nil }

// newFixtureStore builds the reference dataset: proteins P1..P4 with
// symbols HGNC:0..HGNC:3, pathway B1 = {P1,P2,P3} named "Pathway 0" and
// pathway B2 = {P3,P4} named "Pathway 1".
func newFixtureStore() *fakeStore {
	return &fakeStore{
		pathways: map[string]*fakePathway{
			"B1": {id: "B1", name: "Pathway 0", genes: domain.NewGeneSet("HGNC:0", "HGNC:1", "HGNC:2")},
			"B2": {id: "B2", name: "Pathway 1", genes: domain.NewGeneSet("HGNC:2", "HGNC:3")},
		},
		proteins: []*fakeProtein{
			{symbol: "HGNC:0", pathways: []string{"B1"}},
			{symbol: "HGNC:1", pathways: []string{"B1"}},
			{symbol: "HGNC:2", pathways: []string{"B1", "B2"}},
			{symbol: "HGNC:3", pathways: []string{"B2"}},
		},
	}
}

func newTestManager(t *testing.T, store *fakeStore, opts ...Option) *Manager {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	m, err := New(store, store, logger, opts...)
	require.NoError(t, err)
	return m
}

func TestNew_MissingPathwayModel(t *testing.T) {
	store := newFixtureStore()
	_, err := New(nil, store, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingPathwayModel)
}

func TestNew_MissingProteinModel(t *testing.T) {
	store := newFixtureStore()
	_, err := New(store, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingProteinModel)
}

func TestNew_BothModelsSet(t *testing.T) {
	store := newFixtureStore()
	m, err := New(store, store, nil)
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestQueryGeneSet_Fixture(t *testing.T) {
	store := newFixtureStore()
	m := newTestManager(t, store)

	results, err := m.QueryGeneSet(context.Background(), []string{"HGNC:2", "HGNC:3"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	b1 := results["B1"]
	require.NotNil(t, b1)
	assert.Equal(t, "Pathway 0", b1.PathwayName)
	assert.Equal(t, 1, b1.MappedProteins, "only HGNC:2 maps into B1")
	assert.Equal(t, 3, b1.PathwaySize, "size is the full pathway, not the matched subset")
	assert.Equal(t, domain.NewGeneSet("HGNC:0", "HGNC:1", "HGNC:2"), b1.GeneSet)

	b2 := results["B2"]
	require.NotNil(t, b2)
	assert.Equal(t, "Pathway 1", b2.PathwayName)
	assert.Equal(t, 2, b2.MappedProteins, "HGNC:2 and HGNC:3 both map into B2")
	assert.Equal(t, 2, b2.PathwaySize)

	assert.Equal(t, 1, store.bulkCalls, "symbol resolution must be a single bulk query")
}

func TestQueryGeneSet_EmptyInput(t *testing.T) {
	m := newTestManager(t, newFixtureStore())

	results, err := m.QueryGeneSet(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = m.QueryGeneSet(context.Background(), []string{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryGeneSet_NoMatches(t *testing.T) {
	m := newTestManager(t, newFixtureStore())

	results, err := m.QueryGeneSet(context.Background(), []string{"HGNC:999", "TP53"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryGeneSet_DuplicateSymbolsNoEffect(t *testing.T) {
	m := newTestManager(t, newFixtureStore())
	ctx := context.Background()

	deduped, err := m.QueryGeneSet(ctx, []string{"HGNC:0", "HGNC:1"})
	require.NoError(t, err)
	duplicated, err := m.QueryGeneSet(ctx, []string{"HGNC:0", "HGNC:0", "HGNC:1"})
	require.NoError(t, err)

	assert.Equal(t, deduped, duplicated)
}

func TestQueryGeneSet_Idempotent(t *testing.T) {
	m := newTestManager(t, newFixtureStore())
	ctx := context.Background()

	first, err := m.QueryGeneSet(ctx, []string{"HGNC:2", "HGNC:3"})
	require.NoError(t, err)
	second, err := m.QueryGeneSet(ctx, []string{"HGNC:2", "HGNC:3"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestQueryGeneSet_DuplicateSymbolRowsBothCount(t *testing.T) {
	store := newFixtureStore()
	// A second protein row sharing HGNC:3: distinct proteins sharing a
	// symbol are each evidence for their pathways.
	store.proteins = append(store.proteins, &fakeProtein{symbol: "HGNC:3", pathways: []string{"B2"}})
	m := newTestManager(t, store)

	results, err := m.QueryGeneSet(context.Background(), []string{"HGNC:3"})
	require.NoError(t, err)
	require.Contains(t, results, "B2")
	assert.Equal(t, 2, results["B2"].MappedProteins)
}

func TestQueryGeneSet_RepeatedMembershipCountsOnce(t *testing.T) {
	store := newFixtureStore()
	store.proteins[3].pathways = []string{"B2", "B2"}
	m := newTestManager(t, store)

	results, err := m.QueryGeneSet(context.Background(), []string{"HGNC:3"})
	require.NoError(t, err)
	require.Contains(t, results, "B2")
	assert.Equal(t, 1, results["B2"].MappedProteins)
}

func TestQueryGeneSet_DanglingPathwaySkipped(t *testing.T) {
	store := newFixtureStore()
	store.proteins[3].pathways = []string{"B2", "B404"}
	m := newTestManager(t, store)

	results, err := m.QueryGeneSet(context.Background(), []string{"HGNC:3"})
	require.NoError(t, err)
	assert.Contains(t, results, "B2")
	assert.NotContains(t, results, "B404")
}

func TestQueryGeneSet_StoreErrorPropagates(t *testing.T) {
	store := newFixtureStore()
	storeErr := errors.New("connection reset")
	store.failWith = storeErr
	m := newTestManager(t, store)

	_, err := m.QueryGeneSet(context.Background(), []string{"HGNC:0"})
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
}

func TestQueryGene(t *testing.T) {
	m := newTestManager(t, newFixtureStore())

	results, err := m.QueryGene(context.Background(), "HGNC:2")
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := make(map[string]domain.GeneQueryResult)
	for _, r := range results {
		byID[r.PathwayID] = r
	}
	assert.Equal(t, domain.GeneQueryResult{PathwayID: "B1", PathwayName: "Pathway 0", PathwaySize: 3}, byID["B1"])
	assert.Equal(t, domain.GeneQueryResult{PathwayID: "B2", PathwayName: "Pathway 1", PathwaySize: 2}, byID["B2"])
}

func TestQueryGene_UnknownSymbol(t *testing.T) {
	m := newTestManager(t, newFixtureStore())

	results, err := m.QueryGene(context.Background(), "HGNC:999")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryGene_DanglingPathwaySkipped(t *testing.T) {
	store := newFixtureStore()
	store.proteins[0].pathways = []string{"B1", "GONE"}
	m := newTestManager(t, store)

	results, err := m.QueryGene(context.Background(), "HGNC:0")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "B1", results[0].PathwayID)
}

func TestExportGeneSets(t *testing.T) {
	m := newTestManager(t, newFixtureStore())

	geneSets, err := m.ExportGeneSets(context.Background())
	require.NoError(t, err)

	expected := map[string]domain.GeneSet{
		"Pathway 0": domain.NewGeneSet("HGNC:0", "HGNC:1", "HGNC:2"),
		"Pathway 1": domain.NewGeneSet("HGNC:2", "HGNC:3"),
	}
	assert.Equal(t, expected, geneSets)
}

func TestIsPopulatedAndSummarize(t *testing.T) {
	m := newTestManager(t, newFixtureStore())
	ctx := context.Background()

	populated, err := m.IsPopulated(ctx)
	require.NoError(t, err)
	assert.True(t, populated)

	summary, err := m.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Pathways)
	assert.Equal(t, int64(4), summary.Proteins)

	empty := &fakeStore{pathways: map[string]*fakePathway{}}
	m = newTestManager(t, empty)
	populated, err = m.IsPopulated(ctx)
	require.NoError(t, err)
	assert.False(t, populated)
}

func TestQuerySimilarPathways(t *testing.T) {
	m := newTestManager(t, newFixtureStore())

	summaries, err := m.QuerySimilarPathways(context.Background(), "Pathway", 0)
	require.NoError(t, err)
	assert.Len(t, summaries, 2)

	summaries, err = m.QuerySimilarPathways(context.Background(), "Pathway 1", 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, domain.PathwaySummary{ResourceID: "B2", Name: "Pathway 1"}, summaries[0])
}

func TestGeneDistribution(t *testing.T) {
	m := newTestManager(t, newFixtureStore())

	distribution, err := m.GeneDistribution(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"HGNC:0": 1,
		"HGNC:1": 1,
		"HGNC:2": 2,
		"HGNC:3": 1,
	}, distribution)
}

func TestPathwaySizeDistribution(t *testing.T) {
	store := newFixtureStore()
	store.pathways["B3"] = &fakePathway{id: "B3", name: "Empty Pathway", genes: domain.NewGeneSet()}
	m := newTestManager(t, store)

	sizes, err := m.PathwaySizeDistribution(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Pathway 0": 3, "Pathway 1": 2}, sizes)
}

func TestAllHGNCSymbols(t *testing.T) {
	m := newTestManager(t, newFixtureStore())

	symbols, err := m.AllHGNCSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.NewGeneSet("HGNC:0", "HGNC:1", "HGNC:2", "HGNC:3"), symbols)
}

func TestPathwayCache(t *testing.T) {
	store := newFixtureStore()
	m := newTestManager(t, store, WithPathwayCache(16))
	ctx := context.Background()

	first, err := m.GetPathwayByID(ctx, "B1")
	require.NoError(t, err)

	// Remove the backing record; the cached copy keeps serving.
	delete(store.pathways, "B1")
	second, err := m.GetPathwayByID(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = m.GetPathwayByID(ctx, "B2")
	require.NoError(t, err)
	delete(store.pathways, "B2")
	_, err = m.GetPathwayByID(ctx, "B2")
	require.NoError(t, err)
}
