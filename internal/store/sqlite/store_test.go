package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compath-server/internal/domain"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "compath-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	s, err := New(filepath.Join(tmpDir, "pathways.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func fixtureRecords() []domain.PathwayRecord {
	return []domain.PathwayRecord{
		{
			ResourceID: "B1",
			Name:       "Pathway 0",
			URL:        "https://example.org/pathway/B1",
			Genes:      []string{"HGNC:0", "HGNC:1", "HGNC:2"},
		},
		{
			ResourceID: "B2",
			Name:       "Pathway 1",
			URL:        "https://example.org/pathway/B2",
			Genes:      []string{"HGNC:2", "HGNC:3"},
		},
	}
}

func createPopulatedStore(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t)
	require.NoError(t, s.LoadGeneSets(context.Background(), fixtureRecords()))
	return s
}

func TestNew_CreatesDatabaseFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "compath-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "nested", "pathways.db")
	s, err := New(dbPath, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file should exist")
}

func TestLoadGeneSets_Counts(t *testing.T) {
	s := createPopulatedStore(t)
	ctx := context.Background()

	pathways, err := s.CountPathways(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pathways)

	// HGNC:2 is shared between pathways but stored once.
	proteins, err := s.CountProteins(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), proteins)
}

func TestLoadGeneSets_Reload(t *testing.T) {
	s := createPopulatedStore(t)
	ctx := context.Background()

	// Reloading the same records must not duplicate rows, and renames
	// must take effect.
	records := fixtureRecords()
	records[0].Name = "Pathway 0 (renamed)"
	records[0].Genes = []string{"HGNC:0", "HGNC:1"}
	require.NoError(t, s.LoadGeneSets(ctx, records))

	pathways, err := s.CountPathways(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pathways)

	b1, err := s.PathwayByID(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, "Pathway 0 (renamed)", b1.Name())
	assert.Equal(t, domain.NewGeneSet("HGNC:0", "HGNC:1"), b1.GeneSet())
}

func TestPathwayByID(t *testing.T) {
	s := createPopulatedStore(t)

	pathway, err := s.PathwayByID(context.Background(), "B1")
	require.NoError(t, err)
	assert.Equal(t, "B1", pathway.ResourceID())
	assert.Equal(t, "Pathway 0", pathway.Name())
	assert.Equal(t, "https://example.org/pathway/B1", pathway.URL())
	assert.Equal(t, domain.NewGeneSet("HGNC:0", "HGNC:1", "HGNC:2"), pathway.GeneSet())
}

func TestPathwayByID_NotFound(t *testing.T) {
	s := createPopulatedStore(t)

	_, err := s.PathwayByID(context.Background(), "B404")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPathwayByName(t *testing.T) {
	s := createPopulatedStore(t)

	pathway, err := s.PathwayByName(context.Background(), "Pathway 1")
	require.NoError(t, err)
	assert.Equal(t, "B2", pathway.ResourceID())

	_, err = s.PathwayByName(context.Background(), "No Such Pathway")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAllPathways(t *testing.T) {
	s := createPopulatedStore(t)

	pathways, err := s.AllPathways(context.Background())
	require.NoError(t, err)
	require.Len(t, pathways, 2)

	sets := make(map[string]domain.GeneSet)
	for _, pathway := range pathways {
		sets[pathway.Name()] = pathway.GeneSet()
	}
	assert.Equal(t, domain.NewGeneSet("HGNC:0", "HGNC:1", "HGNC:2"), sets["Pathway 0"])
	assert.Equal(t, domain.NewGeneSet("HGNC:2", "HGNC:3"), sets["Pathway 1"])
}

func TestSearchPathways(t *testing.T) {
	s := createPopulatedStore(t)
	ctx := context.Background()

	matches, err := s.SearchPathways(ctx, "Pathway", 0)
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	matches, err = s.SearchPathways(ctx, "Pathway", 1)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	matches, err = s.SearchPathways(ctx, "athway 1", 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "B2", matches[0].ResourceID())
}

func TestProteinsBySymbols(t *testing.T) {
	s := createPopulatedStore(t)

	proteins, err := s.ProteinsBySymbols(context.Background(), []string{"HGNC:2", "HGNC:3", "HGNC:999"})
	require.NoError(t, err)
	require.Len(t, proteins, 2)

	bySymbol := make(map[string][]string)
	for _, protein := range proteins {
		bySymbol[protein.HGNCSymbol()] = protein.PathwayIDs()
	}
	assert.ElementsMatch(t, []string{"B1", "B2"}, bySymbol["HGNC:2"])
	assert.ElementsMatch(t, []string{"B2"}, bySymbol["HGNC:3"])
}

func TestProteinsBySymbols_Empty(t *testing.T) {
	s := createPopulatedStore(t)

	proteins, err := s.ProteinsBySymbols(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, proteins)
}

func TestProteinBySymbol(t *testing.T) {
	s := createPopulatedStore(t)

	protein, err := s.ProteinBySymbol(context.Background(), "HGNC:0")
	require.NoError(t, err)
	assert.Equal(t, "HGNC:0", protein.HGNCSymbol())
	assert.ElementsMatch(t, []string{"B1"}, protein.PathwayIDs())

	_, err = s.ProteinBySymbol(context.Background(), "HGNC:999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSearchProteins(t *testing.T) {
	s := createPopulatedStore(t)

	proteins, err := s.SearchProteins(context.Background(), "HGNC", 0)
	require.NoError(t, err)
	assert.Len(t, proteins, 4)

	proteins, err = s.SearchProteins(context.Background(), "HGNC:3", 0)
	require.NoError(t, err)
	require.Len(t, proteins, 1)
	assert.Equal(t, "HGNC:3", proteins[0].HGNCSymbol())
}

func TestLoadGeneSets_NoRecords(t *testing.T) {
	s := createTestStore(t)

	require.NoError(t, s.LoadGeneSets(context.Background(), nil))

	count, err := s.CountPathways(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}
