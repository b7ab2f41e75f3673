package manager

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/compath-server/internal/domain"
)

// Manager is the generic query layer shared by every pathway database
// adapter. It is composed from two injected model capabilities rather than
// inherited: a pathway accessor and a protein accessor, usually both
// satisfied by the same store. The manager only reads; population is the
// loader's job.
type Manager struct {
	pathways domain.PathwayAccessor
	proteins domain.ProteinAccessor
	log      *logrus.Logger

	// pathwayCache fronts PathwayByID fetches during enrichment. Nil when
	// caching is disabled.
	pathwayCache *lru.Cache[string, domain.Pathway]
}

// Option configures optional manager behavior.
type Option func(*Manager) error

// WithPathwayCache enables an in-process LRU cache of pathway records,
// keyed by resource identifier.
func WithPathwayCache(size int) Option {
	return func(m *Manager) error {
		cache, err := lru.New[string, domain.Pathway](size)
		if err != nil {
			return fmt.Errorf("creating pathway cache: %w", err)
		}
		m.pathwayCache = cache
		return nil
	}
}

// New creates a manager over the given model accessors. Both capabilities
// are required; a nil accessor is a configuration error reported as
// domain.ErrMissingPathwayModel or domain.ErrMissingProteinModel so that a
// misconfigured adapter fails at startup rather than at its first query.
func New(pathways domain.PathwayAccessor, proteins domain.ProteinAccessor, logger *logrus.Logger, opts ...Option) (*Manager, error) {
	if pathways == nil {
		return nil, domain.ErrMissingPathwayModel
	}
	if proteins == nil {
		return nil, domain.ErrMissingProteinModel
	}
	if logger == nil {
		logger = logrus.New()
	}

	m := &Manager{
		pathways: pathways,
		proteins: proteins,
		log:      logger,
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// NewFromStore creates a manager whose pathway and protein capabilities are
// both served by a single store.
func NewFromStore(store domain.Store, logger *logrus.Logger, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, domain.ErrMissingPathwayModel
	}
	return New(store, store, logger, opts...)
}

// QueryGeneSet computes per-pathway enrichment statistics for a set of HGNC
// gene symbols. Input symbols are deduplicated, resolved to proteins with a
// single bulk lookup, and every pathway touched by at least one resolved
// protein is reported with the count of distinct resolved proteins that
// mapped to it and the pathway's total gene-set size. Empty or non-matching
// input yields an empty map. Pathway identifiers that no longer resolve to
// a record are skipped; the aggregator does not own referential integrity.
func (m *Manager) QueryGeneSet(ctx context.Context, symbols []string) (map[string]*domain.PathwayEnrichment, error) {
	results := make(map[string]*domain.PathwayEnrichment)

	query := domain.NewGeneSet(symbols...)
	if len(query) == 0 {
		return results, nil
	}

	proteins, err := m.proteins.ProteinsBySymbols(ctx, query.Symbols())
	if err != nil {
		return nil, fmt.Errorf("resolving gene symbols: %w", err)
	}
	if len(proteins) == 0 {
		return results, nil
	}

	// Count distinct resolved proteins per pathway. A protein contributes
	// once to each of its pathways even if its membership list repeats an
	// identifier.
	counts := make(map[string]int)
	for _, protein := range proteins {
		seen := make(map[string]struct{})
		for _, pathwayID := range protein.PathwayIDs() {
			if _, dup := seen[pathwayID]; dup {
				continue
			}
			seen[pathwayID] = struct{}{}
			counts[pathwayID]++
		}
	}

	for pathwayID, mapped := range counts {
		pathway, err := m.pathwayByID(ctx, pathwayID)
		if errors.Is(err, domain.ErrNotFound) {
			m.log.WithField("pathway_id", pathwayID).Debug("Skipping dangling pathway reference")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetching pathway %q: %w", pathwayID, err)
		}

		geneSet := pathway.GeneSet()
		results[pathwayID] = &domain.PathwayEnrichment{
			PathwayID:      pathwayID,
			PathwayName:    pathway.Name(),
			MappedProteins: mapped,
			PathwaySize:    len(geneSet),
			GeneSet:        geneSet,
		}
	}

	m.log.WithFields(logrus.Fields{
		"symbols":  len(query),
		"proteins": len(proteins),
		"pathways": len(results),
	}).Debug("Gene set query completed")

	return results, nil
}

// QueryGene returns the pathways associated with a single HGNC gene symbol.
// An unknown symbol yields an empty slice, not an error.
func (m *Manager) QueryGene(ctx context.Context, symbol string) ([]domain.GeneQueryResult, error) {
	protein, err := m.proteins.ProteinBySymbol(ctx, symbol)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up gene %q: %w", symbol, err)
	}

	var results []domain.GeneQueryResult
	seen := make(map[string]struct{})
	for _, pathwayID := range protein.PathwayIDs() {
		if _, dup := seen[pathwayID]; dup {
			continue
		}
		seen[pathwayID] = struct{}{}

		pathway, err := m.pathwayByID(ctx, pathwayID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetching pathway %q: %w", pathwayID, err)
		}

		results = append(results, domain.GeneQueryResult{
			PathwayID:   pathwayID,
			PathwayName: pathway.Name(),
			PathwaySize: len(pathway.GeneSet()),
		})
	}

	return results, nil
}

// ExportGeneSets returns the full pathway-name to gene-set mapping, one
// entry per pathway. Spreadsheet serialization is the export package's
// concern; this only produces the mapping.
func (m *Manager) ExportGeneSets(ctx context.Context) (map[string]domain.GeneSet, error) {
	pathways, err := m.pathways.AllPathways(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pathways: %w", err)
	}

	geneSets := make(map[string]domain.GeneSet, len(pathways))
	for _, pathway := range pathways {
		geneSets[pathway.Name()] = pathway.GeneSet()
	}
	return geneSets, nil
}

// IsPopulated reports whether the population step has run.
func (m *Manager) IsPopulated(ctx context.Context) (bool, error) {
	count, err := m.pathways.CountPathways(ctx)
	if err != nil {
		return false, fmt.Errorf("counting pathways: %w", err)
	}
	return count > 0, nil
}

// Summarize reports entity counts.
func (m *Manager) Summarize(ctx context.Context) (*domain.DatabaseSummary, error) {
	pathways, err := m.pathways.CountPathways(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting pathways: %w", err)
	}
	proteins, err := m.proteins.CountProteins(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting proteins: %w", err)
	}
	return &domain.DatabaseSummary{Pathways: pathways, Proteins: proteins}, nil
}

// GetPathwayByID fetches a pathway by its database-specific identifier.
func (m *Manager) GetPathwayByID(ctx context.Context, resourceID string) (domain.Pathway, error) {
	return m.pathwayByID(ctx, resourceID)
}

// GetPathwayByName fetches a pathway by name. Names are not guaranteed
// unique; the store returns the first match.
func (m *Manager) GetPathwayByName(ctx context.Context, name string) (domain.Pathway, error) {
	return m.pathways.PathwayByName(ctx, name)
}

// ListPathways returns every pathway in the database.
func (m *Manager) ListPathways(ctx context.Context) ([]domain.Pathway, error) {
	return m.pathways.AllPathways(ctx)
}

// AllPathwayNames returns the names of every pathway in the database.
func (m *Manager) AllPathwayNames(ctx context.Context) ([]string, error) {
	pathways, err := m.pathways.AllPathways(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(pathways))
	for _, pathway := range pathways {
		names = append(names, pathway.Name())
	}
	return names, nil
}

// AllHGNCSymbols returns the set of genes present across all pathways.
func (m *Manager) AllHGNCSymbols(ctx context.Context) (domain.GeneSet, error) {
	pathways, err := m.pathways.AllPathways(ctx)
	if err != nil {
		return nil, err
	}
	symbols := make(domain.GeneSet)
	for _, pathway := range pathways {
		for symbol := range pathway.GeneSet() {
			symbols[symbol] = struct{}{}
		}
	}
	return symbols, nil
}

// QuerySimilarPathways returns (resource id, name) pairs for pathways whose
// name contains the query string. top <= 0 returns all matches.
func (m *Manager) QuerySimilarPathways(ctx context.Context, name string, top int) ([]domain.PathwaySummary, error) {
	pathways, err := m.pathways.SearchPathways(ctx, name, top)
	if err != nil {
		return nil, fmt.Errorf("searching pathways: %w", err)
	}
	summaries := make([]domain.PathwaySummary, 0, len(pathways))
	for _, pathway := range pathways {
		summaries = append(summaries, domain.PathwaySummary{
			ResourceID: pathway.ResourceID(),
			Name:       pathway.Name(),
		})
	}
	return summaries, nil
}

// QuerySimilarHGNCSymbol returns proteins whose symbol contains the query
// string. top <= 0 returns all matches.
func (m *Manager) QuerySimilarHGNCSymbol(ctx context.Context, symbol string, top int) ([]domain.Protein, error) {
	proteins, err := m.proteins.SearchProteins(ctx, symbol, top)
	if err != nil {
		return nil, fmt.Errorf("searching proteins: %w", err)
	}
	return proteins, nil
}

// PathwaySizeDistribution maps pathway names to gene-set sizes, excluding
// empty pathways.
func (m *Manager) PathwaySizeDistribution(ctx context.Context) (map[string]int, error) {
	pathways, err := m.pathways.AllPathways(ctx)
	if err != nil {
		return nil, err
	}
	sizes := make(map[string]int)
	for _, pathway := range pathways {
		if size := len(pathway.GeneSet()); size > 0 {
			sizes[pathway.Name()] = size
		}
	}
	return sizes, nil
}

// GeneDistribution counts, per gene symbol, the number of pathways the gene
// appears in.
func (m *Manager) GeneDistribution(ctx context.Context) (map[string]int, error) {
	pathways, err := m.pathways.AllPathways(ctx)
	if err != nil {
		return nil, err
	}
	distribution := make(map[string]int)
	for _, pathway := range pathways {
		for symbol := range pathway.GeneSet() {
			distribution[symbol]++
		}
	}
	return distribution, nil
}

// pathwayByID fetches a pathway record, consulting the LRU cache when one
// is configured.
func (m *Manager) pathwayByID(ctx context.Context, resourceID string) (domain.Pathway, error) {
	if m.pathwayCache != nil {
		if pathway, ok := m.pathwayCache.Get(resourceID); ok {
			return pathway, nil
		}
	}

	pathway, err := m.pathways.PathwayByID(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	if m.pathwayCache != nil {
		m.pathwayCache.Add(resourceID, pathway)
	}
	return pathway, nil
}
