package domain

import (
	"context"
)

// PathwayAccessor is the pathway-model capability a store must provide.
// Lookups that match nothing return ErrNotFound.
type PathwayAccessor interface {
	PathwayByID(ctx context.Context, resourceID string) (Pathway, error)
	PathwayByName(ctx context.Context, name string) (Pathway, error)
	AllPathways(ctx context.Context) ([]Pathway, error)
	SearchPathways(ctx context.Context, query string, limit int) ([]Pathway, error)
	CountPathways(ctx context.Context) (int64, error)
}

// ProteinAccessor is the protein-model capability a store must provide.
// ProteinsBySymbols is a single bulk query; it must not be simulated with
// repeated single-symbol lookups.
type ProteinAccessor interface {
	ProteinsBySymbols(ctx context.Context, symbols []string) ([]Protein, error)
	ProteinBySymbol(ctx context.Context, symbol string) (Protein, error)
	SearchProteins(ctx context.Context, query string, limit int) ([]Protein, error)
	CountProteins(ctx context.Context) (int64, error)
}

// Store is a complete persistence collaborator: both model accessors plus
// the bulk population entry point. Entities are created and destroyed only
// through LoadGeneSets; the query layer never mutates them.
type Store interface {
	PathwayAccessor
	ProteinAccessor
	LoadGeneSets(ctx context.Context, records []PathwayRecord) error
	Close() error
}

// EnrichmentService is the query surface the manager exposes to external
// callers (HTTP API, CLI, export tooling).
type EnrichmentService interface {
	QueryGeneSet(ctx context.Context, symbols []string) (map[string]*PathwayEnrichment, error)
	QueryGene(ctx context.Context, symbol string) ([]GeneQueryResult, error)
	ExportGeneSets(ctx context.Context) (map[string]GeneSet, error)
	GetPathwayByID(ctx context.Context, resourceID string) (Pathway, error)
	QuerySimilarPathways(ctx context.Context, name string, top int) ([]PathwaySummary, error)
	Summarize(ctx context.Context) (*DatabaseSummary, error)
	IsPopulated(ctx context.Context) (bool, error)
}
