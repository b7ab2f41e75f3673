package domain

import (
	"encoding/json"
	"sort"
)

// GeneSet is an unordered set of HGNC gene symbols. It serializes to JSON
// as a sorted array of symbols.
type GeneSet map[string]struct{}

// NewGeneSet builds a GeneSet from symbols, dropping duplicates.
func NewGeneSet(symbols ...string) GeneSet {
	set := make(GeneSet, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return set
}

// Contains reports whether the symbol is in the set.
func (g GeneSet) Contains(symbol string) bool {
	_, ok := g[symbol]
	return ok
}

// Symbols returns the members of the set in unspecified order.
func (g GeneSet) Symbols() []string {
	symbols := make([]string, 0, len(g))
	for s := range g {
		symbols = append(symbols, s)
	}
	return symbols
}

// MarshalJSON encodes the set as a sorted array of symbols.
func (g GeneSet) MarshalJSON() ([]byte, error) {
	symbols := g.Symbols()
	sort.Strings(symbols)
	return json.Marshal(symbols)
}

// UnmarshalJSON decodes an array of symbols into a set.
func (g *GeneSet) UnmarshalJSON(data []byte) error {
	var symbols []string
	if err := json.Unmarshal(data, &symbols); err != nil {
		return err
	}
	*g = NewGeneSet(symbols...)
	return nil
}

// Pathway is the contract every concrete pathway model must satisfy.
// ResourceID is the database-specific identifier (e.g. a WikiPathways or
// KEGG id), not a synthetic primary key. GeneSet returns the distinct HGNC
// symbols of the pathway's member proteins; the pathway size is its
// cardinality.
type Pathway interface {
	ResourceID() string
	Name() string
	URL() string
	GeneSet() GeneSet
}

// Protein is the contract every concrete protein model must satisfy.
// HGNCSymbol is the natural lookup key; the same symbol may appear on more
// than one protein row in the backing store.
type Protein interface {
	HGNCSymbol() string
	PathwayIDs() []string
}

// PathwayEnrichment is one row of a gene-set enrichment result.
// MappedProteins counts the distinct resolved proteins that belong to the
// pathway; PathwaySize is the total size of the pathway's gene set,
// independent of the query.
type PathwayEnrichment struct {
	PathwayID      string  `json:"pathway_id"`
	PathwayName    string  `json:"pathway_name"`
	MappedProteins int     `json:"mapped_proteins"`
	PathwaySize    int     `json:"pathway_size"`
	GeneSet        GeneSet `json:"pathway_gene_set"`
}

// GeneQueryResult is one pathway association returned for a single gene.
type GeneQueryResult struct {
	PathwayID   string `json:"pathway_id"`
	PathwayName string `json:"pathway_name"`
	PathwaySize int    `json:"pathway_size"`
}

// PathwaySummary pairs a resource identifier with a pathway name, used by
// the fuzzy name search.
type PathwaySummary struct {
	ResourceID string `json:"resource_id"`
	Name       string `json:"name"`
}

// DatabaseSummary reports entity counts for a populated database.
type DatabaseSummary struct {
	Pathways int64 `json:"pathways"`
	Proteins int64 `json:"proteins"`
}

// PathwayRecord is the population-time representation of a pathway and its
// gene set, as read from a gene-sets document before it is handed to a
// store's bulk loader.
type PathwayRecord struct {
	ResourceID string   `json:"id"`
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	Genes      []string `json:"genes"`
}
