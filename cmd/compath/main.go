// Command compath is the command-line interface for a pathway database:
// populate it from a gene-sets document, query it, and export it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/compath-server/internal/config"
	"github.com/compath-server/internal/export"
	"github.com/compath-server/internal/loader"
	"github.com/compath-server/internal/manager"
	"github.com/compath-server/internal/store"
	"github.com/compath-server/pkg/hgnc"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cli := &CLI{configManager: configManager}
	if err := cli.Run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// CLI dispatches pathway database commands.
type CLI struct {
	configManager *config.Manager
}

// Run executes the command selected by args.
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	switch args[0] {
	case "summarize":
		return c.summarize(ctx)
	case "populate":
		return c.populate(ctx, args[1:])
	case "export":
		return c.export(ctx, args[1:])
	case "query-gene":
		return c.queryGene(ctx, args[1:])
	case "query-gene-set":
		return c.queryGeneSet(ctx, args[1:])
	case "search":
		return c.search(ctx, args[1:])
	case "help", "--help", "-h":
		return c.showHelp()
	default:
		fmt.Printf("Unknown command: %s\n\n", args[0])
		return c.showHelp()
	}
}

func (c *CLI) showHelp() error {
	help := `
ComPath Pathway Database CLI

Usage:
  compath <command> [options]

Commands:
  summarize                 Show pathway and protein counts
  populate <genesets.json>  Load a gene-sets document into the database
  export [-d dir]           Export all gene sets to a spreadsheet
  query-gene <symbol>       List the pathways containing a gene
  query-gene-set <sym>...   Run a gene-set enrichment query
  search <name>             Find pathways by approximate name

Examples:
  # Load a gene-sets document
  compath populate kegg_gene_sets.json

  # Query a single gene
  compath query-gene TP53

  # Enrich a gene set
  compath query-gene-set TP53 BRCA1 EGFR

  # Export every pathway's gene set to xlsx
  compath export -d ./exports
`
	fmt.Println(help)
	return nil
}

// openManager opens the configured store and wraps it in a manager. The
// caller must Close the returned store.
func (c *CLI) openManager(ctx context.Context) (*manager.Manager, func(), error) {
	cfg := c.configManager.GetConfig()
	logger := config.NewLogger(cfg.Logging)

	pathwayStore, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening pathway store: %w", err)
	}

	m, err := manager.NewFromStore(pathwayStore, logger)
	if err != nil {
		pathwayStore.Close()
		return nil, nil, err
	}
	return m, func() { pathwayStore.Close() }, nil
}

func (c *CLI) summarize(ctx context.Context) error {
	m, closeStore, err := c.openManager(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	populated, err := m.IsPopulated(ctx)
	if err != nil {
		return err
	}
	if !populated {
		fmt.Println("Database is empty. Run 'compath populate <genesets.json>' first.")
		return nil
	}

	summary, err := m.Summarize(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Pathway Database Summary")
	fmt.Println("========================")
	fmt.Printf("Pathways: %d\n", summary.Pathways)
	fmt.Printf("Proteins: %d\n", summary.Proteins)
	return nil
}

func (c *CLI) populate(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("populate requires a gene-sets file")
	}

	cfg := c.configManager.GetConfig()
	logger := config.NewLogger(cfg.Logging)

	pathwayStore, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("opening pathway store: %w", err)
	}
	defer pathwayStore.Close()

	var validator loader.SymbolValidator
	if cfg.HGNC.Enabled {
		validator = hgnc.NewClient(cfg.HGNC)
	}

	l := loader.New(pathwayStore, validator, logger)
	result, err := l.LoadFile(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Loaded %d pathways (%d genes) from %s\n",
		result.Pathways, result.Genes, args[0])
	if result.Normalized > 0 {
		fmt.Printf("Normalized %d gene symbols\n", result.Normalized)
	}
	if result.Unrecognized > 0 {
		fmt.Printf("Warning: %d gene symbols were not recognized by HGNC\n", result.Unrecognized)
	}
	return nil
}

func (c *CLI) export(ctx context.Context, args []string) error {
	cfg := c.configManager.GetConfig()
	directory := cfg.Export.Directory

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--directory", "-d":
			if i+1 < len(args) {
				directory = args[i+1]
				i++
			}
		}
	}

	m, closeStore, err := c.openManager(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	geneSets, err := m.ExportGeneSets(ctx)
	if err != nil {
		return err
	}
	if len(geneSets) == 0 {
		fmt.Println("Nothing to export: the database is empty.")
		return nil
	}

	logger := config.NewLogger(cfg.Logging)
	path, err := export.WriteGeneSets(geneSets, directory, cfg.Export.ModuleName, logger)
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d gene sets to %s\n", len(geneSets), path)
	return nil
}

func (c *CLI) queryGene(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("query-gene requires a gene symbol")
	}

	m, closeStore, err := c.openManager(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	results, err := m.QueryGene(ctx, args[0])
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Printf("No pathways contain %s\n", args[0])
		return nil
	}

	fmt.Printf("Pathways containing %s:\n", args[0])
	for _, r := range results {
		fmt.Printf("  %-16s %s (%d genes)\n", r.PathwayID, r.PathwayName, r.PathwaySize)
	}
	return nil
}

func (c *CLI) queryGeneSet(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("query-gene-set requires at least one gene symbol")
	}

	m, closeStore, err := c.openManager(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	results, err := m.QueryGeneSet(ctx, args)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No pathways matched the gene set.")
		return nil
	}

	// Most-enriched pathways first.
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := results[ids[i]], results[ids[j]]
		if a.MappedProteins != b.MappedProteins {
			return a.MappedProteins > b.MappedProteins
		}
		return a.PathwayID < b.PathwayID
	})

	fmt.Printf("%-16s %-40s %8s %8s\n", "PATHWAY", "NAME", "MAPPED", "SIZE")
	for _, id := range ids {
		r := results[id]
		fmt.Printf("%-16s %-40s %8d %8d\n", r.PathwayID, r.PathwayName, r.MappedProteins, r.PathwaySize)
	}
	return nil
}

func (c *CLI) search(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("search requires a pathway name")
	}

	m, closeStore, err := c.openManager(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	matches, err := m.QuerySimilarPathways(ctx, args[0], 10)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Printf("No pathways match %q\n", args[0])
		return nil
	}

	payload, err := json.MarshalIndent(matches, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(payload))
	return nil
}
