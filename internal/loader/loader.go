// Package loader performs the bulk population step: it reads a gene-sets
// document and hands the records to a store. This is the only write path
// into a pathway database; the query layer never mutates entities.
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/compath-server/internal/domain"
)

// SymbolValidator checks and normalizes gene symbols before they are
// stored. Implemented by the HGNC client.
type SymbolValidator interface {
	ValidateSymbol(ctx context.Context, symbol string) (normalized string, ok bool, err error)
}

// Document is a gene-sets file: the resource it came from and its pathway
// records.
type Document struct {
	Resource string                 `json:"resource"`
	Pathways []domain.PathwayRecord `json:"pathways"`
}

// Result summarizes a population run.
type Result struct {
	RunID        string `json:"run_id"`
	Resource     string `json:"resource"`
	Pathways     int    `json:"pathways"`
	Genes        int    `json:"genes"`
	Normalized   int    `json:"normalized"`
	Unrecognized int    `json:"unrecognized"`
}

// Loader bulk-loads gene-sets documents into a store.
type Loader struct {
	store     domain.Store
	validator SymbolValidator
	log       *logrus.Logger
}

// New creates a loader. validator may be nil to skip symbol validation.
func New(store domain.Store, validator SymbolValidator, logger *logrus.Logger) *Loader {
	if logger == nil {
		logger = logrus.New()
	}
	return &Loader{
		store:     store,
		validator: validator,
		log:       logger,
	}
}

// LoadFile reads a gene-sets JSON document from disk and loads it.
func (l *Loader) LoadFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening gene-sets file: %w", err)
	}
	defer f.Close()

	var doc Document
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding gene-sets file: %w", err)
	}

	return l.Load(ctx, &doc)
}

// Load validates and stores a gene-sets document in a single bulk call.
func (l *Loader) Load(ctx context.Context, doc *Document) (*Result, error) {
	result := &Result{
		RunID:    uuid.New().String(),
		Resource: doc.Resource,
		Pathways: len(doc.Pathways),
	}

	log := l.log.WithFields(logrus.Fields{
		"run_id":   result.RunID,
		"resource": doc.Resource,
		"pathways": len(doc.Pathways),
	})
	log.Info("Starting population run")

	for i := range doc.Pathways {
		record := &doc.Pathways[i]
		if record.ResourceID == "" {
			return nil, fmt.Errorf("pathway %d (%q) has no resource id", i, record.Name)
		}
		result.Genes += len(record.Genes)

		if l.validator == nil {
			continue
		}
		if err := l.validateGenes(ctx, record, result); err != nil {
			return nil, err
		}
	}

	if err := l.store.LoadGeneSets(ctx, doc.Pathways); err != nil {
		return nil, fmt.Errorf("loading gene sets: %w", err)
	}

	log.WithFields(logrus.Fields{
		"genes":        result.Genes,
		"normalized":   result.Normalized,
		"unrecognized": result.Unrecognized,
	}).Info("Population run completed")

	return result, nil
}

// validateGenes normalizes a record's symbols in place. Validator errors
// degrade to pass-through: population is best-effort on validation and
// strict only on storage errors.
func (l *Loader) validateGenes(ctx context.Context, record *domain.PathwayRecord, result *Result) error {
	for i, symbol := range record.Genes {
		normalized, ok, err := l.validator.ValidateSymbol(ctx, symbol)
		if err != nil {
			l.log.WithFields(logrus.Fields{
				"symbol": symbol,
				"error":  err,
			}).Warn("Symbol validation unavailable, keeping symbol as-is")
			continue
		}
		if !ok {
			result.Unrecognized++
			l.log.WithFields(logrus.Fields{
				"symbol":  symbol,
				"pathway": record.ResourceID,
			}).Warn("Unrecognized gene symbol")
			continue
		}
		if normalized != symbol {
			record.Genes[i] = normalized
			result.Normalized++
		}
	}
	return nil
}
