// Package model holds the concrete pathway and protein models shared by
// the relational store implementations.
package model

import (
	"github.com/compath-server/internal/domain"
)

// Pathway is a relational-store-backed domain.Pathway.
type Pathway struct {
	ID    string
	Title string
	Link  string
	Genes domain.GeneSet
}

// ResourceID returns the database-specific pathway identifier.
func (p *Pathway) ResourceID() string { return p.ID }

// Name returns the human-readable pathway name. Names are not unique.
func (p *Pathway) Name() string { return p.Title }

// URL returns the external reference for the pathway.
func (p *Pathway) URL() string { return p.Link }

// GeneSet returns the distinct HGNC symbols of the pathway's members.
func (p *Pathway) GeneSet() domain.GeneSet { return p.Genes }

// Protein is a relational-store-backed domain.Protein. RowID is the
// synthetic primary key; two rows may share an HGNC symbol.
type Protein struct {
	RowID    int64
	Symbol   string
	Pathways []string
}

// HGNCSymbol returns the protein's gene symbol.
func (p *Protein) HGNCSymbol() string { return p.Symbol }

// PathwayIDs returns the identifiers of the pathways this protein belongs to.
func (p *Protein) PathwayIDs() []string { return p.Pathways }
