// Package store holds the concrete pathway and protein models shared by
// the relational store implementations. The types live in the leaf
// package internal/store/model so the implementations can import them
// without cycling back through this package; they are aliased here to
// keep store.Pathway and store.Protein as the canonical names.
package store

import (
	"github.com/compath-server/internal/store/model"
)

// Pathway is a relational-store-backed domain.Pathway.
type Pathway = model.Pathway

// Protein is a relational-store-backed domain.Protein.
type Protein = model.Protein
