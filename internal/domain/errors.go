package domain

import "errors"

// ErrNotFound is returned by store lookups when no entity matches. The
// enrichment aggregator treats it as a dangling reference and skips the
// pathway rather than failing the query.
var ErrNotFound = errors.New("not found")

// Construction-time configuration errors. A manager refuses to construct
// without both model capabilities so that a misconfigured adapter fails at
// startup, not at its first query.
var (
	ErrMissingPathwayModel = errors.New("pathway model accessor is not set")
	ErrMissingProteinModel = errors.New("protein model accessor is not set")
)
