package ingest

import "time"

// Report describes the outcome of a single entity write.
type Report struct {
	// Label is the entity label the write targeted.
	Label string `json:"label"`

	// ID is the entity's id.
	ID string `json:"id"`

	// GraphStored reports whether the node upsert reached the graph store.
	GraphStored bool `json:"graph_stored"`

	// VectorStored reports whether the point upsert reached the vector
	// store. False with a warning when the entity has no embeddable text or
	// the embedder failed; in both cases the graph side is still written.
	VectorStored bool `json:"vector_stored"`

	// Edges counts the relationships materialized alongside the node.
	Edges int `json:"edges"`

	// Warnings records degradations that did not abort the write.
	Warnings []string `json:"warnings,omitempty"`

	// Duration is the wall-clock time the write took.
	Duration time.Duration `json:"duration"`
}

// Outcome is the per-entity result inside a [BatchReport].
type Outcome struct {
	// Label and ID identify the entity. ID is empty when the entity was
	// rejected before an id could be extracted.
	Label string `json:"label"`
	ID    string `json:"id,omitempty"`

	// Report carries the write outcome when the entity succeeded.
	Report *Report `json:"report,omitempty"`

	// Err is the failure that stopped this entity. Other entities in the
	// batch are unaffected.
	Err error `json:"-"`
}

// BatchReport is the result of a batch ingest. Outcomes preserve input
// order; failures are isolated per entity and never abort the batch.
type BatchReport struct {
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Outcomes  []Outcome `json:"outcomes"`
}
