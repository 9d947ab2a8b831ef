package retrieve

import (
	"github.com/samber/lo"

	"github.com/MrWong99/graphseer/pkg/entity"
)

// ─────────────────────────────────────────────────────────────────────────────
// Bundle types
// ─────────────────────────────────────────────────────────────────────────────

// SimilarRecord is one past question/query pair found by similarity search.
type SimilarRecord struct {
	// Question is the previously asked natural-language question.
	Question string `json:"question"`

	// Query is the graph query that answered it.
	Query string `json:"query"`

	// Score is the cosine similarity to the current question.
	Score float64 `json:"score"`

	// Metadata carries any further payload fields stored with the record.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SchemaSummary is the graph schema flattened to sorted identifier sets, the
// shape rendered into generation prompts and used for membership checks
// during query validation. Every identifier has passed validation; anything
// that failed was dropped at assembly time.
type SchemaSummary struct {
	// Labels are the node labels present in the graph.
	Labels []string `json:"labels"`

	// Relationships are the relationship types present in the graph.
	Relationships []string `json:"relationships"`

	// Properties are the property names observed across all labels.
	Properties []string `json:"properties"`
}

// HasLabel reports whether name is a known node label.
func (s SchemaSummary) HasLabel(name string) bool {
	return lo.Contains(s.Labels, name)
}

// HasRelationship reports whether name is a known relationship type.
func (s SchemaSummary) HasRelationship(name string) bool {
	return lo.Contains(s.Relationships, name)
}

// HasProperty reports whether name is a known property.
func (s SchemaSummary) HasProperty(name string) bool {
	return lo.Contains(s.Properties, name)
}

// EntityMeta is the prose layer of an entity configuration, stripped of the
// storage and sync details the generator has no use for.
type EntityMeta struct {
	// Label is the entity's node label.
	Label string `json:"label"`

	// Description is the one-line summary from the configuration.
	Description string `json:"description,omitempty"`

	// Aliases are the entity's natural-language synonyms.
	Aliases []string `json:"aliases,omitempty"`

	// PropertyDocs maps property names to prose descriptions.
	PropertyDocs map[string]string `json:"property_docs,omitempty"`

	// Scopes lists the entity's scope names, sorted.
	Scopes []string `json:"scopes,omitempty"`
}

// DetectedScope is a scope whose name appeared in the question, expanded
// with everything the generator needs to honour it.
type DetectedScope struct {
	// Entity is the label of the entity owning the scope.
	Entity string `json:"entity"`

	// Spec is the scope's declarative predicate.
	Spec entity.ScopeSpec `json:"spec"`

	// Concept is the one-line prose statement of what the scope means.
	Concept string `json:"concept,omitempty"`

	// Rules are prose invariants the generated query must respect.
	Rules []string `json:"rules,omitempty"`

	// Examples are sample questions the scope applies to.
	Examples []string `json:"examples,omitempty"`
}

// Metadata is the entity-detection part of a bundle: which configured
// entities the question mentions, with their metadata and matched scopes.
type Metadata struct {
	// Detected lists the labels of every mentioned entity, sorted.
	Detected []string `json:"detected_entities"`

	// Entities maps each detected label to its metadata.
	Entities map[string]EntityMeta `json:"entity_configs"`

	// Scopes maps each matched scope name to its expanded definition.
	Scopes map[string]DetectedScope `json:"detected_scopes"`
}

// Empty reports whether detection found nothing. An empty Metadata is a
// valid outcome: it tells the generator to fall back to a schema-only
// prompt.
func (m Metadata) Empty() bool {
	return len(m.Detected) == 0 && len(m.Scopes) == 0
}

// Bundle is the assembled retrieval context for one question. Any of its
// sections may be empty when the corresponding source failed; the failure is
// then described in Errors.
type Bundle struct {
	// Question is the question the bundle was assembled for, verbatim.
	Question string `json:"question"`

	// Embedding is the question's embedding vector. Empty when the embedder
	// failed.
	Embedding []float32 `json:"question_embedding,omitempty"`

	// Similar holds past question/query records, highest score first.
	Similar []SimilarRecord `json:"similar"`

	// Schema is the graph schema as identifier sets.
	Schema SchemaSummary `json:"graph_schema"`

	// Examples maps each schema label to up to N sample rows.
	Examples map[string][]map[string]any `json:"examples_by_label"`

	// Metadata is the entity-detection result.
	Metadata Metadata `json:"entity_metadata"`

	// Errors describes every source failure absorbed during assembly.
	Errors []string `json:"errors,omitempty"`
}
