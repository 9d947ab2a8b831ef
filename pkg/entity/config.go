// Package entity defines the declarative entity configuration consumed by
// every graphseer subsystem: the graph/vector shape of a domain entity, its
// semantic metadata, and the scope specifications that express business
// predicates without any query-language syntax.
//
// A [Config] is produced by auto-discovery (pkg/discover) or supplied
// explicitly, validated once, and from then on shared by reference. It is
// immutable by convention: nothing in this module mutates a Config after
// [Config.Validate] has accepted it.
package entity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/MrWong99/graphseer/pkg/errs"
)

// Config describes how one entity type maps onto the graph store, the vector
// store, and the semantic layer. The zero value is not usable; build one via
// discovery or literal construction, then call [Config.Validate].
type Config struct {
	// Label is the canonical entity name used as the graph node label.
	Label string `yaml:"label" json:"label"`

	// Properties is the ordered set of attribute names projected into the
	// graph node. Must contain the primary "id" property.
	Properties []string `yaml:"properties" json:"properties"`

	// Relationships are the outgoing edges materialized during ingestion.
	Relationships []Relationship `yaml:"relationships,omitempty" json:"relationships,omitempty"`

	// Vector describes the similarity-search shape. An empty Collection
	// disables vector storage for this entity.
	Vector VectorSpec `yaml:"vector,omitempty" json:"vector,omitempty"`

	// Semantics carries the natural-language metadata consumed by retrieval
	// and prompt assembly.
	Semantics Semantics `yaml:"semantics,omitempty" json:"semantics,omitempty"`

	// AutoSync controls which host entity events propagate to the stores.
	AutoSync SyncPolicy `yaml:"auto_sync,omitempty" json:"auto_sync,omitempty"`
}

// Relationship declares one outgoing edge type from the owning entity.
type Relationship struct {
	// Type is the edge type written to the graph (e.g. "HAS_ROLE").
	Type string `yaml:"type" json:"type"`

	// TargetLabel is the label of the node the edge points to.
	TargetLabel string `yaml:"target_label" json:"target_label"`

	// ForeignKey names the source property holding the target's id. When the
	// property is absent or null on a given entity, no edge is written.
	ForeignKey string `yaml:"foreign_key,omitempty" json:"foreign_key,omitempty"`

	// PropertyMap optionally copies source properties onto the edge,
	// keyed source property → edge property.
	PropertyMap map[string]string `yaml:"property_map,omitempty" json:"property_map,omitempty"`
}

// VectorSpec describes an entity's similarity-search shape.
type VectorSpec struct {
	// Collection names the vector bucket. Empty disables vector storage.
	Collection string `yaml:"collection,omitempty" json:"collection,omitempty"`

	// EmbedFields is the ordered list of text properties concatenated to form
	// the embedding input. Must be non-empty when Collection is set.
	EmbedFields []string `yaml:"embed_fields,omitempty" json:"embed_fields,omitempty"`

	// Metadata is the subset of properties stored beside the vector for
	// filtered search. Always contains "id".
	Metadata []string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Semantics carries the prose layer of an entity configuration.
type Semantics struct {
	// Aliases are natural-language synonyms for the entity, deduplicated
	// case-insensitively.
	Aliases []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`

	// Description is a one-line prose summary of the entity.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Scopes maps scope names to their declarative definitions.
	Scopes map[string]ScopeDef `yaml:"scopes,omitempty" json:"scopes,omitempty"`

	// PropertyDocs maps property names to prose descriptions.
	PropertyDocs map[string]string `yaml:"property_docs,omitempty" json:"property_docs,omitempty"`
}

// SyncPolicy holds the per-operation auto-sync flags. Discovery defaults all
// three to true; a zero value means fully disabled.
type SyncPolicy struct {
	Create bool `yaml:"create" json:"create"`
	Update bool `yaml:"update" json:"update"`
	Delete bool `yaml:"delete" json:"delete"`
}

// DefaultSyncPolicy returns the policy applied when none is declared:
// all operations sync.
func DefaultSyncPolicy() SyncPolicy {
	return SyncPolicy{Create: true, Update: true, Delete: true}
}

// HasVector reports whether the entity has a vector shape.
func (c *Config) HasVector() bool {
	return c.Vector.Collection != ""
}

// HasProperty reports whether name is one of the projected properties.
func (c *Config) HasProperty(name string) bool {
	for _, p := range c.Properties {
		if p == name {
			return true
		}
	}
	return false
}

// MatchTerms returns every term that detects this entity in a question:
// the label plus all aliases, lowercased and deduplicated.
func (c *Config) MatchTerms() []string {
	terms := make([]string, 0, len(c.Semantics.Aliases)+1)
	terms = append(terms, strings.ToLower(c.Label))
	for _, a := range c.Semantics.Aliases {
		terms = append(terms, strings.ToLower(a))
	}
	return lo.Uniq(terms)
}

// Validate checks every structural invariant of the configuration. It
// returns all violations joined together rather than stopping at the first.
func (c *Config) Validate() error {
	var violations []error

	if err := CheckIdentifier("config label", c.Label); err != nil {
		violations = append(violations, err)
	}

	if len(c.Properties) == 0 {
		violations = append(violations, errs.New(errs.KindConfiguration, "entity", "properties must not be empty"))
	}
	if !c.HasProperty("id") {
		violations = append(violations, errs.Newf(errs.KindConfiguration, "entity", "%s: properties must include the primary \"id\"", c.Label))
	}
	seen := make(map[string]bool, len(c.Properties))
	for _, p := range c.Properties {
		if err := CheckIdentifier("property", p); err != nil {
			violations = append(violations, err)
			continue
		}
		if seen[p] {
			violations = append(violations, errs.Newf(errs.KindConfiguration, "entity", "%s: duplicate property %q", c.Label, p))
		}
		seen[p] = true
	}

	for _, rel := range c.Relationships {
		if err := CheckIdentifier("relationship type", rel.Type); err != nil {
			violations = append(violations, err)
		}
		if err := CheckIdentifier("relationship target", rel.TargetLabel); err != nil {
			violations = append(violations, err)
		}
		if rel.ForeignKey != "" && !c.HasProperty(rel.ForeignKey) {
			violations = append(violations, errs.Newf(errs.KindConfiguration, "entity",
				"%s: relationship %s foreign key %q is not a source property", c.Label, rel.Type, rel.ForeignKey))
		}
	}

	violations = append(violations, c.validateVector()...)
	violations = append(violations, c.validateSemantics()...)

	return errors.Join(violations...)
}

func (c *Config) validateVector() []error {
	if !c.HasVector() {
		return nil
	}
	var violations []error
	if err := CheckIdentifier("vector collection", c.Vector.Collection); err != nil {
		violations = append(violations, err)
	}
	if len(c.Vector.EmbedFields) == 0 {
		violations = append(violations, errs.Newf(errs.KindConfiguration, "entity",
			"%s: vector enabled but embed_fields is empty", c.Label))
	}
	for _, f := range c.Vector.EmbedFields {
		if !c.HasProperty(f) {
			violations = append(violations, errs.Newf(errs.KindConfiguration, "entity",
				"%s: embed field %q is not a source property", c.Label, f))
		}
	}
	hasID := false
	for _, m := range c.Vector.Metadata {
		if !c.HasProperty(m) {
			violations = append(violations, errs.Newf(errs.KindConfiguration, "entity",
				"%s: vector metadata %q is not a source property", c.Label, m))
		}
		if m == "id" {
			hasID = true
		}
	}
	if !hasID {
		violations = append(violations, errs.Newf(errs.KindConfiguration, "entity",
			"%s: vector metadata must include \"id\"", c.Label))
	}
	return violations
}

func (c *Config) validateSemantics() []error {
	var violations []error
	for name, def := range c.Semantics.Scopes {
		if err := CheckIdentifier("scope name", name); err != nil {
			violations = append(violations, err)
			continue
		}
		if err := def.Spec.Validate(); err != nil {
			violations = append(violations, fmt.Errorf("scope %q: %w", name, err))
		}
	}
	for prop := range c.Semantics.PropertyDocs {
		if !c.HasProperty(prop) {
			violations = append(violations, errs.Newf(errs.KindConfiguration, "entity",
				"%s: property doc for unknown property %q", c.Label, prop))
		}
	}
	return violations
}

// NormalizeAliases lowercase-deduplicates the alias list in place, keeping
// the first spelling of each alias. Discovery calls this once at build time.
func (c *Config) NormalizeAliases() {
	c.Semantics.Aliases = lo.UniqBy(c.Semantics.Aliases, strings.ToLower)
}
