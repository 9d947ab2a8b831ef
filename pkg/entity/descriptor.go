package entity

// Descriptor is the host application's declaration of one domain entity:
// everything auto-discovery needs that Go cannot reflect out of an ORM at
// runtime. Hosts register descriptors in code or load them from YAML
// (pkg/discover's loader); discovery turns each into a validated [Config].
type Descriptor struct {
	// Name is the entity type's short name. Becomes the graph label.
	Name string `yaml:"name"`

	// Table names the storage table backing the entity. Discovery introspects
	// it for column types and indexes; an empty table is a configuration
	// error.
	Table string `yaml:"table"`

	// Attributes are the entity's declared writable attribute names. The
	// projected property set is the intersection of these with the table's
	// columns, minus the configured exclusion list.
	Attributes []string `yaml:"attributes,omitempty"`

	// Relations are the entity's belongs-to-one relations.
	Relations []Relation `yaml:"relations,omitempty"`

	// Scopes maps filter-method names to their builders. Names are
	// normalized to snake_case with any leading "scope" prefix stripped.
	// Builders are Go-only; YAML descriptors declare scopes as explicit
	// ScopeDefs on Override instead.
	Scopes map[string]ScopeBuilder `yaml:"-"`

	// Override, when non-nil, is used verbatim (after validation) instead of
	// any derivation — the first tier of precedence.
	Override *Config `yaml:"override,omitempty"`

	// Aliases are merged into the derived alias set.
	Aliases []string `yaml:"aliases,omitempty"`

	// Description seeds semantics.description.
	Description string `yaml:"description,omitempty"`

	// PropertyDocs seeds semantics.property_docs.
	PropertyDocs map[string]string `yaml:"property_docs,omitempty"`

	// VectorCollection overrides the derived collection name.
	VectorCollection string `yaml:"vector_collection,omitempty"`

	// EmbedFields overrides the derived embedding input fields.
	EmbedFields []string `yaml:"embed_fields,omitempty"`

	// AutoSync overrides the default all-true sync policy.
	AutoSync *SyncPolicy `yaml:"auto_sync,omitempty"`
}

// Relation declares a belongs-to-one relation from the owning entity.
type Relation struct {
	// Name is the relation's method name on the host entity (e.g. "team").
	Name string `yaml:"name"`

	// Target is the related entity's short name (e.g. "Team").
	Target string `yaml:"target"`

	// LocalKey is the foreign-key column on the owning entity
	// (e.g. "team_id").
	LocalKey string `yaml:"local_key"`
}

// HasAttribute reports whether name is one of the declared attributes.
func (d *Descriptor) HasAttribute(name string) bool {
	for _, a := range d.Attributes {
		if a == name {
			return true
		}
	}
	return false
}

// RelationNamed returns the relation with the given name.
func (d *Descriptor) RelationNamed(name string) (Relation, bool) {
	for _, r := range d.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return Relation{}, false
}
