// Package discover derives declarative entity configurations from registered
// descriptors and the live storage schema.
//
// Discovery is three-tier, first match wins: an explicit override on the
// descriptor, a stored row in the legacy configuration table, and full
// derivation from the descriptor plus storage introspection. Results are
// memoized per label in a [Cache]; call [Cache.Clear] after a schema
// migration.
//
// Derivation projects the intersection of declared attributes and storage
// columns (minus an exclusion list) into node properties, synthesizes one
// relationship per declared relation, shapes the vector side from long-text
// columns, and translates registered scope builders into declarative
// [entity.ScopeSpec] values via [entity.TranslateScope].
package discover

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/MrWong99/graphseer/pkg/entity"
	"github.com/MrWong99/graphseer/pkg/errs"
)

// defaultMaxDepth bounds transitive relation traversal in DiscoverGraph.
const defaultMaxDepth = 5

// defaultExclusions are attribute names never projected into the graph
// unless a relation claims them as foreign keys.
var defaultExclusions = []string{"password", "remember_token"}

// textLikeNames are attribute names embedded regardless of storage type.
var textLikeNames = map[string]bool{
	"description": true,
	"bio":         true,
	"notes":       true,
	"body":        true,
	"content":     true,
	"details":     true,
	"summary":     true,
}

// longTextTypes are storage column types treated as embeddable prose.
var longTextTypes = map[string]bool{
	"text":   true,
	"citext": true,
}

// Column describes one storage column as reported by a SchemaIntrospector.
type Column struct {
	Name     string
	DataType string // lowercased storage type, e.g. "text", "bigint"
}

// SchemaIntrospector reads table shape from the backing storage schema.
type SchemaIntrospector interface {
	// TableColumns returns the columns of table in ordinal order. A table
	// unknown to the schema yields an empty slice and no error.
	TableColumns(ctx context.Context, table string) ([]Column, error)

	// IndexedColumns returns the names of columns covered by at least one
	// index on table.
	IndexedColumns(ctx context.Context, table string) ([]string, error)
}

// ConfigSource looks up stored entity configurations by label. A nil config
// with a nil error means nothing is stored for the label.
type ConfigSource interface {
	Lookup(ctx context.Context, label string) (*entity.Config, error)
}

// Discoverer produces entity configurations with three-tier precedence.
// Construct with New; the zero value is not usable.
type Discoverer struct {
	schema     SchemaIntrospector
	registry   *Registry
	configs    ConfigSource
	cache      *Cache
	exclusions map[string]bool
	maxDepth   int
}

// Option customises a Discoverer.
type Option func(*Discoverer)

// WithConfigSource installs the legacy configuration lookup consulted
// between the descriptor override and full derivation.
func WithConfigSource(src ConfigSource) Option {
	return func(d *Discoverer) { d.configs = src }
}

// WithCache replaces the default non-expiring cache.
func WithCache(c *Cache) Option {
	return func(d *Discoverer) { d.cache = c }
}

// WithExclusions replaces the default property exclusion list
// (password, remember_token).
func WithExclusions(names ...string) Option {
	return func(d *Discoverer) {
		d.exclusions = make(map[string]bool, len(names))
		for _, n := range names {
			d.exclusions[n] = true
		}
	}
}

// WithMaxDepth bounds transitive relation traversal in DiscoverGraph.
// Values below 1 are ignored. Default 5.
func WithMaxDepth(n int) Option {
	return func(d *Discoverer) {
		if n >= 1 {
			d.maxDepth = n
		}
	}
}

// New returns a Discoverer that derives configurations using schema for
// storage introspection and reg for relation resolution.
func New(schema SchemaIntrospector, reg *Registry, opts ...Option) *Discoverer {
	if reg == nil {
		reg = NewRegistry()
	}
	d := &Discoverer{
		schema:   schema,
		registry: reg,
		cache:    NewCache(0),
		maxDepth: defaultMaxDepth,
	}
	d.exclusions = make(map[string]bool, len(defaultExclusions))
	for _, n := range defaultExclusions {
		d.exclusions[n] = true
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Cache returns the discoverer's result cache, for invalidation on schema
// change.
func (d *Discoverer) Cache() *Cache {
	return d.cache
}

// Registry returns the descriptor registry the discoverer resolves relations
// against.
func (d *Discoverer) Registry() *Registry {
	return d.registry
}

// Discover produces the configuration for desc, consulting the cache first.
func (d *Discoverer) Discover(ctx context.Context, desc *entity.Descriptor) (*entity.Config, error) {
	if desc == nil {
		return nil, errs.New(errs.KindInvalidInput, "discover", "descriptor must not be nil")
	}
	if err := entity.CheckIdentifier("entity name", desc.Name); err != nil {
		return nil, err
	}

	if cfg, ok := d.cache.Get(desc.Name); ok {
		return cfg, nil
	}

	cfg, err := d.build(ctx, desc)
	if err != nil {
		return nil, err
	}
	d.cache.Put(desc.Name, cfg)
	return cfg, nil
}

// DiscoverByName looks the descriptor up in the registry and discovers it.
func (d *Discoverer) DiscoverByName(ctx context.Context, name string) (*entity.Config, error) {
	desc, ok := d.registry.Get(name)
	if !ok {
		return nil, errs.Newf(errs.KindInvalidInput, "discover", "unknown entity %s", entity.Redact(name))
	}
	return d.Discover(ctx, desc)
}

// DiscoverAll discovers every registered descriptor, keyed by canonical name.
func (d *Discoverer) DiscoverAll(ctx context.Context) (map[string]*entity.Config, error) {
	out := make(map[string]*entity.Config, d.registry.Len())
	for _, name := range d.registry.Names() {
		desc, ok := d.registry.Get(name)
		if !ok {
			continue
		}
		cfg, err := d.Discover(ctx, desc)
		if err != nil {
			return nil, err
		}
		out[name] = cfg
	}
	return out, nil
}

// DiscoverGraph discovers desc and, transitively, the registered targets of
// its relationships, up to the configured depth bound. A label already
// visited is not re-entered, so cyclic entity graphs terminate; its
// relationship entries keep their label-only references either way.
func (d *Discoverer) DiscoverGraph(ctx context.Context, desc *entity.Descriptor) (map[string]*entity.Config, error) {
	out := make(map[string]*entity.Config)
	if err := d.walk(ctx, desc, 0, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Discoverer) walk(ctx context.Context, desc *entity.Descriptor, depth int, out map[string]*entity.Config) error {
	if desc == nil {
		return nil
	}
	if _, seen := out[desc.Name]; seen {
		return nil
	}
	cfg, err := d.Discover(ctx, desc)
	if err != nil {
		return err
	}
	out[desc.Name] = cfg

	if depth >= d.maxDepth {
		slog.DebugContext(ctx, "relation traversal reached depth bound",
			"entity", desc.Name, "depth", depth)
		return nil
	}
	for _, rel := range cfg.Relationships {
		target, ok := d.registry.Get(rel.TargetLabel)
		if !ok {
			continue
		}
		if err := d.walk(ctx, target, depth+1, out); err != nil {
			return err
		}
	}
	return nil
}

// build resolves the three precedence tiers for desc.
func (d *Discoverer) build(ctx context.Context, desc *entity.Descriptor) (*entity.Config, error) {
	if desc.Override != nil {
		cfg := *desc.Override
		if cfg.Label == "" {
			cfg.Label = desc.Name
		}
		cfg.NormalizeAliases()
		if err := cfg.Validate(); err != nil {
			return nil, errs.Wrapf(errs.KindConfiguration, "discover", err,
				"override configuration for %s is invalid", desc.Name)
		}
		return &cfg, nil
	}

	if d.configs != nil {
		cfg, err := d.configs.Lookup(ctx, desc.Name)
		if err != nil {
			return nil, errs.Wrapf(errs.KindConfiguration, "discover", err,
				"lookup stored configuration for %s", desc.Name)
		}
		if cfg != nil {
			cfg.NormalizeAliases()
			if err := cfg.Validate(); err != nil {
				return nil, errs.Wrapf(errs.KindConfiguration, "discover", err,
					"stored configuration for %s is invalid", desc.Name)
			}
			return cfg, nil
		}
	}

	return d.derive(ctx, desc)
}

// derive builds the configuration from the descriptor and the storage schema.
func (d *Discoverer) derive(ctx context.Context, desc *entity.Descriptor) (*entity.Config, error) {
	if desc.Table == "" {
		return nil, errs.Newf(errs.KindConfiguration, "discover",
			"entity %s declares no table and no override", desc.Name)
	}
	if err := entity.CheckIdentifier("table", desc.Table); err != nil {
		return nil, err
	}
	if d.schema == nil {
		return nil, errs.Newf(errs.KindConfiguration, "discover",
			"entity %s needs storage introspection but none is configured", desc.Name)
	}

	cols, err := d.schema.TableColumns(ctx, desc.Table)
	if err != nil {
		return nil, errs.Wrapf(errs.KindConfiguration, "discover", err,
			"introspect table %s", desc.Table)
	}
	if len(cols) == 0 {
		return nil, errs.Newf(errs.KindConfiguration, "discover",
			"entity %s: table %s has no storage schema", desc.Name, desc.Table)
	}
	colTypes := make(map[string]string, len(cols))
	for _, c := range cols {
		colTypes[c.Name] = strings.ToLower(c.DataType)
	}

	rels, err := d.deriveRelationships(ctx, desc, colTypes)
	if err != nil {
		return nil, err
	}

	props, inProps, err := d.deriveProperties(ctx, desc, cols, colTypes, rels)
	if err != nil {
		return nil, err
	}

	vec, err := d.deriveVector(ctx, desc, props, colTypes, inProps)
	if err != nil {
		return nil, err
	}

	policy := entity.DefaultSyncPolicy()
	if desc.AutoSync != nil {
		policy = *desc.AutoSync
	}

	cfg := &entity.Config{
		Label:         desc.Name,
		Properties:    props,
		Relationships: rels,
		Vector:        vec,
		Semantics: entity.Semantics{
			Aliases:      d.deriveAliases(desc),
			Description:  desc.Description,
			Scopes:       d.deriveScopes(ctx, desc),
			PropertyDocs: filterDocs(desc.PropertyDocs, inProps),
		},
		AutoSync: policy,
	}
	cfg.NormalizeAliases()
	if err := cfg.Validate(); err != nil {
		return nil, errs.Wrapf(errs.KindConfiguration, "discover", err,
			"derived configuration for %s is invalid", desc.Name)
	}
	return cfg, nil
}

// deriveRelationships synthesizes one outgoing edge per declared relation.
// Incomplete declarations and local keys missing from storage are logged and
// omitted; identifiers that fail validation abort discovery.
func (d *Discoverer) deriveRelationships(ctx context.Context, desc *entity.Descriptor, colTypes map[string]string) ([]entity.Relationship, error) {
	var rels []entity.Relationship
	for _, rel := range desc.Relations {
		if rel.Name == "" || rel.Target == "" || rel.LocalKey == "" {
			slog.WarnContext(ctx, "omitting incomplete relation declaration",
				"entity", desc.Name, "relation", rel.Name)
			continue
		}
		if err := entity.CheckIdentifier("relation name", rel.Name); err != nil {
			return nil, err
		}
		if err := entity.CheckIdentifier("relation target", rel.Target); err != nil {
			return nil, err
		}
		if err := entity.CheckIdentifier("relation local key", rel.LocalKey); err != nil {
			return nil, err
		}
		if _, ok := colTypes[rel.LocalKey]; !ok {
			slog.WarnContext(ctx, "omitting relation whose local key is not a storage column",
				"entity", desc.Name, "relation", rel.Name, "local_key", rel.LocalKey)
			continue
		}
		rels = append(rels, entity.Relationship{
			Type:        upperSnake(rel.Name),
			TargetLabel: rel.Target,
			ForeignKey:  rel.LocalKey,
		})
	}
	return rels, nil
}

// deriveProperties projects the intersection of declared attributes and
// storage columns, minus the exclusion list. The primary id and relationship
// foreign keys always survive. An entity declaring no attributes opts into
// every storage column.
func (d *Discoverer) deriveProperties(ctx context.Context, desc *entity.Descriptor, cols []Column, colTypes map[string]string, rels []entity.Relationship) ([]string, map[string]bool, error) {
	attrs := desc.Attributes
	if len(attrs) == 0 {
		attrs = make([]string, 0, len(cols))
		for _, c := range cols {
			attrs = append(attrs, c.Name)
		}
	}

	inProps := make(map[string]bool, len(attrs)+1)
	var props []string
	add := func(name string) {
		if !inProps[name] {
			inProps[name] = true
			props = append(props, name)
		}
	}

	if _, ok := colTypes["id"]; ok {
		add("id")
	}
	for _, attr := range attrs {
		if err := entity.CheckIdentifier("attribute", attr); err != nil {
			return nil, nil, err
		}
		if _, ok := colTypes[attr]; !ok {
			slog.DebugContext(ctx, "declared attribute has no storage column",
				"entity", desc.Name, "attribute", attr)
			continue
		}
		if d.exclusions[attr] {
			continue
		}
		add(attr)
	}
	for _, rel := range rels {
		add(rel.ForeignKey)
	}
	return props, inProps, nil
}

// deriveVector shapes the similarity-search side: explicit embed fields win,
// otherwise long-text columns and text-like attribute names are embedded.
// No embeddable fields disables the vector shape.
func (d *Discoverer) deriveVector(ctx context.Context, desc *entity.Descriptor, props []string, colTypes map[string]string, inProps map[string]bool) (entity.VectorSpec, error) {
	embed := slices.Clone(desc.EmbedFields)
	if len(embed) == 0 {
		for _, p := range props {
			if textLikeNames[p] || longTextTypes[colTypes[p]] {
				embed = append(embed, p)
			}
		}
	}
	if len(embed) == 0 {
		if desc.VectorCollection != "" {
			slog.WarnContext(ctx, "vector collection declared but no embeddable fields found, vector disabled",
				"entity", desc.Name, "collection", desc.VectorCollection)
		}
		return entity.VectorSpec{}, nil
	}

	collection := desc.VectorCollection
	if collection == "" {
		collection = plural(strings.ToLower(desc.Name))
	}
	if err := entity.CheckIdentifier("vector collection", collection); err != nil {
		return entity.VectorSpec{}, err
	}

	indexed, err := d.schema.IndexedColumns(ctx, desc.Table)
	if err != nil {
		return entity.VectorSpec{}, errs.Wrapf(errs.KindConfiguration, "discover", err,
			"introspect indexes for %s", desc.Table)
	}
	meta := []string{"id"}
	for _, col := range indexed {
		if col != "id" && inProps[col] {
			meta = append(meta, col)
		}
	}

	return entity.VectorSpec{
		Collection:  collection,
		EmbedFields: embed,
		Metadata:    meta,
	}, nil
}

// deriveAliases seeds the alias list with the label's casing and plural
// variants; NormalizeAliases deduplicates afterwards.
func (d *Discoverer) deriveAliases(desc *entity.Descriptor) []string {
	aliases := []string{
		desc.Name,
		plural(desc.Name),
		snakeCase(desc.Name),
		plural(snakeCase(desc.Name)),
	}
	return append(aliases, desc.Aliases...)
}

// deriveScopes translates each registered scope builder into a declarative
// spec. A builder that fails translation (including one that panics) is
// logged and omitted, never fatal.
func (d *Discoverer) deriveScopes(ctx context.Context, desc *entity.Descriptor) map[string]entity.ScopeDef {
	if len(desc.Scopes) == 0 {
		return nil
	}
	resolve := d.registry.Resolver()
	scopes := make(map[string]entity.ScopeDef, len(desc.Scopes))
	for rawName, build := range desc.Scopes {
		name := normalizeScopeName(rawName)
		spec, warnings, err := entity.TranslateScope(desc.Name, build, resolve)
		if err != nil {
			slog.WarnContext(ctx, "omitting scope that failed translation",
				"entity", desc.Name, "scope", name, "error", err)
			continue
		}
		for _, w := range warnings {
			slog.WarnContext(ctx, "scope translated with warning",
				"entity", desc.Name, "scope", name, "warning", w)
		}
		scopes[name] = entity.ScopeDef{Spec: spec}
	}
	if len(scopes) == 0 {
		return nil
	}
	return scopes
}

// filterDocs keeps only documentation for properties that survived
// projection.
func filterDocs(docs map[string]string, inProps map[string]bool) map[string]string {
	var kept map[string]string
	for prop, doc := range docs {
		if !inProps[prop] {
			continue
		}
		if kept == nil {
			kept = make(map[string]string)
		}
		kept[prop] = doc
	}
	return kept
}
