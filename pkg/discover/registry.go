package discover

import (
	"slices"
	"strings"
	"sync"

	"github.com/MrWong99/graphseer/pkg/entity"
	"github.com/MrWong99/graphseer/pkg/errs"
)

// Registry holds the entity descriptors known to the engine, keyed by name.
// Lookups are case-insensitive; the canonical spelling is the one registered.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*entity.Descriptor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*entity.Descriptor)}
}

// Register adds desc to the registry. The descriptor's name and table must be
// valid identifiers; a name already registered (in any casing) is rejected.
func (r *Registry) Register(desc *entity.Descriptor) error {
	if desc == nil {
		return errs.New(errs.KindInvalidInput, "discover", "descriptor must not be nil")
	}
	if err := entity.CheckIdentifier("entity name", desc.Name); err != nil {
		return err
	}
	if desc.Table != "" {
		if err := entity.CheckIdentifier("table", desc.Table); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(desc.Name)
	if existing, ok := r.byName[key]; ok {
		return errs.Newf(errs.KindConfiguration, "discover",
			"entity %s already registered as %s", desc.Name, existing.Name)
	}
	r.byName[key] = desc
	return nil
}

// Get returns the descriptor registered under name, matching
// case-insensitively.
func (r *Registry) Get(name string) (*entity.Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.byName[strings.ToLower(name)]
	return desc, ok
}

// Names returns the canonical names of all registered descriptors, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for _, desc := range r.byName {
		names = append(names, desc.Name)
	}
	slices.Sort(names)
	return names
}

// Len reports the number of registered descriptors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// RegisterScope attaches a named scope builder to an already registered
// descriptor. YAML-loaded descriptors carry no builders, so applications add
// them here before the first discovery of the entity.
func (r *Registry) RegisterScope(entityName, scopeName string, build entity.ScopeBuilder) error {
	if build == nil {
		return errs.New(errs.KindInvalidInput, "discover", "scope builder must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	desc, ok := r.byName[strings.ToLower(entityName)]
	if !ok {
		return errs.Newf(errs.KindConfiguration, "discover",
			"cannot attach scope %s: entity %s is not registered", scopeName, entityName)
	}
	if desc.Scopes == nil {
		desc.Scopes = make(map[string]entity.ScopeBuilder)
	}
	desc.Scopes[scopeName] = build
	return nil
}

// Resolver returns a relation resolver backed by the registry. It maps
// (label, relation) to the synthesized edge type and the relation's target
// label, and reports false for unknown labels or relations.
func (r *Registry) Resolver() entity.RelationResolver {
	return func(label, relation string) (string, string, bool) {
		desc, ok := r.Get(label)
		if !ok {
			return "", "", false
		}
		rel, ok := desc.RelationNamed(relation)
		if !ok {
			return "", "", false
		}
		return upperSnake(rel.Name), rel.Target, true
	}
}
