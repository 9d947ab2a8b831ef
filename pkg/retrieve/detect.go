package retrieve

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/MrWong99/graphseer/pkg/entity"
)

// detectEntities scans question against every configuration and returns the
// detection result. A configuration matches when the question contains its
// label, one of its aliases, or one of its scope names as a whole word,
// case-insensitively. A scope mention always pulls in the owning entity.
//
// When two entities declare the same scope name and both match, the entity
// with the lexicographically smaller label owns the scope entry; both
// entities are still detected.
func detectEntities(question string, cfgs []*entity.Config) Metadata {
	meta := Metadata{
		Entities: make(map[string]EntityMeta),
		Scopes:   make(map[string]DetectedScope),
	}
	lowered := strings.ToLower(question)

	ordered := lo.Filter(cfgs, func(c *entity.Config, _ int) bool { return c != nil })
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Label < ordered[j].Label })

	for _, cfg := range ordered {
		if _, seen := meta.Entities[cfg.Label]; seen {
			continue
		}

		matched := false
		for _, term := range cfg.MatchTerms() {
			if containsWord(lowered, term) {
				matched = true
				break
			}
		}

		for _, name := range scopeNames(cfg) {
			if !containsWord(lowered, strings.ToLower(name)) {
				continue
			}
			matched = true
			if _, taken := meta.Scopes[name]; taken {
				continue
			}
			def := cfg.Semantics.Scopes[name]
			meta.Scopes[name] = DetectedScope{
				Entity:   cfg.Label,
				Spec:     def.Spec,
				Concept:  def.Concept,
				Rules:    def.BusinessRules,
				Examples: def.Examples,
			}
		}

		if matched {
			meta.Detected = append(meta.Detected, cfg.Label)
			meta.Entities[cfg.Label] = metaOf(cfg)
		}
	}
	return meta
}

// metaOf strips a configuration to the prose layer carried in a bundle.
func metaOf(cfg *entity.Config) EntityMeta {
	return EntityMeta{
		Label:        cfg.Label,
		Description:  cfg.Semantics.Description,
		Aliases:      cfg.Semantics.Aliases,
		PropertyDocs: cfg.Semantics.PropertyDocs,
		Scopes:       scopeNames(cfg),
	}
}

// scopeNames returns the configuration's scope names, sorted.
func scopeNames(cfg *entity.Config) []string {
	if len(cfg.Semantics.Scopes) == 0 {
		return nil
	}
	names := lo.Keys(cfg.Semantics.Scopes)
	sort.Strings(names)
	return names
}

// containsWord reports whether needle occurs in haystack delimited by
// non-word characters on both sides. Both strings must already be
// lowercased. The needle may span several words ("work order"); only its
// outer edges need word boundaries.
func containsWord(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	for from := 0; ; {
		i := strings.Index(haystack[from:], needle)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(needle)
		if boundaryBefore(haystack, start) && boundaryAfter(haystack, end) {
			return true
		}
		from = start + 1
	}
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
