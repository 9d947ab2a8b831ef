package querygen

// Pattern is one reusable abstract query shape rendered into generation
// prompts. Patterns carry no concrete identifiers; the LLM instantiates
// them with labels and properties from the schema section of the prompt.
// The library itself never produces query text.
type Pattern struct {
	// Name identifies the pattern. Scope variants map onto these names.
	Name string

	// Description says when the pattern applies.
	Description string

	// Params lists the placeholders the shape needs.
	Params []string

	// Shape is the abstract query skeleton with <param> placeholders.
	Shape string
}

var library = []Pattern{
	{
		Name:        "property_filter",
		Description: "Select nodes of one label whose property satisfies a comparison.",
		Params:      []string{"label", "property", "operator", "value"},
		Shape:       "MATCH (n:<label>) WHERE n.<property> <operator> <value> RETURN n LIMIT <limit>",
	},
	{
		Name:        "property_range",
		Description: "Select nodes whose property falls between two bounds.",
		Params:      []string{"label", "property", "low", "high"},
		Shape:       "MATCH (n:<label>) WHERE n.<property> >= <low> AND n.<property> <= <high> RETURN n LIMIT <limit>",
	},
	{
		Name:        "relationship_traversal",
		Description: "Follow typed relationships from a start label and return what is reached.",
		Params:      []string{"start_label", "relationship", "target_label"},
		Shape:       "MATCH (a:<start_label>)-[:<relationship>]->(b:<target_label>) RETURN DISTINCT b LIMIT <limit>",
	},
	{
		Name:        "entity_with_relationship",
		Description: "Select nodes that have at least one relationship of a given type.",
		Params:      []string{"label", "relationship", "target_label"},
		Shape:       "MATCH (n:<label>) WHERE EXISTS { MATCH (n)-[:<relationship>]->(:<target_label>) } RETURN n LIMIT <limit>",
	},
	{
		Name:        "entity_without_relationship",
		Description: "Select nodes lacking any relationship of a given type.",
		Params:      []string{"label", "relationship", "target_label"},
		Shape:       "MATCH (n:<label>) WHERE NOT EXISTS { MATCH (n)-[:<relationship>]->(:<target_label>) } RETURN n LIMIT <limit>",
	},
	{
		Name:        "temporal_filter",
		Description: "Select nodes whose timestamp property falls inside a window relative to now.",
		Params:      []string{"label", "property", "window"},
		Shape:       "MATCH (n:<label>) WHERE n.<property> >= datetime() - duration(<window>) RETURN n LIMIT <limit>",
	},
	{
		Name:        "aggregation",
		Description: "Count or aggregate nodes grouped by a property.",
		Params:      []string{"label", "group_property", "aggregate"},
		Shape:       "MATCH (n:<label>) RETURN n.<group_property> AS group, <aggregate> AS value ORDER BY value DESC LIMIT <limit>",
	},
	{
		Name:        "entity_with_aggregated_relationship",
		Description: "Select entities by a count over their related nodes.",
		Params:      []string{"label", "relationship", "target_label", "min_count"},
		Shape:       "MATCH (n:<label>)-[:<relationship>]->(m:<target_label>) WITH n, count(m) AS c WHERE c >= <min_count> RETURN n, c ORDER BY c DESC LIMIT <limit>",
	},
}

// Library returns a copy of the fixed pattern library.
func Library() []Pattern {
	out := make([]Pattern, len(library))
	copy(out, library)
	return out
}
