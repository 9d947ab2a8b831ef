package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs. Tunables the server
// applies without restart are tracked individually; changed sections that
// only take effect on restart are listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	GenerationChanged bool
	ExecutionChanged  bool
	ResponseChanged   bool
	AutoSyncChanged   bool
	DiscoveryChanged  bool

	// RestartRequired names sections whose changes are noted but not applied.
	RestartRequired []string
}

// Empty reports whether no change was detected.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.GenerationChanged && !d.ExecutionChanged &&
		!d.ResponseChanged && !d.AutoSyncChanged && !d.DiscoveryChanged &&
		len(d.RestartRequired) == 0
}

// Summary lists the changed sections in a loggable form.
func (d ConfigDiff) Summary() []string {
	var out []string
	if d.LogLevelChanged {
		out = append(out, "server.log_level")
	}
	if d.GenerationChanged {
		out = append(out, "query_generation")
	}
	if d.ExecutionChanged {
		out = append(out, "query_execution")
	}
	if d.ResponseChanged {
		out = append(out, "response_generation")
	}
	if d.AutoSyncChanged {
		out = append(out, "auto_sync")
	}
	if d.DiscoveryChanged {
		out = append(out, "auto_discovery")
	}
	for _, name := range d.RestartRequired {
		out = append(out, name+" (restart required)")
	}
	return out
}

// Diff compares old and new configs and returns what changed.
// Only the tracked tunables are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.QueryGeneration != new.QueryGeneration {
		d.GenerationChanged = true
	}
	if old.QueryExecution != new.QueryExecution {
		d.ExecutionChanged = true
	}
	if old.ResponseGeneration != new.ResponseGeneration {
		d.ResponseChanged = true
	}
	if old.AutoSync != new.AutoSync {
		d.AutoSyncChanged = true
	}
	if discoveryChanged(old.AutoDiscovery, new.AutoDiscovery) {
		d.DiscoveryChanged = true
	}

	// Sections that cannot be swapped under a running engine.
	if old.Server.ListenAddr != new.Server.ListenAddr || !equalTLS(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if old.Stores != new.Stores {
		d.RestartRequired = append(d.RestartRequired, "stores")
	}
	if !equalProviderEntry(old.Providers.LLM, new.Providers.LLM) ||
		!equalProviderEntry(old.Providers.Embeddings, new.Providers.Embeddings) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Resilience != new.Resilience {
		d.RestartRequired = append(d.RestartRequired, "resilience")
	}
	if old.MCP != new.MCP {
		d.RestartRequired = append(d.RestartRequired, "mcp")
	}

	return d
}

func discoveryChanged(old, new AutoDiscoveryConfig) bool {
	return old.DescriptorsFile != new.DescriptorsFile ||
		old.MaxDepth != new.MaxDepth ||
		old.CacheTTLSeconds != new.CacheTTLSeconds ||
		!slices.Equal(old.ExcludeProperties, new.ExcludeProperties)
}

func equalTLS(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// equalProviderEntry compares entries field by field; the free-form Options
// map keeps the whole struct from being comparable.
func equalProviderEntry(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL &&
		a.Model == b.Model && reflect.DeepEqual(a.Options, b.Options)
}
