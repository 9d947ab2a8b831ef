package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/graphseer/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Stores.Graph.URI = "neo4j://localhost:7687"

	d := config.Diff(cfg, cfg)
	if !d.Empty() {
		t.Errorf("expected empty diff for identical configs, got %v", d.Summary())
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("log level is a live tunable; got restart sections %v", d.RestartRequired)
	}
}

func TestDiff_TunableSections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		check  func(config.ConfigDiff) bool
	}{
		{
			name:   "generation",
			mutate: func(c *config.Config) { c.QueryGeneration.MaxRetries = 7 },
			check:  func(d config.ConfigDiff) bool { return d.GenerationChanged },
		},
		{
			name:   "execution",
			mutate: func(c *config.Config) { c.QueryExecution.Limit = 500 },
			check:  func(d config.ConfigDiff) bool { return d.ExecutionChanged },
		},
		{
			name:   "response",
			mutate: func(c *config.Config) { c.ResponseGeneration.SampleRows = 25 },
			check:  func(d config.ConfigDiff) bool { return d.ResponseChanged },
		},
		{
			name:   "auto_sync",
			mutate: func(c *config.Config) { c.AutoSync.Delete = false },
			check:  func(d config.ConfigDiff) bool { return d.AutoSyncChanged },
		},
		{
			name:   "discovery max depth",
			mutate: func(c *config.Config) { c.AutoDiscovery.MaxDepth = 3 },
			check:  func(d config.ConfigDiff) bool { return d.DiscoveryChanged },
		},
		{
			name: "discovery exclusions",
			mutate: func(c *config.Config) {
				c.AutoDiscovery.ExcludeProperties = append(c.AutoDiscovery.ExcludeProperties, "ssn")
			},
			check: func(d config.ConfigDiff) bool { return d.DiscoveryChanged },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			old := config.Default()
			new := config.Default()
			tt.mutate(new)

			d := config.Diff(old, new)
			if !tt.check(d) {
				t.Errorf("expected the %s section to be flagged as changed", tt.name)
			}
			if len(d.RestartRequired) != 0 {
				t.Errorf("tunable change must not require restart, got %v", d.RestartRequired)
			}
		})
	}
}

func TestDiff_RestartSections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		section string
	}{
		{
			name:    "listen addr",
			mutate:  func(c *config.Config) { c.Server.ListenAddr = ":9090" },
			section: "server",
		},
		{
			name: "tls added",
			mutate: func(c *config.Config) {
				c.Server.TLS = &config.TLSConfig{CertFile: "c.pem", KeyFile: "k.pem"}
			},
			section: "server",
		},
		{
			name:    "graph store",
			mutate:  func(c *config.Config) { c.Stores.Graph.URI = "neo4j://other:7687" },
			section: "stores",
		},
		{
			name:    "vector driver",
			mutate:  func(c *config.Config) { c.Stores.Vector.Driver = config.VectorPgvector },
			section: "stores",
		},
		{
			name:    "llm provider",
			mutate:  func(c *config.Config) { c.Providers.LLM.Model = "gpt-5" },
			section: "providers",
		},
		{
			name: "embeddings options",
			mutate: func(c *config.Config) {
				c.Providers.Embeddings.Options = map[string]any{"dimensions": 256}
			},
			section: "providers",
		},
		{
			name:    "breaker threshold",
			mutate:  func(c *config.Config) { c.Resilience.Breaker.FailureThreshold = 10 },
			section: "resilience",
		},
		{
			name:    "mcp enabled",
			mutate:  func(c *config.Config) { c.MCP.Enabled = true },
			section: "mcp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			old := config.Default()
			new := config.Default()
			tt.mutate(new)

			d := config.Diff(old, new)
			if !slices.Contains(d.RestartRequired, tt.section) {
				t.Errorf("expected RestartRequired to contain %q, got %v", tt.section, d.RestartRequired)
			}
		})
	}
}

func TestDiff_Summary(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Server.LogLevel = config.LogWarn
	new.QueryExecution.TimeoutSeconds = 60
	new.Stores.Graph.URI = "neo4j://replacement:7687"

	d := config.Diff(old, new)
	sum := d.Summary()

	if !slices.Contains(sum, "server.log_level") {
		t.Errorf("summary missing server.log_level: %v", sum)
	}
	if !slices.Contains(sum, "query_execution") {
		t.Errorf("summary missing query_execution: %v", sum)
	}
	if !slices.Contains(sum, "stores (restart required)") {
		t.Errorf("summary missing restart marker for stores: %v", sum)
	}
}

func TestDiff_EqualProviderOptions(t *testing.T) {
	t.Parallel()
	old := config.Default()
	old.Providers.LLM.Options = map[string]any{"seed": 42}
	new := config.Default()
	new.Providers.LLM.Options = map[string]any{"seed": 42}

	d := config.Diff(old, new)
	if slices.Contains(d.RestartRequired, "providers") {
		t.Error("deep-equal provider options must not flag the providers section")
	}
}
