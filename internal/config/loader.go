package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile", "openai-native"},
	"embeddings": {"openai", "ollama"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Decoding starts from [Default], so fields absent from the document keep
// their default values. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil && (cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Stores
	if cfg.Stores.Graph.URI == "" {
		errs = append(errs, errors.New("stores.graph.uri is required"))
	}
	driver := cfg.Stores.Vector.Driver
	if driver == "" {
		driver = VectorQdrant
	}
	switch {
	case !driver.IsValid():
		errs = append(errs, fmt.Errorf("stores.vector.driver %q is invalid; valid values: qdrant, pgvector", driver))
	case driver == VectorQdrant:
		if cfg.Stores.Vector.Host == "" {
			errs = append(errs, errors.New("stores.vector.host is required when driver is qdrant"))
		}
		if port := cfg.Stores.Vector.Port; port < 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("stores.vector.port %d is out of range [0, 65535]", port))
		}
		if cfg.Stores.Vector.DSN != "" {
			slog.Warn("stores.vector.dsn is ignored when driver is qdrant")
		}
	case driver == VectorPgvector:
		if cfg.Stores.Vector.DSN == "" {
			errs = append(errs, errors.New("stores.vector.dsn is required when driver is pgvector"))
		}
		if cfg.Stores.Vector.Dimensions <= 0 {
			errs = append(errs, errors.New("stores.vector.dimensions must be positive when driver is pgvector"))
		}
		if cfg.Stores.Vector.Host != "" {
			slog.Warn("stores.vector.host is ignored when driver is pgvector")
		}
	}

	// Providers
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}
	if cfg.Providers.LLM.Model == "" {
		errs = append(errs, errors.New("providers.llm.model is required"))
	}
	if cfg.Providers.Embeddings.Name == "" {
		errs = append(errs, errors.New("providers.embeddings.name is required"))
	}
	if cfg.Providers.Embeddings.Model == "" {
		errs = append(errs, errors.New("providers.embeddings.model is required"))
	}
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	// Auto-discovery
	if cfg.AutoDiscovery.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("auto_discovery.max_depth %d must not be negative", cfg.AutoDiscovery.MaxDepth))
	}
	if cfg.AutoDiscovery.CacheTTLSeconds < 0 {
		errs = append(errs, fmt.Errorf("auto_discovery.cache_ttl_seconds %d must not be negative", cfg.AutoDiscovery.CacheTTLSeconds))
	}

	// Auto-sync
	if cfg.AutoSync.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("auto_sync.queue_size %d must not be negative", cfg.AutoSync.QueueSize))
	}
	if cfg.AutoSync.Workers < 0 {
		errs = append(errs, fmt.Errorf("auto_sync.workers %d must not be negative", cfg.AutoSync.Workers))
	}

	// Query generation
	if cfg.QueryGeneration.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("query_generation.max_retries %d must not be negative", cfg.QueryGeneration.MaxRetries))
	}
	if t := cfg.QueryGeneration.Temperature; t < 0 || t > 2 {
		errs = append(errs, fmt.Errorf("query_generation.temperature %.2f is out of range [0, 2]", t))
	}
	if cfg.QueryGeneration.MaxComplexity < 0 {
		errs = append(errs, fmt.Errorf("query_generation.max_complexity %d must not be negative", cfg.QueryGeneration.MaxComplexity))
	}
	if cfg.QueryGeneration.RowLimit < 0 {
		errs = append(errs, fmt.Errorf("query_generation.row_limit %d must not be negative", cfg.QueryGeneration.RowLimit))
	}

	// Query execution
	if s := cfg.QueryExecution.TimeoutSeconds; s < 0 || s > 120 {
		errs = append(errs, fmt.Errorf("query_execution.timeout_seconds %d is out of range [0, 120]", s))
	}
	if n := cfg.QueryExecution.Limit; n < 0 || n > 1000 {
		errs = append(errs, fmt.Errorf("query_execution.limit %d is out of range [0, 1000]", n))
	}
	if f := cfg.QueryExecution.Format; f != "" && !f.IsValid() {
		errs = append(errs, fmt.Errorf("query_execution.format %q is invalid; valid values: table, graph, json", f))
	}
	if cfg.QueryGeneration.AllowWrite && cfg.QueryExecution.ReadOnly {
		slog.Warn("query_generation.allow_write is enabled but query_execution.read_only is true; generated write queries will be rejected at execution")
	}

	// Response generation
	if f := cfg.ResponseGeneration.Format; f != "" && !f.IsValid() {
		errs = append(errs, fmt.Errorf("response_generation.format %q is invalid; valid values: text, markdown, json", f))
	}
	if st := cfg.ResponseGeneration.Style; st != "" && !st.IsValid() {
		errs = append(errs, fmt.Errorf("response_generation.style %q is invalid; valid values: concise, detailed, technical", st))
	}
	if cfg.ResponseGeneration.SampleRows < 0 {
		errs = append(errs, fmt.Errorf("response_generation.sample_rows %d must not be negative", cfg.ResponseGeneration.SampleRows))
	}

	// Resilience
	if cfg.Resilience.Breaker.FailureThreshold < 0 {
		errs = append(errs, fmt.Errorf("resilience.breaker.failure_threshold %d must not be negative", cfg.Resilience.Breaker.FailureThreshold))
	}
	if cfg.Resilience.Breaker.RecoveryTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("resilience.breaker.recovery_timeout_seconds %d must not be negative", cfg.Resilience.Breaker.RecoveryTimeoutSeconds))
	}
	if cfg.Resilience.Retry.StoreAttempts < 0 {
		errs = append(errs, fmt.Errorf("resilience.retry.store_attempts %d must not be negative", cfg.Resilience.Retry.StoreAttempts))
	}
	if cfg.Resilience.Retry.NetworkAttempts < 0 {
		errs = append(errs, fmt.Errorf("resilience.retry.network_attempts %d must not be negative", cfg.Resilience.Retry.NetworkAttempts))
	}

	// MCP
	if cfg.MCP.Enabled && cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("mcp.enabled requires server.listen_addr"))
	}

	// Discovery source availability
	if cfg.Stores.Postgres.DSN == "" && cfg.AutoDiscovery.DescriptorsFile == "" {
		slog.Warn("neither stores.postgres.dsn nor auto_discovery.descriptors_file is set; entities must be registered through the API")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
