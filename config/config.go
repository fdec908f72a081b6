// Package config loads process configuration from the environment (plus an
// optional .env file via godotenv, the teacher's idiom for local dev),
// following spec §6's recognized options.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/siherrmann/graphrag/internal/errs"
	"github.com/siherrmann/graphrag/internal/pgdb"
)

// GraphStoreBackend selects the Store implementation.
type GraphStoreBackend string

const (
	GraphStoreRelational GraphStoreBackend = "relational"
	GraphStoreNative     GraphStoreBackend = "graph-native"
)

// Config is the fully resolved process configuration.
type Config struct {
	EnableGraphRAG bool
	GraphStore     GraphStoreBackend

	DB pgdb.Config

	EmbeddingProvider   string
	EmbeddingModel      string
	EmbeddingDimension  int
	VectorStoreURL      string
	VectorStoreAPIKey   string
	ArtifactDir         string

	// LLMProvider selects the Extraction/Answer/Summarize capability
	// backend: "hugot" for a local ONNX NER model (extraction only),
	// "http" for a remote chat-completions vendor (answer/summarize),
	// or "" to run on heuristics alone. Source vendor identity itself is
	// out of scope; these fields only carry the dial info a capability
	// implementation needs.
	LLMProvider string
	LLMBaseURL  string
	LLMModel    string
	LLMAPIKey   string

	DefaultNamespace string

	IndexScheduleInterval time.Duration

	ClusterSummaryDailyTokenBudget int
	ClusterSummaryMaxTokensPer     int
	ClusterSummaryRateLimitPerMin  int

	// RedisURL, when set, backs the cluster package's summarization
	// rate-limit/budget counters with Redis instead of an in-process map, so
	// multiple graphragd instances share one budget. Recompute deduplication
	// stays in-process.
	RedisURL string

	APIKey string

	// HTTPAddr is the bind address for cmd/graphragd serve, carried here
	// even though HTTP transport itself is out of scope for the core.
	HTTPAddr string
}

// overlay holds the subset of Config that a YAML file may pre-set; env vars
// still win over it field-by-field, matching godotenv's existing precedence
// (file provides defaults, environment overrides).
type overlay struct {
	GraphStore       string `yaml:"graph_store"`
	DefaultNamespace string `yaml:"default_namespace"`
	EmbeddingModel   string `yaml:"embedding_model"`
	VectorStoreURL   string `yaml:"vector_store_url"`
	RedisURL         string `yaml:"redis_url"`
	ArtifactDir      string `yaml:"artifact_dir"`
}

// loadOverlay reads path's YAML contents if present; a missing file (the
// common case) is not an error.
func loadOverlay(path string) (overlay, error) {
	var o overlay
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return o, nil
		}
		return o, err
	}
	if err := yaml.Unmarshal(data, &o); err != nil {
		return o, err
	}
	return o, nil
}

// Load reads a .env file if present (ignored if absent), layers an optional
// GRAPHRAG_CONFIG_FILE YAML overlay under the environment, and resolves
// Config, applying the spec's documented defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	ov, err := loadOverlay(envString("GRAPHRAG_CONFIG_FILE", "graphrag.yaml"))
	if err != nil {
		return Config{}, errs.New(errs.ConfigError, "load config", err)
	}

	cfg := Config{
		EnableGraphRAG: envBool("ENABLE_GRAPHRAG", true),
		GraphStore:     GraphStoreBackend(envString("GRAPH_STORE", firstNonEmpty(ov.GraphStore, string(GraphStoreRelational)))),

		DB: pgdb.Config{
			Host:     envString("GRAPHRAG_DB_HOST", "localhost"),
			Port:     envString("GRAPHRAG_DB_PORT", "5432"),
			User:     envString("GRAPHRAG_DB_USER", "user"),
			Password: envString("GRAPHRAG_DB_PASSWORD", "password"),
			DBName:   envString("GRAPHRAG_DB_NAME", "database"),
			SSLMode:  envString("GRAPHRAG_DB_SSLMODE", "disable"),
		},

		EmbeddingProvider:  envString("EMBEDDING_PROVIDER", ""),
		EmbeddingModel:     envString("EMBEDDING_MODEL", ov.EmbeddingModel),
		EmbeddingDimension: envInt("EMBEDDING_DIMENSION", 384),
		VectorStoreURL:     envString("VECTOR_STORE_URL", ov.VectorStoreURL),
		VectorStoreAPIKey:  envString("VECTOR_STORE_API_KEY", ""),
		ArtifactDir:        envString("GRAPHRAG_ARTIFACT_DIR", firstNonEmpty(ov.ArtifactDir, "./artifacts")),

		LLMProvider: envString("LLM_PROVIDER", ""),
		LLMBaseURL:  envString("LLM_BASE_URL", ""),
		LLMModel:    envString("LLM_MODEL", ""),
		LLMAPIKey:   envString("LLM_API_KEY", ""),

		DefaultNamespace: envString("DEFAULT_NAMESPACE", firstNonEmpty(ov.DefaultNamespace, "default")),

		IndexScheduleInterval: time.Duration(envInt("INDEX_SCHEDULE_INTERVAL_SECONDS", 0)) * time.Second,

		ClusterSummaryDailyTokenBudget: envInt("CLUSTER_SUMMARY_DAILY_TOKEN_BUDGET", 20000),
		ClusterSummaryMaxTokensPer:     envInt("CLUSTER_SUMMARY_MAX_TOKENS_PER", 400),
		ClusterSummaryRateLimitPerMin:  envInt("CLUSTER_SUMMARY_RATE_LIMIT_PER_MIN", 15),

		RedisURL: envString("REDIS_URL", ov.RedisURL),

		APIKey: envString("GRAPHRAG_API_KEY", ""),

		HTTPAddr: envString("GRAPHRAG_HTTP_ADDR", ":8088"),
	}

	if cfg.GraphStore != GraphStoreRelational && cfg.GraphStore != GraphStoreNative {
		return Config{}, errs.New(errs.ConfigError, "load config", errInvalidGraphStore(cfg.GraphStore))
	}

	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func errInvalidGraphStore(v GraphStoreBackend) error {
	return &invalidGraphStoreError{value: string(v)}
}

type invalidGraphStoreError struct{ value string }

func (e *invalidGraphStoreError) Error() string {
	return "GRAPH_STORE must be \"relational\" or \"graph-native\", got " + e.value
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
