package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the RCA engine.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Clients    ClientsConfig    `yaml:"clients"`
	Reasoning  ReasoningConfig  `yaml:"reasoning"`
	Evidence   EvidenceConfig   `yaml:"evidence"`
	Confidence ConfidenceConfig `yaml:"confidence"`
	Storage    StorageConfig    `yaml:"storage"`
	Cache      CacheConfig      `yaml:"cache"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig controls the HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// ClientsConfig groups the external evidence backends.
type ClientsConfig struct {
	Blob BlobStoreConfig `yaml:"blob"`
	Logs LogStoreConfig  `yaml:"logs"`
	Docs DocIndexConfig  `yaml:"docs"`
}

// BlobStoreConfig configures source blob and deployment artifact retrieval.
type BlobStoreConfig struct {
	BaseURL      string        `yaml:"baseURL"`
	SourcePath   string        `yaml:"sourcePath"`
	ArtifactPath string        `yaml:"artifactPath"`
	Timeout      time.Duration `yaml:"timeout"`
}

// LogStoreConfig configures access to the execution log store.
type LogStoreConfig struct {
	BaseURL   string        `yaml:"baseURL"`
	QueryPath string        `yaml:"queryPath"`
	Timeout   time.Duration `yaml:"timeout"`
	Window    time.Duration `yaml:"window"`
}

// DocIndexConfig configures the knowledge document index.
type DocIndexConfig struct {
	BaseURL    string        `yaml:"baseURL"`
	SearchPath string        `yaml:"searchPath"`
	APIKey     string        `yaml:"apiKey"`
	Timeout    time.Duration `yaml:"timeout"`
	TopK       int           `yaml:"topK"`
}

// ReasoningConfig configures the tool-calling reasoning backend.
type ReasoningConfig struct {
	APIKey        string        `yaml:"apiKey"`
	Model         string        `yaml:"model"`
	MaxSteps      int           `yaml:"maxSteps"`
	StepTimeout   time.Duration `yaml:"stepTimeout"`
	OverallBudget time.Duration `yaml:"overallBudget"`
}

// EvidenceConfig bounds evidence payload sizes and tool dispatch.
type EvidenceConfig struct {
	SourceMaxBytes int           `yaml:"sourceMaxBytes"`
	LogMaxLines    int           `yaml:"logMaxLines"`
	ToolTimeout    time.Duration `yaml:"toolTimeout"`
}

// ConfidenceConfig calibrates the evidence scoring formula. Component
// weights are upper bounds per evidence kind; thresholds map score to level.
type ConfidenceConfig struct {
	KnowledgeWeight   float64 `yaml:"knowledgeWeight"`
	SourceWeight      float64 `yaml:"sourceWeight"`
	LogsWeight        float64 `yaml:"logsWeight"`
	PartialLogsWeight float64 `yaml:"partialLogsWeight"`
	VeryHigh          float64 `yaml:"veryHigh"`
	High              float64 `yaml:"high"`
	Medium            float64 `yaml:"medium"`
	Low               float64 `yaml:"low"`
}

// StorageConfig controls the analysis record store. The Persist* flags gate
// whether raw evidence payloads are written or only size markers.
type StorageConfig struct {
	DatabaseURL   string `yaml:"databaseURL"`
	PersistSource bool   `yaml:"persistSource"`
	PersistLogs   bool   `yaml:"persistLogs"`
	PersistDocs   bool   `yaml:"persistDocs"`
}

// CacheConfig controls Valkey-backed event dedupe and knowledge caching.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	KnowledgeTTL time.Duration `yaml:"knowledgeTTL"`
	DedupeTTL    time.Duration `yaml:"dedupeTTL"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("LUMEN_RCA_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Clients: ClientsConfig{
			Blob: BlobStoreConfig{
				SourcePath:   "/api/v1/blobs/source",
				ArtifactPath: "/api/v1/blobs/artifact",
				Timeout:      5 * time.Second,
			},
			Logs: LogStoreConfig{
				QueryPath: "/api/v1/logs/query",
				Timeout:   5 * time.Second,
				Window:    15 * time.Minute,
			},
			Docs: DocIndexConfig{
				SearchPath: "/api/v1/search",
				Timeout:    5 * time.Second,
				TopK:       3,
			},
		},
		Reasoning: ReasoningConfig{
			Model:         "gemini-2.0-flash",
			MaxSteps:      8,
			StepTimeout:   30 * time.Second,
			OverallBudget: 3 * time.Minute,
		},
		Evidence: EvidenceConfig{
			SourceMaxBytes: 32 * 1024,
			LogMaxLines:    2000,
			ToolTimeout:    10 * time.Second,
		},
		Confidence: ConfidenceConfig{
			KnowledgeWeight:   0.4,
			SourceWeight:      0.3,
			LogsWeight:        0.3,
			PartialLogsWeight: 0.15,
			VeryHigh:          0.8,
			High:              0.6,
			Medium:            0.4,
			Low:               0.2,
		},
		Storage: StorageConfig{
			PersistSource: false,
			PersistLogs:   false,
			PersistDocs:   true,
		},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			KnowledgeTTL: 5 * time.Minute,
			DedupeTTL:    10 * time.Minute,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LUMEN_RCA_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("LUMEN_RCA_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("LUMEN_RCA_BLOB_BASE_URL"); v != "" {
		cfg.Clients.Blob.BaseURL = v
	}
	if v := os.Getenv("LUMEN_RCA_LOGS_BASE_URL"); v != "" {
		cfg.Clients.Logs.BaseURL = v
	}
	if v := os.Getenv("LUMEN_RCA_DOCS_BASE_URL"); v != "" {
		cfg.Clients.Docs.BaseURL = v
	}
	if v := os.Getenv("LUMEN_RCA_DOCS_API_KEY"); v != "" {
		cfg.Clients.Docs.APIKey = v
	}
	if v := os.Getenv("LUMEN_RCA_DOCS_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			cfg.Clients.Docs.TopK = k
		}
	}
	if v := os.Getenv("LUMEN_RCA_REASONING_API_KEY"); v != "" {
		cfg.Reasoning.APIKey = v
	}
	if v := os.Getenv("LUMEN_RCA_REASONING_MODEL"); v != "" {
		cfg.Reasoning.Model = v
	}
	if v := os.Getenv("LUMEN_RCA_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Reasoning.MaxSteps = n
		}
	}
	if v := os.Getenv("LUMEN_RCA_OVERALL_BUDGET"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Reasoning.OverallBudget = d
		}
	}
	if v := os.Getenv("LUMEN_RCA_TOOL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Evidence.ToolTimeout = d
		}
	}
	if v := os.Getenv("LUMEN_RCA_SOURCE_MAX_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Evidence.SourceMaxBytes = n
		}
	}
	if v := os.Getenv("LUMEN_RCA_DATABASE_URL"); v != "" {
		cfg.Storage.DatabaseURL = v
	}
	if v := os.Getenv("LUMEN_RCA_PERSIST_SOURCE"); v != "" {
		cfg.Storage.PersistSource = isTrue(v)
	}
	if v := os.Getenv("LUMEN_RCA_PERSIST_LOGS"); v != "" {
		cfg.Storage.PersistLogs = isTrue(v)
	}
	if v := os.Getenv("LUMEN_RCA_PERSIST_DOCS"); v != "" {
		cfg.Storage.PersistDocs = isTrue(v)
	}
	if v := os.Getenv("LUMEN_RCA_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("LUMEN_RCA_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = isTrue(v)
	}
	if v := os.Getenv("LUMEN_RCA_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("LUMEN_RCA_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("LUMEN_RCA_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("LUMEN_RCA_CACHE_TLS"); isTrue(v) {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("LUMEN_RCA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LUMEN_RCA_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
}

func isTrue(v string) bool {
	return strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
}
