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

// Config captures the settings required to boot the behaviour engine.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Clients   ClientsConfig   `yaml:"clients"`
	Explainer ExplainerConfig `yaml:"explainer"`
	Logging   LoggingConfig   `yaml:"logging"`
	Cache     CacheConfig     `yaml:"cache"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
}

// ServerConfig controls HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
}

// ClientsConfig groups integrations with the DLP core services.
type ClientsConfig struct {
	Core CoreClientConfig `yaml:"core"`
}

// CoreClientConfig configures access to the incident query API.
type CoreClientConfig struct {
	BaseURL       string        `yaml:"baseURL"`
	IncidentsPath string        `yaml:"incidentsPath"`
	ResultsPath   string        `yaml:"resultsPath"`
	Timeout       time.Duration `yaml:"timeout"`
}

// ExplainerConfig configures the optional AI explanation service.
type ExplainerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"apiKey"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls Valkey-backed caching of provider queries.
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
	IncidentsTTL time.Duration `yaml:"incidentsTTL"`
	OverviewTTL  time.Duration `yaml:"overviewTTL"`
}

// AnalysisConfig tunes the behaviour engine.
type AnalysisConfig struct {
	DefaultLookbackDays int           `yaml:"defaultLookbackDays"`
	OverviewWorkers     int           `yaml:"overviewWorkers"`
	TopResults          int           `yaml:"topResults"`
	PatternInterval     time.Duration `yaml:"patternInterval"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("DLP_BEHAVIOR_CONFIG")
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
	normalise(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8085",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Clients: ClientsConfig{
			Core: CoreClientConfig{
				IncidentsPath: "/api/v1/incidents/query",
				ResultsPath:   "/api/v1/analysis/results",
				Timeout:       5 * time.Second,
			},
		},
		Explainer: ExplainerConfig{Timeout: 8 * time.Second},
		Logging:   LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			IncidentsTTL: time.Minute,
			OverviewTTL:  2 * time.Minute,
		},
		Analysis: AnalysisConfig{
			DefaultLookbackDays: 7,
			OverviewWorkers:     8,
			TopResults:          20,
			PatternInterval:     15 * time.Minute,
		},
	}
}

func normalise(cfg *Config) {
	if cfg.Analysis.DefaultLookbackDays < 1 || cfg.Analysis.DefaultLookbackDays > 30 {
		cfg.Analysis.DefaultLookbackDays = 7
	}
	if cfg.Analysis.OverviewWorkers < 1 {
		cfg.Analysis.OverviewWorkers = 8
	}
	if cfg.Analysis.TopResults < 1 {
		cfg.Analysis.TopResults = 20
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DLP_BEHAVIOR_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("DLP_BEHAVIOR_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("DLP_BEHAVIOR_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("DLP_CORE_BASE_URL"); v != "" {
		cfg.Clients.Core.BaseURL = v
	}
	if v := os.Getenv("DLP_CORE_INCIDENTS_PATH"); v != "" {
		cfg.Clients.Core.IncidentsPath = v
	}
	if v := os.Getenv("DLP_CORE_RESULTS_PATH"); v != "" {
		cfg.Clients.Core.ResultsPath = v
	}
	if v := os.Getenv("DLP_BEHAVIOR_EXPLAINER_URL"); v != "" {
		cfg.Explainer.Endpoint = v
		cfg.Explainer.Enabled = true
	}
	if v := os.Getenv("DLP_BEHAVIOR_EXPLAINER_API_KEY"); v != "" {
		cfg.Explainer.APIKey = v
	}
	if v := os.Getenv("DLP_BEHAVIOR_EXPLAINER_ENABLED"); v != "" {
		cfg.Explainer.Enabled = isTrue(v)
	}
	if v := os.Getenv("DLP_BEHAVIOR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DLP_BEHAVIOR_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("DLP_BEHAVIOR_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("DLP_BEHAVIOR_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = isTrue(v)
	}
	if v := os.Getenv("DLP_BEHAVIOR_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("DLP_BEHAVIOR_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("DLP_BEHAVIOR_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("DLP_BEHAVIOR_CACHE_TLS"); isTrue(v) {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("DLP_BEHAVIOR_CACHE_INCIDENTS_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.IncidentsTTL = d
		}
	}
	if v := os.Getenv("DLP_BEHAVIOR_CACHE_OVERVIEW_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.OverviewTTL = d
		}
	}
	if v := os.Getenv("DLP_BEHAVIOR_LOOKBACK_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.DefaultLookbackDays = n
		}
	}
	if v := os.Getenv("DLP_BEHAVIOR_OVERVIEW_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.OverviewWorkers = n
		}
	}
	if v := os.Getenv("DLP_BEHAVIOR_PATTERN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Analysis.PatternInterval = d
		}
	}
}

func isTrue(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
