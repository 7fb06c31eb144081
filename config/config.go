package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	UpstreamConfig  UpstreamConfig  `json:"upstream"`
	SchedulerConfig SchedulerConfig `json:"scheduler"`
	ScannerConfig   ScannerConfig   `json:"scanner"`
	JournalConfig   JournalConfig   `json:"journal"`
	ServerConfig    ServerConfig    `json:"server"`
	LoggingConfig   LoggingConfig   `json:"logging"`
	DataDir         string          `json:"data_dir"`
	Watchlist       []string        `json:"watchlist"`
}

// UpstreamConfig holds the vendor API credentials and endpoints
type UpstreamConfig struct {
	FlowToken     string `json:"flow_token"`      // options-flow vendor API token
	FlowBaseURL   string `json:"flow_base_url"`   // REST base, default vendor production
	FlowSocketURL string `json:"flow_socket_url"` // websocket base
	TickKey       string `json:"tick_key"`        // tick vendor API key
	TickBaseURL   string `json:"tick_base_url"`
	TickSocketURL string `json:"tick_socket_url"`
	StreamEnabled bool   `json:"stream_enabled"` // run the live websocket feeds
	MockMode      bool   `json:"mock_mode"`      // serve synthetic data, no tokens needed
}

// SchedulerConfig holds the polling budget knobs
type SchedulerConfig struct {
	DailyLimit   int     `json:"daily_limit"`   // vendor API calls per ET day
	SafetyMargin float64 `json:"safety_margin"` // fraction of the limit we spend
	WarmEvery    int     `json:"warm_every"`    // every Nth cycle is WARM
	ColdEvery    int     `json:"cold_every"`    // every Nth cycle is COLD
}

// ScannerConfig tunes market-wide discovery
type ScannerConfig struct {
	Enabled       bool    `json:"enabled"`
	MinConfidence float64 `json:"min_confidence"`
	MaxCandidates int     `json:"max_candidates"`
	TopN          int     `json:"top_n"`
	CooldownMins  int     `json:"cooldown_minutes"`
}

// JournalConfig tunes paper-trade admissions and sizing
type JournalConfig struct {
	CooldownMins  int     `json:"cooldown_minutes"`
	MaxPerTicker  int     `json:"max_per_ticker"`
	VersionBudget float64 `json:"version_budget"`
	AccountBudget float64 `json:"account_budget"`
}

// ServerConfig holds the HTTP/WebSocket surface settings
type ServerConfig struct {
	Port           int    `json:"port"`
	Host           string `json:"host"`
	ProductionMode bool   `json:"production_mode"`
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

// Load reads config.json when present, then applies environment overrides
// on top. Environment always wins so containers can steer a baked-in file.
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = defaults()
	}
	applyEnvOverrides(cfg)

	if cfg.UpstreamConfig.FlowToken == "" && !cfg.UpstreamConfig.MockMode {
		return nil, fmt.Errorf("config: UW_API_TOKEN (or upstream.flow_token) is required unless mock mode is on")
	}
	return cfg, nil
}

func loadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	cfg := defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", filename, err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		SchedulerConfig: SchedulerConfig{
			DailyLimit:   15000,
			SafetyMargin: 0.90,
			WarmEvery:    5,
			ColdEvery:    15,
		},
		ScannerConfig: ScannerConfig{
			Enabled:       true,
			MinConfidence: 40,
			MaxCandidates: 5,
			TopN:          3,
			CooldownMins:  30,
		},
		JournalConfig: JournalConfig{
			CooldownMins:  120,
			MaxPerTicker:  3,
			VersionBudget: 25_000,
			AccountBudget: 100_000,
		},
		ServerConfig: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		LoggingConfig: LoggingConfig{
			Level:      "INFO",
			Output:     "stdout",
			JSONFormat: true,
		},
		DataDir:   "data",
		Watchlist: []string{"SPY", "QQQ", "AAPL", "NVDA", "TSLA", "MSFT", "AMD", "META", "AMZN", "GOOGL"},
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.UpstreamConfig.FlowToken = getEnvOrDefault("UW_API_TOKEN", cfg.UpstreamConfig.FlowToken)
	cfg.UpstreamConfig.FlowBaseURL = getEnvOrDefault("UW_BASE_URL", cfg.UpstreamConfig.FlowBaseURL)
	cfg.UpstreamConfig.FlowSocketURL = getEnvOrDefault("UW_SOCKET_URL", cfg.UpstreamConfig.FlowSocketURL)
	cfg.UpstreamConfig.TickKey = getEnvOrDefault("POLYGON_API_KEY", cfg.UpstreamConfig.TickKey)
	cfg.UpstreamConfig.TickBaseURL = getEnvOrDefault("POLYGON_BASE_URL", cfg.UpstreamConfig.TickBaseURL)
	cfg.UpstreamConfig.TickSocketURL = getEnvOrDefault("POLYGON_SOCKET_URL", cfg.UpstreamConfig.TickSocketURL)
	if v := os.Getenv("STREAMS_ENABLED"); v != "" {
		cfg.UpstreamConfig.StreamEnabled = v == "true"
	}
	if v := os.Getenv("MOCK_MODE"); v != "" {
		cfg.UpstreamConfig.MockMode = v == "true"
	}

	cfg.SchedulerConfig.DailyLimit = getEnvIntOrDefault("DAILY_CALL_LIMIT", cfg.SchedulerConfig.DailyLimit)
	cfg.SchedulerConfig.SafetyMargin = getEnvFloatOrDefault("BUDGET_SAFETY_MARGIN", cfg.SchedulerConfig.SafetyMargin)

	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	if v := os.Getenv("PRODUCTION_MODE"); v != "" {
		cfg.ServerConfig.ProductionMode = v == "true"
	}

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)

	cfg.DataDir = getEnvOrDefault("DATA_DIR", cfg.DataDir)
	if v := os.Getenv("WATCHLIST"); v != "" {
		var list []string
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(strings.ToUpper(t)); t != "" {
				list = append(list, t)
			}
		}
		if len(list) > 0 {
			cfg.Watchlist = list
		}
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloatOrDefault(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
