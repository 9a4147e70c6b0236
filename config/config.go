package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	EngineConfig       EngineConfig       `json:"engine"`
	RiskConfig         RiskConfig         `json:"risk"`
	ServerConfig       ServerConfig       `json:"server"`
	NotificationConfig NotificationConfig `json:"notification"`
	PersistenceConfig  PersistenceConfig  `json:"persistence"`
	BacktestConfig     BacktestConfig     `json:"backtest"`
	LoggingConfig      LoggingConfig      `json:"logging"`
}

// EngineConfig holds the simulation heartbeat and market parameters.
type EngineConfig struct {
	TickInterval   time.Duration `json:"tick_interval"`     // Time between simulation ticks
	HistorySize    int           `json:"history_size"`      // Max prices kept in the rolling window
	SeedPrice      float64       `json:"seed_price"`        // Initial reference price
	PriceFloor     float64       `json:"price_floor"`       // Reference price never drops below this
	FeeRate        float64       `json:"fee_rate"`          // Proportional fee per fill (0.001 = 0.1%)
	MinCashToTrade float64       `json:"min_cash_to_trade"` // Minimum cash balance required to open
}

type RiskConfig struct {
	RiskLevel     string  `json:"risk_level"`     // LOW, MEDIUM, HIGH
	DrawdownLimit float64 `json:"drawdown_limit"` // Absolute daily loss that trips the breaker
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`  // CORS allowed origins
	ReadTimeout     int    `json:"read_timeout"`     // Seconds
	WriteTimeout    int    `json:"write_timeout"`    // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type PersistenceConfig struct {
	Enabled      bool          `json:"enabled"`
	Path         string        `json:"path"`          // Snapshot file location
	SaveInterval time.Duration `json:"save_interval"` // How often the snapshot is written
}

// BacktestConfig bounds the offline optimization batch.
type BacktestConfig struct {
	Ticks      int   `json:"ticks"`      // Synthetic series length per candidate
	Candidates int   `json:"candidates"` // Weight vectors evaluated per run
	Seed       int64 `json:"seed"`       // RNG seed for the synthetic series
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

// Load layers defaults, then config.json from the working directory if
// present, then environment overrides.
func Load() (*Config, error) {
	return LoadFrom("config.json")
}

// LoadFrom is Load with an explicit file path. A missing file is fine;
// a malformed one is an error.
func LoadFrom(path string) (*Config, error) {
	cfg := defaultConfig()
	if err := mergeFile(cfg, path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// mergeFile unmarshals the file over cfg, so keys absent from the file
// keep their current values.
func mergeFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	return nil
}

// applyEnvOverrides lets the environment win over the loaded config; an
// unset variable leaves the file value alone.
func applyEnvOverrides(cfg *Config) {
	// Engine config
	cfg.EngineConfig.TickInterval = getEnvDurationOrDefault("ENGINE_TICK_INTERVAL", cfg.EngineConfig.TickInterval)
	cfg.EngineConfig.HistorySize = getEnvIntOrDefault("ENGINE_HISTORY_SIZE", cfg.EngineConfig.HistorySize)
	cfg.EngineConfig.SeedPrice = getEnvFloatOrDefault("ENGINE_SEED_PRICE", cfg.EngineConfig.SeedPrice)
	cfg.EngineConfig.PriceFloor = getEnvFloatOrDefault("ENGINE_PRICE_FLOOR", cfg.EngineConfig.PriceFloor)
	cfg.EngineConfig.FeeRate = getEnvFloatOrDefault("ENGINE_FEE_RATE", cfg.EngineConfig.FeeRate)
	cfg.EngineConfig.MinCashToTrade = getEnvFloatOrDefault("ENGINE_MIN_CASH_TO_TRADE", cfg.EngineConfig.MinCashToTrade)

	// Risk config
	cfg.RiskConfig.RiskLevel = getEnvOrDefault("RISK_LEVEL", cfg.RiskConfig.RiskLevel)
	cfg.RiskConfig.DrawdownLimit = getEnvFloatOrDefault("RISK_DRAWDOWN_LIMIT", cfg.RiskConfig.DrawdownLimit)

	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", cfg.ServerConfig.ReadTimeout)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", cfg.ServerConfig.WriteTimeout)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", cfg.ServerConfig.ShutdownTimeout)

	// Notification config
	cfg.NotificationConfig.Enabled = getEnvBoolOrDefault("NOTIFICATIONS_ENABLED", cfg.NotificationConfig.Enabled)
	cfg.NotificationConfig.Telegram.Enabled = getEnvBoolOrDefault("TELEGRAM_ENABLED", cfg.NotificationConfig.Telegram.Enabled)
	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)

	// Persistence config
	cfg.PersistenceConfig.Enabled = getEnvBoolOrDefault("PERSISTENCE_ENABLED", cfg.PersistenceConfig.Enabled)
	cfg.PersistenceConfig.Path = getEnvOrDefault("PERSISTENCE_PATH", cfg.PersistenceConfig.Path)
	cfg.PersistenceConfig.SaveInterval = getEnvDurationOrDefault("PERSISTENCE_SAVE_INTERVAL", cfg.PersistenceConfig.SaveInterval)

	// Backtest config
	cfg.BacktestConfig.Ticks = getEnvIntOrDefault("BACKTEST_TICKS", cfg.BacktestConfig.Ticks)
	cfg.BacktestConfig.Candidates = getEnvIntOrDefault("BACKTEST_CANDIDATES", cfg.BacktestConfig.Candidates)
	cfg.BacktestConfig.Seed = int64(getEnvIntOrDefault("BACKTEST_SEED", int(cfg.BacktestConfig.Seed)))

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	cfg.LoggingConfig.JSONFormat = getEnvBoolOrDefault("LOG_JSON", cfg.LoggingConfig.JSONFormat)
	cfg.LoggingConfig.IncludeFile = getEnvBoolOrDefault("LOG_INCLUDE_FILE", cfg.LoggingConfig.IncludeFile)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// defaultConfig is the factory tuning; file and env values layer on top.
func defaultConfig() *Config {
	return &Config{
		EngineConfig: EngineConfig{
			TickInterval:   500 * time.Millisecond,
			HistorySize:    100,
			SeedPrice:      64200,
			PriceFloor:     100,
			FeeRate:        0.001,
			MinCashToTrade: 100,
		},
		RiskConfig: RiskConfig{
			RiskLevel:     "MEDIUM",
			DrawdownLimit: 500,
		},
		ServerConfig: ServerConfig{
			Port:            10000,
			Host:            "0.0.0.0",
			AllowedOrigins:  "*",
			ReadTimeout:     30,
			WriteTimeout:    30,
			ShutdownTimeout: 10,
		},
		NotificationConfig: NotificationConfig{
			Enabled: false,
			Telegram: TelegramConfig{
				Enabled:  false,
				BotToken: "",
				ChatID:   "",
			},
		},
		PersistenceConfig: PersistenceConfig{
			Enabled:      true,
			Path:         "data/bot_state.json",
			SaveInterval: 5 * time.Second,
		},
		BacktestConfig: BacktestConfig{
			Ticks:      2000,
			Candidates: 16,
			Seed:       42,
		},
		LoggingConfig: LoggingConfig{
			Level:       "INFO",
			Output:      "stdout",
			JSONFormat:  true,
			IncludeFile: false,
		},
	}
}

// GenerateSampleConfig writes the default configuration as a starting
// config.json.
func GenerateSampleConfig(filename string) error {
	data, err := json.MarshalIndent(defaultConfig(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
