package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Tools        ToolsConfig        `mapstructure:"tools"`
	Responder    ResponderConfig    `mapstructure:"responder"`
	OpenAI       OpenAIConfig       `mapstructure:"openai"`
	Breaker      BreakerConfig      `mapstructure:"breaker"`
	Telegram     TelegramConfig     `mapstructure:"telegram"`
	Classifier   ClassifierConfig   `mapstructure:"classifier"`
	Log          LogConfig          `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Version         string        `mapstructure:"version"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	Issuer       string        `mapstructure:"issuer"`
	Audience     string        `mapstructure:"audience"`
	StaticTokens []StaticToken `mapstructure:"static_tokens"`
}

// StaticToken is a fixed bearer credential. Tokens must stay values: viper
// lowercases map keys and splits them on dots.
type StaticToken struct {
	Token  string `mapstructure:"token"`
	Tenant string `mapstructure:"tenant"`
}

type DatabaseConfig struct {
	Driver     string `mapstructure:"driver"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	DBName     string `mapstructure:"dbname"`
	SSLMode    string `mapstructure:"sslmode"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type ConversationConfig struct {
	HistoryWindow int `mapstructure:"history_window"`
}

type ToolsConfig struct {
	SearchScanCap int `mapstructure:"search_scan_cap"`
	SearchDefault int `mapstructure:"search_default"`
	ListDefault   int `mapstructure:"list_default"`
	MaxLimit      int `mapstructure:"max_limit"`
}

type ResponderConfig struct {
	Provider string `mapstructure:"provider"`
	Fallback bool   `mapstructure:"fallback"`
}

type OpenAIConfig struct {
	APIKey       string  `mapstructure:"api_key"`
	BaseURL      string  `mapstructure:"base_url"`
	Model        string  `mapstructure:"model"`
	MaxTokens    int     `mapstructure:"max_tokens"`
	Temperature  float64 `mapstructure:"temperature"`
	SystemPrompt string  `mapstructure:"system_prompt"`
}

type BreakerConfig struct {
	MaxFailures         uint32        `mapstructure:"max_failures"`
	Timeout             time.Duration `mapstructure:"timeout"`
	HalfOpenMaxRequests uint32        `mapstructure:"half_open_max_requests"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type ClassifierConfig struct {
	MaxTags int `mapstructure:"max_tags"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return DatabaseConfig{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		if _, err := fmt.Sscanf(u.Port(), "%d", &port); err != nil {
			return DatabaseConfig{}, fmt.Errorf("invalid port %q", u.Port())
		}
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Driver:   "postgres",
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.version", "1.0.0")
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.sqlite_path", "unimind.db")

	v.SetDefault("conversation.history_window", 10)

	v.SetDefault("tools.search_scan_cap", 100)
	v.SetDefault("tools.search_default", 10)
	v.SetDefault("tools.list_default", 20)
	v.SetDefault("tools.max_limit", 100)

	v.SetDefault("responder.provider", "stub")
	v.SetDefault("responder.fallback", true)

	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 1024)
	v.SetDefault("openai.temperature", 0.7)

	v.SetDefault("breaker.max_failures", 3)
	v.SetDefault("breaker.timeout", 30*time.Second)
	v.SetDefault("breaker.half_open_max_requests", 1)

	v.SetDefault("classifier.max_tags", 5)
}

// LoadConfig reads the YAML file at path. An empty path uses defaults and
// the environment only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Enable environment variable support: UNIMIND_SERVER_ADDR etc.
	v.SetEnvPrefix("unimind")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := applyEnvOverrides(&config, v); err != nil {
		return nil, err
	}
	return &config, nil
}

// applyEnvOverrides honours the unprefixed variables hosting platforms set.
func applyEnvOverrides(config *Config, v *viper.Viper) error {
	for _, key := range []string{"DATABASE_URL", "OPENAI_API_KEY", "TELEGRAM_TOKEN", "JWT_SECRET"} {
		if err := v.BindEnv(key, key); err != nil {
			return err
		}
	}

	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	if secret := v.GetString("JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
	return nil
}
