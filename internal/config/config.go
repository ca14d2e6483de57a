package config

import (
	"time"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Security SecurityConfig `mapstructure:"security"`
	Scanner  ScannerConfig  `mapstructure:"scanner"`
	Injector InjectorConfig `mapstructure:"injector"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	DNS      DNSConfig      `mapstructure:"dns"`
}

type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggerConfig struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"`
	OutputPaths []string `mapstructure:"output_paths"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	// Addr empty disables the Redis dedup claim layer; the store's
	// transactional path is used instead.
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type SecurityConfig struct {
	APIKey     string          `mapstructure:"api_key"`
	EnableAuth bool            `mapstructure:"enable_auth"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `mapstructure:"requests_per_second"`
	BurstSize         int `mapstructure:"burst_size"`
}

type ScannerConfig struct {
	// Tokens issued per testable high/critical endpoint, capped per scan.
	MaxTokensPerEndpoint int    `mapstructure:"max_tokens_per_endpoint"`
	DefaultScanType      string `mapstructure:"default_scan_type"`
}

type InjectorConfig struct {
	BatchSize   int    `mapstructure:"batch_size"`
	CallbackURL string `mapstructure:"callback_url"`
}

// ScoringConfig exposes the confidence thresholds and the self-trigger
// window so deployments can tune them without a rebuild. Zero values fall
// back to the shipped defaults.
type ScoringConfig struct {
	HighThreshold     int           `mapstructure:"high_threshold"`
	MediumThreshold   int           `mapstructure:"medium_threshold"`
	SelfTriggerWindow time.Duration `mapstructure:"self_trigger_window"`
	StoredDelay       time.Duration `mapstructure:"stored_delay"`
	ModerateDelay     time.Duration `mapstructure:"moderate_delay"`
	ShortDelay        time.Duration `mapstructure:"short_delay"`
}

type DNSConfig struct {
	ListenAddr     string `mapstructure:"listen_addr"`
	CallbackDomain string `mapstructure:"callback_domain"`
	AnswerIP       string `mapstructure:"answer_ip"`
}

// Defaults returns the configuration used when no file or environment
// overrides are present.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			Driver:          "sqlite3",
			DSN:             "forcetrace.db",
			MaxConnections:  10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 10,
				BurstSize:         20,
			},
		},
		Scanner: ScannerConfig{
			MaxTokensPerEndpoint: 3,
			DefaultScanType:      "full",
		},
		Injector: InjectorConfig{
			BatchSize:   20,
			CallbackURL: "http://localhost:8080/api/v1/callback",
		},
		Scoring: ScoringConfig{
			HighThreshold:     7,
			MediumThreshold:   4,
			SelfTriggerWindow: 5 * time.Second,
			StoredDelay:       time.Hour,
			ModerateDelay:     5 * time.Minute,
			ShortDelay:        time.Minute,
		},
		DNS: DNSConfig{
			ListenAddr:     ":5353",
			CallbackDomain: "oob.forcetrace.io",
			AnswerIP:       "127.0.0.1",
		},
	}
}
