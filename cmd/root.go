package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/forcetrace/forcetrace/internal/config"
	"github.com/forcetrace/forcetrace/internal/logger"
)

var (
	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "forcetrace",
	Short: "Blind-XSS and attack-surface testing backend for Salesforce",
	Long: `Forcetrace - Out-of-Band Correlation Backend for Salesforce Security Testing

Scans Salesforce deployments for known attack vectors, plants correlation
tokens into high-risk parameters, and listens for the asynchronous
callbacks that confirm exploitation. The callback confidence engine
separates genuine victim-triggered pings from crawler noise and the
tester's own verification traffic.

COMMANDS:
  forcetrace serve            - Start the HTTP API and DNS callback listener
  forcetrace scan <domain>    - Scan a Salesforce domain and issue probes
  forcetrace inject           - Process pending injections into payloads`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}

		var err error
		log, err = logger.New(cfg.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (json, console)")
	viper.BindPFlag("logger.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logger.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindEnv("logger.level", "FORCETRACE_LOG_LEVEL")
	viper.BindEnv("logger.format", "FORCETRACE_LOG_FORMAT")

	rootCmd.PersistentFlags().String("db-driver", "sqlite3", "database driver (sqlite3, postgres)")
	rootCmd.PersistentFlags().String("db-dsn", "forcetrace.db", "database connection string")
	viper.BindPFlag("database.driver", rootCmd.PersistentFlags().Lookup("db-driver"))
	viper.BindPFlag("database.dsn", rootCmd.PersistentFlags().Lookup("db-dsn"))
	viper.BindEnv("database.driver", "FORCETRACE_DATABASE_DRIVER")
	viper.BindEnv("database.dsn", "FORCETRACE_DATABASE_DSN", "DATABASE_URL")

	rootCmd.PersistentFlags().String("redis-addr", "", "Redis address for the dedup claim layer (empty disables)")
	viper.BindPFlag("redis.addr", rootCmd.PersistentFlags().Lookup("redis-addr"))
	viper.BindEnv("redis.addr", "FORCETRACE_REDIS_ADDR", "REDIS_URL")
	viper.BindEnv("redis.password", "FORCETRACE_REDIS_PASSWORD")

	viper.BindEnv("security.api_key", "FORCETRACE_SECURITY_API_KEY")
	viper.BindEnv("security.enable_auth", "FORCETRACE_SECURITY_ENABLE_AUTH")

	rootCmd.PersistentFlags().Int("scoring-high", 7, "score threshold for high confidence")
	rootCmd.PersistentFlags().Int("scoring-medium", 4, "score threshold for medium confidence")
	viper.BindPFlag("scoring.high_threshold", rootCmd.PersistentFlags().Lookup("scoring-high"))
	viper.BindPFlag("scoring.medium_threshold", rootCmd.PersistentFlags().Lookup("scoring-medium"))
	viper.BindEnv("scoring.high_threshold", "FORCETRACE_SCORING_HIGH")
	viper.BindEnv("scoring.medium_threshold", "FORCETRACE_SCORING_MEDIUM")
}

func initConfig() error {
	viper.AutomaticEnv()
	viper.SetEnvPrefix("FORCETRACE")

	viper.SetConfigName(".forcetrace")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME")
	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional; flags and env cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	defaults := config.Defaults()
	cfg = &defaults
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Unmarshal over Defaults leaves zero values from absent keys; restore
	// the ones that must never be zero.
	if cfg.Scoring.HighThreshold == 0 {
		cfg.Scoring.HighThreshold = defaults.Scoring.HighThreshold
	}
	if cfg.Scoring.MediumThreshold == 0 {
		cfg.Scoring.MediumThreshold = defaults.Scoring.MediumThreshold
	}
	if cfg.Scoring.SelfTriggerWindow == 0 {
		cfg.Scoring.SelfTriggerWindow = defaults.Scoring.SelfTriggerWindow
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = defaults.Database.Driver
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = defaults.Database.DSN
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = defaults.Logger.Level
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = defaults.Logger.Format
	}

	return nil
}

func GetConfig() *config.Config {
	return cfg
}

func GetLogger() *logger.Logger {
	return log
}
