/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the ledger service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                    string `mapstructure:"SERVER_PORT"`
	DatabaseURL                   string `mapstructure:"DATABASE_URL"`
	RabbitMQURL                   string `mapstructure:"RABBITMQ_URL"`
	RedisURL                      string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix          string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	JWTSecret                     string `mapstructure:"JWT_SECRET"`
	TransactionRateLimitPerMinute int    `mapstructure:"TRANSACTION_RATE_LIMIT_PER_MINUTE"`
	DatabaseMaxConns              int    `mapstructure:"DATABASE_MAX_CONNS"`
	DatabaseMinConns              int    `mapstructure:"DATABASE_MIN_CONNS"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "ledger:rate_limit")
	viper.SetDefault("TRANSACTION_RATE_LIMIT_PER_MINUTE", 60)
	viper.SetDefault("DATABASE_MAX_CONNS", 50)
	viper.SetDefault("DATABASE_MIN_CONNS", 5)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("TRANSACTION_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("DATABASE_MAX_CONNS")
	_ = viper.BindEnv("DATABASE_MIN_CONNS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "ledger:rate_limit"
	}
	if config.TransactionRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative rate limit configured; disabling\" limit=%d", config.TransactionRateLimitPerMinute)
		config.TransactionRateLimitPerMinute = 0
	}
	if config.DatabaseMaxConns <= 0 {
		config.DatabaseMaxConns = 50
	}
	if config.DatabaseMinConns < 0 {
		config.DatabaseMinConns = 0
	}

	return
}
