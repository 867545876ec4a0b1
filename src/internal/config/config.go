// Package config loads hookrelay's configuration the way the teacher
// loads its own: viper, a HOOKRELAY_ env prefix, dot-to-underscore key
// translation, and an optional YAML overlay file.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml, applying the defaults in spec §6.
func Load() (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	v.SetEnvPrefix("HOOKRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/hookrelay")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if v.GetString("security.secret_key") == "" {
		key, err := generateSecretKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate secret key: %w", err)
		}
		v.Set("security.secret_key", key)
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("environment", "development")

	// Database defaults
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "hookrelay.db")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.max_idle_time", 300)

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// Delivery worker defaults, spec §6
	v.SetDefault("delivery.workerThreads", 5)
	v.SetDefault("delivery.pollIntervalMs", 100)
	v.SetDefault("delivery.queueBackend", "memory") // memory or redis
	v.SetDefault("delivery.redis.addr", "localhost:6379")
	v.SetDefault("delivery.redis.password", "")
	v.SetDefault("delivery.redis.db", 0)
	v.SetDefault("delivery.redis.key", "hookrelay:events")

	// HTTP client defaults
	v.SetDefault("http.connectTimeoutMs", 5000)
	v.SetDefault("http.readTimeoutMs", 10000)

	// Retry policy defaults
	v.SetDefault("retry.baseDelayMs", 1000)
	v.SetDefault("retry.maxDelayMs", 60000)
	v.SetDefault("retry.maxRetries", 5)

	// Circuit breaker defaults
	v.SetDefault("circuit.failureThreshold", 5)
	v.SetDefault("circuit.cooldownSeconds", 60)
	v.SetDefault("circuit.halfOpenTestLimit", 3)

	// Pause window, spec §4.5 (PAUSE_WEBHOOK decision)
	v.SetDefault("pause.windowSeconds", 3600)

	// Error-classification advisor defaults
	v.SetDefault("advisor.url", "")
	v.SetDefault("advisor.enabled", true)
	v.SetDefault("advisor.timeoutMs", 5000)
	v.SetDefault("advisor.fallbackEnabled", true)
	v.SetDefault("advisor.confidenceThreshold", 0.6)
	v.SetDefault("advisor.rateLimitPerMinute", 60)

	// Diagnostics
	v.SetDefault("diagnostics.recentClassificationLimit", 10)

	// Alerting (ESCALATE decision)
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.username", "")
	v.SetDefault("email.smtp.password", "")
	v.SetDefault("email.smtp.skip_verify", false)
	v.SetDefault("email.from", "hookrelay@localhost")
	v.SetDefault("email.to", []string{})

	v.SetDefault("security.secret_key", "")
}

func generateSecretKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
