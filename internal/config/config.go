// Package config holds the environment-driven service configuration.
package config

import (
	"time"

	"github.com/joeshaw/envdecode"
)

// Config is decoded from the environment at startup.
type Config struct {
	Port string `env:"PORT,default=8080"`

	OpenAIBaseURL string `env:"OPENAI_BASE_URL,default=https://api.openai.com/v1"`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY,required"`
	Model         string `env:"OPENAI_MODEL,default=gpt-4o-mini"`
	VisionModel   string `env:"OPENAI_VISION_MODEL,default=gpt-4o"`

	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED,default=true"`
	RateLimitMinMs   int  `env:"RATE_LIMIT_MIN_INTERVAL_MS,default=20000"`

	// Optional: when unset the builtin emission-factor table is used.
	DBURL string `env:"DB_URL,default="`
	// Optional: when unset no estimate.completed events are published.
	RabbitMQURL string `env:"RABBITMQ_URL,default="`
}

// Load decodes the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MinInterval returns the configured minimum interval between provider
// call starts.
func (c Config) MinInterval() time.Duration {
	return time.Duration(c.RateLimitMinMs) * time.Millisecond
}
