// Package config declares the environment surface of the service.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every knob the process reads from the environment.
// Redis and Postgres are optional; when unset the service runs on the
// in-memory broker and repository.
type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"orderflow"`
	Env         string `envconfig:"ENV" default:"dev"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`

	// OrderTopic is the outbound topic for order lifecycle events.
	OrderTopic string `envconfig:"ORDER_TOPIC" default:"order-events"`
	// ShippedQueue is the queue the consumer polls for order.shipped events.
	// Left empty, every poll cycle fails with a configuration error.
	ShippedQueue string `envconfig:"ORDER_SHIPPED_QUEUE"`

	PollInterval      time.Duration `envconfig:"POLL_INTERVAL" default:"10s"`
	ConsumerBatchSize int           `envconfig:"CONSUMER_BATCH_SIZE" default:"10"`

	RedisAddr   string `envconfig:"REDIS_ADDR"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
}

// Load populates Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
