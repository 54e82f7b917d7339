package kafkasink

import (
	"strings"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Config configures the Kafka producer a Sink publishes through.
type Config struct {
	// Brokers is the comma-joinable list of kafka bootstrap servers.
	Brokers []string
	// Topic is the topic every RefreshEvent is published to.
	Topic string
	// ClientID optionally identifies this producer in broker logs/metrics.
	ClientID string
	// Acks is the producer acknowledgment mode ("all", "1", "0").
	Acks string
	// Compression is the producer compression codec ("none", "gzip", ...).
	Compression string
	// MaxRetries bounds producer-creation retry attempts.
	MaxRetries int
}

// DefaultConfig returns a Config suitable for a local/dev broker.
func DefaultConfig() *Config {
	return &Config{
		Acks:        "all",
		Compression: "none",
		MaxRetries:  3,
	}
}

func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrInvalidConfig("brokers are required")
	}
	if c.Topic == "" {
		return ErrInvalidConfig("topic is required")
	}
	return nil
}

func (c *Config) buildConfigMap() *kafka.ConfigMap {
	m := &kafka.ConfigMap{
		"bootstrap.servers": strings.Join(c.Brokers, ","),
		"acks":              strings.ToLower(c.Acks),
		"compression.type":  strings.ToLower(c.Compression),
		"retries":           c.MaxRetries,
	}
	if c.ClientID != "" {
		_ = m.SetKey("client.id", c.ClientID)
	}
	return m
}
