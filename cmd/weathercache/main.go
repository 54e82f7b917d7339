// Command weathercache runs a periodic self-rehydrating cache of weather
// conditions for a configurable set of locations, demonstrating the cache,
// housekeeping, and satellite sink packages wired together end to end.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/halvorsen/rehydra/cache"
	"github.com/halvorsen/rehydra/housekeeping"
	"github.com/halvorsen/rehydra/internal/configstore"
	"github.com/halvorsen/rehydra/internal/sink/chsink"
	"github.com/halvorsen/rehydra/internal/sink/kafkasink"
	"github.com/halvorsen/rehydra/internal/weather"
	"github.com/halvorsen/rehydra/logger"
	"go.uber.org/zap"
)

func main() {
	log, err := logger.New(&logger.Config{Level: envOr("LOG_LEVEL", "info"), Encoding: envOr("LOG_ENCODING", "json")})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	c, err := cache.New(&cache.Config{Logger: log})
	if err != nil {
		log.Error("failed to construct cache", zap.Error(err))
		os.Exit(1)
	}
	defer c.Close()

	client := weather.New(envOr("WEATHER_API_BASE_URL", "https://api.weatherprovider.example/v1"), os.Getenv("WEATHER_API_KEY"))

	registerLocations(c, client, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// c.Events() returns a single stream: if both sinks below are enabled,
	// each RefreshEvent lands on whichever sink's Forward goroutine reads
	// it first, not both. Running both in production means forking the
	// stream explicitly; for this demo, pick one telemetry destination at
	// a time via env vars.
	events := c.Events()

	kafkaSink, kafkaErr := connectKafka(log)
	switch {
	case kafkaErr == nil:
		defer kafkaSink.Close()
		go kafkaSink.Forward(ctx, events)
	default:
		log.Warn("kafka sink disabled", zap.Error(kafkaErr))

		if chSink, chErr := connectClickHouse(log); chErr != nil {
			log.Warn("clickhouse sink disabled", zap.Error(chErr))
		} else {
			defer chSink.Close()
			chSink.Start()
			go chSink.Forward(ctx, events)
		}
	}

	sched := housekeeping.NewScheduler(log)
	if err := sched.Schedule("0 */1 * * * *", c); err != nil {
		log.Error("failed to schedule cache maintenance", zap.Error(err))
		os.Exit(1)
	}
	sched.Start()
	defer sched.Close()

	log.Info("weathercache started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("weathercache shutting down")
}

// registerLocations loads the watched locations from configstore (falling
// back to a small built-in default set if unavailable) and registers one
// cache key per location.
func registerLocations(c *cache.Cache, client *weather.Client, log logger.Logger) {
	regs := defaultLocations()

	if store, err := connectConfigstore(log); err != nil {
		log.Warn("configstore disabled, using built-in default locations", zap.Error(err))
	} else {
		defer store.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if loaded, err := store.Load(ctx); err != nil {
			log.Warn("failed to load registrations from configstore, using built-in defaults", zap.Error(err))
		} else if len(loaded) > 0 {
			regs = loaded
		}
	}

	for _, reg := range regs {
		location := reg.Key
		err := c.RegisterFunc(location, func(ctx context.Context) (any, error) {
			return client.Fetch(ctx, location)
		}, reg.TTL(), reg.RefreshInterval())
		if err != nil {
			log.Error("failed to register location", zap.String("location", location), zap.Error(err))
		}
	}
}

func defaultLocations() []configstore.Registration {
	return []configstore.Registration{
		{Key: "Oslo", TTLSeconds: 600, RefreshSeconds: 120, Enabled: true},
		{Key: "Bergen", TTLSeconds: 600, RefreshSeconds: 120, Enabled: true},
		{Key: "Trondheim", TTLSeconds: 600, RefreshSeconds: 120, Enabled: true},
	}
}

func connectConfigstore(log logger.Logger) (*configstore.Store, error) {
	host := os.Getenv("CONFIGSTORE_MYSQL_HOST")
	if host == "" {
		return nil, configstore.ErrInvalidConfig("CONFIGSTORE_MYSQL_HOST not set")
	}
	return configstore.Open(log, &configstore.Config{
		Host:     host,
		User:     os.Getenv("CONFIGSTORE_MYSQL_USER"),
		Password: os.Getenv("CONFIGSTORE_MYSQL_PASSWORD"),
		Database: envOr("CONFIGSTORE_MYSQL_DATABASE", "weathercache"),
	})
}

func connectKafka(log logger.Logger) (*kafkasink.Sink, error) {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		return nil, kafkasink.ErrInvalidConfig("KAFKA_BROKERS not set")
	}
	cfg := kafkasink.DefaultConfig()
	cfg.Brokers = []string{brokers}
	cfg.Topic = envOr("KAFKA_TOPIC", "weathercache.refresh_events")
	return kafkasink.NewSink(log, cfg)
}

func connectClickHouse(log logger.Logger) (*chsink.Sink, error) {
	hosts := os.Getenv("CLICKHOUSE_HOSTS")
	if hosts == "" {
		return nil, chsink.ErrInvalidConfig("CLICKHOUSE_HOSTS not set")
	}
	cfg := chsink.DefaultConfig()
	cfg.Hosts = []string{hosts}
	cfg.Username = envOr("CLICKHOUSE_USER", "default")
	cfg.Password = os.Getenv("CLICKHOUSE_PASSWORD")
	return chsink.NewSink(log, cfg)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
