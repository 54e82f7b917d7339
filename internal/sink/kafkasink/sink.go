// Package kafkasink forwards cache.RefreshEvent values to a Kafka topic as
// JSON, so an external telemetry pipeline can observe every compute
// attempt across every registered key. It is adapted from the producer
// half of a general-purpose Kafka client: the consumer side (consumer
// groups, offset handling) has no role here, since a Sink only ever
// writes.
package kafkasink

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/halvorsen/rehydra/cache"
	"github.com/halvorsen/rehydra/logger"
	"go.uber.org/zap"
)

// wireEvent is the JSON shape published for each cache.RefreshEvent.
type wireEvent struct {
	Key   string `json:"key"`
	Value any    `json:"value,omitempty"`
	Err   string `json:"error,omitempty"`
	At    int64  `json:"at_unix_ms"`
}

// Sink publishes RefreshEvents it receives from a cache.Cache's event
// stream to a Kafka topic.
type Sink struct {
	log   logger.Logger
	topic string

	p *kafka.Producer

	wg   sync.WaitGroup
	done chan struct{}
}

// NewSink validates cfg, connects a Kafka producer, and starts the
// background goroutine that drains the producer's delivery reports.
func NewSink(log logger.Logger, cfg *Config) (*Sink, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configMap := cfg.buildConfigMap()

	var producer *kafka.Producer
	var err error

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	for i := 0; i < maxRetries; i++ {
		producer, err = kafka.NewProducer(configMap)
		if err == nil {
			break
		}
		if i < maxRetries-1 {
			log.Warn("failed to create kafka producer, retrying",
				zap.Error(err),
				zap.Int("attempt", i+1),
			)
			time.Sleep(time.Second)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("kafkasink: failed to create producer after %d attempts: %w", maxRetries, err)
	}

	s := &Sink{
		log:   log,
		topic: cfg.Topic,
		p:     producer,
		done:  make(chan struct{}),
	}

	s.wg.Add(1)
	go s.handleDeliveryReports()

	return s, nil
}

func (s *Sink) handleDeliveryReports() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case e := <-s.p.Events():
			switch ev := e.(type) {
			case *kafka.Message:
				if ev.TopicPartition.Error != nil {
					s.log.Error("kafkasink: failed to deliver event", zap.Error(ev.TopicPartition.Error))
				}
			case kafka.Error:
				s.log.Error("kafkasink: producer error", zap.Error(ev))
			}
		}
	}
}

// Forward drains events until ctx is cancelled, publishing each one to the
// configured topic. It is meant to run in its own goroutine for the
// lifetime of the Cache it observes.
func (s *Sink) Forward(ctx context.Context, events <-chan cache.RefreshEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.publish(ev)
		}
	}
}

func (s *Sink) publish(ev cache.RefreshEvent) {
	we := wireEvent{Key: ev.Key, Value: ev.Value, At: ev.At.UnixMilli()}
	if ev.Err != nil {
		we.Err = ev.Err.Error()
	}

	payload, err := json.Marshal(we)
	if err != nil {
		s.log.Error("kafkasink: failed to marshal event", zap.String("key", ev.Key), zap.Error(err))
		return
	}

	topic := s.topic
	err = s.p.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(ev.Key),
		Value:          payload,
	}, nil)
	if err != nil {
		s.log.Error("kafkasink: produce failed", zap.String("key", ev.Key), zap.Error(err))
	}
}

// Close stops the delivery-report goroutine and flushes the producer.
func (s *Sink) Close() error {
	close(s.done)
	s.wg.Wait()

	remaining := s.p.Flush(10000)
	if remaining > 0 {
		s.log.Warn("kafkasink: flushed with messages still outstanding", zap.Int("remaining", remaining))
	}
	s.p.Close()
	return nil
}
