// Package chsink batch-inserts cache.RefreshEvent history into ClickHouse
// for offline analysis. It is adapted from a general-purpose ClickHouse
// batch writer: the query half of that client (ad hoc SELECTs against
// arbitrary tables) has no role here, since a Sink only ever writes rows
// of one fixed shape.
package chsink

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/halvorsen/rehydra/cache"
	"github.com/halvorsen/rehydra/logger"
	"github.com/smallnest/chanx"
	"go.uber.org/zap"
)

// row is the flattened shape of one cache.RefreshEvent, ready for
// insertion.
type row struct {
	key   string
	value string
	err   string
	at    time.Time
}

// Sink batches cache.RefreshEvent values and inserts them into cfg.Table.
type Sink struct {
	cfg *Config
	log logger.Logger
	tbl string

	conn driver.Conn

	dataChan    *chanx.UnboundedChan[row]
	flushTicker *time.Ticker

	done   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewSink connects to ClickHouse and returns a Sink. Callers must call
// Start before any rows passed to Forward are inserted.
func NewSink(log logger.Logger, cfg *Config) (*Sink, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx := context.Background()
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Hosts,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: cfg.DialTimeout,
		Settings:    cfg.Settings,
	})
	if err != nil {
		return nil, ErrConnection(err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, ErrConnection(err)
	}

	s := &Sink{
		cfg:         cfg,
		log:         log,
		tbl:         cfg.Table,
		conn:        conn,
		dataChan:    chanx.NewUnboundedChan[row](ctx, cfg.FlushSize),
		flushTicker: time.NewTicker(cfg.FlushInterval),
		done:        make(chan struct{}),
	}

	log.Info("chsink connected", zap.Strings("hosts", cfg.Hosts), zap.String("table", cfg.Table))
	return s, nil
}

// Start launches the batching loop.
func (s *Sink) Start() {
	s.wg.Add(1)
	go s.processLoop()
}

// Forward drains events until ctx is cancelled or the channel is closed,
// recording each one.
func (s *Sink) Forward(ctx context.Context, events <-chan cache.RefreshEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = s.record(ev)
		}
	}
}

// record enqueues ev for the next batch. It never blocks: if the internal
// channel is momentarily full it reports ErrBufferFull instead.
func (s *Sink) record(ev cache.RefreshEvent) error {
	if s.closed.Load() {
		return ErrClosed
	}

	r := row{key: ev.Key, at: ev.At}
	if ev.Err != nil {
		r.err = ev.Err.Error()
	} else if ev.Value != nil {
		if sv, ok := ev.Value.(string); ok {
			r.value = sv
		} else if b, err := json.Marshal(ev.Value); err == nil {
			r.value = string(b)
		}
	}

	select {
	case s.dataChan.In <- r:
		return nil
	default:
		s.log.Error("chsink: buffer full, dropping event", zap.String("key", ev.Key))
		return ErrBufferFull
	}
}

func (s *Sink) processLoop() {
	defer s.wg.Done()

	buffer := make([]row, 0, s.cfg.FlushSize)
	var firstAt time.Time

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		if err := s.insert(buffer); err != nil {
			s.log.Error("chsink: batch insert failed", zap.Error(err), zap.Int("rows", len(buffer)))
		}
		buffer = buffer[:0]
		firstAt = time.Time{}
	}

	shouldFlushOnTick := func() bool {
		if s.cfg.MinFlushSize == 0 || len(buffer) >= s.cfg.MinFlushSize {
			return true
		}
		return s.cfg.MaxWaitTime > 0 && time.Since(firstAt) >= s.cfg.MaxWaitTime
	}

	for {
		select {
		case r, ok := <-s.dataChan.Out:
			if !ok {
				return
			}
			if len(buffer) == 0 {
				firstAt = time.Now()
			}
			buffer = append(buffer, r)
			if len(buffer) >= s.cfg.FlushSize {
				flush()
			}

		case <-s.flushTicker.C:
			if shouldFlushOnTick() {
				flush()
			}

		case <-s.done:
			for {
				select {
				case r, ok := <-s.dataChan.Out:
					if !ok {
						flush()
						return
					}
					buffer = append(buffer, r)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (s *Sink) insert(rows []row) error {
	ctx := context.Background()
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO "+s.tbl)
	if err != nil {
		return ErrInsert(err)
	}
	for _, r := range rows {
		if err := batch.Append(r.key, r.value, r.err, r.at); err != nil {
			return ErrInsert(err)
		}
	}
	if err := batch.Send(); err != nil {
		return ErrInsert(err)
	}
	return nil
}

// Close stops the batching loop, flushing whatever remains buffered, and
// closes the connection.
func (s *Sink) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.flushTicker.Stop()
	close(s.done)
	close(s.dataChan.In)
	s.wg.Wait()

	return s.conn.Close()
}
