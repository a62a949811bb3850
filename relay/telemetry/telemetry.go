// Package telemetry buffers per-request usage records and ships them to the
// billing bus in the background so the relay path never waits on it.
package telemetry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/go-redis/redis/v8"

	"github.com/songquanpeng/llm-gateway/common/logger"
)

// UsageRecord is one finished request's accounting row, serialized verbatim
// onto the bus.
type UsageRecord struct {
	AccountId        string `json:"account_id"`
	RegionName       string `json:"region_name"`
	RegionId         string `json:"region_id"`
	ActiveModel      string `json:"active_model"`
	AppKey           string `json:"app_key"`
	StartTime        int64  `json:"start_time"`
	EndTime          int64  `json:"end_time"`
	TotalTokens      int    `json:"total_tokens"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	EmitTime         int64  `json:"emit_time"`
}

// Publisher abstracts the bus so tests can observe publishes without Redis.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// RedisPublisher ships payloads via Redis PUBLISH.
type RedisPublisher struct {
	RDB redis.Cmdable
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := p.RDB.Publish(ctx, topic, payload).Err(); err != nil {
		return errors.Wrapf(err, "publish to %s", topic)
	}
	return nil
}

// Dispatcher holds records in an in-memory FIFO and flushes them on a timer.
// Enqueue never blocks the caller; a record that cannot be published is
// logged and dropped rather than retried forever.
type Dispatcher struct {
	mu    sync.Mutex
	queue []UsageRecord

	publisher      Publisher
	topic          string
	flushInterval  time.Duration
	publishTimeout time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewDispatcher(publisher Publisher, topic string, flushInterval, publishTimeout time.Duration) *Dispatcher {
	if flushInterval <= 0 {
		flushInterval = time.Minute
	}
	if publishTimeout <= 0 {
		publishTimeout = 5 * time.Second
	}
	return &Dispatcher{
		publisher:      publisher,
		topic:          topic,
		flushInterval:  flushInterval,
		publishTimeout: publishTimeout,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Enqueue stamps the record and appends it to the queue. Safe from any
// goroutine; returns immediately.
func (d *Dispatcher) Enqueue(record UsageRecord) {
	record.EmitTime = time.Now().Unix()

	d.mu.Lock()
	d.queue = append(d.queue, record)
	n := len(d.queue)
	d.mu.Unlock()

	logger.Logger.Debug("usage record queued",
		zap.String("account_id", record.AccountId),
		zap.String("active_model", record.ActiveModel),
		zap.Int("queue_depth", n))
}

// Start runs the flush loop until Stop is called.
func (d *Dispatcher) Start() {
	go func() {
		defer close(d.doneCh)
		ticker := time.NewTicker(d.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.Flush(context.Background())
			case <-d.stopCh:
				return
			}
		}
	}()
}

// Stop halts the flush loop and drains whatever is still queued.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.stopOnce.Do(func() { close(d.stopCh) })
	<-d.doneCh
	d.Flush(ctx)
}

// Flush publishes every queued record in arrival order. Each publish gets its
// own timeout so one slow bus call cannot wedge the whole batch indefinitely.
func (d *Dispatcher) Flush(ctx context.Context) {
	d.mu.Lock()
	batch := d.queue
	d.queue = nil
	d.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if d.publisher == nil {
		logger.Logger.Warn("no usage publisher configured, dropping records",
			zap.Int("count", len(batch)))
		return
	}

	var dropped int
	for _, record := range batch {
		payload, err := json.Marshal(record)
		if err != nil {
			logger.Logger.Error("marshal usage record", zap.Error(err))
			dropped++
			continue
		}

		pubCtx, cancel := context.WithTimeout(ctx, d.publishTimeout)
		err = d.publisher.Publish(pubCtx, d.topic, payload)
		cancel()
		if err != nil {
			logger.Logger.Warn("publish usage record failed, dropping",
				zap.String("account_id", record.AccountId),
				zap.String("active_model", record.ActiveModel),
				zap.Error(err))
			dropped++
		}
	}

	logger.Logger.Info("usage records flushed",
		zap.Int("published", len(batch)-dropped),
		zap.Int("dropped", dropped))
}

// QueueDepth reports how many records are waiting for the next flush.
func (d *Dispatcher) QueueDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}
