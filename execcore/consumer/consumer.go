// Package consumer pulls opportunities off the inbound Redis stream,
// validates them, and hands accepted opportunities to the orchestrator
// while dead-lettering everything else (spec.md §4.1).
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"nhbchain/execcore/dlq"
	"nhbchain/execcore/execerr"
	"nhbchain/execcore/stream"
	"nhbchain/execcore/types"
)

// Handler processes one accepted opportunity. Errors are logged but never
// stop the scan loop; execution-time failures are the orchestrator's own
// concern (breaker, stats), not the consumer's.
type Handler func(ctx context.Context, opp *types.Opportunity) error

// Config configures the scan loop, mirroring config.ConsumerConfig.
type Config struct {
	StreamName         string
	ScanInterval       time.Duration
	MaxMessagesPerScan int64
	Service            string
	InstanceID         string
}

// Consumer owns the inbound-stream scan loop.
type Consumer struct {
	client  *stream.Client
	dlqMgr  *dlq.Manager
	cfg     Config
	opts    Options
	handler Handler
	stats   *types.Stats
	log     *slog.Logger

	mu      sync.Mutex
	running bool
	cursor  string
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New constructs a Consumer. log may be nil, in which case a discard
// logger is used.
func New(client *stream.Client, dlqMgr *dlq.Manager, cfg Config, opts Options, handler Handler, stats *types.Stats, log *slog.Logger) *Consumer {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 60 * time.Second
	}
	if cfg.MaxMessagesPerScan <= 0 {
		cfg.MaxMessagesPerScan = 100
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}
	return &Consumer{
		client:  client,
		dlqMgr:  dlqMgr,
		cfg:     cfg,
		opts:    opts,
		handler: handler,
		stats:   stats,
		log:     log,
		cursor:  "$", // only-new by default; callers resume from a persisted cursor if they track one
	}
}

// Start launches the scan loop in its own goroutine. Calling Start while
// already running logs a warning and is otherwise a no-op.
func (c *Consumer) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		c.log.Warn("consumer already running, ignoring duplicate Start")
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.mu.Unlock()

	go c.run(ctx)
}

// Stop signals the scan loop to exit and waits for it to finish. Calling
// Stop when not running logs a warning and returns immediately.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		c.log.Warn("consumer not running, ignoring Stop")
		return
	}
	stopCh, doneCh := c.stopCh, c.doneCh
	c.mu.Unlock()

	close(stopCh)
	<-doneCh

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.doneCh)
	ticker := time.NewTicker(c.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.scanOnce(ctx)
		}
	}
}

func (c *Consumer) scanOnce(ctx context.Context) {
	entries, err := c.client.XRead(ctx, c.cfg.StreamName, c.cursor, c.cfg.MaxMessagesPerScan, -1)
	if err != nil {
		c.log.Error("scan: xread failed", "error", err)
		return
	}
	for _, e := range entries {
		c.cursor = e.ID
		c.stats.Received.Add(1)
		c.processEntry(ctx, e)
	}
}

func (c *Consumer) processEntry(ctx context.Context, e stream.Entry) {
	payload, _ := e.Data["data"].(string)

	opp, verr := Validate(payload, c.opts)
	if verr == nil && opp == nil {
		return // control message, silently discarded
	}
	if verr != nil {
		c.stats.Rejected.Add(1)
		c.deadLetter(ctx, e, payload, verr)
		return
	}

	if err := c.handler(ctx, opp); err != nil {
		c.log.Error("handler failed for accepted opportunity", "opportunityId", opp.ID, "error", err)
	}
}

func (c *Consumer) deadLetter(ctx context.Context, e stream.Entry, payload string, verr *execerr.Error) {
	opportunityID, opportunityType := extractIDAndKind(payload)
	entry := types.DLQEntry{
		OriginalMessageID: e.ID,
		OriginalStream:    c.cfg.StreamName,
		OpportunityID:     opportunityID,
		OpportunityType:   opportunityType,
		Error:             verr.Bracketed(),
		Timestamp:         time.Now(),
		Service:           c.cfg.Service,
		InstanceID:        c.cfg.InstanceID,
		OriginalPayload:   payload,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		c.log.Error("failed to marshal DLQ entry", "error", err)
		return
	}
	if _, err := c.client.XAdd(ctx, c.dlqStreamName(), map[string]interface{}{"data": string(raw)}); err != nil {
		c.log.Error("failed to write DLQ entry", "error", err)
	}
}

func (c *Consumer) dlqStreamName() string {
	return fmt.Sprintf("%s:dlq", c.cfg.StreamName)
}

func extractIDAndKind(payload string) (id, kind string) {
	var probe struct {
		ID   string `json:"id"`
		Kind string `json:"kind"`
	}
	_ = json.Unmarshal([]byte(payload), &probe)
	return probe.ID, probe.Kind
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
