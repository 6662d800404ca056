// Package dlq implements the dead-letter queue scanner: periodic
// stats snapshots, age/length-bounded auto-trim, and a cooldown-gated
// auto-recovery pass that only ever replays the retryable error codes
// (spec.md §4.1).
package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"nhbchain/execcore/execerr"
	"nhbchain/execcore/stream"
	"nhbchain/execcore/types"
)

const (
	sampleSize            = 200
	replayPageSize         = 100
	autoRecoveryCooldown   = 5 * time.Minute
)

// Config mirrors config.ConsumerConfig's DLQ-relevant fields.
type Config struct {
	MainStreamName        string
	DLQStreamName         string
	MaxStreamLength        int64
	MaxMessageAge          time.Duration
	AutoRecoveryEnabled    bool
	MaxAutoReplaysPerScan  int
}

// Manager owns one DLQ stream's scan/trim/replay lifecycle.
type Manager struct {
	client *stream.Client
	cfg    Config
	now    func() time.Time

	mu           sync.Mutex
	lastReplayAt map[string]time.Time // originalMessageId -> last auto-replay time
}

// NewManager constructs a Manager.
func NewManager(client *stream.Client, cfg Config) *Manager {
	return &Manager{
		client:       client,
		cfg:          cfg,
		now:          time.Now,
		lastReplayAt: make(map[string]time.Time),
	}
}

// Scan computes a stats snapshot from a bounded sample of the oldest
// entries, then trims by length and age. The authoritative total comes from
// XLen, never from the sample (spec.md §4.1).
func (m *Manager) Scan(ctx context.Context) (types.DLQStatsSnapshot, error) {
	total, err := m.client.XLen(ctx, m.cfg.DLQStreamName)
	if err != nil {
		return types.DLQStatsSnapshot{}, err
	}

	entries, err := m.client.XRange(ctx, m.cfg.DLQStreamName, "-", "+", sampleSize)
	if err != nil {
		return types.DLQStatsSnapshot{}, err
	}

	counts := make(map[string]int64)
	var oldestAge time.Duration
	for _, e := range entries {
		de, ok := decodeEntry(e)
		if !ok {
			continue
		}
		counts[errorCode(de.Error)]++
	}
	if len(entries) > 0 {
		if ms, err := stream.IDTimestampMs(entries[0].ID); err == nil {
			oldestAge = m.now().Sub(time.UnixMilli(ms))
		}
	}

	snapshot := types.DLQStatsSnapshot{
		TotalCount:     total,
		SampleSize:     len(entries),
		CountsByCode:   counts,
		OldestEntryAge: oldestAge,
		LastScanAt:     m.now(),
	}

	if err := m.trim(ctx); err != nil {
		return snapshot, err
	}
	return snapshot, nil
}

func (m *Manager) trim(ctx context.Context) error {
	opts := stream.TrimOptions{MaxLen: m.cfg.MaxStreamLength}
	if m.cfg.MaxMessageAge > 0 {
		cutoff := m.now().Add(-m.cfg.MaxMessageAge)
		opts.MinID = fmt.Sprintf("%d-0", cutoff.UnixMilli())
	}
	return m.client.XTrim(ctx, m.cfg.DLQStreamName, opts)
}

// AutoRecover replays up to MaxAutoReplaysPerScan entries whose error code
// is in the retryable allowlist and that have not been auto-replayed
// within the last cooldown window, pushing each back onto the main stream.
func (m *Manager) AutoRecover(ctx context.Context) (replayed int, err error) {
	if !m.cfg.AutoRecoveryEnabled {
		return 0, nil
	}
	maxReplays := m.cfg.MaxAutoReplaysPerScan
	if maxReplays <= 0 {
		maxReplays = 5
	}

	entries, err := m.client.XRange(ctx, m.cfg.DLQStreamName, "-", "+", sampleSize)
	if err != nil {
		return 0, err
	}

	for _, e := range entries {
		if replayed >= maxReplays {
			break
		}
		de, ok := decodeEntry(e)
		if !ok {
			continue
		}
		code := execerr.Code(errorCode(de.Error))
		if !execerr.IsRetryable(code) {
			continue
		}
		if m.onCooldown(de.OriginalMessageID) {
			continue
		}
		if err := m.requeue(ctx, de); err != nil {
			continue
		}
		if err := m.client.XDel(ctx, m.cfg.DLQStreamName, e.ID); err != nil {
			continue
		}
		m.markReplayed(de.OriginalMessageID)
		replayed++
	}
	return replayed, nil
}

// ReplayByID locates entryID in the DLQ via a bounded, page-at-a-time scan
// (never an unbounded full-stream walk) and requeues it onto the main
// stream regardless of its error code, for manual operator recovery.
func (m *Manager) ReplayByID(ctx context.Context, entryID string) error {
	cursor := "-"
	for page := 0; page < replayPageSize; page++ {
		entries, err := m.client.XRange(ctx, m.cfg.DLQStreamName, cursor, "+", 1)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			break
		}
		if entries[0].ID == entryID {
			de, ok := decodeEntry(entries[0])
			if !ok {
				return execerr.New(execerr.CodeUnexpected, "DLQ entry payload could not be decoded")
			}
			if err := m.requeue(ctx, de); err != nil {
				return err
			}
			return m.client.XDel(ctx, m.cfg.DLQStreamName, entryID)
		}
		cursor = fmt.Sprintf("(%s", entries[0].ID) // exclusive next cursor
	}
	return execerr.New(execerr.CodeUnexpected, fmt.Sprintf("DLQ entry %q not found within bounded scan", entryID))
}

func (m *Manager) requeue(ctx context.Context, de types.DLQEntry) error {
	_, err := m.client.XAddWithLimit(ctx, m.cfg.MainStreamName, map[string]interface{}{"data": de.OriginalPayload}, m.cfg.MaxStreamLength)
	return err
}

func (m *Manager) onCooldown(originalMessageID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	last, ok := m.lastReplayAt[originalMessageID]
	return ok && m.now().Sub(last) < autoRecoveryCooldown
}

func (m *Manager) markReplayed(originalMessageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastReplayAt[originalMessageID] = m.now()
}

func decodeEntry(e stream.Entry) (types.DLQEntry, bool) {
	raw, ok := e.Data["data"]
	if !ok {
		return types.DLQEntry{}, false
	}
	s, ok := raw.(string)
	if !ok {
		return types.DLQEntry{}, false
	}
	var de types.DLQEntry
	if err := json.Unmarshal([]byte(s), &de); err != nil {
		return types.DLQEntry{}, false
	}
	return de, true
}

// errorCode extracts "CODE" from a "[CODE] message" string.
func errorCode(bracketed string) string {
	if !strings.HasPrefix(bracketed, "[") {
		return "UNKNOWN"
	}
	end := strings.Index(bracketed, "]")
	if end < 0 {
		return "UNKNOWN"
	}
	return bracketed[1:end]
}
