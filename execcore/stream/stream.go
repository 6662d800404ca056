// Package stream wraps the Redis Streams client used for the inbound
// opportunity stream and the DLQ stream (spec.md §6). It exposes the five
// operations named in the external-interfaces contract (xread, xadd,
// xaddWithLimit, xlen, xtrim) plus xrange and xdel for DLQ replay.
package stream

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Entry is one stream entry: an id plus its field map, matching "Entries
// have: id, data" from spec.md §6.
type Entry struct {
	ID   string
	Data map[string]interface{}
}

// Client is a thin wrapper over *redis.Client restricted to the stream
// operations the execution core needs. Grounded on the teacher's
// storage.Database pattern of wrapping a single backing driver behind a
// narrow interface (storage/db.go).
type Client struct {
	rdb *redis.Client
}

// New constructs a Client from a Redis connection URL
// (redis://[:password@]host:port/db).
func New(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("stream: parse redis url: %w", err)
	}
	return &Client{rdb: redis.NewClient(opts)}, nil
}

// NewFromRedisClient wraps an already-constructed *redis.Client, letting
// tests point the wrapper at a miniredis instance.
func NewFromRedisClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// XRead reads up to count entries from name starting after cursor ("$" for
// only-new, "0" for from-the-beginning). A negative block duration performs
// a plain, non-blocking poll (the consumer's scan loop uses this); a
// non-negative duration blocks server-side for up to that long waiting for
// new entries.
func (c *Client) XRead(ctx context.Context, name, cursor string, count int64, block time.Duration) ([]Entry, error) {
	res, err := c.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{name, cursor},
		Count:   count,
		Block:   block,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stream: xread %s: %w", name, err)
	}
	var entries []Entry
	for _, stream := range res {
		for _, msg := range stream.Messages {
			entries = append(entries, Entry{ID: msg.ID, Data: msg.Values})
		}
	}
	return entries, nil
}

// XAdd appends an entry to name and returns the assigned id.
func (c *Client) XAdd(ctx context.Context, name string, values map[string]interface{}) (string, error) {
	id, err := c.rdb.XAdd(ctx, &redis.XAddArgs{Stream: name, Values: values}).Result()
	if err != nil {
		return "", fmt.Errorf("stream: xadd %s: %w", name, err)
	}
	return id, nil
}

// XAddWithLimit appends an entry to name, approximately capping the stream
// at maxLen entries in the same call (spec.md §4.1's "cap the stream at a
// maximum length", done opportunistically on write rather than as a
// separate trim pass).
func (c *Client) XAddWithLimit(ctx context.Context, name string, values map[string]interface{}, maxLen int64) (string, error) {
	id, err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: name,
		MaxLen: maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("stream: xadd_with_limit %s: %w", name, err)
	}
	return id, nil
}

// XLen returns the authoritative stream length (spec.md §4.1: "The
// authoritative totalCount comes from the stream length, not from the
// sample size").
func (c *Client) XLen(ctx context.Context, name string) (int64, error) {
	n, err := c.rdb.XLen(ctx, name).Result()
	if err != nil {
		return 0, fmt.Errorf("stream: xlen %s: %w", name, err)
	}
	return n, nil
}

// TrimOptions selects one or both trim strategies for XTrim.
type TrimOptions struct {
	MinID  string // trim entries older than this timestamp-prefixed id
	MaxLen int64  // 0 means unset
}

// XTrim approximately trims name per opts. Both trims are coarse-grained by
// design (spec.md §4.1: "approximate... for efficiency").
func (c *Client) XTrim(ctx context.Context, name string, opts TrimOptions) error {
	if opts.MinID != "" {
		if err := c.rdb.XTrimMinIDApprox(ctx, name, opts.MinID, 100).Err(); err != nil {
			return fmt.Errorf("stream: xtrim minid %s: %w", name, err)
		}
	}
	if opts.MaxLen > 0 {
		if err := c.rdb.XTrimMaxLenApprox(ctx, name, opts.MaxLen, 100).Err(); err != nil {
			return fmt.Errorf("stream: xtrim maxlen %s: %w", name, err)
		}
	}
	return nil
}

// XRange paginates forward through name between start and stop ids,
// backing the DLQ replay operation's bounded scan (spec.md §4.1).
func (c *Client) XRange(ctx context.Context, name, start, stop string, count int64) ([]Entry, error) {
	res, err := c.rdb.XRangeN(ctx, name, start, stop, count).Result()
	if err != nil {
		return nil, fmt.Errorf("stream: xrange %s: %w", name, err)
	}
	entries := make([]Entry, 0, len(res))
	for _, msg := range res {
		entries = append(entries, Entry{ID: msg.ID, Data: msg.Values})
	}
	return entries, nil
}

// XDel removes specific entries from name by id, used by DLQ replay to
// retire an entry once it has been requeued onto the main stream.
func (c *Client) XDel(ctx context.Context, name string, ids ...string) error {
	if err := c.rdb.XDel(ctx, name, ids...).Err(); err != nil {
		return fmt.Errorf("stream: xdel %s: %w", name, err)
	}
	return nil
}

// IDTimestampMs extracts the millisecond timestamp prefix from a Redis
// stream id ("<ms>-<seq>"), used for age-based auto-trim thresholds.
func IDTimestampMs(id string) (int64, error) {
	for i := 0; i < len(id); i++ {
		if id[i] == '-' {
			return strconv.ParseInt(id[:i], 10, 64)
		}
	}
	return strconv.ParseInt(id, 10, 64)
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
