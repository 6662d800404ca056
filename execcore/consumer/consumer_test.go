package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"nhbchain/execcore/dlq"
	"nhbchain/execcore/stream"
	"nhbchain/execcore/types"
)

func newTestConsumer(t *testing.T, handler Handler) (*Consumer, *stream.Client, *types.Stats) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client := stream.NewFromRedisClient(rdb)
	dlqMgr := dlq.NewManager(client, dlq.Config{MainStreamName: "opportunities", DLQStreamName: "opportunities:dlq", MaxStreamLength: 1000})
	stats := &types.Stats{}
	cfg := Config{StreamName: "opportunities", ScanInterval: 10 * time.Millisecond, MaxMessagesPerScan: 10, Service: "executor", InstanceID: "test-1"}
	opts := Options{ConfidenceThreshold: 0.70, MinProfitPercentage: 0.01, SupportedChains: map[string]struct{}{"eth": {}, "arb": {}}}
	c := New(client, dlqMgr, cfg, opts, handler, stats, nil)
	c.cursor = "0" // read from the beginning so tests don't race the ticker
	return c, client, stats
}

func validOpportunityJSON(id string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"id": id, "kind": "single-chain", "buyChain": "eth",
		"tokenIn": "0xaaa", "tokenOut": "0xbbb", "amountIn": "1000000000000000000",
		"expectedProfit": 0.05, "confidence": 0.9,
	})
	return string(b)
}

func TestScanOnceAcceptsValidOpportunity(t *testing.T) {
	var handled []string
	handler := func(ctx context.Context, opp *types.Opportunity) error {
		handled = append(handled, opp.ID)
		return nil
	}
	c, client, stats := newTestConsumer(t, handler)
	ctx := context.Background()

	_, err := client.XAdd(ctx, "opportunities", map[string]interface{}{"data": validOpportunityJSON("opp-1")})
	require.NoError(t, err)

	c.scanOnce(ctx)

	require.Equal(t, []string{"opp-1"}, handled)
	require.EqualValues(t, 1, stats.Received.Load())
	require.EqualValues(t, 0, stats.Rejected.Load())
}

func TestScanOnceDeadLettersInvalidOpportunity(t *testing.T) {
	handler := func(ctx context.Context, opp *types.Opportunity) error { return nil }
	c, client, stats := newTestConsumer(t, handler)
	ctx := context.Background()

	_, err := client.XAdd(ctx, "opportunities", map[string]interface{}{"data": `{"id":"opp-2","kind":"single-chain"}`})
	require.NoError(t, err)

	c.scanOnce(ctx)

	require.EqualValues(t, 1, stats.Received.Load())
	require.EqualValues(t, 1, stats.Rejected.Load())

	dlqLen, err := client.XLen(ctx, "opportunities:dlq")
	require.NoError(t, err)
	require.EqualValues(t, 1, dlqLen)
}

func TestScanOnceSkipsControlMessage(t *testing.T) {
	var handled int
	handler := func(ctx context.Context, opp *types.Opportunity) error {
		handled++
		return nil
	}
	c, client, stats := newTestConsumer(t, handler)
	ctx := context.Background()

	_, err := client.XAdd(ctx, "opportunities", map[string]interface{}{"data": `{"type":"stream-init"}`})
	require.NoError(t, err)

	c.scanOnce(ctx)

	require.Equal(t, 0, handled)
	require.EqualValues(t, 0, stats.Rejected.Load())
	dlqLen, err := client.XLen(ctx, "opportunities:dlq")
	require.NoError(t, err)
	require.EqualValues(t, 0, dlqLen)
}

func TestStartStopIsIdempotent(t *testing.T) {
	handler := func(ctx context.Context, opp *types.Opportunity) error { return nil }
	c, _, _ := newTestConsumer(t, handler)
	ctx := context.Background()

	c.Start(ctx)
	c.Start(ctx) // duplicate start, should just log a warning
	c.Stop()
	c.Stop() // duplicate stop, should just log a warning
}

func TestDeadLetteredEntryCarriesOriginalPayload(t *testing.T) {
	handler := func(ctx context.Context, opp *types.Opportunity) error { return nil }
	c, client, _ := newTestConsumer(t, handler)
	ctx := context.Background()

	payload := `{"id":"opp-3","kind":"bogus_kind","tokenIn":"a","tokenOut":"b","amountIn":"1"}`
	_, err := client.XAdd(ctx, "opportunities", map[string]interface{}{"data": payload})
	require.NoError(t, err)

	c.scanOnce(ctx)

	entries, err := client.XRange(ctx, "opportunities:dlq", "-", "+", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var de types.DLQEntry
	require.NoError(t, json.Unmarshal([]byte(entries[0].Data["data"].(string)), &de))
	require.Equal(t, payload, de.OriginalPayload)
	require.Equal(t, "opp-3", de.OpportunityID)
	require.Contains(t, de.Error, "VAL_UNKNOWN_KIND")
}
