package types

import "time"

// DLQEntry is the wire contract for a dead-letter entry (spec.md §6). The
// preserved original payload is required for replay: once written, an
// entry is immutable until trimmed.
type DLQEntry struct {
	OriginalMessageID string    `json:"originalMessageId"`
	OriginalStream    string    `json:"originalStream"`
	OpportunityID     string    `json:"opportunityId"`
	OpportunityType   string    `json:"opportunityType"`
	Error             string    `json:"error"` // "[CODE] message"
	Timestamp         time.Time `json:"timestamp"`
	Service           string    `json:"service"`
	InstanceID        string    `json:"instanceId"`
	OriginalPayload   string    `json:"originalPayload"`
}

// DLQStatsSnapshot is a copy-on-read view of the DLQ scan state (spec.md
// §4.1): authoritative totalCount comes from the stream length, not the
// sample size.
type DLQStatsSnapshot struct {
	TotalCount     int64
	SampleSize     int
	CountsByCode   map[string]int64
	OldestEntryAge time.Duration
	LastScanAt     time.Time
}
