// Package ledger persists settled executions to a relational audit trail,
// independent of the in-memory counters in execcore/types.Stats, grounded on
// the teacher's gorm+postgres wiring (services/otc-gateway/main.go) and the
// GORM recorder shape in ChoSanghyuk-blackholedex's internal/db package.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nhbchain/execcore/execerr"
	"nhbchain/execcore/strategy"
	"nhbchain/execcore/types"
)

// ExecutionRecord is the durable row for one settled (or failed) execution.
type ExecutionRecord struct {
	ID              uint      `gorm:"primaryKey;autoIncrement"`
	OpportunityID   string    `gorm:"index;not null"`
	Kind            string    `gorm:"not null"`
	Strategy        string    `gorm:"index"`
	BuyChain        string    `gorm:"index"`
	SellChain       string
	TxHashes        string // comma-joined, empty if the strategy never broadcast
	RealizedUSD     float64
	Outcome         string `gorm:"index"` // succeeded | failed | timed_out
	ErrorCode       string
	ErrorMessage    string
	ReceivedAt      time.Time
	SettledAt       time.Time `gorm:"index"`
	ArchivedAt      *time.Time
}

// TableName pins the table name regardless of Go type naming conventions.
func (ExecutionRecord) TableName() string {
	return "execution_records"
}

// Recorder owns the GORM connection backing the audit ledger.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder opens a postgres connection at dsn and migrates the schema.
func NewRecorder(dsn string) (*Recorder, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: connect postgres: %w", err)
	}
	return NewRecorderWithDB(db)
}

// NewRecorderWithDB wraps an already-open GORM connection, letting callers
// share a pool across the ledger and any other relational component.
func NewRecorderWithDB(db *gorm.DB) (*Recorder, error) {
	if err := db.AutoMigrate(&ExecutionRecord{}); err != nil {
		return nil, fmt.Errorf("ledger: migrate schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// Record writes one settled-execution row. execErr is nil on success; its
// tagged code and message are split out for independent indexing when
// non-nil. This never blocks the orchestrator's own return path — callers
// invoke it after Execute returns, not from inside the critical section.
func (r *Recorder) Record(ctx context.Context, opp *types.Opportunity, res strategy.Result, execErr error) error {
	record := buildRecord(opp, res, execErr)
	result := r.db.WithContext(ctx).Create(&record)
	if result.Error != nil {
		return fmt.Errorf("ledger: record execution: %w", result.Error)
	}
	return nil
}

// buildRecord derives the durable row for one execution outcome, split out
// from Record so the mapping is unit-testable without a database connection.
func buildRecord(opp *types.Opportunity, res strategy.Result, execErr error) ExecutionRecord {
	record := ExecutionRecord{
		OpportunityID: opp.ID,
		Kind:          string(opp.Kind),
		Strategy:      res.Strategy,
		BuyChain:      opp.BuyChain,
		SellChain:     opp.SellChain,
		TxHashes:      strings.Join(res.TxHashes, ","),
		RealizedUSD:   res.RealizedUSD,
		ReceivedAt:    opp.ReceivedAt,
		SettledAt:     time.Now(),
	}
	if execErr == nil {
		record.Outcome = "succeeded"
		return record
	}
	var tagged *execerr.Error
	if execerr.As(execErr, &tagged) {
		record.ErrorCode = string(tagged.Code)
		record.ErrorMessage = tagged.Message
		if tagged.Code == execerr.CodeExecutionTimeout {
			record.Outcome = "timed_out"
		} else {
			record.Outcome = "failed"
		}
		return record
	}
	record.Outcome = "failed"
	record.ErrorMessage = execErr.Error()
	return record
}

// RecentByOpportunity returns the most recent records for opportunityID,
// newest first, for operator lookups.
func (r *Recorder) RecentByOpportunity(ctx context.Context, opportunityID string, limit int) ([]ExecutionRecord, error) {
	var records []ExecutionRecord
	result := r.db.WithContext(ctx).
		Where("opportunity_id = ?", opportunityID).
		Order("settled_at DESC").
		Limit(limit).
		Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("ledger: query by opportunity: %w", result.Error)
	}
	return records, nil
}

// CountByOutcome returns the total row count for a given outcome, for
// health/metrics exposition beyond the process-lifetime Stats counters.
func (r *Recorder) CountByOutcome(ctx context.Context, outcome string) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&ExecutionRecord{}).Where("outcome = ?", outcome).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("ledger: count by outcome: %w", result.Error)
	}
	return count, nil
}

// Close releases the underlying connection pool.
func (r *Recorder) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("ledger: underlying db: %w", err)
	}
	return sqlDB.Close()
}
