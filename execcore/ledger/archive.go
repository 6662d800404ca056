package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// archiveRow is the columnar shape written to each hourly parquet file,
// grounded on services/otc-gateway/recon/reconciler.go's parquetRow.
type archiveRow struct {
	OpportunityID string  `parquet:"name=opportunity_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Kind          string  `parquet:"name=kind, type=BYTE_ARRAY, convertedtype=UTF8"`
	Strategy      string  `parquet:"name=strategy, type=BYTE_ARRAY, convertedtype=UTF8"`
	BuyChain      string  `parquet:"name=buy_chain, type=BYTE_ARRAY, convertedtype=UTF8"`
	SellChain     string  `parquet:"name=sell_chain, type=BYTE_ARRAY, convertedtype=UTF8"`
	TxHashes      string  `parquet:"name=tx_hashes, type=BYTE_ARRAY, convertedtype=UTF8"`
	RealizedUSD   float64 `parquet:"name=realized_usd, type=DOUBLE"`
	Outcome       string  `parquet:"name=outcome, type=BYTE_ARRAY, convertedtype=UTF8"`
	ErrorCode     string  `parquet:"name=error_code, type=BYTE_ARRAY, convertedtype=UTF8"`
	SettledAtUnix int64   `parquet:"name=settled_at_unix, type=INT64"`
}

// Archiver periodically cold-archives settled executions out of the
// relational ledger into one parquet file per hour, for offline profit/loss
// analysis without keeping every row hot in postgres indefinitely.
type Archiver struct {
	recorder *Recorder
	outDir   string
}

// NewArchiver constructs an Archiver writing parquet files under outDir.
func NewArchiver(recorder *Recorder, outDir string) *Archiver {
	return &Archiver{recorder: recorder, outDir: outDir}
}

// ArchiveHour archives every execution_records row settled within
// [hourStart, hourStart+1h) into a single parquet file, then marks those
// rows archived so a later call does not duplicate them.
func (a *Archiver) ArchiveHour(ctx context.Context, hourStart time.Time) (string, error) {
	hourStart = hourStart.Truncate(time.Hour)
	hourEnd := hourStart.Add(time.Hour)

	var rows []ExecutionRecord
	result := a.recorder.db.WithContext(ctx).
		Where("settled_at >= ? AND settled_at < ? AND archived_at IS NULL", hourStart, hourEnd).
		Find(&rows)
	if result.Error != nil {
		return "", fmt.Errorf("ledger: query hour for archival: %w", result.Error)
	}
	if len(rows) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(a.outDir, 0o755); err != nil {
		return "", fmt.Errorf("ledger: create archive dir: %w", err)
	}
	path := filepath.Join(a.outDir, fmt.Sprintf("executions-%s.parquet", hourStart.UTC().Format("2006-01-02T15")))
	if err := writeArchiveFile(path, rows); err != nil {
		return "", err
	}

	now := time.Now()
	ids := make([]uint, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	if err := a.recorder.db.WithContext(ctx).
		Model(&ExecutionRecord{}).
		Where("id IN ?", ids).
		Update("archived_at", now).Error; err != nil {
		return path, fmt.Errorf("ledger: mark archived: %w", err)
	}
	return path, nil
}

func writeArchiveFile(path string, rows []ExecutionRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ledger: create parquet file: %w", err)
	}
	defer file.Close()

	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(archiveRow), 1)
	if err != nil {
		return fmt.Errorf("ledger: parquet schema: %w", err)
	}
	pw.RowGroupSize = 64 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, r := range rows {
		row := archiveRow{
			OpportunityID: r.OpportunityID,
			Kind:          r.Kind,
			Strategy:      r.Strategy,
			BuyChain:      r.BuyChain,
			SellChain:     r.SellChain,
			TxHashes:      r.TxHashes,
			RealizedUSD:   r.RealizedUSD,
			Outcome:       r.Outcome,
			ErrorCode:     r.ErrorCode,
			SettledAtUnix: r.SettledAt.Unix(),
		}
		if err := pw.Write(row); err != nil {
			return fmt.Errorf("ledger: write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("ledger: finalize parquet file: %w", err)
	}
	return nil
}

// RunHourly archives the previous hour's rows once per tick until ctx is
// canceled. onError receives any archival failure so the caller can log it
// without stopping the loop, matching the provider lifecycle's health-check
// loop shape (execcore/provider).
func (a *Archiver) RunHourly(ctx context.Context, onError func(error)) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			previousHour := time.Now().Add(-time.Hour)
			if _, err := a.ArchiveHour(ctx, previousHour); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}
