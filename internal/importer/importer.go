// Package importer sequences one import run: extract ledger rows from the
// input file, map them into the Bitable vocabulary, record a batch marker,
// and batch-insert the rows.
package importer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/zhanglc/feishu-bill-importer/internal/archive"
	"github.com/zhanglc/feishu-bill-importer/internal/config"
	"github.com/zhanglc/feishu-bill-importer/internal/feishu"
	"github.com/zhanglc/feishu-bill-importer/internal/ledger"
	"github.com/zhanglc/feishu-bill-importer/internal/logger"
)

// Marker row field names in the batch-number table.
const (
	markerFieldBatchNumber = "导入批次编号"
	markerFieldTime        = "时间"
)

// batchNumberLayout formats the run start time as YYMMDD_HHMMSS.
const batchNumberLayout = "060102_150405"

// Client is the subset of the Feishu client the importer drives.
type Client interface {
	CreateRecord(ctx context.Context, appToken, tableID string, fields map[string]any) (map[string]any, error)
	BatchCreateRecords(ctx context.Context, appToken, tableID string, records []feishu.RecordFields) (map[string]any, error)
	SearchRecords(ctx context.Context, appToken, tableID string, filter map[string]any, pageSize int) ([]feishu.Record, error)
}

// Importer owns the batch number and in-memory row sequences for the
// duration of one run. Nothing persists locally across runs.
type Importer struct {
	cfg    *config.Config
	client Client
}

// RunReport summarizes one import run.
type RunReport struct {
	BatchNumber string
	Files       int
	Extracted   int
	DryRun      bool
	DecodeModes map[string]ledger.DecodeMode
}

// New creates an importer for the given configuration and client.
func New(cfg *config.Config, client Client) *Importer {
	return &Importer{cfg: cfg, client: client}
}

// Run imports the ledger at filePath. In dry-run mode it stops after
// extraction and mapping, making no network calls. Otherwise it inserts the
// batch marker row first and then batch-inserts all mapped rows; the two
// writes are not transactional, so a failed batch insert leaves the marker
// in place.
func (i *Importer) Run(ctx context.Context, filePath string, dryRun bool) (*RunReport, error) {
	log := logger.FromContext(ctx).With().Str("run_id", uuid.NewString()).Logger()
	ctx = logger.WithContext(ctx, log)

	now := time.Now()
	batchNumber := now.Format(batchNumberLayout)

	log.Info().
		Str("file", filePath).
		Str("batch_number", batchNumber).
		Bool("dry_run", dryRun).
		Msg("Starting bill import")

	csvFiles, cleanup, err := archive.ResolveCSVFiles(filePath)
	defer cleanup()
	if err != nil {
		return nil, fmt.Errorf("Run: %w", err)
	}

	report := &RunReport{
		BatchNumber: batchNumber,
		DryRun:      dryRun,
		DecodeModes: make(map[string]ledger.DecodeMode),
	}

	var rows []ledger.Row
	for _, csvFile := range csvFiles {
		data, err := os.ReadFile(csvFile)
		if err != nil {
			return nil, fmt.Errorf("Run: read %s: %w", csvFile, err)
		}

		fileRows, mode := ledger.Extract(data, batchNumber)
		report.Files++
		report.DecodeModes[csvFile] = mode
		rows = append(rows, fileRows...)

		log.Info().
			Str("csv_file", csvFile).
			Str("decode_mode", mode.String()).
			Int("rows", len(fileRows)).
			Msg("Extracted ledger rows")
	}

	report.Extracted = len(rows)

	records := make([]feishu.RecordFields, 0, len(rows))
	for _, row := range rows {
		records = append(records, ledger.ToStorePayload(row))
	}

	if dryRun {
		log.Info().
			Int("rows", len(records)).
			Msg("[DRY RUN] Skipping Feishu inserts")
		return report, nil
	}

	if err := i.cfg.RequireCredentials(); err != nil {
		return nil, fmt.Errorf("Run: %w", err)
	}

	marker := map[string]any{
		markerFieldBatchNumber: batchNumber,
		markerFieldTime:        now.UnixMilli(),
	}
	if _, err := i.client.CreateRecord(ctx, i.cfg.AppToken, i.cfg.BatchNumberTableID, marker); err != nil {
		return nil, fmt.Errorf("Run: inserting batch marker: %w", err)
	}
	log.Info().Str("batch_number", batchNumber).Msg("Inserted batch marker row")

	if len(records) == 0 {
		log.Warn().Msg("No importable rows found; marker row recorded, nothing to batch insert")
		return report, nil
	}

	if _, err := i.client.BatchCreateRecords(ctx, i.cfg.AppToken, i.cfg.BillingTableID, records); err != nil {
		// The marker row stays; the two writes are deliberately not transactional.
		return nil, fmt.Errorf("Run: batch inserting %d rows: %w", len(records), err)
	}

	log.Info().
		Int("rows", len(records)).
		Str("batch_number", batchNumber).
		Msg("Bill import completed")

	return report, nil
}

// List fetches all records from the batch-number table.
func (i *Importer) List(ctx context.Context) ([]feishu.Record, error) {
	if err := i.cfg.RequireCredentials(); err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}

	records, err := i.client.SearchRecords(ctx, i.cfg.AppToken, i.cfg.BatchNumberTableID, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return records, nil
}
