// Package worker runs the background pipeline: mirroring purchases to the
// spreadsheet and keeping per-month report snapshots fresh.
package worker

import (
	"context"
	"fmt"

	"labstock/internal/amqp"
	"labstock/internal/core"
	applog "labstock/internal/log"
	"labstock/internal/sheets"
	"labstock/internal/storage"
)

// Store is the persistence surface the worker needs.
type Store interface {
	GetPurchasesByIDs(ctx context.Context, ids []int64) ([]core.PurchaseRecord, error)
	ListUnsyncedPurchases(ctx context.Context, limit int) ([]core.PurchaseRecord, error)
	MarkSheetSynced(ctx context.Context, ids []int64) error
	MonthTotals(ctx context.Context, orgID string, months []string) ([]storage.MonthTotal, error)
	UpsertReportSnapshot(ctx context.Context, t storage.MonthTotal) error
}

type SnapshotWorker struct {
	store     Store
	appender  sheets.RowAppender // nil disables the mirror
	batchSize int
	logger    *applog.Logger
}

func NewSnapshotWorker(store Store, appender sheets.RowAppender, batchSize int, logger *applog.Logger) *SnapshotWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &SnapshotWorker{
		store:     store,
		appender:  appender,
		batchSize: batchSize,
		logger:    logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleImportMessage processes one purchase import event: mirror the
// records to the spreadsheet, then refresh the snapshots for the affected
// months. Returning an error requeues the message.
func (w *SnapshotWorker) HandleImportMessage(ctx context.Context, msg *amqp.PurchaseImportedMessage) error {
	records, err := w.store.GetPurchasesByIDs(ctx, msg.IDs)
	if err != nil {
		return fmt.Errorf("load purchases for event: %w", err)
	}

	if err := w.mirror(ctx, records); err != nil {
		return err
	}

	if err := w.refreshSnapshots(ctx, msg.OrgID, msg.Months); err != nil {
		return err
	}

	w.logger.Info("import event processed",
		applog.FieldOrgID, msg.OrgID,
		applog.FieldCount, len(records),
	)
	return nil
}

// RebuildSnapshots recomputes every (org, month) roll-up from the purchase
// table. Runs on the cron schedule as a safety net against drift.
func (w *SnapshotWorker) RebuildSnapshots(ctx context.Context) error {
	return w.refreshSnapshots(ctx, "", nil)
}

// StartupSyncCheck mirrors any records a lost event left behind.
func (w *SnapshotWorker) StartupSyncCheck(ctx context.Context) error {
	if w.appender == nil {
		return nil
	}

	for {
		records, err := w.store.ListUnsyncedPurchases(ctx, w.batchSize)
		if err != nil {
			return fmt.Errorf("list unsynced purchases: %w", err)
		}
		if len(records) == 0 {
			return nil
		}

		if err := w.mirror(ctx, records); err != nil {
			return err
		}

		w.logger.Info("startup sync mirrored backlog batch", applog.FieldCount, len(records))
		if len(records) < w.batchSize {
			return nil
		}
	}
}

func (w *SnapshotWorker) mirror(ctx context.Context, records []core.PurchaseRecord) error {
	if w.appender == nil || len(records) == 0 {
		return nil
	}

	if err := w.appender.AppendPurchases(ctx, records); err != nil {
		return fmt.Errorf("mirror purchases to sheet: %w", err)
	}

	ids := make([]int64, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	if err := w.store.MarkSheetSynced(ctx, ids); err != nil {
		return fmt.Errorf("mark purchases synced: %w", err)
	}
	return nil
}

func (w *SnapshotWorker) refreshSnapshots(ctx context.Context, orgID string, months []string) error {
	totals, err := w.store.MonthTotals(ctx, orgID, months)
	if err != nil {
		return fmt.Errorf("compute month totals: %w", err)
	}

	for _, t := range totals {
		if err := w.store.UpsertReportSnapshot(ctx, t); err != nil {
			return fmt.Errorf("store snapshot %s/%s: %w", t.OrgID, t.Month, err)
		}
	}

	w.logger.Debug("snapshots refreshed", applog.FieldCount, len(totals))
	return nil
}
