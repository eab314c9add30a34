// Package services contains the write-side application services.
package services

import (
	"context"
	"fmt"
	"time"

	"labstock/internal/amqp"
	"labstock/internal/core"
	applog "labstock/internal/log"
)

// PurchaseWriter is the persistence port for purchase writes.
type PurchaseWriter interface {
	InsertPurchase(ctx context.Context, p core.PurchaseRecord) (int64, error)
	InsertPurchases(ctx context.Context, records []core.PurchaseRecord) ([]int64, error)
}

// EventPublisher emits purchase import events. A nil publisher disables the
// event pipeline; writes still succeed.
type EventPublisher interface {
	PublishPurchasesImported(ctx context.Context, msg *amqp.PurchaseImportedMessage) error
	Close() error
}

// PurchaseService persists purchase records and fans out import events to
// the worker pipeline.
type PurchaseService struct {
	store     PurchaseWriter
	publisher EventPublisher
	logger    *applog.Logger
}

func NewPurchaseService(store PurchaseWriter, publisher EventPublisher, logger *applog.Logger) *PurchaseService {
	return &PurchaseService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(applog.ComponentImport),
	}
}

// CreatePurchase validates and stores one manual record, then announces it.
func (s *PurchaseService) CreatePurchase(ctx context.Context, p core.PurchaseRecord) (core.PurchaseRecord, error) {
	p.Source = core.SourceManual
	if err := p.Validate(); err != nil {
		return core.PurchaseRecord{}, err
	}

	id, err := s.store.InsertPurchase(ctx, p)
	if err != nil {
		return core.PurchaseRecord{}, fmt.Errorf("create purchase: %w", err)
	}
	p.ID = id

	s.publishImported(ctx, p.OrgID, []int64{id}, []string{p.Date.YearMonth()})
	return p, nil
}

// ImportPurchases stores a parsed import batch in one transaction, then
// announces the batch for mirroring and snapshot refresh.
func (s *PurchaseService) ImportPurchases(ctx context.Context, records []core.PurchaseRecord) ([]int64, error) {
	if len(records) == 0 {
		return nil, nil
	}

	ids, err := s.store.InsertPurchases(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("import purchases: %w", err)
	}

	s.publishImported(ctx, records[0].OrgID, ids, distinctMonths(records))
	return ids, nil
}

// publishImported fires the import event. Publish failures are logged and
// swallowed: the worker's startup sync catches anything missed.
func (s *PurchaseService) publishImported(ctx context.Context, orgID string, ids []int64, months []string) {
	if s.publisher == nil {
		return
	}
	msg := &amqp.PurchaseImportedMessage{
		OrgID:     orgID,
		IDs:       ids,
		Months:    months,
		Timestamp: time.Now().UTC(),
	}
	if err := s.publisher.PublishPurchasesImported(ctx, msg); err != nil {
		s.logger.Error("failed to publish import event",
			applog.FieldOrgID, orgID,
			applog.FieldCount, len(ids),
			applog.FieldError, err,
		)
	}
}

func (s *PurchaseService) Close() error {
	if s.publisher != nil {
		return s.publisher.Close()
	}
	return nil
}

func distinctMonths(records []core.PurchaseRecord) []string {
	seen := map[string]struct{}{}
	var months []string
	for _, rec := range records {
		m := rec.Date.YearMonth()
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		months = append(months, m)
	}
	return months
}
