// Package report computes purchase aggregations and budget usage.
//
// The service is a pure read path: it pulls filtered purchase records from
// the store and folds them into month, vendor and category buckets in
// memory. Nothing here caches or mutates state.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"labstock/internal/core"
)

// Query is the store-level filter for purchase records. Start and End are
// inclusive; zero dates mean unbounded.
type Query struct {
	OrgID    string
	Start    core.Date
	End      core.Date
	Vendor   string
	Category core.Category
}

// Filter is the request-level report filter before period resolution.
type Filter struct {
	OrgID    string
	Period   string
	Start    core.Date // custom period only
	End      core.Date // custom period only
	Vendor   string
	Category core.Category
}

// Ports for the persistence adapter.
type (
	PurchaseSource interface {
		FindPurchases(ctx context.Context, q Query) ([]core.PurchaseRecord, error)
	}

	BudgetSource interface {
		GetBudget(ctx context.Context, orgID, period string) (core.Budget, error)
	}
)

type Service struct {
	purchases PurchaseSource
	budgets   BudgetSource
	now       func() time.Time
}

func NewService(purchases PurchaseSource, budgets BudgetSource) *Service {
	return &Service{
		purchases: purchases,
		budgets:   budgets,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock. Tests use it to pin named periods.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Aggregate resolves the filter's period and groups the matching purchases
// into monthly, vendor and category totals. An empty result set is not an
// error: the zeroed metrics are the report.
func (s *Service) Aggregate(ctx context.Context, f Filter) (core.AggregationResult, error) {
	rng, err := s.resolveRange(f)
	if err != nil {
		return core.AggregationResult{}, err
	}

	records, err := s.purchases.FindPurchases(ctx, Query{
		OrgID:    f.OrgID,
		Start:    rng.Start,
		End:      rng.End,
		Vendor:   f.Vendor,
		Category: f.Category,
	})
	if err != nil {
		return core.AggregationResult{}, fmt.Errorf("find purchases (org=%s): %w", f.OrgID, err)
	}

	return Aggregate(records), nil
}

// Aggregate folds purchase records into an AggregationResult. Split out so
// the worker can reuse it on preloaded record sets.
func Aggregate(records []core.PurchaseRecord) core.AggregationResult {
	var result core.AggregationResult

	months := map[string]*core.Bucket{}
	vendors := map[string]*core.Bucket{}
	categories := map[string]*core.Bucket{}
	projects := map[string]struct{}{}

	for _, rec := range records {
		result.TotalAmount.Cents += rec.Amount.Cents
		result.ItemCount++
		if rec.ProjectName != "" {
			projects[rec.ProjectName] = struct{}{}
		}
		accumulate(months, rec.Date.YearMonth(), rec.Amount.Cents)
		accumulate(vendors, rec.Vendor, rec.Amount.Cents)
		accumulate(categories, string(rec.Category), rec.Amount.Cents)
	}

	result.ListCount = len(projects)
	result.VendorCount = len(vendors)
	result.ByMonth = sortedBuckets(months, byKeyAsc)
	result.ByVendor = sortedBuckets(vendors, byAmountDesc)
	result.ByCategory = sortedBuckets(categories, byAmountDesc)
	return result
}

// BudgetUsage loads the budget for (orgID, period) and compares it against
// the aggregated spend for that month. Missing budget is a NotFound, not a
// zero-usage fabrication.
func (s *Service) BudgetUsage(ctx context.Context, orgID, period string) (core.BudgetUsage, error) {
	budget, err := s.budgets.GetBudget(ctx, orgID, period)
	if err != nil {
		return core.BudgetUsage{}, fmt.Errorf("get budget (org=%s, period=%s): %w", orgID, period, err)
	}

	rng, err := MonthRange(period)
	if err != nil {
		return core.BudgetUsage{}, err
	}

	records, err := s.purchases.FindPurchases(ctx, Query{OrgID: orgID, Start: rng.Start, End: rng.End})
	if err != nil {
		return core.BudgetUsage{}, fmt.Errorf("find purchases (org=%s, period=%s): %w", orgID, period, err)
	}

	var spent core.Money
	for _, rec := range records {
		spent.Cents += rec.Amount.Cents
	}

	return core.ComputeBudgetUsage(budget, spent), nil
}

func (s *Service) resolveRange(f Filter) (DateRange, error) {
	return resolveFilterRange(f, s.now())
}

// ResolveRange resolves a filter's period against the service clock. The
// HTTP layer keys its report cache on the resolved range so a named period
// never serves stale numbers across a month or quarter boundary.
func (s *Service) ResolveRange(f Filter) (DateRange, error) {
	return s.resolveRange(f)
}

// ResolveFilterRange resolves a request filter's period against the current
// time. Handlers outside the service (list, export) share it so every read
// path buckets dates identically.
func ResolveFilterRange(f Filter) (DateRange, error) {
	return resolveFilterRange(f, time.Now().UTC())
}

func resolveFilterRange(f Filter, now time.Time) (DateRange, error) {
	if f.Period == PeriodCustom {
		if f.Start.IsZero() || f.End.IsZero() {
			return DateRange{}, core.Invalidf("custom period requires startDate and endDate")
		}
		if f.End.Time.Before(f.Start.Time) {
			return DateRange{}, core.Invalidf("endDate before startDate")
		}
		return DateRange{Start: f.Start, End: f.End}, nil
	}
	return ResolvePeriod(f.Period, now)
}

func accumulate(m map[string]*core.Bucket, key string, cents int64) {
	b, ok := m[key]
	if !ok {
		b = &core.Bucket{Key: key}
		m[key] = b
	}
	b.Amount.Cents += cents
	b.Count++
}

type bucketOrder func(a, b core.Bucket) bool

func byKeyAsc(a, b core.Bucket) bool { return a.Key < b.Key }

func byAmountDesc(a, b core.Bucket) bool {
	if a.Amount.Cents != b.Amount.Cents {
		return a.Amount.Cents > b.Amount.Cents
	}
	return a.Key < b.Key
}

func sortedBuckets(m map[string]*core.Bucket, less bucketOrder) []core.Bucket {
	out := make([]core.Bucket, 0, len(m))
	for _, b := range m {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
