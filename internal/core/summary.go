package core

import "math"

// Bucket is one aggregation group (month, vendor or category) with its
// summed amount and line count.
type Bucket struct {
	Key    string `json:"key"`
	Amount Money  `json:"amount"`
	Count  int    `json:"count"`
}

// AggregationResult is the derived report shape for one filter. It is
// computed per request and never persisted.
type AggregationResult struct {
	TotalAmount Money    `json:"totalAmount"`
	ItemCount   int      `json:"itemCount"`
	VendorCount int      `json:"vendorCount"`
	ListCount   int      `json:"listCount"`
	ByMonth     []Bucket `json:"byMonth"`
	ByVendor    []Bucket `json:"byVendor"`
	ByCategory  []Bucket `json:"byCategory"`
}

type BudgetStatus string

const (
	BudgetNormal  BudgetStatus = "normal"
	BudgetWarning BudgetStatus = "warning"
	BudgetOver    BudgetStatus = "over"
)

// Presentation thresholds, not business rules.
const (
	warningUsagePercent = 80
	overUsagePercent    = 100
)

// BudgetUsage cross-references a budget with the aggregated spend for its
// scope and period.
type BudgetUsage struct {
	Budget     Budget       `json:"budget"`
	TotalSpent Money        `json:"totalSpent"`
	UsageRate  float64      `json:"usageRate"` // percent, one decimal
	Remaining  Money        `json:"remaining"`
	Status     BudgetStatus `json:"status"`
}

// ComputeBudgetUsage derives usage metrics for a budget. A zero-amount
// budget yields a usage rate of exactly 0 — never NaN or Inf.
func ComputeBudgetUsage(b Budget, spent Money) BudgetUsage {
	usage := BudgetUsage{
		Budget:     b,
		TotalSpent: spent,
		Remaining:  Money{Cents: b.Amount.Cents - spent.Cents},
	}
	if b.Amount.Cents != 0 {
		rate := float64(spent.Cents) / float64(b.Amount.Cents) * 100
		usage.UsageRate = math.Round(rate*10) / 10
	}
	usage.Status = ClassifyUsage(usage.UsageRate)
	return usage
}

// ClassifyUsage maps a usage percentage onto the display classification.
func ClassifyUsage(rate float64) BudgetStatus {
	switch {
	case rate >= overUsagePercent:
		return BudgetOver
	case rate >= warningUsagePercent:
		return BudgetWarning
	default:
		return BudgetNormal
	}
}
