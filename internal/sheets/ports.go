// Package sheets defines the spreadsheet mirror port.
package sheets

import (
	"context"

	"labstock/internal/core"
)

// RowAppender mirrors purchase records to an external spreadsheet.
type RowAppender interface {
	AppendPurchases(ctx context.Context, records []core.PurchaseRecord) error
}
