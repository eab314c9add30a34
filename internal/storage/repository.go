// Package storage is the SQLite persistence adapter for purchases, budgets,
// widget preferences and report snapshots. Schema lives in embedded
// migrations; dates are stored as ISO calendar-date strings so aggregation
// keys never depend on host timezone.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"labstock/internal/core"
	"labstock/internal/report"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
}

func New(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

// Ping reports database reachability, used by the readiness probe.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const purchaseColumns = `id, org_id, purchase_date, vendor, category, item_name,
	catalog_number, specification, grade, unit_label, quantity,
	unit_price_cents, amount_cents, currency, notes, source, project_name`

const insertPurchaseSQL = `INSERT INTO purchases (org_id, purchase_date, vendor,
	category, item_name, catalog_number, specification, grade, unit_label,
	quantity, unit_price_cents, amount_cents, currency, notes, source,
	project_name) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func purchaseArgs(p core.PurchaseRecord) []any {
	return []any{
		p.OrgID, p.Date.String(), p.Vendor, string(p.Category), p.ItemName,
		p.CatalogNumber, p.Specification, p.Grade, p.UnitLabel, p.Quantity,
		p.UnitPrice.Cents, p.Amount.Cents, p.Currency, p.Notes,
		string(p.Source), p.ProjectName,
	}
}

// InsertPurchase persists one manually entered purchase record.
func (r *Repository) InsertPurchase(ctx context.Context, p core.PurchaseRecord) (int64, error) {
	res, err := r.db.ExecContext(ctx, insertPurchaseSQL, purchaseArgs(p)...)
	if err != nil {
		return 0, fmt.Errorf("insert purchase: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("purchase insert id: %w", err)
	}

	slog.InfoContext(ctx, "Purchase saved",
		"id", id,
		"org_id", p.OrgID,
		"vendor", p.Vendor,
		"amount_cents", p.Amount.Cents)

	return id, nil
}

// InsertPurchases persists an import batch inside one transaction. A failed
// row aborts and rolls back the whole batch so a partial failure leaves no
// orphaned rows.
func (r *Repository) InsertPurchases(ctx context.Context, records []core.PurchaseRecord) ([]int64, error) {
	if len(records) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin import transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertPurchaseSQL)
	if err != nil {
		return nil, fmt.Errorf("prepare purchase insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(records))
	for _, p := range records {
		res, err := stmt.ExecContext(ctx, purchaseArgs(p)...)
		if err != nil {
			return nil, fmt.Errorf("insert purchase row: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("purchase insert id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import transaction: %w", err)
	}

	slog.InfoContext(ctx, "Purchase batch saved", "count", len(ids))
	return ids, nil
}

// FindPurchases implements report.PurchaseSource.
func (r *Repository) FindPurchases(ctx context.Context, q report.Query) ([]core.PurchaseRecord, error) {
	var (
		where []string
		args  []any
	)
	if q.OrgID != "" {
		where = append(where, "org_id = ?")
		args = append(args, q.OrgID)
	}
	if !q.Start.IsZero() {
		where = append(where, "purchase_date >= ?")
		args = append(args, q.Start.String())
	}
	if !q.End.IsZero() {
		where = append(where, "purchase_date <= ?")
		args = append(args, q.End.String())
	}
	if q.Vendor != "" {
		where = append(where, "vendor = ?")
		args = append(args, q.Vendor)
	}
	if q.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(q.Category))
	}

	query := "SELECT " + purchaseColumns + " FROM purchases"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY purchase_date, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find purchases: %w", err)
	}
	defer rows.Close()

	return scanPurchases(rows)
}

// GetPurchasesByIDs loads specific records, used by the sheet-sync worker.
func (r *Repository) GetPurchasesByIDs(ctx context.Context, ids []int64) ([]core.PurchaseRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+purchaseColumns+" FROM purchases WHERE id IN ("+placeholders+") ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("get purchases by ids: %w", err)
	}
	defer rows.Close()

	return scanPurchases(rows)
}

// ListUnsyncedPurchases returns records not yet mirrored to the spreadsheet.
func (r *Repository) ListUnsyncedPurchases(ctx context.Context, limit int) ([]core.PurchaseRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+purchaseColumns+" FROM purchases WHERE sheet_synced = 0 ORDER BY id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list unsynced purchases: %w", err)
	}
	defer rows.Close()

	return scanPurchases(rows)
}

// MarkSheetSynced flags records as mirrored.
func (r *Repository) MarkSheetSynced(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := r.db.ExecContext(ctx,
		"UPDATE purchases SET sheet_synced = 1 WHERE id IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("mark sheet synced: %w", err)
	}
	return nil
}

func scanPurchases(rows *sql.Rows) ([]core.PurchaseRecord, error) {
	var records []core.PurchaseRecord
	for rows.Next() {
		var (
			p        core.PurchaseRecord
			date     string
			category string
			source   string
		)
		if err := rows.Scan(&p.ID, &p.OrgID, &date, &p.Vendor, &category,
			&p.ItemName, &p.CatalogNumber, &p.Specification, &p.Grade,
			&p.UnitLabel, &p.Quantity, &p.UnitPrice.Cents, &p.Amount.Cents,
			&p.Currency, &p.Notes, &source, &p.ProjectName); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		parsed, err := core.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("stored purchase date %q: %w", date, err)
		}
		p.Date = parsed
		p.Category = core.Category(category)
		p.Source = core.Source(source)
		records = append(records, p)
	}
	return records, rows.Err()
}

// GetBudget implements report.BudgetSource. Missing budget maps to
// core.ErrNotFound.
func (r *Repository) GetBudget(ctx context.Context, orgID, period string) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, org_id, period, amount_cents, currency, label, project_name
		 FROM budgets WHERE org_id = ? AND period = ?`, orgID, period)

	var b core.Budget
	err := row.Scan(&b.ID, &b.OrgID, &b.Period, &b.Amount.Cents, &b.Currency, &b.Label, &b.ProjectName)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %s/%s: %w", orgID, period, core.ErrNotFound)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

// UpsertBudget creates or replaces the budget for (org, period); the unique
// constraint keeps one budget per scope and period.
func (r *Repository) UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (org_id, period, amount_cents, currency, label, project_name)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(org_id, period) DO UPDATE SET
			amount_cents = excluded.amount_cents,
			currency = excluded.currency,
			label = excluded.label,
			project_name = excluded.project_name,
			updated_at = CURRENT_TIMESTAMP`,
		b.OrgID, b.Period, b.Amount.Cents, b.Currency, b.Label, b.ProjectName)
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}

	return r.GetBudget(ctx, b.OrgID, b.Period)
}

func (r *Repository) ListBudgets(ctx context.Context, orgID string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, org_id, period, amount_cents, currency, label, project_name
		 FROM budgets WHERE org_id = ? ORDER BY period DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		var b core.Budget
		if err := rows.Scan(&b.ID, &b.OrgID, &b.Period, &b.Amount.Cents,
			&b.Currency, &b.Label, &b.ProjectName); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// WidgetPref is one dashboard widget's saved position and size.
type WidgetPref struct {
	WidgetID  string `json:"widgetId"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	W         int    `json:"w"`
	H         int    `json:"h"`
	SortOrder int    `json:"sortOrder"`
}

func (r *Repository) GetWidgetPrefs(ctx context.Context, orgID, userID string) ([]WidgetPref, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT widget_id, x, y, w, h, sort_order FROM widget_prefs
		 WHERE org_id = ? AND user_id = ? ORDER BY sort_order, widget_id`, orgID, userID)
	if err != nil {
		return nil, fmt.Errorf("get widget prefs: %w", err)
	}
	defer rows.Close()

	var prefs []WidgetPref
	for rows.Next() {
		var p WidgetPref
		if err := rows.Scan(&p.WidgetID, &p.X, &p.Y, &p.W, &p.H, &p.SortOrder); err != nil {
			return nil, fmt.Errorf("scan widget pref: %w", err)
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

// PutWidgetPrefs replaces the saved layout for one user in one scope.
func (r *Repository) PutWidgetPrefs(ctx context.Context, orgID, userID string, prefs []WidgetPref) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin prefs transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM widget_prefs WHERE org_id = ? AND user_id = ?", orgID, userID); err != nil {
		return fmt.Errorf("clear widget prefs: %w", err)
	}

	for _, p := range prefs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO widget_prefs (org_id, user_id, widget_id, x, y, w, h, sort_order)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			orgID, userID, p.WidgetID, p.X, p.Y, p.W, p.H, p.SortOrder); err != nil {
			return fmt.Errorf("insert widget pref %q: %w", p.WidgetID, err)
		}
	}

	return tx.Commit()
}

// MonthTotal is one (org, month) roll-up used for report snapshots.
type MonthTotal struct {
	OrgID      string
	Month      string // YYYY-MM
	TotalCents int64
	ItemCount  int
}

// MonthTotals computes per-month spend roll-ups. Empty orgID covers every
// scope; months filters to specific buckets when non-empty.
func (r *Repository) MonthTotals(ctx context.Context, orgID string, months []string) ([]MonthTotal, error) {
	query := `SELECT org_id, substr(purchase_date, 1, 7) AS month,
		SUM(amount_cents), COUNT(*) FROM purchases`
	var (
		where []string
		args  []any
	)
	if orgID != "" {
		where = append(where, "org_id = ?")
		args = append(args, orgID)
	}
	if len(months) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(months)), ",")
		where = append(where, "substr(purchase_date, 1, 7) IN ("+placeholders+")")
		for _, m := range months {
			args = append(args, m)
		}
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " GROUP BY org_id, month ORDER BY org_id, month"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("month totals: %w", err)
	}
	defer rows.Close()

	var totals []MonthTotal
	for rows.Next() {
		var t MonthTotal
		if err := rows.Scan(&t.OrgID, &t.Month, &t.TotalCents, &t.ItemCount); err != nil {
			return nil, fmt.Errorf("scan month total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// UpsertReportSnapshot stores one precomputed month roll-up. Rebuilds are
// idempotent upserts, so overlapping refreshes are harmless.
func (r *Repository) UpsertReportSnapshot(ctx context.Context, t MonthTotal) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO report_snapshots (org_id, month, total_cents, item_count, generated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(org_id, month) DO UPDATE SET
			total_cents = excluded.total_cents,
			item_count = excluded.item_count,
			generated_at = excluded.generated_at`,
		t.OrgID, t.Month, t.TotalCents, t.ItemCount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert report snapshot: %w", err)
	}
	return nil
}
