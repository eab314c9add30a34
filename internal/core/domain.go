package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	CategoryReagent    Category = "REAGENT"
	CategoryTool       Category = "TOOL"
	CategoryEquipment  Category = "EQUIPMENT"
	CategoryConsumable Category = "CONSUMABLE"
	CategoryService    Category = "SERVICE"
	CategorySafety     Category = "SAFETY"
	CategoryOther      Category = "OTHER"
)

const (
	SourceManual Source = "manual"
	SourceImport Source = "import"
)

type (
	Category string

	Source string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64 `json:"cents"`
	}

	// PurchaseRecord is a single purchase line item scoped to an
	// organization. Amount is stored as entered; Quantity*UnitPrice is a
	// display-only reconciliation, never enforced.
	PurchaseRecord struct {
		ID            int64
		OrgID         string
		Date          Date
		Vendor        string
		Category      Category
		ItemName      string
		CatalogNumber string
		Specification string
		Grade         string
		UnitLabel     string
		Quantity      float64
		UnitPrice     Money
		Amount        Money
		Currency      string
		Notes         string
		Source        Source
		ProjectName   string
	}

	// Budget is a spend target for one (org, period) pair. Purchases map
	// into it by date-prefix match on the period at query time.
	Budget struct {
		ID          int64
		OrgID       string
		Period      string // "YYYY-MM"
		Amount      Money
		Currency    string
		Label       string
		ProjectName string
	}
)

var (
	// ErrValidation is the root of all user-input errors. Handlers match
	// it with errors.Is to pick the response status.
	ErrValidation = errors.New("invalid input")

	ErrNotFound = errors.New("not found")

	ErrInvalidAmount   = fmt.Errorf("invalid amount: %w", ErrValidation)
	ErrInvalidDate     = fmt.Errorf("invalid date: %w", ErrValidation)
	ErrInvalidQuantity = fmt.Errorf("invalid quantity: %w", ErrValidation)
	ErrInvalidCategory = fmt.Errorf("invalid category: %w", ErrValidation)
	ErrInvalidPeriod   = fmt.Errorf("invalid period: %w", ErrValidation)
	ErrEmptyVendor     = fmt.Errorf("empty vendor: %w", ErrValidation)
	ErrEmptyItem       = fmt.Errorf("empty item name: %w", ErrValidation)
	ErrEmptyCurrency   = fmt.Errorf("empty currency: %w", ErrValidation)
)

// Invalidf builds a validation error with a formatted detail message.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}

// NewDate creates a Date from year, month, day. All dates are plain UTC
// calendar dates so month bucketing is deterministic across deployments.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

var dateLayouts = []string{"2006-01-02", "2006/01/02"}

// ParseDate parses an ISO-style calendar date. Ambiguous day-first layouts
// are rejected on purpose.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t.UTC()}, nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String renders the ISO calendar date.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// YearMonth returns the "YYYY-MM" month bucket key for this date.
func (d Date) YearMonth() string {
	return d.Format("2006-01")
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ParseCategory maps a free-form string to a Category. Blank maps to OTHER
// so an import without a category column still produces usable records.
func ParseCategory(s string) (Category, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return CategoryOther, nil
	}
	switch Category(s) {
	case CategoryReagent, CategoryTool, CategoryEquipment, CategoryConsumable,
		CategoryService, CategorySafety, CategoryOther:
		return Category(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// ParsePeriod validates a "YYYY-MM" budget period identifier.
func ParsePeriod(s string) (string, error) {
	s = strings.TrimSpace(s)
	if _, err := time.Parse("2006-01", s); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return s, nil
}

func (p PurchaseRecord) Validate() error {
	if strings.TrimSpace(p.OrgID) == "" {
		return Invalidf("empty organization id")
	}
	if err := p.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(p.Vendor) == "" {
		return ErrEmptyVendor
	}
	if strings.TrimSpace(p.ItemName) == "" {
		return ErrEmptyItem
	}
	if len(p.ItemName) > 200 {
		return Invalidf("item name too long (max 200 characters)")
	}
	if p.Quantity < 0 {
		return ErrInvalidQuantity
	}
	if _, err := ParseCategory(string(p.Category)); err != nil {
		return err
	}
	if err := p.UnitPrice.Validate(); err != nil {
		return err
	}
	if err := p.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(p.Currency) == "" {
		return ErrEmptyCurrency
	}
	switch p.Source {
	case SourceManual, SourceImport:
	default:
		return Invalidf("invalid source %q", p.Source)
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.OrgID) == "" {
		return Invalidf("empty organization id")
	}
	if _, err := ParsePeriod(b.Period); err != nil {
		return err
	}
	// A zero-amount budget is legal; usage is defined as 0 for it.
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(b.Currency) == "" {
		return ErrEmptyCurrency
	}
	return nil
}
