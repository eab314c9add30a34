package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"labstock/internal/core"
	"labstock/internal/report"
)

// purchaseRequest is the manual-entry body. Money fields arrive as decimal
// strings so clients never round floats.
type purchaseRequest struct {
	OrganizationID string  `json:"organizationId"`
	Date           string  `json:"date"`
	Vendor         string  `json:"vendor"`
	Category       string  `json:"category"`
	ItemName       string  `json:"itemName"`
	CatalogNumber  string  `json:"catalogNumber"`
	Specification  string  `json:"specification"`
	Grade          string  `json:"grade"`
	UnitLabel      string  `json:"unitLabel"`
	Quantity       float64 `json:"quantity"`
	UnitPrice      string  `json:"unitPrice"`
	Amount         string  `json:"amount"`
	Currency       string  `json:"currency"`
	Notes          string  `json:"notes"`
	ProjectName    string  `json:"projectName"`
}

type purchaseResponse struct {
	ID            int64   `json:"id"`
	Date          string  `json:"date"`
	Vendor        string  `json:"vendor"`
	Category      string  `json:"category"`
	ItemName      string  `json:"itemName"`
	CatalogNumber string  `json:"catalogNumber"`
	Specification string  `json:"specification"`
	Grade         string  `json:"grade"`
	UnitLabel     string  `json:"unitLabel"`
	Quantity      float64 `json:"quantity"`
	UnitPrice     string  `json:"unitPrice"`
	Amount        string  `json:"amount"`
	Currency      string  `json:"currency"`
	Notes         string  `json:"notes"`
	Source        string  `json:"source"`
	ProjectName   string  `json:"projectName"`
}

func toPurchaseResponse(p core.PurchaseRecord) purchaseResponse {
	return purchaseResponse{
		ID:            p.ID,
		Date:          p.Date.String(),
		Vendor:        p.Vendor,
		Category:      string(p.Category),
		ItemName:      p.ItemName,
		CatalogNumber: p.CatalogNumber,
		Specification: p.Specification,
		Grade:         p.Grade,
		UnitLabel:     p.UnitLabel,
		Quantity:      p.Quantity,
		UnitPrice:     core.RawCents(p.UnitPrice.Cents),
		Amount:        core.RawCents(p.Amount.Cents),
		Currency:      p.Currency,
		Notes:         p.Notes,
		Source:        string(p.Source),
		ProjectName:   p.ProjectName,
	}
}

func (req purchaseRequest) toRecord() (core.PurchaseRecord, error) {
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.PurchaseRecord{}, err
	}
	category, err := core.ParseCategory(req.Category)
	if err != nil {
		return core.PurchaseRecord{}, err
	}
	unitPrice, err := core.ParseFlexibleCents(req.UnitPrice)
	if err != nil {
		return core.PurchaseRecord{}, core.Invalidf("unit price %q", req.UnitPrice)
	}
	amount, err := core.ParseFlexibleCents(req.Amount)
	if err != nil {
		return core.PurchaseRecord{}, core.Invalidf("amount %q", req.Amount)
	}

	return core.PurchaseRecord{
		OrgID:         strings.TrimSpace(req.OrganizationID),
		Date:          date,
		Vendor:        strings.TrimSpace(req.Vendor),
		Category:      category,
		ItemName:      strings.TrimSpace(req.ItemName),
		CatalogNumber: strings.TrimSpace(req.CatalogNumber),
		Specification: strings.TrimSpace(req.Specification),
		Grade:         strings.TrimSpace(req.Grade),
		UnitLabel:     strings.TrimSpace(req.UnitLabel),
		Quantity:      req.Quantity,
		UnitPrice:     core.Money{Cents: unitPrice},
		Amount:        core.Money{Cents: amount},
		Currency:      strings.ToUpper(strings.TrimSpace(req.Currency)),
		Notes:         req.Notes,
		ProjectName:   strings.TrimSpace(req.ProjectName),
	}, nil
}

func (s *Server) handleCreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "invalid JSON body")
		return
	}

	record, err := req.toRecord()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	created, err := s.purchases.CreatePurchase(r.Context(), record)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.invalidateReports(created.OrgID)
	s.writeJSON(w, http.StatusCreated, map[string]int64{"id": created.ID})
}

func (s *Server) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	filter, err := reportFilter(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	records, err := s.findFiltered(r, filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]purchaseResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toPurchaseResponse(rec))
	}
	s.writeJSON(w, http.StatusOK, out)
}

// findFiltered resolves the filter's period and loads matching records.
func (s *Server) findFiltered(r *http.Request, f report.Filter) ([]core.PurchaseRecord, error) {
	rng, err := report.ResolveFilterRange(f)
	if err != nil {
		return nil, err
	}
	return s.reader.FindPurchases(r.Context(), report.Query{
		OrgID:    f.OrgID,
		Start:    rng.Start,
		End:      rng.End,
		Vendor:   f.Vendor,
		Category: f.Category,
	})
}
