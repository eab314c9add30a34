package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"labstock/internal/core"
)

type budgetRequest struct {
	OrganizationID string `json:"organizationId"`
	Period         string `json:"period"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	Label          string `json:"label"`
	ProjectName    string `json:"projectName"`
}

type budgetResponse struct {
	ID          int64  `json:"id"`
	Period      string `json:"period"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Label       string `json:"label"`
	ProjectName string `json:"projectName"`
}

func toBudgetResponse(b core.Budget) budgetResponse {
	return budgetResponse{
		ID:          b.ID,
		Period:      b.Period,
		Amount:      core.RawCents(b.Amount.Cents),
		Currency:    b.Currency,
		Label:       b.Label,
		ProjectName: b.ProjectName,
	}
}

func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "invalid JSON body")
		return
	}

	amount, err := core.ParseFlexibleCents(req.Amount)
	if err != nil {
		s.writeError(w, r, core.Invalidf("amount %q", req.Amount))
		return
	}

	budget := core.Budget{
		OrgID:       strings.TrimSpace(req.OrganizationID),
		Period:      strings.TrimSpace(req.Period),
		Amount:      core.Money{Cents: amount},
		Currency:    strings.ToUpper(strings.TrimSpace(req.Currency)),
		Label:       strings.TrimSpace(req.Label),
		ProjectName: strings.TrimSpace(req.ProjectName),
	}
	if err := budget.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	saved, err := s.budgets.UpsertBudget(r.Context(), budget)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toBudgetResponse(saved))
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	orgID := strings.TrimSpace(r.URL.Query().Get("organizationId"))
	if orgID == "" {
		s.writeError(w, r, core.Invalidf("organizationId is required"))
		return
	}

	budgets, err := s.budgets.ListBudgets(r.Context(), orgID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]budgetResponse, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, toBudgetResponse(b))
	}
	s.writeJSON(w, http.StatusOK, out)
}
