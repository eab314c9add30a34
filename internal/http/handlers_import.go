package http

import (
	"net/http"
	"strings"

	"labstock/internal/core"
	"labstock/internal/csv"
	applog "labstock/internal/log"
)

type importResponse struct {
	Imported int            `json:"imported"`
	Skipped  int            `json:"skipped"`
	Errors   []csv.RowError `json:"errors"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.ImportMaxBytes)
	if err := r.ParseMultipartForm(s.config.ImportMaxBytes); err != nil {
		s.writeBadRequest(w, "invalid multipart form")
		return
	}

	orgID := strings.TrimSpace(r.FormValue("organizationId"))
	if orgID == "" {
		s.writeError(w, r, core.Invalidf("organizationId is required"))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		s.writeBadRequest(w, "missing file field")
		return
	}
	defer file.Close()

	result, err := csv.ParseImport(file, csv.ImportOptions{
		OrgID:       orgID,
		ProjectName: strings.TrimSpace(r.FormValue("projectName")),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := importResponse{
		Skipped: len(result.Skipped),
		Errors:  result.Skipped,
	}
	if resp.Errors == nil {
		resp.Errors = []csv.RowError{}
	}

	if len(result.Records) > 0 {
		ids, err := s.purchases.ImportPurchases(r.Context(), result.Records)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.Imported = len(ids)
		s.invalidateReports(orgID)
	}

	s.logger.InfoContext(r.Context(), "import completed",
		applog.FieldOrgID, orgID,
		applog.FieldImported, resp.Imported,
		applog.FieldSkipped, resp.Skipped,
	)
	s.writeJSON(w, http.StatusOK, resp)
}
