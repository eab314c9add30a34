package http

import (
	"fmt"
	"net/http"
	"time"

	"labstock/internal/core"
	"labstock/internal/csv"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter, err := reportFilter(query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	opts := csv.ExportOptions{
		Format:  csv.Format(query.Get("format")),
		Numbers: csv.NumberMode(query.Get("numbers")),
	}
	if opts.Format == "" {
		opts.Format = csv.FormatCSV
	}
	if opts.Numbers == "" {
		opts.Numbers = csv.NumbersFormatted
	}

	records, err := s.findFiltered(r, filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	switch opts.Format {
	case csv.FormatCSV:
		filename := fmt.Sprintf("purchases-%s.csv", time.Now().UTC().Format("20060102"))
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	case csv.FormatTSV:
		w.Header().Set("Content-Type", "text/tab-separated-values; charset=utf-8")
	default:
		s.writeError(w, r, core.Invalidf("unknown export format %q", opts.Format))
		return
	}

	if err := csv.Export(w, records, opts); err != nil {
		// Headers are already out; all we can do is log.
		s.logger.ErrorContext(r.Context(), "export write failed", "error", err)
	}
}
