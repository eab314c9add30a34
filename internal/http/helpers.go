package http

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"labstock/internal/core"
	"labstock/internal/report"
)

// clientIP resolves the caller address, trusting X-Forwarded-For only for
// its first hop.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx > 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// reportFilter decodes the shared report/list/export query parameters.
func reportFilter(values url.Values) (report.Filter, error) {
	f := report.Filter{
		OrgID:  strings.TrimSpace(values.Get("organizationId")),
		Period: strings.TrimSpace(values.Get("period")),
		Vendor: strings.TrimSpace(values.Get("vendor")),
	}
	if f.OrgID == "" {
		return report.Filter{}, core.Invalidf("organizationId is required")
	}
	if f.Period == "" {
		f.Period = report.PeriodMonth
	}

	if raw := strings.TrimSpace(values.Get("category")); raw != "" {
		cat, err := core.ParseCategory(raw)
		if err != nil {
			return report.Filter{}, err
		}
		f.Category = cat
	}

	if raw := strings.TrimSpace(values.Get("startDate")); raw != "" {
		d, err := core.ParseDate(raw)
		if err != nil {
			return report.Filter{}, err
		}
		f.Start = d
	}
	if raw := strings.TrimSpace(values.Get("endDate")); raw != "" {
		d, err := core.ParseDate(raw)
		if err != nil {
			return report.Filter{}, err
		}
		f.End = d
	}

	// Explicit dates only pair with period=custom; silently dropping them
	// would report a different range than the caller asked for.
	if f.Period != report.PeriodCustom && (!f.Start.IsZero() || !f.End.IsZero()) {
		return report.Filter{}, core.Invalidf("startDate and endDate require period=custom")
	}
	return f, nil
}

// cacheKey builds the report cache key. The org prefix lets a write
// invalidate one scope without touching the rest; keying on the resolved
// range makes named-period entries expire naturally at period boundaries.
func cacheKey(f report.Filter, rng report.DateRange) string {
	return strings.Join([]string{
		f.OrgID, rng.Start.String(), rng.End.String(), f.Vendor, string(f.Category),
	}, "|")
}
