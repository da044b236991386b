package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/erazemk/izposoja/internal/report"
)

// period reads the from and to query parameters, defaulting to the last 30
// days. Malformed dates fall back to the default.
func (s *Server) period(r *http.Request) (from, to time.Time, ok bool) {
	from, to = report.DefaultPeriod(s.Lending.Time())
	ok = true
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		t, err := time.ParseInLocation(time.DateOnly, v, time.Local)
		if err != nil {
			ok = false
		} else {
			from = t
		}
	}
	if v := q.Get("to"); v != "" {
		t, err := time.ParseInLocation(time.DateOnly, v, time.Local)
		if err != nil {
			ok = false
		} else {
			to = t
		}
	}
	return from, to, ok
}

// ReportsPage handles GET /reports.
func (s *Server) ReportsPage(w http.ResponseWriter, r *http.Request) {
	from, to, ok := s.period(r)
	data := &struct {
		PageData
		Activity  report.Activity
		ExportURL string
	}{
		PageData: s.page(r, "Reports", "reports"),
	}
	if !ok {
		data.Error = "Dates must be given as YYYY-MM-DD. Showing the last 30 days."
	}

	items, err := s.Lending.List(r.Context(), "")
	if err != nil {
		slog.Error("failed to list items for report", "error", err)
		data.Error = "Could not load items."
	}
	data.Activity = report.Compute(items, from, to)
	data.ExportURL = "/reports/export?" + url.Values{
		"from": {data.Activity.From.Format(time.DateOnly)},
		"to":   {data.Activity.To.Format(time.DateOnly)},
	}.Encode()

	s.Templates.Render(w, "reports.html", data)
}

// ReportExport handles GET /reports/export and downloads an XLSX workbook.
func (s *Server) ReportExport(w http.ResponseWriter, r *http.Request) {
	from, to, _ := s.period(r)

	items, err := s.Lending.List(r.Context(), "")
	if err != nil {
		slog.Error("failed to list items for export", "error", err)
		http.Error(w, "failed to export report", http.StatusInternalServerError)
		return
	}

	now := s.Lending.Time()
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="izposoja-report-%s.xlsx"`, now.Format(time.DateOnly)))
	if err := report.ExportXLSX(w, report.Compute(items, from, to), items, now); err != nil {
		slog.Error("failed to export report", "error", err)
		return
	}
	slog.Info("report exported", "user", actor(r), "items", len(items))
}
