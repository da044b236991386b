package api

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/izposoja/internal/insight"
	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportsHandler handles dashboard statistics, reports and insights.
type ReportsHandler struct {
	Lending  *lending.Service
	Insights *insight.Adapter
}

type statsResponse struct {
	Total     int          `json:"total"`
	Available int          `json:"available"`
	Issued    int          `json:"issued"`
	Overdue   int          `json:"overdue"`
	Repair    int          `json:"repair"`
	Bars      []report.Bar `json:"bars"`
}

// Stats handles GET /api/stats.
func (h *ReportsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.Lending.Stats(r.Context())
	if err != nil {
		serviceError(w, err, "compute stats")
		return
	}
	jsonResponse(w, http.StatusOK, statsResponse{
		Total:     s.Total,
		Available: s.Available,
		Issued:    s.Issued,
		Overdue:   s.Overdue,
		Repair:    s.Repair,
		Bars:      report.StatsBars(s),
	})
}

// period reads the from and to query parameters, defaulting to the last 30
// days.
func (h *ReportsHandler) period(r *http.Request) (from, to time.Time, err error) {
	from, to = report.DefaultPeriod(h.Lending.Time())
	q := r.URL.Query()
	if s := q.Get("from"); s != "" {
		if from, err = parseDate(s); err != nil {
			return
		}
	}
	if s := q.Get("to"); s != "" {
		if to, err = parseDate(s); err != nil {
			return
		}
	}
	return from, to, nil
}

// Activity handles GET /api/reports/activity.
func (h *ReportsHandler) Activity(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.period(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.Lending.List(r.Context(), "")
	if err != nil {
		serviceError(w, err, "compute report")
		return
	}
	jsonResponse(w, http.StatusOK, report.Compute(items, from, to))
}

// Export handles GET /api/reports/export and streams an XLSX workbook.
func (h *ReportsHandler) Export(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.period(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.Lending.List(r.Context(), "")
	if err != nil {
		serviceError(w, err, "export report")
		return
	}

	now := h.Lending.Time()
	var buf bytes.Buffer
	if err := report.ExportXLSX(&buf, report.Compute(items, from, to), items, now); err != nil {
		slog.Error("failed to export report", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to export report")
		return
	}

	slog.Info("report exported", "user", actor(r), "items", len(items))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="izposoja-report-%s.xlsx"`, now.Format(time.DateOnly)))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// GenerateInsights handles POST /api/insights. Failures are reported in the result's
// error field with status 200, so that clients show a single banner.
func (h *ReportsHandler) GenerateInsights(w http.ResponseWriter, r *http.Request) {
	if h.Insights == nil {
		jsonError(w, http.StatusServiceUnavailable, "insights are not configured")
		return
	}

	items, err := h.Lending.List(r.Context(), "")
	if err != nil {
		serviceError(w, err, "list items")
		return
	}
	jsonResponse(w, http.StatusOK, h.Insights.Fetch(r.Context(), actor(r), items))
}
