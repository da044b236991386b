package web

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/report"
)

// Dashboard handles GET /.
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	data := &struct {
		PageData
		Stats   model.Stats
		Bars    []report.Bar
		Overdue []itemRow
		DueSoon []itemRow
	}{
		PageData: s.page(r, "Dashboard", "dashboard"),
	}

	items, err := s.Lending.List(r.Context(), "")
	if err != nil {
		slog.Error("failed to list items for dashboard", "error", err)
		data.Error = "Could not load items."
	}

	now := s.Lending.Time()
	data.Stats = model.DeriveStats(items, now)
	data.Bars = report.StatsBars(data.Stats)
	data.Overdue = s.rows(model.FilterOverdue(items, now))
	data.DueSoon = s.rows(model.DueWithin(items, now, s.DueSoon))

	s.Templates.Render(w, "dashboard.html", data)
}
