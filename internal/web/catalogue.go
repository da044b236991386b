package web

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/erazemk/izposoja/internal/model"
)

// catalogueItem is the public view of an item. Loan and contact fields are
// never exposed.
type catalogueItem struct {
	Name        string
	ItemCode    string
	Category    string
	Description string
	ImageURL    string
}

// CataloguePage handles GET /catalogue: the items available for loan,
// optionally narrowed to one category. No sign-in is required.
func (s *Server) CataloguePage(w http.ResponseWriter, r *http.Request) {
	data := &struct {
		PageData
		Items      []catalogueItem
		Categories []string
		Category   string
	}{
		PageData: s.page(r, "Available items", "catalogue"),
		Category: r.URL.Query().Get("category"),
	}

	items, err := s.Lending.List(r.Context(), string(model.StatusAvailable))
	if err != nil {
		slog.Error("failed to list catalogue", "error", err)
		data.Error = "Could not load items."
	}

	seen := map[string]bool{}
	for _, it := range items {
		if !seen[it.Category] {
			seen[it.Category] = true
			data.Categories = append(data.Categories, it.Category)
		}
		if data.Category != "" && it.Category != data.Category {
			continue
		}
		data.Items = append(data.Items, catalogueItem{
			Name:        it.Name,
			ItemCode:    it.ItemCode,
			Category:    it.Category,
			Description: it.Description,
			ImageURL:    it.ImageURL,
		})
	}
	sort.Strings(data.Categories)

	s.Templates.Render(w, "catalogue.html", data)
}
