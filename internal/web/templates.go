package web

import (
	"database/sql"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/model"
	webembed "github.com/erazemk/izposoja/web"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

// FuncMap returns the template function map.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"roleAtLeast": model.RoleAtLeast,
		"roleName": func(role string) string {
			switch role {
			case model.RoleAdmin:
				return "Administrator"
			case model.RoleCoordinator:
				return "Coordinator"
			case model.RoleVolunteer:
				return "Volunteer"
			default:
				return role
			}
		},
		"statusClass": func(status string) string {
			return "status-" + strings.ToLower(status)
		},
		// Image references are validated on save; anything else renders
		// as an empty src.
		"safeImage": func(ref string) template.URL {
			if !model.IsImageRef(ref) {
				return ""
			}
			return template.URL(ref)
		},
		"date": formatDate,
	}
}

// formatDate formats a time.Time or *time.Time as YYYY-MM-DD. Missing dates
// are empty.
func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format(time.DateOnly)
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return t.Format(time.DateOnly)
	}
	return ""
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates() (*Templates, error) {
	tfs := webembed.Templates

	// Read layout.
	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}

	pages := []string{
		"login.html",
		"dashboard.html",
		"items.html",
		"item_detail.html",
		"reports.html",
		"users.html",
		"settings.html",
		"catalogue.html",
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap())
		tmpl, err = tmpl.Parse(string(layoutBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing layout for %s: %w", page, err)
		}
		tmpl, err = tmpl.Parse(string(pageBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a template with status 200.
func (ts *Templates) Render(w http.ResponseWriter, name string, data any) {
	ts.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus renders a template with the given status code.
func (ts *Templates) RenderStatus(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
	}
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title   string
	Charity string
	Nav     string
	User    *auth.Claims
	Token   string
	Error   string
	Success string
}

// Server holds all dependencies for page handlers.
type Server struct {
	DB        *sql.DB
	Templates *Templates
	Tokens    *auth.Tokens
	Lending   *lending.Service
	DueSoon   time.Duration
}

// page fills the common page data for the signed-in user.
func (s *Server) page(r *http.Request, title, nav string) PageData {
	return PageData{
		Title:   title,
		Charity: s.charityName(r),
		Nav:     nav,
		User:    GetWebClaims(r.Context()),
		Token:   GetWebToken(r.Context()),
		Success: flashMessage(r),
	}
}

// form holds submitted values and per-field errors of one HTML form.
type form struct {
	Values map[string]string
	Errors map[string]string
}

func newForm() form {
	return form{Values: map[string]string{}, Errors: map[string]string{}}
}

// formFrom copies the named fields of a submitted form.
func formFrom(r *http.Request, fields ...string) form {
	f := newForm()
	for _, name := range fields {
		f.Values[name] = strings.TrimSpace(r.FormValue(name))
	}
	return f
}

// date parses a date input field, recording an error on the form when the
// value is malformed.
func (f form) date(field string) time.Time {
	s := f.Values[field]
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		f.Errors[field] = "Enter a date as YYYY-MM-DD"
		return time.Time{}
	}
	return t
}

// addValidation merges a ValidationError's messages into the form.
func (f form) addValidation(verr *model.ValidationError) {
	for field, msg := range verr.ByField() {
		if _, ok := f.Errors[field]; !ok {
			f.Errors[field] = msg
		}
	}
}
