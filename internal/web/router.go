package web

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/insight"
	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
	webembed "github.com/erazemk/izposoja/web"
)

// DefaultCharityName is shown until an admin sets the charity name.
const DefaultCharityName = "Izposoja"

// NewRouter creates the web page router with all page routes registered.
// dueSoon is the window for the dashboard's "due soon" list.
func NewRouter(db *sql.DB, tokens *auth.Tokens, svc *lending.Service, dueSoon time.Duration) (http.Handler, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}
	if dueSoon <= 0 {
		dueSoon = insight.DefaultDueSoon
	}

	s := &Server{
		DB:        db,
		Templates: templates,
		Tokens:    tokens,
		Lending:   svc,
		DueSoon:   dueSoon,
	}

	mux := http.NewServeMux()
	cookieAuth := CookieAuthMiddleware(tokens, db)
	coordinator := func(h http.HandlerFunc) http.Handler {
		return cookieAuth(RequireRole(model.RoleCoordinator)(h))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return cookieAuth(RequireRole(model.RoleAdmin)(h))
	}

	// Static assets.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.Static))))

	// Public routes.
	mux.HandleFunc("GET /login", s.LoginPage)
	mux.HandleFunc("POST /login", s.LoginSubmit)
	mux.HandleFunc("POST /logout", s.Logout)
	mux.HandleFunc("GET /catalogue", s.CataloguePage)

	// Authenticated routes.
	mux.Handle("GET /{$}", cookieAuth(http.HandlerFunc(s.Dashboard)))

	mux.Handle("GET /items", cookieAuth(http.HandlerFunc(s.ItemsPage)))
	mux.Handle("POST /items", coordinator(s.ItemCreateSubmit))
	mux.Handle("POST /items/import", coordinator(s.ItemImportSubmit))
	mux.Handle("GET /items/{id}", cookieAuth(http.HandlerFunc(s.ItemDetailPage)))
	mux.Handle("POST /items/{id}", coordinator(s.ItemUpdateSubmit))
	mux.Handle("POST /items/{id}/image", coordinator(s.ItemImageSubmit))
	mux.Handle("POST /items/{id}/delete", coordinator(s.ItemDeleteSubmit))
	mux.Handle("POST /items/{id}/issue", cookieAuth(http.HandlerFunc(s.ItemIssueSubmit)))
	mux.Handle("POST /items/{id}/return", cookieAuth(http.HandlerFunc(s.ItemReturnSubmit)))

	mux.Handle("GET /reports", cookieAuth(http.HandlerFunc(s.ReportsPage)))
	mux.Handle("GET /reports/export", cookieAuth(http.HandlerFunc(s.ReportExport)))

	mux.Handle("GET /users", admin(s.UsersPage))
	mux.Handle("POST /users", admin(s.UserCreateSubmit))
	mux.Handle("POST /users/{id}/password", admin(s.UserResetPasswordSubmit))
	mux.Handle("POST /users/{id}/role", admin(s.UserUpdateRoleSubmit))
	mux.Handle("POST /users/{id}/delete", admin(s.UserDeleteSubmit))

	mux.Handle("GET /settings", cookieAuth(http.HandlerFunc(s.SettingsPage)))
	mux.Handle("POST /settings", cookieAuth(http.HandlerFunc(s.SettingsSubmit)))
	mux.Handle("POST /settings/lending", admin(s.LendingSettingsSubmit))

	return mux, nil
}

var flashMessages = map[string]string{
	"added":    "Item added.",
	"updated":  "Item updated.",
	"issued":   "Item issued.",
	"returned": "Item returned.",
	"deleted":  "Item deleted.",
	"image":    "Image updated.",
	"user":     "User saved.",
	"removed":  "User removed.",
	"password": "Password changed.",
	"settings": "Settings saved.",
}

// flashMessage returns the confirmation named by the msg query parameter
// set on redirects after a successful form submission.
func flashMessage(r *http.Request) string {
	return flashMessages[r.URL.Query().Get("msg")]
}

func (s *Server) charityName(r *http.Request) string {
	name, err := store.GetSetting(r.Context(), s.DB, store.SettingCharityName)
	if err != nil {
		slog.Error("failed to read charity name", "error", err)
	}
	if name == "" {
		return DefaultCharityName
	}
	return name
}

// itemRow is an item with its derived display status.
type itemRow struct {
	model.Item
	Display string
	Overdue bool
}

func (s *Server) rows(items []model.Item) []itemRow {
	now := s.Lending.Time()
	out := make([]itemRow, len(items))
	for i, it := range items {
		out[i] = itemRow{Item: it, Display: model.DisplayStatus(it, now), Overdue: model.IsOverdue(it, now)}
	}
	return out
}
