package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/insight"
	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/model"
)

// Deps are the services shared by the API handlers. DB holds users,
// settings and revoked tokens; items live behind Lending.
type Deps struct {
	DB       *sql.DB
	Tokens   *auth.Tokens
	Lending  *lending.Service
	Insights *insight.Adapter
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: d.DB, Tokens: d.Tokens}
	usersHandler := &UsersHandler{DB: d.DB}
	itemsHandler := &ItemsHandler{Lending: d.Lending}
	loansHandler := &LoansHandler{DB: d.DB, Lending: d.Lending}
	reportsHandler := &ReportsHandler{Lending: d.Lending, Insights: d.Insights}

	authMW := AuthMiddleware(d.Tokens, d.DB)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireCoordinator := RequireRole(model.RoleCoordinator)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Items: read (all roles), write (coordinator+).
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("POST /api/items", authMW(requireCoordinator(http.HandlerFunc(itemsHandler.Create))))
	mux.Handle("POST /api/items/import", authMW(requireCoordinator(http.HandlerFunc(itemsHandler.Import))))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("PUT /api/items/{id}", authMW(requireCoordinator(http.HandlerFunc(itemsHandler.Update))))
	mux.Handle("DELETE /api/items/{id}", authMW(requireCoordinator(http.HandlerFunc(itemsHandler.Delete))))
	mux.Handle("PUT /api/items/{id}/image", authMW(requireCoordinator(http.HandlerFunc(itemsHandler.UploadImage))))
	mux.Handle("GET /api/items/{id}/history", authMW(http.HandlerFunc(itemsHandler.History)))

	// Loans (all roles).
	mux.Handle("POST /api/items/{id}/issue", authMW(http.HandlerFunc(loansHandler.Issue)))
	mux.Handle("POST /api/items/{id}/return", authMW(http.HandlerFunc(loansHandler.Return)))

	// Dashboard and reports (all roles).
	mux.Handle("GET /api/stats", authMW(http.HandlerFunc(reportsHandler.Stats)))
	mux.Handle("POST /api/insights", authMW(http.HandlerFunc(reportsHandler.GenerateInsights)))
	mux.Handle("GET /api/reports/activity", authMW(http.HandlerFunc(reportsHandler.Activity)))
	mux.Handle("GET /api/reports/export", authMW(http.HandlerFunc(reportsHandler.Export)))

	return mux
}
