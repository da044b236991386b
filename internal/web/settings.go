package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

type settingsPage struct {
	PageData
	LoanDays int
}

func (s *Server) renderSettings(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	data := &settingsPage{
		PageData: s.page(r, "Settings", "settings"),
		LoanDays: s.loanDays(r),
	}
	data.Error = errMsg
	s.Templates.RenderStatus(w, status, "settings.html", data)
}

// SettingsPage handles GET /settings.
func (s *Server) SettingsPage(w http.ResponseWriter, r *http.Request) {
	s.renderSettings(w, r, http.StatusOK, "")
}

// SettingsSubmit handles POST /settings (change own password).
func (s *Server) SettingsSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())

	currentPassword := r.FormValue("current_password")
	newPassword := r.FormValue("new_password")

	if currentPassword == "" || newPassword == "" {
		s.renderSettings(w, r, http.StatusUnprocessableEntity, "Enter your current and new password.")
		return
	}
	if err := model.ValidatePassword(newPassword); err != nil {
		s.renderSettings(w, r, http.StatusUnprocessableEntity, "The new password must be at least 8 characters.")
		return
	}

	user, err := store.GetUser(r.Context(), s.DB, claims.UserID)
	if err != nil || user == nil {
		s.renderSettings(w, r, http.StatusInternalServerError, "Could not load your account.")
		return
	}

	if !auth.CheckPassword(user.PasswordHash, currentPassword) {
		s.renderSettings(w, r, http.StatusUnauthorized, "The current password is wrong.")
		return
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		s.renderSettings(w, r, http.StatusInternalServerError, "The password could not be saved.")
		return
	}

	if err := store.UpdateUserPassword(r.Context(), s.DB, claims.UserID, hash); err != nil {
		slog.Error("failed to update password", "error", err)
		s.renderSettings(w, r, http.StatusInternalServerError, "The password could not be saved.")
		return
	}

	slog.Info("user changed own password", "user", claims.Username)
	http.Redirect(w, r, "/settings?msg=password", http.StatusSeeOther)
}

// LendingSettingsSubmit handles POST /settings/lending (admin only): the
// charity name and the default loan period.
func (s *Server) LendingSettingsSubmit(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.FormValue("charity_name"))
	days, err := strconv.Atoi(strings.TrimSpace(r.FormValue("loan_days")))
	if err != nil || days < 1 || days > 365 {
		s.renderSettings(w, r, http.StatusUnprocessableEntity, "The loan period must be between 1 and 365 days.")
		return
	}

	if err := store.SetSetting(r.Context(), s.DB, store.SettingCharityName, name); err != nil {
		slog.Error("failed to save setting", "key", store.SettingCharityName, "error", err)
		s.renderSettings(w, r, http.StatusInternalServerError, "The settings could not be saved.")
		return
	}
	if err := store.SetSetting(r.Context(), s.DB, store.SettingLoanDays, strconv.Itoa(days)); err != nil {
		slog.Error("failed to save setting", "key", store.SettingLoanDays, "error", err)
		s.renderSettings(w, r, http.StatusInternalServerError, "The settings could not be saved.")
		return
	}

	slog.Info("settings updated", "user", actor(r), "charity", name, "loan_days", days)
	http.Redirect(w, r, "/settings?msg=settings", http.StatusSeeOther)
}
