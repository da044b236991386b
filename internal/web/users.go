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

var roles = []string{model.RoleVolunteer, model.RoleCoordinator, model.RoleAdmin}

// renderUsers renders the user list with an optional banner.
func (s *Server) renderUsers(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	users, err := store.ListUsers(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to list users", "error", err)
		errMsg = "Could not load users."
	}

	data := &struct {
		PageData
		Users []model.User
		Roles []string
	}{
		PageData: s.page(r, "Users", "users"),
		Users:    users,
		Roles:    roles,
	}
	data.Error = errMsg
	s.Templates.RenderStatus(w, status, "users.html", data)
}

// UsersPage handles GET /users (admin only).
func (s *Server) UsersPage(w http.ResponseWriter, r *http.Request) {
	s.renderUsers(w, r, http.StatusOK, "")
}

// UserCreateSubmit handles POST /users (admin only).
func (s *Server) UserCreateSubmit(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	displayName := strings.TrimSpace(r.FormValue("display_name"))
	password := r.FormValue("password")
	role := r.FormValue("role")

	if username == "" || password == "" || !model.ValidRole(role) {
		s.renderUsers(w, r, http.StatusUnprocessableEntity, "Enter a username, a password and a role.")
		return
	}
	if err := model.ValidatePassword(password); err != nil {
		s.renderUsers(w, r, http.StatusUnprocessableEntity, "Password must be at least 8 characters.")
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		http.Error(w, "failed to hash password", http.StatusInternalServerError)
		return
	}

	if _, err := store.CreateUser(r.Context(), s.DB, username, displayName, hash, role); err != nil {
		slog.Warn("failed to create user", "error", err)
		s.renderUsers(w, r, http.StatusConflict, "Username "+username+" is already taken.")
		return
	}

	slog.Info("user created", "user", actor(r), "new_user", username, "role", role)
	http.Redirect(w, r, "/users?msg=user", http.StatusSeeOther)
}

// targetUser reads the user named in the path. Missing users are reported
// on the user list.
func (s *Server) targetUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.renderUsers(w, r, http.StatusBadRequest, "Unknown user.")
		return nil, false
	}
	u, err := store.GetUser(r.Context(), s.DB, id)
	if err != nil {
		slog.Error("failed to get user", "error", err)
	}
	if u == nil || u.DeletedAt != nil {
		s.renderUsers(w, r, http.StatusNotFound, "Unknown user.")
		return nil, false
	}
	return u, true
}

// UserResetPasswordSubmit handles POST /users/{id}/password (admin only).
func (s *Server) UserResetPasswordSubmit(w http.ResponseWriter, r *http.Request) {
	target, ok := s.targetUser(w, r)
	if !ok {
		return
	}

	newPassword := r.FormValue("new_password")
	if err := model.ValidatePassword(newPassword); err != nil {
		s.renderUsers(w, r, http.StatusUnprocessableEntity, "Password must be at least 8 characters.")
		return
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		http.Error(w, "failed to hash password", http.StatusInternalServerError)
		return
	}

	if err := store.UpdateUserPassword(r.Context(), s.DB, target.ID, hash); err != nil {
		slog.Error("failed to reset password", "error", err)
		s.renderUsers(w, r, http.StatusInternalServerError, "The password could not be changed.")
		return
	}

	slog.Info("user password reset", "user", actor(r), "target_user", target.Username)
	http.Redirect(w, r, "/users?msg=password", http.StatusSeeOther)
}

// UserUpdateRoleSubmit handles POST /users/{id}/role (admin only).
func (s *Server) UserUpdateRoleSubmit(w http.ResponseWriter, r *http.Request) {
	target, ok := s.targetUser(w, r)
	if !ok {
		return
	}

	role := r.FormValue("role")
	if !model.ValidRole(role) {
		s.renderUsers(w, r, http.StatusUnprocessableEntity, "Unknown role.")
		return
	}
	if claims := GetWebClaims(r.Context()); claims.UserID == target.ID && role != model.RoleAdmin {
		s.renderUsers(w, r, http.StatusUnprocessableEntity, "You cannot change your own role.")
		return
	}

	displayName := target.DisplayName
	if v, ok := r.Form["display_name"]; ok && len(v) > 0 {
		displayName = strings.TrimSpace(v[0])
	}

	if err := store.UpdateUser(r.Context(), s.DB, target.ID, displayName, role); err != nil {
		slog.Error("failed to update user", "error", err)
		s.renderUsers(w, r, http.StatusInternalServerError, "The user could not be saved.")
		return
	}

	slog.Info("user updated", "user", actor(r), "target_user", target.Username, "role", role)
	http.Redirect(w, r, "/users?msg=user", http.StatusSeeOther)
}

// UserDeleteSubmit handles POST /users/{id}/delete (admin only).
func (s *Server) UserDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	target, ok := s.targetUser(w, r)
	if !ok {
		return
	}
	if GetWebClaims(r.Context()).UserID == target.ID {
		s.renderUsers(w, r, http.StatusUnprocessableEntity, "You cannot remove yourself.")
		return
	}

	if err := store.DeleteUser(r.Context(), s.DB, target.ID); err != nil {
		slog.Error("failed to delete user", "error", err)
		s.renderUsers(w, r, http.StatusInternalServerError, "The user could not be removed.")
		return
	}

	slog.Info("user deleted", "user", actor(r), "deleted_user", target.Username)
	http.Redirect(w, r, "/users?msg=removed", http.StatusSeeOther)
}
