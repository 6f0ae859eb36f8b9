package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vendlink/vendlink-core/internal/auth"
)

// The account surface is deliberately small: fleet admins onboard
// operators, lock out leavers, and kill their sessions. Profile edits
// and role changes happen rarely enough to live in the sqlite shell.

type createAccountRequest struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
	Password    string    `json:"password"`
	Role        auth.Role `json:"role"`
}

// handleListAccounts returns every operator account in the fleet.
func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	users, err := s.userRepo.List(r.Context())
	if err != nil {
		s.logger.Error("list accounts failed", "error", err)
		writeInternalError(w, "failed to list accounts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// handleCreateAccount onboards a new operator or admin.
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Username == "" || req.Password == "" || req.DisplayName == "" {
		writeBadRequest(w, "username, password, and display_name are required")
		return
	}
	if len(req.Password) < 8 { //nolint:mnd // minimum password length
		writeBadRequest(w, "password must be at least 8 characters")
		return
	}

	if req.Role == "" {
		req.Role = auth.RoleOperator
	}
	if !auth.IsValidUserRole(req.Role) {
		writeBadRequest(w, "invalid role: must be operator, admin, or owner")
		return
	}

	// Minting another owner takes owner authority.
	claims := claimsFromContext(r.Context())
	if req.Role == auth.RoleOwner && !auth.HasPermission(claims.Role, auth.PermUserManageAll) {
		writeForbidden(w, "only owners can create owner accounts")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("hash password failed", "error", err)
		writeInternalError(w, "failed to create account")
		return
	}

	user := &auth.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		IsActive:     true,
		CreatedBy:    claims.Subject,
	}

	if err := s.userRepo.Create(r.Context(), user); err != nil {
		if errors.Is(err, auth.ErrUsernameExists) {
			writeConflict(w, "username already exists")
			return
		}
		s.logger.Error("create account failed", "error", err)
		writeInternalError(w, "failed to create account")
		return
	}

	s.logger.Info("account created", "user_id", user.ID, "username", user.Username, "role", user.Role, "created_by", claims.Subject)
	s.auditLog("create", "user", user.ID, claims.Subject, map[string]any{
		"username": user.Username,
		"role":     user.Role,
	})

	writeJSON(w, http.StatusCreated, user)
}

// handleDeactivateAccount locks an account out and revokes its sessions.
// The row stays so the audit trail keeps its actor.
func (s *Server) handleDeactivateAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	claims := claimsFromContext(r.Context())

	if id == claims.Subject {
		writeForbidden(w, "cannot deactivate your own account")
		return
	}

	user, err := s.userRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "account not found")
			return
		}
		s.logger.Error("get account for deactivation failed", "error", err)
		writeInternalError(w, "failed to deactivate account")
		return
	}

	if user.Role == auth.RoleOwner && !auth.HasPermission(claims.Role, auth.PermUserManageAll) {
		writeForbidden(w, "only owners can deactivate owner accounts")
		return
	}

	user.IsActive = false
	if err := s.userRepo.Update(r.Context(), user); err != nil {
		s.logger.Error("deactivate account failed", "error", err)
		writeInternalError(w, "failed to deactivate account")
		return
	}

	if s.tokenRepo != nil {
		if err := s.tokenRepo.RevokeAllForUser(r.Context(), id); err != nil {
			s.logger.Error("revoke sessions after deactivation failed", "error", err)
		}
	}

	s.logger.Info("account deactivated", "user_id", id, "deactivated_by", claims.Subject)
	s.auditLog("deactivate", "user", id, claims.Subject, map[string]any{
		"username": user.Username,
	})

	writeJSON(w, http.StatusOK, user)
}

// handleRevokeSessions revokes every refresh token an account holds.
func (s *Server) handleRevokeSessions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	claims := claimsFromContext(r.Context())

	if err := s.tokenRepo.RevokeAllForUser(r.Context(), id); err != nil {
		s.logger.Error("revoke sessions failed", "error", err)
		writeInternalError(w, "failed to revoke sessions")
		return
	}

	s.logger.Info("sessions revoked", "user_id", id, "revoked_by", claims.Subject)
	s.auditLog("revoke_sessions", "user", id, claims.Subject, nil)

	writeJSON(w, http.StatusOK, map[string]string{"status": "sessions_revoked"})
}
