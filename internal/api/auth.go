package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/vendlink/vendlink-core/internal/audit"
	"github.com/vendlink/vendlink-core/internal/auth"
)

// defaultAccessTTLMinutes is used when the configured access token TTL is zero.
const defaultAccessTTLMinutes = 15

// defaultRefreshTTLMinutes is used when the configured refresh token TTL is zero.
const defaultRefreshTTLMinutes = 1440 // 24 hours

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// refreshRequest is the request body for POST /auth/refresh and /auth/logout.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// tokenResponse is the response body for successful login and refresh.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// handleLogin authenticates a user against the user database and returns
// an access token plus a refresh token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	user, err := s.userRepo.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			// Burn comparable time so username probing is not trivially
			// distinguishable from a wrong password.
			auth.VerifyPassword(req.Password, dummyHash) //nolint:errcheck // timing equalisation only
			writeUnauthorized(w, "invalid credentials")
			return
		}
		s.logger.Error("login lookup failed", "error", err)
		writeInternalError(w, "login failed")
		return
	}

	ok, err := auth.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		writeUnauthorized(w, "invalid credentials")
		return
	}

	if !user.IsActive {
		writeForbidden(w, "account is deactivated")
		return
	}

	resp, err := s.issueTokens(r, user, "")
	if err != nil {
		s.logger.Error("token issue failed", "error", err, "username", user.Username)
		writeInternalError(w, "login failed")
		return
	}

	s.logger.Info("user logged in", "user_id", user.ID, "username", user.Username)
	s.auditLog(audit.ActionLogin, audit.EntityUser, user.ID, user.ID, nil)

	writeJSON(w, http.StatusOK, resp)
}

// handleRefresh rotates a refresh token and returns a fresh token pair.
// Presenting a revoked token is treated as theft: the whole token family
// is revoked and the client must log in again.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.tokenRepo == nil {
		writeInternalError(w, "session management not configured")
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.RefreshToken == "" {
		writeBadRequest(w, "refresh_token is required")
		return
	}

	stored, err := s.tokenRepo.GetByTokenHash(r.Context(), auth.HashToken(req.RefreshToken))
	if err != nil {
		writeUnauthorized(w, "invalid refresh token")
		return
	}

	if stored.Revoked {
		// Reuse of a consumed token: revoke the entire family
		if err := s.tokenRepo.RevokeFamily(r.Context(), stored.FamilyID); err != nil {
			s.logger.Error("family revocation failed", "error", err, "family_id", stored.FamilyID)
		}
		s.logger.Warn("refresh token reuse detected",
			"user_id", stored.UserID,
			"family_id", stored.FamilyID,
		)
		writeUnauthorized(w, "refresh token reuse detected; please log in again")
		return
	}

	if time.Now().UTC().After(stored.ExpiresAt) {
		writeUnauthorized(w, "refresh token has expired")
		return
	}

	user, err := s.userRepo.GetByID(r.Context(), stored.UserID)
	if err != nil || !user.IsActive {
		writeUnauthorized(w, "account unavailable")
		return
	}

	resp, err := s.rotateTokens(r, user, stored)
	if err != nil {
		s.logger.Error("token rotation failed", "error", err, "user_id", user.ID)
		writeInternalError(w, "refresh failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleLogout revokes the presented refresh token. The access token
// simply expires; only the session is terminated.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.tokenRepo == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.RefreshToken != "" {
		stored, err := s.tokenRepo.GetByTokenHash(r.Context(), auth.HashToken(req.RefreshToken))
		if err == nil {
			if err := s.tokenRepo.Revoke(r.Context(), stored.ID); err != nil {
				s.logger.Error("logout revocation failed", "error", err)
			}
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleMe returns the authenticated user's account.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeUnauthorized(w, "authentication required")
		return
	}

	user, err := s.userRepo.GetByID(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("me lookup failed", "error", err)
		writeInternalError(w, "failed to load account")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// issueTokens generates an access token and stores a new refresh token
// for the user. familyID is empty for fresh logins.
func (s *Server) issueTokens(r *http.Request, user *auth.User, familyID string) (*tokenResponse, error) {
	accessTTL := s.secCfg.JWT.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTLMinutes
	}

	access, err := auth.GenerateAccessToken(user, s.secCfg.JWT.Secret, accessTTL)
	if err != nil {
		return nil, err
	}

	refresh, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	if s.tokenRepo != nil {
		rt := &auth.RefreshToken{
			UserID:     user.ID,
			FamilyID:   familyID,
			TokenHash:  auth.HashToken(refresh),
			ClientInfo: r.UserAgent(),
			ExpiresAt:  time.Now().UTC().Add(s.refreshTTL()),
		}
		if err := s.tokenRepo.Create(r.Context(), rt); err != nil {
			return nil, err
		}
	}

	return &tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    accessTTL * 60, // seconds
	}, nil
}

// rotateTokens atomically replaces the consumed refresh token with a new
// one in the same family and returns a fresh access token.
func (s *Server) rotateTokens(r *http.Request, user *auth.User, old *auth.RefreshToken) (*tokenResponse, error) {
	accessTTL := s.secCfg.JWT.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTLMinutes
	}

	access, err := auth.GenerateAccessToken(user, s.secCfg.JWT.Secret, accessTTL)
	if err != nil {
		return nil, err
	}

	refresh, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	newRT := &auth.RefreshToken{
		UserID:     user.ID,
		FamilyID:   old.FamilyID,
		TokenHash:  auth.HashToken(refresh),
		ClientInfo: r.UserAgent(),
		ExpiresAt:  time.Now().UTC().Add(s.refreshTTL()),
	}
	if err := s.tokenRepo.RotateRefreshToken(r.Context(), old.ID, newRT); err != nil {
		return nil, err
	}

	return &tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    accessTTL * 60, // seconds
	}, nil
}

// refreshTTL returns the configured refresh token lifetime.
func (s *Server) refreshTTL() time.Duration {
	minutes := s.secCfg.JWT.RefreshTokenTTL
	if minutes <= 0 {
		minutes = defaultRefreshTTLMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// dummyHash is a valid Argon2id hash of a random throwaway password,
// verified against when the username does not exist.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=1$c2FsdHNhbHRzYWx0c2Fs$Y2t3waLzrUKHNWLCo0dNcd385JzU0SACrWTUk4CAIbU"
