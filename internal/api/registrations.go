package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vendlink/vendlink-core/internal/audit"
	"github.com/vendlink/vendlink-core/internal/registration"
)

// ─── Request/Response Types ────────────────────────────────────────

type registerRequest struct {
	HardwareID string                  `json:"hardware_id"`
	TenantID   string                  `json:"tenant_id"`
	IPAddress  string                  `json:"ip_address,omitempty"`
	SystemInfo registration.SystemInfo `json:"system_info"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// ─── Device-Facing Handlers ────────────────────────────────────────

// handleRegisterDevice accepts a registration request from a machine in
// the field. Unauthenticated: at this point the machine has no identity
// beyond its hardware ID.
func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.IPAddress == "" {
		req.IPAddress = remoteIP(r)
	}

	err := s.registrations.Register(r.Context(), &registration.Request{
		HardwareID: req.HardwareID,
		TenantID:   req.TenantID,
		IPAddress:  req.IPAddress,
		SystemInfo: req.SystemInfo,
	})
	if err != nil {
		switch {
		case errors.Is(err, registration.ErrAlreadyPending):
			writeConflict(w, "registration already pending approval")
		case errors.Is(err, registration.ErrAlreadyApproved):
			writeConflict(w, "device is already approved")
		case errors.Is(err, registration.ErrInvalidRequest):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Error("registration failed", "error", err, "hardware_id", req.HardwareID)
			writeInternalError(w, "registration failed")
		}
		return
	}

	s.auditLog(audit.ActionRegister, audit.EntityDevice, req.HardwareID, "", map[string]any{
		"tenant_id":  req.TenantID,
		"ip_address": req.IPAddress,
	})
	if s.metrics != nil {
		s.metrics.WriteLifecycleEvent(req.HardwareID, audit.ActionRegister)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  registration.StatusPending,
		"message": "registration pending approval",
	})
}

// handleDeviceStatus reports the registration state for a hardware ID.
// Machines poll this until they receive a decision. An expired pending
// registration is reaped here and reported as 410 Gone; the machine is
// expected to register again.
func (s *Server) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	hardwareID := chi.URLParam(r, "hardwareID")

	result, err := s.registrations.Status(r.Context(), hardwareID)
	if err != nil {
		switch {
		case errors.Is(err, registration.ErrExpired):
			s.auditLog(audit.ActionExpire, audit.EntityDevice, hardwareID, "", nil)
			if s.metrics != nil {
				s.metrics.WriteLifecycleEvent(hardwareID, audit.ActionExpire)
			}
			writeGone(w, "registration expired; please register again")
		case errors.Is(err, registration.ErrNotFound):
			writeNotFound(w, "no registration for this hardware ID")
		case errors.Is(err, registration.ErrInvalidRequest):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Error("status lookup failed", "error", err, "hardware_id", hardwareID)
			writeInternalError(w, "status lookup failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ─── Operator Handlers ─────────────────────────────────────────────

// handleListPending returns all registrations awaiting a decision,
// oldest first.
func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	devices, err := s.registrations.ListPending(r.Context())
	if err != nil {
		s.logger.Error("list pending failed", "error", err)
		writeInternalError(w, "failed to list pending registrations")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleApproveDevice approves a pending registration: a device ID is
// assigned and the machine's command queue is provisioned.
func (s *Server) handleApproveDevice(w http.ResponseWriter, r *http.Request) {
	hardwareID := chi.URLParam(r, "hardwareID")
	claims := claimsFromContext(r.Context())

	result, err := s.registrations.Approve(r.Context(), hardwareID)
	if err != nil {
		switch {
		case errors.Is(err, registration.ErrNotFound):
			writeNotFound(w, "no registration for this hardware ID")
		case errors.Is(err, registration.ErrNotPending):
			writeConflict(w, "registration is not pending")
		case errors.Is(err, registration.ErrInvalidRequest):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Error("approval failed", "error", err, "hardware_id", hardwareID)
			writeInternalError(w, "approval failed")
		}
		return
	}

	s.auditLog(audit.ActionApprove, audit.EntityDevice, hardwareID, claims.Subject, map[string]any{
		"device_id":      result.DeviceID,
		"queue_endpoint": result.QueueEndpoint,
	})
	if s.metrics != nil {
		s.metrics.WriteLifecycleEvent(hardwareID, audit.ActionApprove)
	}

	writeJSON(w, http.StatusOK, result)
}

// handleRejectDevice rejects a pending registration with a reason that
// is surfaced to the machine on its next status poll.
func (s *Server) handleRejectDevice(w http.ResponseWriter, r *http.Request) {
	hardwareID := chi.URLParam(r, "hardwareID")
	claims := claimsFromContext(r.Context())

	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.registrations.Reject(r.Context(), hardwareID, req.Reason); err != nil {
		switch {
		case errors.Is(err, registration.ErrNotFound):
			writeNotFound(w, "no registration for this hardware ID")
		case errors.Is(err, registration.ErrNotPending):
			writeConflict(w, "registration is not pending")
		case errors.Is(err, registration.ErrInvalidRequest):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Error("rejection failed", "error", err, "hardware_id", hardwareID)
			writeInternalError(w, "rejection failed")
		}
		return
	}

	s.auditLog(audit.ActionReject, audit.EntityDevice, hardwareID, claims.Subject, map[string]any{
		"reason": req.Reason,
	})
	if s.metrics != nil {
		s.metrics.WriteLifecycleEvent(hardwareID, audit.ActionReject)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": registration.StatusRejected,
	})
}

// remoteIP extracts the client IP from the request, stripping any port.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
