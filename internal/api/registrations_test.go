package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/vendlink/vendlink-core/internal/auth"
	"github.com/vendlink/vendlink-core/internal/registration"
)

const testHardwareID = "VM1234ABCD"

func TestRegisterDevice(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/v1/devices/register", "", registerBody(testHardwareID))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "pending" {
		t.Errorf("status = %v, want pending", body["status"])
	}
}

func TestRegisterDevice_InvalidPayload(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"short hardware id", func(m map[string]any) { m["hardware_id"] = "VM1" }},
		{"hardware id with hyphen", func(m map[string]any) { m["hardware_id"] = "VM-1234-ABC" }},
		{"bad tenant id", func(m map[string]any) { m["tenant_id"] = "not-a-uuid" }},
		{"bad ip", func(m map[string]any) { m["ip_address"] = "999.999.0.1" }},
		{"missing system info field", func(m map[string]any) {
			m["system_info"] = map[string]string{"os": "linux"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := registerBody(testHardwareID)
			tt.mutate(body)

			rec := env.request(t, http.MethodPost, "/api/v1/devices/register", "", body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body: %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRegisterDevice_DuplicatePending(t *testing.T) {
	env := newTestEnv(t)

	env.request(t, http.MethodPost, "/api/v1/devices/register", "", registerBody(testHardwareID))

	rec := env.request(t, http.MethodPost, "/api/v1/devices/register", "", registerBody(testHardwareID))
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "pending") {
		t.Errorf("body should mention pending: %s", rec.Body.String())
	}
}

func TestDeviceStatus_Pending(t *testing.T) {
	env := newTestEnv(t)

	env.request(t, http.MethodPost, "/api/v1/devices/register", "", registerBody(testHardwareID))

	rec := env.request(t, http.MethodGet, statusPath(testHardwareID), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result registration.StatusResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if result.Status != registration.StatusPending {
		t.Errorf("Status = %q, want pending", result.Status)
	}
	// A pending machine must not learn its future identity
	if result.DeviceID != "" || result.QueueEndpoint != "" {
		t.Error("pending status should not leak device_id or queue_endpoint")
	}
}

func TestDeviceStatus_Unknown(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, statusPath("VMUNKNOWN99"), "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestDeviceStatus_InvalidHardwareID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, statusPath("bad!"), "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestApproveDevice_FullLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin", "admin-password", auth.RoleAdmin)
	tokens := env.login(t, "admin", "admin-password")

	env.request(t, http.MethodPost, "/api/v1/devices/register", "", registerBody(testHardwareID))

	// Approve
	rec := env.request(t, http.MethodPut, "/api/v1/devices/"+testHardwareID+"/approve", tokens.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var approved registration.ApproveResult
	if err := json.Unmarshal(rec.Body.Bytes(), &approved); err != nil {
		t.Fatalf("decoding approve response: %v", err)
	}
	if approved.DeviceID == "" {
		t.Error("approval should assign a device ID")
	}
	if !strings.HasPrefix(approved.QueueEndpoint, "memory://queue/") {
		t.Errorf("QueueEndpoint = %q, want memory://queue/ prefix", approved.QueueEndpoint)
	}
	if env.queues.QueueCount() != 1 {
		t.Errorf("QueueCount = %d, want 1", env.queues.QueueCount())
	}

	// The machine's next poll returns its identity
	rec = env.request(t, http.MethodGet, statusPath(testHardwareID), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result registration.StatusResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if result.Status != registration.StatusApproved {
		t.Errorf("Status = %q, want approved", result.Status)
	}
	if result.DeviceID != approved.DeviceID {
		t.Errorf("DeviceID = %q, want %q", result.DeviceID, approved.DeviceID)
	}
	if result.QueueEndpoint != approved.QueueEndpoint {
		t.Errorf("QueueEndpoint = %q, want %q", result.QueueEndpoint, approved.QueueEndpoint)
	}
}

func TestApproveDevice_OperatorForbidden(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "tech", "tech-password", auth.RoleOperator)
	tokens := env.login(t, "tech", "tech-password")

	env.request(t, http.MethodPost, "/api/v1/devices/register", "", registerBody(testHardwareID))

	rec := env.request(t, http.MethodPut, "/api/v1/devices/"+testHardwareID+"/approve", tokens.AccessToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestApproveDevice_NotPending(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin", "admin-password", auth.RoleAdmin)
	tokens := env.login(t, "admin", "admin-password")

	env.request(t, http.MethodPost, "/api/v1/devices/register", "", registerBody(testHardwareID))
	env.request(t, http.MethodPut, "/api/v1/devices/"+testHardwareID+"/approve", tokens.AccessToken, nil)

	// Second approval hits an already-approved record
	rec := env.request(t, http.MethodPut, "/api/v1/devices/"+testHardwareID+"/approve", tokens.AccessToken, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestRejectDevice(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin", "admin-password", auth.RoleAdmin)
	tokens := env.login(t, "admin", "admin-password")

	env.request(t, http.MethodPost, "/api/v1/devices/register", "", registerBody(testHardwareID))

	rec := env.request(t, http.MethodPut, "/api/v1/devices/"+testHardwareID+"/reject", tokens.AccessToken,
		map[string]string{"reason": "unknown serial range"})
	if rec.Code != http.StatusOK {
		t.Fatalf("reject status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// The machine learns the reason on its next poll
	recStatus := env.request(t, http.MethodGet, statusPath(testHardwareID), "", nil)
	var result registration.StatusResult
	if err := json.Unmarshal(recStatus.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if result.Status != registration.StatusRejected {
		t.Errorf("Status = %q, want rejected", result.Status)
	}
	if !strings.Contains(result.Message, "unknown serial range") {
		t.Errorf("Message = %q, should contain the rejection reason", result.Message)
	}
}

func TestRejectDevice_EmptyReason(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin", "admin-password", auth.RoleAdmin)
	tokens := env.login(t, "admin", "admin-password")

	env.request(t, http.MethodPost, "/api/v1/devices/register", "", registerBody(testHardwareID))

	rec := env.request(t, http.MethodPut, "/api/v1/devices/"+testHardwareID+"/reject", tokens.AccessToken,
		map[string]string{"reason": ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListPending(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "tech", "tech-password", auth.RoleOperator)
	tokens := env.login(t, "tech", "tech-password")

	env.request(t, http.MethodPost, "/api/v1/devices/register", "", registerBody("VM1111AAAA"))
	env.request(t, http.MethodPost, "/api/v1/devices/register", "", registerBody("VM2222BBBB"))

	rec := env.request(t, http.MethodGet, "/api/v1/devices/pending", tokens.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Devices []registration.Device `json:"devices"`
		Count   int                   `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Count != 2 {
		t.Errorf("Count = %d, want 2", body.Count)
	}
}

func TestRegisterDevice_AfterRejectionSucceeds(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "admin", "admin-password", auth.RoleAdmin)
	tokens := env.login(t, "admin", "admin-password")

	env.request(t, http.MethodPost, "/api/v1/devices/register", "", registerBody(testHardwareID))
	env.request(t, http.MethodPut, "/api/v1/devices/"+testHardwareID+"/reject", tokens.AccessToken,
		map[string]string{"reason": "wrong fleet"})

	// A rejected machine may try again
	rec := env.request(t, http.MethodPost, "/api/v1/devices/register", "", registerBody(testHardwareID))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("re-register status = %d, body = %s", rec.Code, rec.Body.String())
	}

	recStatus := env.request(t, http.MethodGet, statusPath(testHardwareID), "", nil)
	var result registration.StatusResult
	if err := json.Unmarshal(recStatus.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if result.Status != registration.StatusPending {
		t.Errorf("Status = %q, want pending after re-registration", result.Status)
	}
}
