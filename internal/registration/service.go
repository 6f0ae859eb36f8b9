package registration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vendlink/vendlink-core/internal/infrastructure/logging"
)

// QueueProvisioner creates the per-device command queue during approval.
// The returned endpoint is an opaque URI handed to the device; the Service
// never inspects it.
type QueueProvisioner interface {
	// CreateQueue provisions a queue for the given device ID and returns
	// its endpoint. Called before any store mutation so a provisioning
	// failure leaves the registration untouched.
	CreateQueue(ctx context.Context, deviceID string) (string, error)
}

// StatusResult is the outcome of a status query, shaped for the polling
// device: approved devices receive their identity and queue endpoint,
// everything else receives a human-readable message.
type StatusResult struct {
	Status        Status `json:"status"`
	DeviceID      string `json:"device_id,omitempty"`
	QueueEndpoint string `json:"queue_endpoint,omitempty"`
	Message       string `json:"message,omitempty"`
}

// ApproveResult is the outcome of a successful approval.
type ApproveResult struct {
	DeviceID      string `json:"device_id"`
	QueueEndpoint string `json:"queue_endpoint"`
}

// Service implements the device registration lifecycle: devices register
// into pending status, an operator approves or rejects them, and pending
// registrations expire after a configurable window.
type Service struct {
	store  Store
	queues QueueProvisioner
	expiry time.Duration
	logger *logging.Logger
}

// NewService creates a registration service with the default expiry window.
func NewService(store Store, queues QueueProvisioner) *Service {
	return &Service{
		store:  store,
		queues: queues,
		expiry: DefaultExpiry,
		logger: logging.NewNop(),
	}
}

// SetExpiry overrides the pending-registration expiry window.
func (s *Service) SetExpiry(window time.Duration) {
	if window > 0 {
		s.expiry = window
	}
}

// SetLogger attaches a logger. The service works without one.
func (s *Service) SetLogger(logger *logging.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Register submits a new registration request. The outcome depends on any
// existing record for the same hardware ID:
//
//   - no record: a pending record is created
//   - pending: ErrAlreadyPending
//   - approved: ErrAlreadyApproved
//   - rejected or expired: the old record is discarded and a fresh
//     pending record takes its place
func (s *Service) Register(ctx context.Context, req *Request) error {
	if err := ValidateRequest(req); err != nil {
		return err
	}

	existing, err := s.store.FindByHardwareID(ctx, req.HardwareID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("looking up registration: %w", err)
	}

	if existing != nil {
		switch {
		case existing.IsApproved():
			return ErrAlreadyApproved
		case existing.IsPending() && !existing.ExpiredAt(time.Now().UTC(), s.expiry):
			return ErrAlreadyPending
		default:
			// Rejected, or pending past the expiry window: clear the
			// way for a fresh attempt.
			if err := s.store.Delete(ctx, req.HardwareID); err != nil {
				return fmt.Errorf("discarding stale registration: %w", err)
			}
			s.logger.Info("stale registration discarded",
				"hardware_id", req.HardwareID,
				"previous_status", existing.Status)
		}
	}

	now := time.Now().UTC()
	device := &Device{
		HardwareID: req.HardwareID,
		TenantID:   req.TenantID,
		IPAddress:  req.IPAddress,
		SystemInfo: req.SystemInfo,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.Save(ctx, device); err != nil {
		return fmt.Errorf("saving registration: %w", err)
	}

	s.logger.Info("device registered",
		"hardware_id", req.HardwareID,
		"tenant_id", req.TenantID)

	return nil
}

// Status reports the current registration state for a hardware ID. A
// pending registration past its expiry window is deleted on read and
// reported as ErrExpired; the device is expected to register again.
func (s *Service) Status(ctx context.Context, hardwareID string) (*StatusResult, error) {
	if err := ValidateHardwareID(hardwareID); err != nil {
		return nil, err
	}

	device, err := s.store.FindByHardwareID(ctx, hardwareID)
	if err != nil {
		return nil, err
	}

	switch {
	case device.IsApproved():
		return &StatusResult{
			Status:        StatusApproved,
			DeviceID:      device.DeviceID,
			QueueEndpoint: device.QueueEndpoint,
			Message:       "device approved and ready for operation",
		}, nil

	case device.IsRejected():
		return &StatusResult{
			Status:  StatusRejected,
			Message: fmt.Sprintf("registration rejected: %s", device.RejectionReason),
		}, nil

	default:
		if device.ExpiredAt(time.Now().UTC(), s.expiry) {
			if err := s.store.Delete(ctx, hardwareID); err != nil {
				return nil, fmt.Errorf("discarding expired registration: %w", err)
			}
			s.logger.Info("expired registration discarded", "hardware_id", hardwareID)
			return nil, ErrExpired
		}
		return &StatusResult{
			Status:  StatusPending,
			Message: "registration pending approval",
		}, nil
	}
}

// Approve transitions a pending registration to approved: it assigns a new
// device ID, provisions the device's queue, and persists both. Queue
// provisioning happens before any mutation so a failure leaves the record
// pending and the operation safely retryable.
func (s *Service) Approve(ctx context.Context, hardwareID string) (*ApproveResult, error) {
	if err := ValidateHardwareID(hardwareID); err != nil {
		return nil, err
	}

	device, err := s.store.FindByHardwareID(ctx, hardwareID)
	if err != nil {
		return nil, err
	}
	if !device.IsPending() {
		return nil, ErrNotPending
	}

	deviceID := uuid.New().String()

	endpoint, err := s.queues.CreateQueue(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("provisioning queue: %w", err)
	}

	device.Approve(deviceID, endpoint, time.Now().UTC())
	if err := s.store.Update(ctx, device); err != nil {
		return nil, fmt.Errorf("saving approval: %w", err)
	}

	s.logger.Info("device approved",
		"hardware_id", hardwareID,
		"device_id", deviceID,
		"queue_endpoint", endpoint)

	return &ApproveResult{DeviceID: deviceID, QueueEndpoint: endpoint}, nil
}

// Reject transitions a pending registration to rejected with an operator
// supplied reason. The reason is validated before the registration is
// looked up, so a bad reason never consumes a pending record.
func (s *Service) Reject(ctx context.Context, hardwareID, reason string) error {
	if err := ValidateHardwareID(hardwareID); err != nil {
		return err
	}
	if err := ValidateReason(reason); err != nil {
		return err
	}

	device, err := s.store.FindByHardwareID(ctx, hardwareID)
	if err != nil {
		return err
	}
	if !device.IsPending() {
		return ErrNotPending
	}

	device.Reject(reason, time.Now().UTC())
	if err := s.store.Update(ctx, device); err != nil {
		return fmt.Errorf("saving rejection: %w", err)
	}

	s.logger.Info("device rejected",
		"hardware_id", hardwareID,
		"reason", reason)

	return nil
}

// ListPending returns all registrations awaiting an operator decision,
// oldest first. Expired entries are included; they are reaped lazily when
// the device next polls.
func (s *Service) ListPending(ctx context.Context) ([]Device, error) {
	devices, err := s.store.FindPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pending registrations: %w", err)
	}
	return devices, nil
}
