package registration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store defines the persistence contract for device registrations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and keeps the Service free of any backing-technology assumption.
//
// Implementations must enforce hardware ID uniqueness and guarantee that a
// read-decide-write sequence on a single key is effectively atomic; the
// Service relies on this rather than implementing optimistic locking itself.
type Store interface {
	// Save inserts a new registration record.
	// Returns ErrDeviceExists if the hardware ID is already taken.
	Save(ctx context.Context, device *Device) error

	// FindByHardwareID retrieves a record by its natural key.
	// Returns ErrNotFound if no record exists.
	FindByHardwareID(ctx context.Context, hardwareID string) (*Device, error)

	// FindByDeviceID retrieves a record by its assigned device ID.
	// Only approved records carry a device ID.
	// Returns ErrNotFound if no record exists.
	FindByDeviceID(ctx context.Context, deviceID string) (*Device, error)

	// FindPending retrieves all records currently in pending status.
	FindPending(ctx context.Context) ([]Device, error)

	// Update overwrites an existing record.
	// Returns ErrNotFound if the record does not exist.
	Update(ctx context.Context, device *Device) error

	// Delete removes a record by hardware ID. Idempotent: deleting an
	// absent record is not an error.
	Delete(ctx context.Context, hardwareID string) error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed registration store.
// The db parameter should be an open SQLite connection.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const deviceColumns = `hardware_id, tenant_id, ip_address, system_info, status,
	device_id, queue_endpoint, rejection_reason, created_at, updated_at`

// Save inserts a new registration record.
func (s *SQLiteStore) Save(ctx context.Context, device *Device) error {
	infoJSON, err := json.Marshal(device.SystemInfo)
	if err != nil {
		return fmt.Errorf("marshalling system_info: %w", err)
	}

	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	if device.UpdatedAt.IsZero() {
		device.UpdatedAt = now
	}

	query := `
		INSERT INTO devices (` + deviceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		device.HardwareID,
		device.TenantID,
		device.IPAddress,
		string(infoJSON),
		string(device.Status),
		emptyToNull(device.DeviceID),
		emptyToNull(device.QueueEndpoint),
		emptyToNull(device.RejectionReason),
		device.CreatedAt.Format(time.RFC3339),
		device.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	return nil
}

// FindByHardwareID retrieves a record by its natural key.
func (s *SQLiteStore) FindByHardwareID(ctx context.Context, hardwareID string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE hardware_id = ?`
	return s.findOne(ctx, query, hardwareID)
}

// FindByDeviceID retrieves a record by its assigned device ID.
func (s *SQLiteStore) FindByDeviceID(ctx context.Context, deviceID string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE device_id = ?`
	return s.findOne(ctx, query, deviceID)
}

// FindPending retrieves all records in pending status, oldest first.
func (s *SQLiteStore) FindPending(ctx context.Context) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE status = ? ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, string(StatusPending))
	if err != nil {
		return nil, fmt.Errorf("querying pending devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, scanErr := scanDevice(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning device: %w", scanErr)
		}
		devices = append(devices, *device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// Update overwrites an existing record.
func (s *SQLiteStore) Update(ctx context.Context, device *Device) error {
	infoJSON, err := json.Marshal(device.SystemInfo)
	if err != nil {
		return fmt.Errorf("marshalling system_info: %w", err)
	}

	query := `
		UPDATE devices SET
			tenant_id = ?, ip_address = ?, system_info = ?, status = ?,
			device_id = ?, queue_endpoint = ?, rejection_reason = ?, updated_at = ?
		WHERE hardware_id = ?`

	result, err := s.db.ExecContext(ctx, query,
		device.TenantID,
		device.IPAddress,
		string(infoJSON),
		string(device.Status),
		emptyToNull(device.DeviceID),
		emptyToNull(device.QueueEndpoint),
		emptyToNull(device.RejectionReason),
		device.UpdatedAt.Format(time.RFC3339),
		device.HardwareID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a record by hardware ID. Removing an absent record is a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, hardwareID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM devices WHERE hardware_id = ?", hardwareID); err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return nil
}

// findOne executes a single-row query and scans the result.
func (s *SQLiteStore) findOne(ctx context.Context, query string, arg string) (*Device, error) {
	row := s.db.QueryRowContext(ctx, query, arg)
	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying device: %w", err)
	}
	return device, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a row or rows result into a Device.
func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var infoJSON string
	var status string
	var deviceID, queueEndpoint, rejectionReason sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.HardwareID,
		&d.TenantID,
		&d.IPAddress,
		&infoJSON,
		&status,
		&deviceID,
		&queueEndpoint,
		&rejectionReason,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Status = Status(status)
	if deviceID.Valid {
		d.DeviceID = deviceID.String
	}
	if queueEndpoint.Valid {
		d.QueueEndpoint = queueEndpoint.String
	}
	if rejectionReason.Valid {
		d.RejectionReason = rejectionReason.String
	}

	var parseErr error
	d.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	d.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	if err := json.Unmarshal([]byte(infoJSON), &d.SystemInfo); err != nil {
		return nil, fmt.Errorf("unmarshalling system_info: %w", err)
	}

	return &d, nil
}

// emptyToNull returns a sql.NullString that is NULL for empty strings.
func emptyToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
