// Package audit records fleet activity history in the audit_logs
// table. Every registration decision (approve, reject) lands here with
// the acting operator, so disputes over who released a machine into the
// fleet can be settled from the trail.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Well-known audit actions.
const (
	ActionRegister = "register"
	ActionApprove  = "approve"
	ActionReject   = "reject"
	ActionExpire   = "expire"
	ActionLogin    = "login"
)

// Well-known entity types.
const (
	EntityDevice = "device"
	EntityUser   = "user"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// auditColumns is the scan order shared by every SELECT in this file.
const auditColumns = "id, action, entity_type, entity_id, user_id, source, details, created_at"

// AuditLog is a single trail entry. Details holds action-specific
// context as JSON, for example the rejection reason.
type AuditLog struct { //nolint:revive // audit.AuditLog is clearer than audit.Log in calling code
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter narrows a List query. Zero values mean "no filter"; a zero
// Limit gets the default page size.
type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	Limit      int
	Offset     int
}

// ListResult is one page of the trail plus the unfiltered total.
type ListResult struct {
	Logs   []AuditLog `json:"logs"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// Repository defines audit trail persistence.
type Repository interface {
	Create(ctx context.Context, log *AuditLog) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores the trail in the fleet database.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a trail entry, minting an aud- ID and stamping
// CreatedAt when the caller left them empty.
func (r *SQLiteRepository) Create(ctx context.Context, log *AuditLog) error {
	if log.ID == "" {
		log.ID = "aud-" + uuid.NewString()[:8]
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	details, err := marshalDetails(log.Details)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO audit_logs ("+auditColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		log.ID, log.Action, log.EntityType,
		nullText(log.EntityID), nullText(log.UserID),
		log.Source, details,
		log.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}
	return nil
}

// List returns trail entries matching the filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	filter = clampFilter(filter)
	where, args := buildWhere(filter)

	// where holds only ?-parameterised conditions, never user input.
	var total int
	countQuery := "SELECT COUNT(*) FROM audit_logs " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit logs: %w", err)
	}

	query := "SELECT " + auditColumns + " FROM audit_logs " + where +
		" ORDER BY created_at DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying audit logs: %w", err)
	}
	defer rows.Close()

	logs := []AuditLog{}
	for rows.Next() {
		log, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit logs: %w", err)
	}

	return &ListResult{
		Logs:   logs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

func clampFilter(f Filter) Filter {
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

func buildWhere(f Filter) (string, []any) {
	var conditions []string
	var args []any

	if f.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, f.Action)
	}
	if f.EntityType != "" {
		conditions = append(conditions, "entity_type = ?")
		args = append(args, f.EntityType)
	}
	if f.EntityID != "" {
		conditions = append(conditions, "entity_id = ?")
		args = append(args, f.EntityID)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func scanAuditLog(rows *sql.Rows) (AuditLog, error) {
	var log AuditLog
	var entityID, userID, details sql.NullString
	var createdAt string

	if err := rows.Scan(&log.ID, &log.Action, &log.EntityType,
		&entityID, &userID, &log.Source, &details, &createdAt); err != nil {
		return AuditLog{}, fmt.Errorf("scanning audit log: %w", err)
	}

	log.EntityID = entityID.String
	log.UserID = userID.String
	if details.Valid && details.String != "" {
		// Corrupt details are left nil rather than failing the page.
		var m map[string]any
		if json.Unmarshal([]byte(details.String), &m) == nil {
			log.Details = m
		}
	}

	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return AuditLog{}, fmt.Errorf("parsing audit log timestamp %q: %w", createdAt, err)
	}
	log.CreatedAt = t

	return log, nil
}

// marshalDetails encodes the details map for the nullable TEXT column.
func marshalDetails(details map[string]any) (any, error) {
	if details == nil {
		return nil, nil
	}
	b, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshalling audit details: %w", err)
	}
	return string(b), nil
}

// nullText maps empty strings to NULL for nullable TEXT columns.
func nullText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
