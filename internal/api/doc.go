// Package api implements the HTTP REST API server for VendLink Core.
//
// This package provides:
//   - Device-facing endpoints for registration and status polling
//   - Operator endpoints for approving, rejecting, and listing registrations
//   - User account management with role-based access control
//   - JWT authentication with refresh token rotation
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - TLS support for production deployments
//
// # Architecture
//
// The API server sits between two audiences. Vending machines in the
// field call the unauthenticated registration endpoints to enrol and
// poll for a decision. Fleet dashboards and the vendctl CLI call the
// authenticated management endpoints to act on those registrations.
// Approval provisions the machine's MQTT command queue before the
// decision is persisted.
//
// # Security
//
// Management endpoints require a JWT access token obtained from
// /auth/login. Tokens are short-lived; sessions are extended through
// refresh token rotation with family-based theft detection. Approval
// and rejection additionally require the registration:approve
// permission, which the operator role does not hold.
//
// # Graceful Degradation
//
// The server operates without MQTT, InfluxDB, or an audit repository.
// The corresponding features (queue provisioning, lifecycle metrics,
// audit trail) are skipped rather than failing requests.
package api
