// Package auth provides authentication and authorisation for VendLink Core.
//
// It implements a 3-tier role model (operator → admin → owner) with:
//   - Argon2id password hashing (OWASP 2025 recommendation)
//   - JWT access/refresh token rotation with family-based theft detection
//   - Static role-permission mapping (compile-time, no database lookup)
//
// Operators monitor the fleet (pending registrations, device status,
// telemetry) but cannot approve or reject machines. Admins hold the
// approval authority and manage operator accounts. The owner role exists
// for recovery and dangerous operations only.
package auth
