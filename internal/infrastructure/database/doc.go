// Package database opens and migrates the VendLink Core SQLite database.
//
// One database file holds the whole fleet state: the devices registration
// table, operator accounts and their refresh tokens, and the audit trail.
// The wrapper owns three concerns:
//
//   - connection setup: WAL journal, busy timeout, foreign keys on, a
//     single-writer pool sized for SQLite, 0600 file permissions
//   - lifecycle: Open, HealthCheck, Close
//   - schema migrations: embedded up/down SQL pairs applied in version
//     order, tracked in schema_migrations
//
// Repositories receive the embedded *sql.DB and issue parameterised
// statements; nothing in this package knows about individual tables beyond
// schema_migrations.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns arrive nullable or with defaults,
// and every up file ships a matching down file so a bad deploy to a site
// controller can be stepped back.
package database
