// Package registration implements the device registration and approval
// lifecycle for VendLink Core.
//
// A vending machine self-registers with its burned-in hardware ID, waits in
// pending state for an administrator's decision, and once approved is
// issued a globally unique device ID plus a dedicated message-queue endpoint
// for operational traffic. Rejected and stale registrations can re-register.
//
// # Lifecycle
//
//	           register                approve
//	  (none) ──────────▶ pending ─────────────▶ approved
//	                        │
//	                        │ reject                  approved and rejected are
//	                        ▼                         terminal; only a rejected
//	                     rejected                     or expired-pending record
//	                                                  may be re-registered
//
// A pending record older than the expiry window (24 hours by default) is
// treated as expired. Expiry is derived on read (nothing is stored) and the
// record is deleted as a side effect of observing it, either during a status
// poll or when a fresh registration supersedes it.
//
// # Key Types
//
//   - Device: one hardware unit's registration and lifecycle state
//   - Request: a validated registration payload
//   - Store: keyed persistence contract (SQLite implementation included)
//   - QueueProvisioner: allocates a messaging endpoint on approval
//   - Service: the state machine orchestrating all of the above
//
// # Usage
//
//	store := registration.NewSQLiteStore(db)
//	svc := registration.NewService(store, provisioner)
//	svc.SetLogger(log)
//
//	err := svc.Register(ctx, registration.Request{
//	    HardwareID: "VM00112345",
//	    TenantID:   "9f2c1c4e-8d7a-4f6e-b1d0-3a9c5e7f2b10",
//	    IPAddress:  "192.168.1.10",
//	    SystemInfo: registration.SystemInfo{
//	        OS: "Linux", Version: "5.4", Architecture: "x64",
//	        Memory: "8GB", Storage: "256GB",
//	    },
//	})
//
// # Concurrency
//
// The Service holds no state between calls; any number of Service instances
// may run against a shared Store. Per-key atomicity ("read, decide, write"
// must not interleave for the same hardware ID) is the Store's contract, not
// the Service's; the SQLite implementation relies on the database's key
// uniqueness and single-writer connection for this.
package registration
