// Package app provides application initialization and lifecycle
// management for the harvester. It wires configuration, logging,
// observability, persistence, source adapters, the operation
// orchestrator, the schedule manager and the HTTP control surface
// together at startup, and handles graceful shutdown.
//
// # Initialization Flow
//
// The typical initialization sequence:
//
//	1. Load configuration from environment and files
//	2. Initialize logging and observability
//	3. Open the SQLite store
//	4. Register source adapters and wire the geocode engine
//	5. Create the orchestrator and schedule manager
//	6. Set up HTTP handlers and middleware
//	7. Configure and start the HTTP server
//
// # Graceful Shutdown
//
// The package handles SIGINT and SIGTERM to ensure active requests
// drain, a running operation receives a cancellation request, the
// scheduler and WebSocket hub stop, and the store is closed.
//
// All initialization errors are returned to the caller; the app does
// not call os.Exit() directly, leaving exit control to main.
package app
