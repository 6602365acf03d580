// Package app wires the application together: configuration, logging,
// observability, the ingestion pipeline, services, and the HTTP server.
// The Application type owns the full lifecycle from NewApplication through
// Run to graceful shutdown.
package app
