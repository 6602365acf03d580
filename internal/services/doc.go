// Package services implements the business logic layer of the FADA pipeline
// application. It provides a clean separation between HTTP handlers and the
// pipeline engine, ensuring that request validation and business rules are
// centralized and testable.
//
// # Available Services
//
//	- PipelineService: validates period requests and drives pipeline sessions
//	- DataService: exposes available periods and completed session results
//	- HealthService: provides system health checks
//
// # Error Handling
//
// Services return domain-specific errors that handlers transform into RFC
// 7807 responses: validation errors for invalid input, session errors from
// the pipeline engine for missing or unfinished sessions.
package services
