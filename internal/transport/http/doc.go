// Package http implements HTTP request handlers for the FADA pipeline web
// service. It provides a thin layer between HTTP transport and business
// logic: handlers parse requests, delegate to services, and transform
// service errors into RFC 7807 responses.
//
// # Endpoints
//
//	GET /stream?month=M&year=Y  — start a session, stream its events as SSE
//	GET /download?session=ID    — serve a completed session's workbook
//	GET /available-months       — list periods with source documents
//	GET /status                 — aggregate session and uptime view
package http
