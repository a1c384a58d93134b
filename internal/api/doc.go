// Package api exposes the digest service over HTTP. Handlers translate JSON
// requests into service calls and map service errors to status codes
// without leaking internal detail to clients.
package api
