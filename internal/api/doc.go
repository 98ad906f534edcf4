// Package api defines the wire-format types shared by the HTTP surface and
// the IPC layer, plus the HTTP server that exposes them.
//
// DTOs use camelCase JSON tags. Internal enums (queue.Status, pipeline
// states and outcomes) are exposed as lowercase ASCII strings; the Korean
// sheet labels never cross this boundary. Timestamps use RFC3339.
//
// The server is transport only: it renders whatever the Controller returns
// and maps cycle outcomes onto HTTP status codes. Daemon logic stays in
// internal/daemon.
package api
