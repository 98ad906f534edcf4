package ipc

import "vidpipe/internal/api"

// The RPC payloads reuse the api package's JSON shapes so the unix
// socket and the HTTP surface stay interchangeable for clients.

// StatusRequest fetches the daemon status snapshot.
type StatusRequest struct{}

// StatusResponse mirrors the HTTP status payload.
type StatusResponse = api.DaemonStatus

// TriggerRequest runs one pipeline cycle immediately.
type TriggerRequest struct{}

// TriggerResponse reports the outcome of the triggered cycle.
type TriggerResponse = api.TriggerResponse

// QueueListRequest fetches live sheet rows plus recent run history.
type QueueListRequest struct {
	// History caps the number of journal cycles returned. Zero skips
	// history entirely.
	History int `json:"history"`
}

// QueueListResponse contains sheet rows and journal cycles.
type QueueListResponse = api.QueueListResponse

// StopRequest shuts the daemon down.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// QueueRow mirrors the HTTP API queue DTO for internal IPC callers.
type QueueRow = api.QueueRow

// CycleSummary describes one journaled pipeline cycle.
type CycleSummary = api.CycleSummary

// DependencyStatus describes availability of an external dependency.
type DependencyStatus = api.DependencyStatus
