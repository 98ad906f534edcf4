// Package daemon coordinates the long-running vidpipe process.
//
// It wires configuration, the spreadsheet queue store, the orchestrator,
// and the HTTP API server into a single lifecycle with flock-based locking
// to prevent multiple instances. The poll loop runs one cycle per interval;
// manual triggers (HTTP POST /api/trigger, IPC Daemon.TriggerCycle) are
// serviced through the same loop so cycles never interleave inside one
// process.
//
// Keep lifecycle logic here: stage behavior lives in the pipeline and
// service packages while the daemon focuses on startup, shutdown, and
// status reporting.
package daemon
