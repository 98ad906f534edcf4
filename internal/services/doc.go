// Package services defines shared utilities consumed by the pipeline stages
// and provider integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job rows, stage names, and cycle correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the dispositions the orchestrator acts on (retry vs fail).
//   - The bounded retry loop used for transient backend faults.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
