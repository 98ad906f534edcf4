// Package pipeline drives queue rows through the production stages.
//
// The Orchestrator owns one cycle at a time: read the queue, reclaim
// abandoned claims, select the next row, then synthesize narration,
// generate scene assets, render, validate, and publish. Stage execution
// carries a per-stage timeout and a bounded retry budget; transient
// provider faults are retried, deterministic rejections fail the row,
// and store write failures abort the cycle so a later poll can observe
// the untouched sheet.
//
// Selection enforces the global single-flight rule: while any row is
// marked processing, no new row is claimed. The reclaim window is the
// only escape for claims whose owner died.
package pipeline
