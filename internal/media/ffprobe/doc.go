// Package ffprobe shells out to ffprobe and decodes its JSON report.
// Render uses it to reconcile audio and video durations; validation uses
// it for the metadata floor checks.
package ffprobe
