// Package journal persists cycle history in SQLite. Every workflow cycle
// gets one row recording its outcome, and every stage attempt inside the
// cycle gets a child row with its duration and disposition. The daemon
// status surfaces and the CLI history command read from here; the sheet
// remains the source of truth for job state.
package journal
