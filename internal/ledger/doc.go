// Package ledger keeps a SQLite history of harness runs.
//
// Store implements harness.Recorder: every released lease or closed session
// is written as one row in runs plus one row per executed stage. The
// history backs the "hatch history" command.
package ledger
