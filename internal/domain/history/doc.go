// Package history holds the per-event records that the progress fact is
// reconstructed from: intent snapshots, journey choices and assessment runs.
//
// Nested payloads are kept as raw JSON and decoded field by field so that a
// malformed historical row degrades to defaults instead of failing a backfill.
package history
