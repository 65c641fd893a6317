// Package progress defines the per-owner progress aggregate and the closed set
// of partial patches that may be merged into it.
//
// These types avoid persistence and transport details. Writers build a Patch,
// the fact merger renders it into a store document, and readers decode the
// stored document back into a ProgressFact.
package progress
