// Package docstore is the document store adapter behind the progress engine.
//
// A Store offers three primitives over JSON-shaped documents addressed by
// (collection, id): Get, MergeSet (deep merge with field transforms) and
// RunTransaction (read-modify-write with automatic retry on conflicting
// commits). GormStore, BadgerStore and MemoryStore share Merge so documents
// converge to the same shape regardless of the backing product.
package docstore
