// Package results persists one Entry per successfully processed screenshot.
//
// Entries live in a SQLite database next to the queue journal. The full entry
// is stored as JSON so the on-disk shape matches the metadata file written
// beside each stored screenshot; id, timestamp, hash, and title are lifted
// into indexed columns and tags into a child table for tag counts.
package results
