// Package queue holds the screenshot processing queue: the observable
// in-memory State that the workflow loop mutates and observers read, and a
// SQLite journal (Store) that lets the queue survive restarts.
//
// State is the single source of truth for what is happening now. The Store
// mirrors item rows so pending work reappears after a crash; rows left in
// processing are returned to pending when the store is opened.
//
// Schema changes are new numbered files under migrations/, applied with
// golang-migrate when the store is opened.
package queue
