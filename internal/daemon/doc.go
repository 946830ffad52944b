// Package daemon coordinates the long-running VisionRecall process.
//
// It ties the queue journal, the workflow manager and the intake watcher into
// a single lifecycle guarded by a flock so only one instance processes a
// library at a time. The daemon records a small runtime document (pid, socket,
// start time) next to the lock so CLI commands can tell a live daemon from a
// stale socket, and it runs housekeeping on start: fingerprint pruning and
// trash purging when retention windows are configured.
//
// Keep orchestration here: per-item work lives in pipeline and queue ordering
// lives in workflow.
package daemon
