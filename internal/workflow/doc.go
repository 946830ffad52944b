// Package workflow drives queued screenshots through the processing pipeline.
//
// The Manager owns the single processing loop. Items are visited strictly in
// FIFO order, one at a time, and every status change goes through the shared
// queue.State so observers (the IPC server, the CLI status command) see a
// consistent picture. The SQLite journal mirrors item statuses so pending work
// survives a restart.
//
// Pause, resume and stop are cooperative: they flip flags that the loop and
// the pipeline consult at fixed checkpoints. An in-flight stage call is never
// aborted by Stop; its result is discarded at the next checkpoint and the item
// returns to pending. Cancelling the context given to Start is the shutdown
// path and behaves the same way.
//
// Queue-level notifications are emitted when a run starts, when it drains, for
// each created note, and for every failed item.
package workflow
