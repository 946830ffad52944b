// Package intake watches the configured intake directory and hands new
// screenshots to the workflow queue.
//
// The watcher polls on a fixed interval instead of relying on filesystem
// notifications so network shares and synced folders behave the same as
// local disks. Files whose size and mtime already match a fingerprint record
// are skipped without being read; full content checks happen later in the
// pipeline.
package intake
