// Package logs tails the daemon log file for the CLI and the IPC server.
//
// Reads are offset based so a follower can resume where it stopped, and a
// negative offset returns the last N lines. Filters understand the JSON
// entries the daemon writes (level, component, item_id) and let plain text
// lines through where a filter only narrows by level.
package logs
