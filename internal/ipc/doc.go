// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// The service is registered as "VisionRecall", so methods are addressed as
// VisionRecall.Status, VisionRecall.Enqueue, VisionRecall.Toggle and so on.
// Wire types live in types.go; keep them flat and JSON friendly so other
// tools (a status-bar widget, a shell script with socat) can speak the
// protocol without importing Go code.
package ipc
