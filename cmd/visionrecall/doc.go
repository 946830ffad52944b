// Package main hosts the VisionRecall CLI entrypoint and command graph.
//
// The Cobra command tree covers one-shot processing of screenshot files, the
// foreground daemon, queue control over the daemon socket, and maintenance of
// stored entries and fingerprints. Queue commands fall back to the journal
// database when no daemon is running.
package main
