// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp queue item IDs, source paths, stage names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so the queue can tell user
//     cancellation apart from genuine failures.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
