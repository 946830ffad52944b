// Package logging assembles structured slog loggers and formatting helpers used
// across VisionRecall services.
//
// Console output goes through tint so interactive runs stay readable, while the
// daemon log file is always JSON. Context-aware helpers tag log lines with queue
// item IDs, stages, and correlation IDs so a single screenshot can be followed
// through OCR, vision, notes, and tag generation. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup to ensure new
// components emit data with the same shape and routing guarantees as the rest
// of the system.
package logging
