// Package stages implements the four external-call stages run for every
// screenshot: OCR extraction, vision analysis, note generation, and
// title/tag generation.
//
// Each stage wraps exactly one kind of external call and owns the parsing
// and cleanup of its output. Stop checkpoints and timeouts are applied by
// the caller through stageexec so the stages stay easy to test in isolation.
package stages
