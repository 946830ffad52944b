// Package textutil provides small string helpers shared by the pipeline:
// filename and token sanitization, whitespace collapsing and rune-safe
// truncation.
package textutil
