// Package preflight provides readiness checks for the binaries, services and
// filesystem paths VisionRecall depends on.
//
// These checks run in two places:
//   - The daemon runs RunAll at startup and logs each failure as a warning
//     before the queue starts.
//   - The CLI "visionrecall status" command renders the same results next to
//     the queue state.
//
// Checks never mutate anything; a failing check explains itself in Detail.
package preflight
