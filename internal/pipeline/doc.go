// Package pipeline processes one queued screenshot end to end.
//
// A Processor owns the stage executors and the stores they write to. The
// workflow manager asks Admit whether an item is new content, then calls
// Process which runs OCR, vision, notes and tags before persisting the
// screenshot copy, the markdown note, the metadata file and the result entry.
// The source file is moved to the trash only after everything else has been
// written.
package pipeline
