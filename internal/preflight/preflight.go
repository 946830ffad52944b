package preflight

import (
	"context"

	"visionrecall/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every applicable preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Intake directory", cfg.Paths.IntakeDir),
		CheckDirectoryAccess("Storage directory", cfg.Paths.StorageDir),
		CheckDirectoryAccess("Notes directory", cfg.Paths.NotesDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckFreeSpace("Storage free space", cfg.Paths.StorageDir, MinFreeBytes),
		CheckTesseract(ctx, cfg.TesseractBinary(), cfg.OCR.Language),
		CheckLLM(ctx, "LLM API", cfg.GetLLM()),
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
