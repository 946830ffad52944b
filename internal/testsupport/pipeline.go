package testsupport

import (
	"testing"

	"visionrecall/internal/config"
	"visionrecall/internal/filestore"
	"visionrecall/internal/fingerprint"
	"visionrecall/internal/pipeline"
	"visionrecall/internal/progress"
	"visionrecall/internal/queue"
	"visionrecall/internal/results"
)

// Harness bundles a processor with fake LLM and OCR collaborators and real
// stores rooted in temp directories.
type Harness struct {
	Config       *config.Config
	Files        *filestore.Store
	Fingerprints *fingerprint.Store
	Entries      *results.Store
	State        *queue.State
	Reporter     *progress.Reporter
	Chat         *FakeChat
	OCR          *FakeOCR
	Processor    *pipeline.Processor
	Library      *pipeline.Library
}

// NewHarness wires a processor for cfg. Directories are created as needed.
func NewHarness(t testing.TB, cfg *config.Config) *Harness {
	t.Helper()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	fps, err := fingerprint.Open(cfg.FingerprintsPath(), nil)
	if err != nil {
		t.Fatalf("fingerprint.Open: %v", err)
	}
	entries, err := results.Open(cfg)
	if err != nil {
		t.Fatalf("results.Open: %v", err)
	}
	t.Cleanup(func() { entries.Close() })

	state := queue.NewState()
	h := &Harness{
		Config:       cfg,
		Files:        filestore.New(cfg.Paths.TrashDir),
		Fingerprints: fps,
		Entries:      entries,
		State:        state,
		Reporter:     progress.NewReporter(state),
		Chat:         NewFakeChat(),
		OCR:          NewFakeOCR("Build finished with 2 warnings in 14 seconds"),
	}
	h.Processor, err = pipeline.New(cfg, pipeline.Dependencies{
		Files:        h.Files,
		Fingerprints: fps,
		Entries:      entries,
		OCREngine:    h.OCR,
		Client:       h.Chat,
		Reporter:     h.Reporter,
	}, nil)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	h.Library = pipeline.NewLibrary(cfg, h.Files, fps, entries, nil)
	return h
}
