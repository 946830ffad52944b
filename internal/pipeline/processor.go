package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"visionrecall/internal/archive"
	"visionrecall/internal/config"
	"visionrecall/internal/filestore"
	"visionrecall/internal/fingerprint"
	"visionrecall/internal/logging"
	"visionrecall/internal/progress"
	"visionrecall/internal/queue"
	"visionrecall/internal/results"
	"visionrecall/internal/services"
	"visionrecall/internal/stage"
	"visionrecall/internal/stageexec"
	"visionrecall/internal/stages"
)

// Dependencies are the collaborators a Processor drives.
type Dependencies struct {
	Files        *filestore.Store
	Fingerprints *fingerprint.Store
	Entries      *results.Store
	Archiver     *archive.Archiver
	OCREngine    stages.OCREngine
	Client       stages.ChatClient
	Reporter     *progress.Reporter
}

// Processor runs the per-item pipeline.
type Processor struct {
	cfg          *config.Config
	files        *filestore.Store
	fingerprints *fingerprint.Store
	entries      *results.Store
	archiver     *archive.Archiver
	reporter     *progress.Reporter
	logger       *slog.Logger

	ocr    *stages.OCR
	vision *stages.Vision
	notes  *stages.Notes
	tagger *stages.Tagger

	timeout time.Duration
	now     func() time.Time
	newID   func() string
}

// New wires the stage executors from configuration.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Processor, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: config required")
	}
	if deps.Files == nil || deps.Entries == nil || deps.Reporter == nil {
		return nil, errors.New("pipeline: file store, entry store and reporter are required")
	}
	if deps.Client == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "LLM client required", nil)
	}
	logger = logging.NewComponentLogger(logger, "pipeline")
	llmCfg := cfg.GetLLM()
	lang := cfg.OCR.Language
	translate := cfg.OCR.TranslatePrompts

	return &Processor{
		cfg:          cfg,
		files:        deps.Files,
		fingerprints: deps.Fingerprints,
		entries:      deps.Entries,
		archiver:     deps.Archiver,
		reporter:     deps.Reporter,
		logger:       logger,
		ocr:          stages.NewOCR(deps.OCREngine, lang, translate, logger),
		vision: &stages.Vision{
			Client:    deps.Client,
			Model:     llmCfg.VisionModel,
			Prompt:    cfg.Prompts.Vision,
			Language:  lang,
			Translate: translate,
		},
		notes: &stages.Notes{
			Client:            deps.Client,
			Model:             llmCfg.NotesModel,
			Prompt:            cfg.Prompts.Notes,
			CategoryDetection: cfg.Prompts.CategoryDetection,
			MaxTokens:         llmCfg.MaxTokens,
			Language:          lang,
			Translate:         translate,
		},
		tagger: &stages.Tagger{
			Client:    deps.Client,
			Model:     llmCfg.NotesModel,
			Attempts:  cfg.Queue.TagAttempts,
			Language:  lang,
			Translate: translate,
			Logger:    logger,
			Stopper:   deps.Reporter,
		},
		timeout: stage.TimeoutFromSeconds(cfg.Queue.StageTimeoutSeconds),
		now:     time.Now,
		newID:   uuid.NewString,
	}, nil
}

// Admit reports whether item carries content that has not been processed
// yet. It is consulted before the item is marked processing; a false result
// means the item is a duplicate and should be skipped.
func (p *Processor) Admit(item *queue.Item) (bool, error) {
	if item == nil {
		return false, errors.New("nil queue item")
	}
	if !p.cfg.Queue.DuplicateCheck || p.fingerprints == nil {
		return true, nil
	}
	ok, err := p.fingerprints.ShouldProcess(item.SourcePath, true)
	if err != nil {
		return false, services.Wrap(services.ErrValidation, "fingerprint", "check", item.SourcePath, err)
	}
	return ok, nil
}

type analysis struct {
	ocrText string
	vision  string
	notes   string
	tags    stages.TitleAndTags
}

// Process runs every stage for item and persists the result. A stop request
// surfaces as services.ErrStopped; any other error means the item failed.
// In both cases the fingerprint recorded by Admit is released so the file
// can be picked up again.
func (p *Processor) Process(ctx context.Context, item *queue.Item) (*results.Entry, error) {
	if item == nil {
		return nil, errors.New("nil queue item")
	}
	ctx = services.WithItemID(ctx, item.ID)
	ctx = services.WithSource(ctx, item.SourcePath)
	logger := logging.WithContext(ctx, p.logger)

	p.reporter.Start("Processing screenshot...")
	entry, err := p.process(ctx, item)
	if err != nil {
		p.reporter.End(false)
		p.release(item.SourcePath, logger)
		if services.IsStopped(err) {
			logger.Info("screenshot processing stopped",
				logging.String(logging.FieldEventType, "item_stopped"),
			)
		}
		return nil, err
	}
	p.reporter.End(true)
	logger.Info("screenshot processed",
		logging.String(logging.FieldEventType, "item_complete"),
		logging.String("entry_id", entry.ID),
		logging.String("note", entry.NotePath),
		logging.Int("tags", len(entry.ExtractedTags)),
	)
	return entry, nil
}

func (p *Processor) process(ctx context.Context, item *queue.Item) (*results.Entry, error) {
	image, err := p.files.ReadBytes(item.SourcePath)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "read", "screenshot", "", err)
	}
	info, err := os.Stat(item.SourcePath)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "read", "stat", "", err)
	}

	var a analysis
	p.reporter.Advance("Performing OCR...", progress.StepOCR)
	if a.ocrText, err = stageexec.Run(ctx, p.opts("ocr"), func(c context.Context) (string, error) {
		return p.ocr.Extract(c, image)
	}); err != nil {
		return nil, err
	}

	p.reporter.Advance("Analyzing image...", progress.StepVision)
	if a.vision, err = stageexec.Run(ctx, p.opts("vision"), func(c context.Context) (string, error) {
		return p.vision.Analyze(c, image)
	}); err != nil {
		return nil, err
	}

	p.reporter.Advance("Generating notes...", progress.StepNotes)
	if a.notes, err = stageexec.Run(ctx, p.opts("notes"), func(c context.Context) (string, error) {
		return p.notes.Generate(c, a.ocrText, a.vision)
	}); err != nil {
		return nil, err
	}

	p.reporter.Advance("Generating tags and title...", progress.StepTags)
	if a.tags, err = stageexec.Run(ctx, p.opts("tags"), func(c context.Context) (stages.TitleAndTags, error) {
		return p.tagger.Generate(c, a.notes)
	}); err != nil {
		return nil, err
	}

	p.reporter.Advance("Saving results...", progress.StepSave)
	if err := stage.Checkpoint(ctx, p.reporter, "persist"); err != nil {
		return nil, err
	}
	src := source{
		path:  item.SourcePath,
		image: image,
		size:  info.Size(),
		mtime: info.ModTime().UnixMilli(),
	}
	entry, err := p.persist(ctx, src, a)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (p *Processor) opts(name string) stageexec.Options {
	return stageexec.Options{
		Logger:    p.logger,
		Stopper:   p.reporter,
		StageName: name,
		Timeout:   p.timeout,
	}
}

func (p *Processor) release(path string, logger *slog.Logger) {
	if p.fingerprints == nil || !p.cfg.Queue.DuplicateCheck {
		return
	}
	if err := p.fingerprints.Forget(path); err != nil {
		logger.Warn("failed to release fingerprint; file will be treated as processed",
			logging.String(logging.FieldEventType, "fingerprint_release_failed"),
			logging.String(logging.FieldErrorHint, "remove the record with 'visionrecall fingerprints prune'"),
			logging.Error(err),
		)
	}
}

func baseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func extension(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
