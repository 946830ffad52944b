package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"filippo.io/age"

	"visionrecall/internal/config"
	"visionrecall/internal/logging"
)

// Sink stores archived objects.
type Sink interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
}

// Archiver encrypts and uploads screenshot artifacts.
type Archiver struct {
	sink       Sink
	recipients []age.Recipient
	prefix     string
	logger     *slog.Logger
}

// New builds an Archiver from configuration. It returns nil when archiving
// is disabled.
func New(ctx context.Context, cfg config.Archive, logger *slog.Logger) (*Archiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	sink, err := NewS3Sink(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithSink(sink, cfg.AgeRecipient, cfg.Prefix, logger)
}

// NewWithSink builds an Archiver over an explicit sink. An empty recipient
// uploads plaintext.
func NewWithSink(sink Sink, recipient, prefix string, logger *slog.Logger) (*Archiver, error) {
	if sink == nil {
		return nil, errors.New("archive sink required")
	}
	a := &Archiver{
		sink:   sink,
		prefix: strings.Trim(prefix, "/"),
		logger: logging.NewComponentLogger(logger, "archive"),
	}
	if recipient = strings.TrimSpace(recipient); recipient != "" {
		recipients, err := age.ParseRecipients(strings.NewReader(recipient))
		if err != nil {
			return nil, fmt.Errorf("parse age recipient: %w", err)
		}
		if len(recipients) == 0 {
			return nil, errors.New("no age recipients found")
		}
		a.recipients = recipients
	}
	return a, nil
}

// Encrypted reports whether uploads are age encrypted.
func (a *Archiver) Encrypted() bool {
	return a != nil && len(a.recipients) > 0
}

// Key returns the object key for a content hash and file extension.
func (a *Archiver) Key(hash, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	name := hash
	if ext != "" {
		name += "." + ext
	}
	if a.Encrypted() {
		name += ".age"
	}
	shard := hash
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return path.Join(a.prefix, shard, name)
}

// Store uploads image and metadata under the content hash and returns the
// image object key.
func (a *Archiver) Store(ctx context.Context, hash, ext string, image, metadata []byte) (string, error) {
	if a == nil {
		return "", nil
	}
	if strings.TrimSpace(hash) == "" {
		return "", errors.New("archive hash required")
	}
	imageKey := a.Key(hash, ext)
	if err := a.put(ctx, imageKey, image); err != nil {
		return "", fmt.Errorf("archive image: %w", err)
	}
	if len(metadata) > 0 {
		if err := a.put(ctx, a.Key(hash, "json"), metadata); err != nil {
			return "", fmt.Errorf("archive metadata: %w", err)
		}
	}
	a.logger.Info("screenshot archived",
		logging.String(logging.FieldEventType, "archive_stored"),
		logging.String("key", imageKey),
		logging.Bool("encrypted", a.Encrypted()),
	)
	return imageKey, nil
}

func (a *Archiver) put(ctx context.Context, key string, data []byte) error {
	payload := data
	if a.Encrypted() {
		var buf bytes.Buffer
		w, err := age.Encrypt(&buf, a.recipients...)
		if err != nil {
			return fmt.Errorf("creating encrypted writer: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("encrypting data: %w", err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("finalizing encryption: %w", err)
		}
		payload = buf.Bytes()
	}
	return a.sink.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)))
}
