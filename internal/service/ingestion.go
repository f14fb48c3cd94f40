package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"eldercare/backend/internal/model"
	"eldercare/backend/internal/pkg/keygen"
	"eldercare/backend/internal/pkg/storage"
	"eldercare/backend/internal/repository"
)

const PlaceholderName = "Entorn sense nom"

type IngestionOptions struct {
	URLExpiry time.Duration
	// Timeout bounds a whole ingestion. Zero means no deadline beyond the caller's.
	Timeout time.Duration
	Now     func() time.Time
}

type ingestionService struct {
	blobs     storage.BlobStore
	envRepo   repository.EnvironmentRepository
	keys      *keygen.Generator
	logger    *slog.Logger
	urlExpiry time.Duration
	timeout   time.Duration
	now       func() time.Time
}

func NewIngestionService(
	blobs storage.BlobStore,
	envRepo repository.EnvironmentRepository,
	keys *keygen.Generator,
	logger *slog.Logger,
	opts IngestionOptions,
) IngestionService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ingestionService{
		blobs:     blobs,
		envRepo:   envRepo,
		keys:      keys,
		logger:    logger,
		urlExpiry: opts.URLExpiry,
		timeout:   opts.Timeout,
		now:       opts.Now,
	}
}

// ingestion tracks one pass through the pipeline.
type ingestion struct {
	state         State
	key           string
	saveAttempted bool
	logger        *slog.Logger
}

func (in *ingestion) advance(ctx context.Context, next State) {
	in.logger.DebugContext(ctx, "ingestion state", "from", in.state, "to", next, "storage_key", in.key)
	in.state = next
}

func (in *ingestion) fail(ctx context.Context, reason Reason, err error) error {
	ie := &IngestionError{Reason: reason, State: in.state, StorageKey: in.key, Err: err}
	if in.saveAttempted && in.state == StateValidated && (reason == ReasonTimeout || reason == ReasonCanceled) {
		ie.Indeterminate = true
	}

	attrs := []any{"reason", reason, "state", in.state, "error", err}
	if in.key != "" {
		attrs = append(attrs, "storage_key", in.key)
	}
	switch {
	case ie.Orphan():
		attrs = append(attrs, "orphan", true)
	case ie.Indeterminate:
		// eldercare orphans reports the key if the write landed.
		attrs = append(attrs, "orphan", "unknown")
	}
	in.logger.ErrorContext(ctx, "ingestion failed", attrs...)

	in.state = StateFailed
	return ie
}

func (s *ingestionService) Ingest(ctx context.Context, upload model.UploadDescriptor) (*model.Environment, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	in := &ingestion{state: StateReceived, logger: s.logger}

	if !upload.HasPayload() {
		return nil, in.fail(ctx, ReasonMissingFile, nil)
	}
	name := upload.Name
	if strings.TrimSpace(name) == "" {
		name = PlaceholderName
	}
	in.advance(ctx, StateValidated)

	in.key = s.keys.Key(upload.Filename)

	// Nothing has been written yet, so an expired context leaves no trace.
	if err := ctx.Err(); err != nil {
		return nil, in.fail(ctx, reasonFor(err, ReasonTimeout), err)
	}

	in.saveAttempted = true
	if err := s.blobs.Save(ctx, in.key, upload.Payload, upload.ContentType); err != nil {
		return nil, in.fail(ctx, reasonFor(err, ReasonBlobWrite), err)
	}
	in.advance(ctx, StateBlobWritten)

	url, err := s.blobs.IssueRetrievalURL(ctx, in.key, s.urlExpiry)
	if err != nil {
		return nil, in.fail(ctx, reasonFor(err, ReasonURLIssue), err)
	}
	in.advance(ctx, StateURLIssued)

	env := &model.Environment{
		Name:        name,
		Description: upload.Description,
		StoragePath: in.key,
		DownloadURL: url,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.envRepo.Create(ctx, env); err != nil {
		return nil, in.fail(ctx, reasonFor(err, ReasonRecordPersist), err)
	}
	in.advance(ctx, StateRecordPersisted)

	in.advance(ctx, StateCompleted)
	s.logger.InfoContext(ctx, "environment ingested",
		"id", env.ID, "storage_key", env.StoragePath, "size", len(upload.Payload))

	return env, nil
}
