package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/sanketb-14/Streamline-sub000/internal/config"
	"github.com/sanketb-14/Streamline-sub000/internal/models"
	"github.com/sanketb-14/Streamline-sub000/internal/observability"
	"github.com/sanketb-14/Streamline-sub000/internal/storage"
	"github.com/sanketb-14/Streamline-sub000/internal/transcoder"
)

// ErrDuplicateUpload is wrapped when deduplication rejects an upload.
var ErrDuplicateUpload = errors.New("an identical upload already exists in this channel")

// VideoStore is the slice of the catalog the pipeline writes to.
type VideoStore interface {
	Create(ctx context.Context, video *models.Video) error
	FindByContentHash(ctx context.Context, channelID models.ULID, hash string) (*models.Video, error)
}

// ChannelStore provides the ownership fact and the channel video list.
type ChannelStore interface {
	GetByID(ctx context.Context, id models.ULID) (*models.Channel, error)
	AppendVideo(ctx context.Context, channelID, videoID models.ULID) error
}

// Slots bounds concurrent transcodes. *transcoder.Pool satisfies it.
type Slots interface {
	Acquire(ctx context.Context) (func(), error)
}

// Clock supplies the time used in staging names.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Invalidator is told when the catalog changed.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// File is the uploaded binary part.
type File struct {
	Filename    string
	ContentType string
	// Size is the client-declared length; the staged byte count is authoritative.
	Size int64
	Body io.Reader
}

// Metadata is the descriptive part of an upload.
type Metadata struct {
	Title       string
	Description string
	Tags        []string
}

// Request is one upload submitted by an authenticated user.
type Request struct {
	UploaderID string
	ChannelID  models.ULID
	File       File
	Metadata   Metadata
}

// Deps are the collaborators the pipeline drives.
type Deps struct {
	Transcoder transcoder.Transcoder
	Slots      Slots
	Blobs      storage.BlobStore
	Videos     VideoStore
	Channels   ChannelStore
	// Staging is the sandbox staging directories are created in.
	Staging *storage.Sandbox
}

// Pipeline ingests uploads.
type Pipeline struct {
	deps        Deps
	cfg         config.IngestConfig
	clock       Clock
	logger      *slog.Logger
	metrics     *observability.Metrics
	invalidator Invalidator
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides the clock.
func WithClock(c Clock) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithMetrics records outcomes and stage timings.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithInvalidator registers a cache to invalidate after each commit.
func WithInvalidator(inv Invalidator) Option {
	return func(p *Pipeline) { p.invalidator = inv }
}

// NewPipeline creates a pipeline. All Deps are required.
func NewPipeline(deps Deps, cfg config.IngestConfig, opts ...Option) (*Pipeline, error) {
	switch {
	case deps.Transcoder == nil:
		return nil, errors.New("ingest: transcoder is required")
	case deps.Slots == nil:
		return nil, errors.New("ingest: transcode slots are required")
	case deps.Blobs == nil:
		return nil, errors.New("ingest: blob store is required")
	case deps.Videos == nil || deps.Channels == nil:
		return nil, errors.New("ingest: catalog stores are required")
	case deps.Staging == nil:
		return nil, errors.New("ingest: staging sandbox is required")
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, errors.New("ingest: max upload size must be positive")
	}

	p := &Pipeline{
		deps:   deps,
		cfg:    cfg,
		clock:  systemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = observability.WithComponent(p.logger, "ingest")
	return p, nil
}

// Ingest runs an upload to completion. On success the returned video is
// committed and listed in its channel. Every failure is an *Error; only
// PartialCommitError leaves a visible record behind.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*models.Video, error) {
	start := time.Now()
	job := newJob(req.UploaderID, req.ChannelID)
	logger := p.logger.With(
		slog.String("job_id", job.ID.String()),
		slog.String("channel_id", req.ChannelID.String()),
		slog.String("uploader_id", req.UploaderID),
	)

	video, err := p.run(observability.ContextWithLogger(ctx, logger), logger, job, req)

	if err != nil {
		failedAt := job.Stage
		job.Stage, job.Err = StageFailed, err
		kind := KindOf(err)
		p.metrics.IngestFinished(string(kind))
		if kind == KindCanceled {
			observability.WithError(logger, err).InfoContext(ctx, "upload canceled",
				slog.String("stage", string(failedAt)))
		} else {
			observability.WithError(logger, err).WarnContext(ctx, "upload failed",
				slog.String("kind", string(kind)),
				slog.String("stage", string(failedAt)),
				slog.Duration("duration", time.Since(start)),
			)
		}
		return nil, err
	}

	job.Stage = StageCommitted
	p.metrics.IngestFinished("committed")
	logger.InfoContext(ctx, "upload committed",
		slog.String("video_id", video.ID.String()),
		slog.String("size", humanize.IBytes(uint64(job.Size))),
		slog.Duration("media_duration", job.Duration),
		slog.Duration("duration", time.Since(start)),
	)
	return video, nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, job *Job, req Request) (*models.Video, error) {
	if err := p.validate(ctx, req); err != nil {
		return nil, err
	}

	// Staging dir goes away on every exit path.
	defer func() {
		if job.StagingDir == "" {
			return
		}
		if err := p.deps.Staging.RemoveAll(filepath.Base(job.StagingDir)); err != nil {
			observability.WithError(logger, err).Warn("failed to remove staging directory",
				slog.String("path", job.StagingDir))
		}
	}()

	if err := p.stage(ctx, logger, job, StageStaged, func() error { return p.stageUpload(ctx, job, req.File) }); err != nil {
		return nil, err
	}
	if p.cfg.Deduplicate {
		if err := p.checkDuplicate(ctx, job); err != nil {
			return nil, err
		}
	}

	if err := p.stage(ctx, logger, job, StageTranscoding, func() error { return p.transcode(ctx, job) }); err != nil {
		return nil, err
	}

	// Blobs written from here on are removed if the job does not commit.
	committed := false
	defer func() {
		if !committed && len(job.BlobKeys) > 0 {
			p.deleteBlobs(context.WithoutCancel(ctx), logger, job.BlobKeys)
		}
	}()

	if err := p.stage(ctx, logger, job, StagePersisting, func() error { return p.persistBlobs(ctx, job) }); err != nil {
		return nil, err
	}

	// Last cancellation point. The catalog write and the channel append are
	// never abandoned halfway.
	if err := ctx.Err(); err != nil {
		return nil, canceledError(StagePersisting, err)
	}
	cctx := context.WithoutCancel(ctx)

	var video *models.Video
	if err := p.stage(cctx, logger, job, StageCommitted, func() error {
		var err error
		video, err = p.commit(cctx, logger, job, req.Metadata)
		return err
	}); err != nil {
		if KindOf(err) == KindPartialCommit {
			committed = true
			p.invalidate(cctx)
		}
		return nil, err
	}
	committed = true
	p.invalidate(cctx)
	return video, nil
}

// stage moves the job to s and runs one step with the orchestrator's
// logging and timing. A failing step leaves the job at the stage its error
// names.
func (p *Pipeline) stage(ctx context.Context, logger *slog.Logger, job *Job, s Stage, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return canceledError(s, err)
	}
	job.Stage = s
	logger.DebugContext(ctx, "executing stage", slog.String("stage", string(s)))
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	p.metrics.ObserveStage(string(s), elapsed)
	if err != nil {
		if e, ok := AsError(err); ok {
			job.Stage = e.Stage
		}
		observability.WithError(logger, err).DebugContext(ctx, "stage failed",
			slog.String("stage", string(s)),
			slog.Duration("duration", elapsed),
		)
		return err
	}
	logger.DebugContext(ctx, "stage completed", slog.String("stage", string(s)), slog.Duration("duration", elapsed))
	return nil
}

// validate checks everything that can be checked without touching disk.
func (p *Pipeline) validate(ctx context.Context, req Request) error {
	if strings.TrimSpace(req.UploaderID) == "" {
		return validationError(StageValidating, "uploader identity is required", models.ErrUserIDRequired)
	}
	if req.File.Body == nil {
		return validationError(StageValidating, "no video file in upload", nil)
	}
	if !strings.HasPrefix(strings.ToLower(req.File.ContentType), "video/") {
		return validationError(StageValidating, fmt.Sprintf("content type %q is not a video", req.File.ContentType), nil)
	}
	limit := p.cfg.MaxUploadSize.Bytes()
	if req.File.Size > limit {
		e := validationError(StageValidating, fmt.Sprintf("upload is %s, limit is %s",
			humanize.IBytes(uint64(req.File.Size)), p.cfg.MaxUploadSize), nil)
		e.TooLarge = true
		return e
	}
	if err := models.ValidateMetadata(req.Metadata.Title, req.Metadata.Description, req.Metadata.Tags); err != nil {
		return validationError(StageValidating, err.Error(), err)
	}

	channel, err := p.deps.Channels.GetByID(ctx, req.ChannelID)
	if err != nil {
		if ctx.Err() != nil {
			return canceledError(StageValidating, ctx.Err())
		}
		return persistenceError(StageValidating, "looking up channel", err)
	}
	if channel == nil {
		return validationError(StageValidating, "channel does not exist", models.ErrChannelNotFound)
	}
	if !channel.IsOwnedBy(req.UploaderID) {
		return validationError(StageValidating, "uploader does not own the channel", models.ErrNotChannelOwner)
	}
	return nil
}

// stageUpload streams the body into a fresh staging directory and hashes it.
func (p *Pipeline) stageUpload(ctx context.Context, job *Job, file File) error {
	dir, err := p.deps.Staging.Mkdir(stagingDirName(job.UploaderID, p.clock.Now(), job.ID))
	if err != nil {
		return persistenceError(StageStaged, "creating staging directory", err)
	}
	job.StagingDir = dir
	job.SourcePath = filepath.Join(dir, sourceFileName(file.Filename))

	f, err := os.OpenFile(job.SourcePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0640)
	if err != nil {
		return persistenceError(StageStaged, "creating staged file", err)
	}

	limit := p.cfg.MaxUploadSize.Bytes()
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), io.LimitReader(file.Body, limit+1))
	closeErr := f.Close()

	if err != nil {
		if ctx.Err() != nil {
			return canceledError(StageStaged, ctx.Err())
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			e := validationError(StageStaged, "upload exceeds the request size limit", err)
			e.TooLarge = true
			return e
		}
		return validationError(StageStaged, "reading upload body", err)
	}
	if closeErr != nil {
		return persistenceError(StageStaged, "writing staged file", closeErr)
	}
	if n > limit {
		e := validationError(StageStaged, fmt.Sprintf("upload exceeds the %s limit", p.cfg.MaxUploadSize), nil)
		e.TooLarge = true
		return e
	}
	if n == 0 {
		return validationError(StageStaged, "upload is empty", nil)
	}

	job.Size = n
	job.ContentHash = hex.EncodeToString(h.Sum(nil))
	return nil
}

func (p *Pipeline) checkDuplicate(ctx context.Context, job *Job) error {
	existing, err := p.deps.Videos.FindByContentHash(ctx, job.ChannelID, job.ContentHash)
	if err != nil {
		if ctx.Err() != nil {
			return canceledError(StageStaged, ctx.Err())
		}
		return persistenceError(StageStaged, "checking for duplicates", err)
	}
	if existing != nil {
		return &Error{
			Kind:    KindValidation,
			Stage:   StageStaged,
			VideoID: existing.ID.String(),
			Message: "duplicate upload",
			Err:     ErrDuplicateUpload,
		}
	}
	return nil
}

func (p *Pipeline) transcode(ctx context.Context, job *Job) (err error) {
	release, err := p.deps.Slots.Acquire(ctx)
	if err != nil {
		return canceledError(StageTranscoding, err)
	}
	defer release()

	job.OutputDir = filepath.Join(job.StagingDir, "out")
	if err := os.Mkdir(job.OutputDir, 0750); err != nil {
		return persistenceError(StageTranscoding, "creating output directory", err)
	}

	defer observability.TimedOperationWithError(ctx, observability.LoggerFromContext(ctx), "transcode", &err)()

	start := time.Now()
	art, err := p.deps.Transcoder.Transcode(ctx, job.SourcePath, job.OutputDir)
	if err != nil {
		if ctx.Err() != nil {
			return canceledError(StageTranscoding, ctx.Err())
		}
		e := &Error{Kind: KindTranscode, Stage: StageTranscoding, Message: "transcoding failed", Err: err}
		var terr *transcoder.Error
		if errors.As(err, &terr) {
			e.Stderr = terr.Stderr
			if terr.Step == transcoder.StepThumbnail {
				e.Stage = StageThumbnailExtraction
				e.Message = "thumbnail extraction failed"
			}
		}
		return e
	}
	p.metrics.ObserveTranscode(time.Since(start))

	job.VideoPath = art.VideoPath
	job.ThumbnailPath = art.ThumbnailPath
	job.Duration = art.Duration
	return nil
}

func (p *Pipeline) persistBlobs(ctx context.Context, job *Job) error {
	channel, vid := job.ChannelID.String(), job.VideoID.String()

	uploads := []struct {
		key, path, contentType string
	}{
		{storage.VideoKey(channel, vid), job.VideoPath, "video/mp4"},
		{storage.ThumbnailKey(channel, vid), job.ThumbnailPath, "image/jpeg"},
	}
	for _, u := range uploads {
		// Recorded first: a failed Put may still leave an object behind.
		job.BlobKeys = append(job.BlobKeys, u.key)
		if err := putFile(ctx, p.deps.Blobs, u.key, u.path, u.contentType); err != nil {
			if ctx.Err() != nil {
				return canceledError(StagePersisting, ctx.Err())
			}
			return persistenceError(StagePersisting, "storing "+u.key, err)
		}
	}
	return nil
}

func putFile(ctx context.Context, blobs storage.BlobStore, key, path, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}
	return blobs.Put(ctx, key, f, info.Size(), contentType)
}

// commit inserts the record and links it into the channel. ctx is never canceled.
func (p *Pipeline) commit(ctx context.Context, logger *slog.Logger, job *Job, meta Metadata) (*models.Video, error) {
	video := &models.Video{
		BaseModel:       models.BaseModel{ID: job.VideoID},
		Title:           strings.TrimSpace(meta.Title),
		Description:     meta.Description,
		ChannelID:       job.ChannelID,
		VideoKey:        job.BlobKeys[0],
		ThumbnailKey:    job.BlobKeys[1],
		DurationSeconds: job.Duration.Seconds(),
		SizeBytes:       job.Size,
		ContentHash:     job.ContentHash,
	}
	video.SetTags(meta.Tags)

	if err := p.deps.Videos.Create(ctx, video); err != nil {
		return nil, persistenceError(StagePersisting, "recording video", err)
	}

	if err := p.appendWithRetry(ctx, logger, job); err != nil {
		logger.ErrorContext(ctx, "video recorded but not listed in channel",
			slog.String("video_id", video.ID.String()),
			slog.Int("attempts", p.cfg.AppendRetries+1),
			slog.String("error", err.Error()),
		)
		return nil, &Error{
			Kind:    KindPartialCommit,
			Stage:   StagePersisting,
			VideoID: video.ID.String(),
			Message: "video recorded but not added to the channel",
			Err:     err,
		}
	}
	return video, nil
}

// appendWithRetry tries AppendRetries+1 times with linear backoff.
func (p *Pipeline) appendWithRetry(ctx context.Context, logger *slog.Logger, job *Job) error {
	var err error
	for attempt := 0; attempt <= p.cfg.AppendRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * p.cfg.AppendBackoff)
		}
		if err = p.deps.Channels.AppendVideo(ctx, job.ChannelID, job.VideoID); err == nil {
			return nil
		}
		logger.WarnContext(ctx, "channel append failed",
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}
	return err
}

// deleteBlobs removes written blobs in parallel. Failures are logged only;
// the orphaned keys are named in the log.
func (p *Pipeline) deleteBlobs(ctx context.Context, logger *slog.Logger, keys []string) {
	var g errgroup.Group
	for _, key := range keys {
		g.Go(func() error {
			if err := p.deps.Blobs.Delete(ctx, key); err != nil {
				logger.ErrorContext(ctx, "failed to delete blob during rollback",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
				return err
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Pipeline) invalidate(ctx context.Context) {
	if p.invalidator != nil {
		p.invalidator.Invalidate(ctx)
	}
}
