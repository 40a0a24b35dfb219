package transcoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sanketb-14/Streamline-sub000/internal/config"
	"github.com/sanketb-14/Streamline-sub000/internal/ffmpeg"
	"github.com/sanketb-14/Streamline-sub000/internal/observability"
)

// FFmpeg is a Transcoder backed by the ffmpeg CLI.
type FFmpeg struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an FFmpeg transcoder.
type Option func(*FFmpeg)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *FFmpeg) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFFmpeg resolves the ffmpeg binary from cfg and returns a transcoder.
func NewFFmpeg(cfg config.TranscoderConfig, opts ...Option) (*FFmpeg, error) {
	path, err := ffmpeg.NewBinaryDetector(cfg.FFmpegPath).Path()
	if err != nil {
		return nil, err
	}

	f := &FFmpeg{
		binary:  path,
		timeout: cfg.Timeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = observability.WithComponent(f.logger, "transcoder")
	return f, nil
}

// Binary returns the resolved ffmpeg path.
func (f *FFmpeg) Binary() string {
	return f.binary
}

// Transcode runs normalize then thumbnail extraction and verifies both outputs.
func (f *FFmpeg) Transcode(ctx context.Context, inputPath, outputDir string) (*Artifacts, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	art := &Artifacts{
		VideoPath:     filepath.Join(outputDir, VideoFileName),
		ThumbnailPath: filepath.Join(outputDir, ThumbnailFileName),
	}

	ok := false
	defer func() {
		if !ok {
			os.Remove(art.VideoPath)
			os.Remove(art.ThumbnailPath)
		}
	}()

	if err := f.run(ctx, StepNormalize, normalizeCommand(f.binary, inputPath, art.VideoPath)); err != nil {
		return nil, err
	}
	if err := f.run(ctx, StepThumbnail, thumbnailCommand(f.binary, inputPath, art.ThumbnailPath)); err != nil {
		return nil, err
	}

	duration, err := inspectMP4(art.VideoPath)
	if err != nil {
		return nil, &Error{Step: StepVerify, Err: fmt.Errorf("normalized video: %w", err)}
	}
	if err := checkThumbnail(art.ThumbnailPath, Profile.ThumbnailWidth, Profile.ThumbnailHeight); err != nil {
		return nil, &Error{Step: StepVerify, Err: err}
	}
	art.Duration = duration

	ok = true
	return art, nil
}

func (f *FFmpeg) run(ctx context.Context, step Step, cmd *ffmpeg.Command) error {
	f.logger.DebugContext(ctx, "running ffmpeg", slog.String("step", string(step)), slog.String("command", cmd.String()))

	err := cmd.Run(ctx)
	if err == nil {
		f.logger.DebugContext(ctx, "ffmpeg finished",
			slog.String("step", string(step)),
			slog.Duration("duration", cmd.Duration()),
		)
		return nil
	}

	terr := &Error{Step: step, Err: err}
	var exitErr *ffmpeg.ExitError
	if errors.As(err, &exitErr) {
		terr.Stderr = exitErr.StderrTail()
	}
	f.logger.WarnContext(ctx, "ffmpeg failed",
		slog.String("step", string(step)),
		slog.String("error", err.Error()),
	)
	return terr
}

func normalizeCommand(binary, input, output string) *ffmpeg.Command {
	p := Profile
	return ffmpeg.NewCommandBuilder(binary).
		HideBanner().
		Overwrite().
		Input(input).
		VideoCodec(p.VideoCodec).
		VideoProfile(p.VideoProfile, p.VideoLevel).
		VideoPreset(p.Preset).
		VideoBitrate(p.VideoBitrate, p.MaxRate, p.BufSize).
		VideoFilter(p.ScaleFilter).
		OutputArgs("-pix_fmt", p.PixelFormat).
		AudioCodec(p.AudioCodec).
		AudioBitrate(p.AudioBitrate).
		AudioSampleRate(p.AudioSampleRate).
		FastStart().
		Output(output).
		Build()
}

func thumbnailCommand(binary, input, output string) *ffmpeg.Command {
	p := Profile
	return ffmpeg.NewCommandBuilder(binary).
		HideBanner().
		Overwrite().
		SeekInput(p.ThumbnailOffsetSeconds).
		Input(input).
		SingleFrame(p.ThumbnailWidth, p.ThumbnailHeight).
		Output(output).
		Build()
}

var _ Transcoder = (*FFmpeg)(nil)
