// Package transcoder normalizes uploaded videos into web-playable MP4 and
// extracts a poster thumbnail.
package transcoder

import (
	"context"
	"fmt"
	"time"
)

// Artifacts are the files produced by a successful transcode. Both live in
// the output directory handed to Transcode.
type Artifacts struct {
	VideoPath     string
	ThumbnailPath string
	Duration      time.Duration
}

// Transcoder converts a source file into Artifacts under outputDir.
// Implementations must not leave usable partial output on failure.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputDir string) (*Artifacts, error)
}

// Output file names inside the output directory.
const (
	VideoFileName     = "video.mp4"
	ThumbnailFileName = "thumbnail.jpg"
)

// Profile holds the fixed encoding parameters for normalized output.
var Profile = struct {
	VideoCodec      string
	VideoProfile    string
	VideoLevel      string
	Preset          string
	VideoBitrate    string
	MaxRate         string
	BufSize         string
	ScaleFilter     string
	PixelFormat     string
	AudioCodec      string
	AudioBitrate    string
	AudioSampleRate int

	ThumbnailOffsetSeconds int
	ThumbnailWidth         int
	ThumbnailHeight        int
}{
	VideoCodec:      "libx264",
	VideoProfile:    "main",
	VideoLevel:      "3.1",
	Preset:          "veryfast",
	VideoBitrate:    "1000k",
	MaxRate:         "1500k",
	BufSize:         "2000k",
	ScaleFilter:     "scale=-2:720",
	PixelFormat:     "yuv420p",
	AudioCodec:      "aac",
	AudioBitrate:    "128k",
	AudioSampleRate: 44100,

	ThumbnailOffsetSeconds: 2,
	ThumbnailWidth:         320,
	ThumbnailHeight:        180,
}

// RequiredEncoders lists the ffmpeg encoders the profile depends on.
func RequiredEncoders() []string {
	return []string{Profile.VideoCodec, Profile.AudioCodec}
}

// Step names the transcode stage that failed.
type Step string

const (
	StepNormalize Step = "normalize"
	StepThumbnail Step = "thumbnail"
	StepVerify    Step = "verify"
)

// Error reports a failed transcode step. Stderr holds the encoder's trailing
// diagnostic output when there is any.
type Error struct {
	Step   Step
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transcode %s: %v", e.Step, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
