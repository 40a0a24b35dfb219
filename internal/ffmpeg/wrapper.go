package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// maxStderrLines is how many trailing stderr lines a Command keeps.
const maxStderrLines = 50

// ExitError is returned when ffmpeg exits unsuccessfully.
type ExitError struct {
	Command  string
	ExitCode int // -1 when killed or never started
	Stderr   []string
	Err      error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("ffmpeg failed (exit %d): %v", e.ExitCode, e.Err)
	if tail := e.StderrTail(); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// StderrTail returns the captured stderr lines joined by newlines.
func (e *ExitError) StderrTail() string {
	return strings.Join(e.Stderr, "\n")
}

// Command represents an FFmpeg command to execute.
type Command struct {
	Binary string
	Args   []string
	Input  string
	Output string

	mu      sync.Mutex
	started time.Time
	elapsed time.Duration

	stderrMu    sync.Mutex
	stderrLines []string
}

// CommandBuilder builds FFmpeg commands with a fluent API.
type CommandBuilder struct {
	binary     string
	globalArgs []string
	inputArgs  []string
	input      string
	filterArgs []string
	outputArgs []string
	output     string
	logLevel   string
	overwrite  bool
}

// NewCommandBuilder creates a new FFmpeg command builder.
func NewCommandBuilder(ffmpegPath string) *CommandBuilder {
	return &CommandBuilder{
		binary:   ffmpegPath,
		logLevel: "error",
	}
}

// HideBanner hides the FFmpeg banner.
func (b *CommandBuilder) HideBanner() *CommandBuilder {
	b.globalArgs = append(b.globalArgs, "-hide_banner")
	return b
}

// Overwrite enables output file overwriting.
func (b *CommandBuilder) Overwrite() *CommandBuilder {
	b.overwrite = true
	return b
}

// Input sets the input source.
func (b *CommandBuilder) Input(input string) *CommandBuilder {
	b.input = input
	return b
}

// InputArgs adds arguments placed before -i, such as a seek offset.
func (b *CommandBuilder) InputArgs(args ...string) *CommandBuilder {
	b.inputArgs = append(b.inputArgs, args...)
	return b
}

// SeekInput seeks the input to the given offset in seconds.
func (b *CommandBuilder) SeekInput(seconds int) *CommandBuilder {
	return b.InputArgs("-ss", fmt.Sprintf("%d", seconds))
}

// VideoCodec sets the video codec.
func (b *CommandBuilder) VideoCodec(codec string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c:v", codec)
	return b
}

// VideoProfile sets the H.264 profile and level.
func (b *CommandBuilder) VideoProfile(profile, level string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-profile:v", profile, "-level:v", level)
	return b
}

// VideoPreset sets the encoder preset.
func (b *CommandBuilder) VideoPreset(preset string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-preset", preset)
	return b
}

// VideoBitrate sets the target, peak and buffer sizes for rate control.
func (b *CommandBuilder) VideoBitrate(bitrate, maxrate, bufsize string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-b:v", bitrate)
	if maxrate != "" {
		b.outputArgs = append(b.outputArgs, "-maxrate", maxrate)
	}
	if bufsize != "" {
		b.outputArgs = append(b.outputArgs, "-bufsize", bufsize)
	}
	return b
}

// VideoFilter adds a filter to the -vf chain.
func (b *CommandBuilder) VideoFilter(filter string) *CommandBuilder {
	b.filterArgs = append(b.filterArgs, filter)
	return b
}

// AudioCodec sets the audio codec.
func (b *CommandBuilder) AudioCodec(codec string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c:a", codec)
	return b
}

// AudioBitrate sets the audio bitrate.
func (b *CommandBuilder) AudioBitrate(bitrate string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-b:a", bitrate)
	return b
}

// AudioSampleRate sets the audio sample rate in Hz.
func (b *CommandBuilder) AudioSampleRate(hz int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-ar", fmt.Sprintf("%d", hz))
	return b
}

// FastStart moves the MP4 index to the front of the file.
func (b *CommandBuilder) FastStart() *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-movflags", "+faststart")
	return b
}

// SingleFrame writes exactly one video frame at the given size.
func (b *CommandBuilder) SingleFrame(width, height int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-frames:v", "1", "-s", fmt.Sprintf("%dx%d", width, height))
	return b
}

// OutputArgs adds raw output arguments.
func (b *CommandBuilder) OutputArgs(args ...string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, args...)
	return b
}

// Output sets the output destination.
func (b *CommandBuilder) Output(output string) *CommandBuilder {
	b.output = output
	return b
}

// Build builds the command.
func (b *CommandBuilder) Build() *Command {
	var args []string

	args = append(args, b.globalArgs...)
	args = append(args, "-loglevel", b.logLevel)

	if b.overwrite {
		args = append(args, "-y")
	}

	args = append(args, b.inputArgs...)
	args = append(args, "-i", b.input)

	if len(b.filterArgs) > 0 {
		args = append(args, "-vf", strings.Join(b.filterArgs, ","))
	}

	args = append(args, b.outputArgs...)
	args = append(args, b.output)

	return &Command{
		Binary: b.binary,
		Args:   args,
		Input:  b.input,
		Output: b.output,
	}
}

// String returns the command as a string.
func (c *Command) String() string {
	return c.Binary + " " + strings.Join(c.Args, " ")
}

// Run executes the command and waits for completion. The process is killed
// when ctx is done. A failed run returns an *ExitError with the stderr tail.
func (c *Command) Run(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, c.Binary, c.Args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("getting stderr pipe: %w", err)
	}

	c.mu.Lock()
	c.started = time.Now()
	c.mu.Unlock()

	if err := cmd.Start(); err != nil {
		return &ExitError{Command: c.String(), ExitCode: -1, Err: fmt.Errorf("starting command: %w", err)}
	}

	done := make(chan struct{})
	go c.captureStderr(stderr, done)
	<-done

	waitErr := cmd.Wait()

	c.mu.Lock()
	c.elapsed = time.Since(c.started)
	c.mu.Unlock()

	if waitErr == nil {
		return nil
	}

	exitErr := &ExitError{Command: c.String(), ExitCode: -1, Stderr: c.StderrLines(), Err: waitErr}
	if ctxErr := ctx.Err(); ctxErr != nil {
		exitErr.Err = ctxErr
	}
	var ee *exec.ExitError
	if errors.As(waitErr, &ee) {
		exitErr.ExitCode = ee.ExitCode()
	}
	return exitErr
}

// captureStderr keeps the most recent stderr lines.
func (c *Command) captureStderr(stderr io.Reader, done chan struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		c.stderrMu.Lock()
		if len(c.stderrLines) >= maxStderrLines {
			c.stderrLines = c.stderrLines[1:]
		}
		c.stderrLines = append(c.stderrLines, line)
		c.stderrMu.Unlock()
	}
}

// StderrLines returns the recent stderr lines captured from FFmpeg.
func (c *Command) StderrLines() []string {
	c.stderrMu.Lock()
	defer c.stderrMu.Unlock()

	lines := make([]string, len(c.stderrLines))
	copy(lines, c.stderrLines)
	return lines
}

// Duration returns how long the last run took, or how long it has been running.
func (c *Command) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.started.IsZero():
		return 0
	case c.elapsed > 0:
		return c.elapsed
	default:
		return time.Since(c.started)
	}
}
