// Package ffmpeg provides FFmpeg binary detection and a command wrapper.
package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sanketb-14/Streamline-sub000/internal/util"
)

// Oldest ffmpeg release the transcode profile runs on.
const (
	MinMajorVersion = 4
	MinMinorVersion = 0
)

// BinaryEnvVar overrides the ffmpeg location when no explicit path is configured.
const BinaryEnvVar = "STREAMLINE_FFMPEG_BINARY"

// BinaryInfo contains information about the FFmpeg installation.
type BinaryInfo struct {
	FFmpegPath   string   `json:"ffmpeg_path"`
	Version      string   `json:"version"`
	MajorVersion int      `json:"major_version"`
	MinorVersion int      `json:"minor_version"`
	Encoders     []string `json:"encoders,omitempty"`
}

// BinaryDetector handles detection and caching of the FFmpeg binary.
type BinaryDetector struct {
	explicitPath string

	mu           sync.RWMutex
	info         *BinaryInfo
	lastDetected time.Time
	cacheTTL     time.Duration
}

// NewBinaryDetector creates a detector. explicitPath comes from configuration
// and may be empty to search STREAMLINE_FFMPEG_BINARY and then PATH.
func NewBinaryDetector(explicitPath string) *BinaryDetector {
	return &BinaryDetector{
		explicitPath: explicitPath,
		cacheTTL:     5 * time.Minute,
	}
}

// WithCacheTTL sets the cache TTL for binary detection.
func (d *BinaryDetector) WithCacheTTL(ttl time.Duration) *BinaryDetector {
	d.cacheTTL = ttl
	return d
}

// Path resolves the ffmpeg binary without running it.
func (d *BinaryDetector) Path() (string, error) {
	path, err := util.FindBinary(d.explicitPath, "ffmpeg", BinaryEnvVar)
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found: %w", err)
	}
	return path, nil
}

// Detect detects the FFmpeg binary, its version and encoders.
func (d *BinaryDetector) Detect(ctx context.Context) (*BinaryInfo, error) {
	d.mu.RLock()
	if d.info != nil && time.Since(d.lastDetected) < d.cacheTTL {
		info := d.info
		d.mu.RUnlock()
		return info, nil
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.info != nil && time.Since(d.lastDetected) < d.cacheTTL {
		return d.info, nil
	}

	info, err := d.detect(ctx)
	if err != nil {
		return nil, err
	}

	d.info = info
	d.lastDetected = time.Now()
	return info, nil
}

// Clear clears the cached binary information.
func (d *BinaryDetector) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.info = nil
}

func (d *BinaryDetector) detect(ctx context.Context) (*BinaryInfo, error) {
	path, err := d.Path()
	if err != nil {
		return nil, err
	}

	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return nil, fmt.Errorf("getting ffmpeg version: %w", err)
	}
	full, major, minor, err := parseVersion(string(out))
	if err != nil {
		return nil, err
	}

	info := &BinaryInfo{FFmpegPath: path, Version: full, MajorVersion: major, MinorVersion: minor}

	// Encoder listing is best effort; an old build without -encoders still works.
	if out, err := exec.CommandContext(ctx, path, "-encoders", "-hide_banner").Output(); err == nil {
		info.Encoders = parseEncoders(string(out))
	}

	return info, nil
}

var versionRegex = regexp.MustCompile(`^n?(\d+)\.(\d+)`)

// parseVersion reads "ffmpeg version 6.0 Copyright..." style output.
func parseVersion(output string) (string, int, int, error) {
	for _, line := range strings.Split(output, "\n") {
		if !strings.HasPrefix(line, "ffmpeg version") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 3 {
			break
		}
		var major, minor int
		if m := versionRegex.FindStringSubmatch(parts[2]); len(m) >= 3 {
			major, _ = strconv.Atoi(m[1])
			minor, _ = strconv.Atoi(m[2])
		}
		return parts[2], major, minor, nil
	}
	return "", 0, 0, fmt.Errorf("failed to parse ffmpeg version")
}

// parseEncoders reads the table printed by "ffmpeg -encoders".
// Rows look like " V....D libx264   libx264 H.264 ...".
func parseEncoders(output string) []string {
	var encoders []string
	inList := false
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "------") {
			inList = true
			continue
		}
		if !inList {
			continue
		}
		line = strings.TrimLeft(line, " ")
		if len(line) < 8 || (line[0] != 'V' && line[0] != 'A' && line[0] != 'S') {
			continue
		}
		if parts := strings.Fields(line[6:]); len(parts) > 0 {
			encoders = append(encoders, parts[0])
		}
	}
	return encoders
}

// HasEncoder returns true if the encoder is available.
func (info *BinaryInfo) HasEncoder(name string) bool {
	return slices.Contains(info.Encoders, name)
}

// SupportsMinVersion returns true if the FFmpeg version meets the minimum.
func (info *BinaryInfo) SupportsMinVersion(major, minor int) bool {
	if info.MajorVersion != major {
		return info.MajorVersion > major
	}
	return info.MinorVersion >= minor
}
