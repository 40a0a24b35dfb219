// Package ingest turns an uploaded video into a committed catalog record:
// stage, transcode, persist blobs, record, and roll back on failure.
package ingest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sanketb-14/Streamline-sub000/internal/models"
)

// Stage is the lifecycle position of an upload job.
type Stage string

const (
	StageValidating          Stage = "Validating"
	StageStaged              Stage = "Staged"
	StageTranscoding         Stage = "Transcoding"
	StageThumbnailExtraction Stage = "ThumbnailExtraction"
	StagePersisting          Stage = "Persisting"
	StageCommitted           Stage = "Committed"
	StageFailed              Stage = "Failed"
)

// StagingPrefix starts the name of every staging directory.
const StagingPrefix = "streamline-upload-"

// Job is the ephemeral state of one upload.
type Job struct {
	ID         models.ULID
	UploaderID string
	ChannelID  models.ULID
	// VideoID is minted up front so blob keys are known before the record exists.
	VideoID models.ULID

	StagingDir  string
	SourcePath  string
	OutputDir   string
	ContentHash string
	Size        int64

	VideoPath     string
	ThumbnailPath string
	Duration      time.Duration

	Stage    Stage
	BlobKeys []string
	Err      error
}

func newJob(uploaderID string, channelID models.ULID) *Job {
	return &Job{
		ID:         models.NewULID(),
		UploaderID: uploaderID,
		ChannelID:  channelID,
		VideoID:    models.NewULID(),
		Stage:      StageValidating,
	}
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

const maxUploaderNameLen = 64

// stagingDirName builds streamline-upload-<uploader>-<unixmilli>-<ulid>.
// The job ULID keeps names unique within one millisecond.
func stagingDirName(uploaderID string, now time.Time, jobID models.ULID) string {
	uploader := unsafeNameChars.ReplaceAllString(uploaderID, "_")
	if len(uploader) > maxUploaderNameLen {
		uploader = uploader[:maxUploaderNameLen]
	}
	if uploader == "" {
		uploader = "anonymous"
	}
	return fmt.Sprintf("%s%s-%d-%s", StagingPrefix, uploader, now.UnixMilli(), jobID)
}

var safeExt = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// sourceFileName keeps a short alphanumeric extension from the client's file name.
func sourceFileName(clientName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(clientName)))
	if !safeExt.MatchString(ext) {
		ext = ""
	}
	return "source" + ext
}
