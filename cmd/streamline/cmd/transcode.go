package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sanketb-14/Streamline-sub000/internal/transcoder"
)

var transcodeOutDir string

var transcodeCmd = &cobra.Command{
	Use:   "transcode <input>",
	Short: "Normalize a local video file the way uploads are processed",
	Long: `Run the upload transcode profile against a local file and write the
normalized MP4 and its thumbnail to the output directory. Nothing is stored
in the catalog. Useful for checking that ffmpeg accepts a given source.`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscode,
}

func init() {
	rootCmd.AddCommand(transcodeCmd)

	transcodeCmd.Flags().StringVarP(&transcodeOutDir, "out", "o", ".", "Output directory")
	transcodeCmd.Flags().String("ffmpeg", "", "Path to the ffmpeg binary (default: auto-detect)")
}

func runTranscode(cmd *cobra.Command, args []string) error {
	input := args[0]
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	if err := os.MkdirAll(transcodeOutDir, 0o750); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tc, err := transcoder.NewFFmpeg(appConfig.Transcoder, transcoder.WithLogger(slog.Default()))
	if err != nil {
		return fmt.Errorf("initializing transcoder: %w", err)
	}

	artifacts, err := tc.Transcode(cmd.Context(), input, transcodeOutDir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "video:     %s (%s)\n", artifacts.VideoPath, fileSize(artifacts.VideoPath))
	fmt.Fprintf(out, "thumbnail: %s (%s)\n", artifacts.ThumbnailPath, fileSize(artifacts.ThumbnailPath))
	fmt.Fprintf(out, "duration:  %s\n", artifacts.Duration)
	return nil
}

func fileSize(path string) string {
	info, err := os.Stat(filepath.Clean(path))
	if err != nil {
		return "unknown size"
	}
	return humanize.IBytes(uint64(info.Size()))
}
