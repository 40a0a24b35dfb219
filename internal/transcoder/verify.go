package transcoder

import (
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	// Thumbnail decoders.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/abema/go-mp4"
)

var (
	errNotFastStart = errors.New("moov box does not precede mdat")
	errNoMovieBox   = errors.New("no moov/mvhd box")
)

// inspectMP4 checks that path is a fast-start MP4 and returns its duration.
func inspectMP4(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	top, err := mp4.ExtractBoxes(f, nil, []mp4.BoxPath{{mp4.BoxTypeMoov()}, {mp4.BoxTypeMdat()}})
	if err != nil {
		return 0, fmt.Errorf("parsing mp4: %w", err)
	}

	var moovAt, mdatAt int64 = -1, -1
	for _, bi := range top {
		switch bi.Type {
		case mp4.BoxTypeMoov():
			if moovAt < 0 {
				moovAt = int64(bi.Offset)
			}
		case mp4.BoxTypeMdat():
			if mdatAt < 0 {
				mdatAt = int64(bi.Offset)
			}
		}
	}
	if moovAt < 0 {
		return 0, errNoMovieBox
	}
	if mdatAt >= 0 && mdatAt < moovAt {
		return 0, errNotFastStart
	}

	boxes, err := mp4.ExtractBoxWithPayload(f, nil, mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeMvhd()})
	if err != nil {
		return 0, fmt.Errorf("reading mvhd: %w", err)
	}
	if len(boxes) == 0 {
		return 0, errNoMovieBox
	}
	mvhd, ok := boxes[0].Payload.(*mp4.Mvhd)
	if !ok {
		return 0, errNoMovieBox
	}

	return mvhdDuration(mvhd), nil
}

func mvhdDuration(mvhd *mp4.Mvhd) time.Duration {
	if mvhd.Timescale == 0 {
		return 0
	}
	units := uint64(mvhd.DurationV0)
	if mvhd.FullBox.Version == 1 {
		units = mvhd.DurationV1
	}
	return time.Duration(float64(units) / float64(mvhd.Timescale) * float64(time.Second))
}

// checkThumbnail decodes the image header and verifies its dimensions.
func checkThumbnail(path string, width, height int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("decoding thumbnail: %w", err)
	}
	if cfg.Width != width || cfg.Height != height {
		return fmt.Errorf("thumbnail is %s %dx%d, want %dx%d", format, cfg.Width, cfg.Height, width, height)
	}
	return nil
}
