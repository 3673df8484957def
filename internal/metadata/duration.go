package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/tcolgate/mp3"
)

// DefaultDurationTimeout bounds how long measuring one file may take
const DefaultDurationTimeout = 2 * time.Second

// assumedBitrate is used for mp3 files without a single decodable frame
const assumedBitrate = 192000

// durationReader measures an open file of size bytes
type durationReader func(ctx context.Context, f *os.File, size int64) (time.Duration, error)

var durationReaders = map[string]durationReader{
	".mp3":  mp3Length,
	".flac": flacLength,
	".wav":  wavLength,
}

// measureDuration returns the playing time of path. Formats without a
// reader report an error and count as unknown.
func measureDuration(ctx context.Context, path string) (time.Duration, error) {
	ext := strings.ToLower(filepath.Ext(path))
	read, ok := durationReaders[ext]
	if !ok {
		return 0, fmt.Errorf("unsupported format for duration: %s", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return read(ctx, f, st.Size())
}

// mp3Length sums the frame durations, checking ctx between batches of frames
func mp3Length(ctx context.Context, f *os.File, size int64) (time.Duration, error) {
	dec := mp3.NewDecoder(f)
	var (
		frame   mp3.Frame
		skipped int
		total   time.Duration
	)
	for n := 0; ; n++ {
		if n%256 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		err := dec.Decode(&frame, &skipped)
		switch {
		case err == nil:
			total += frame.Duration()
		case n == 0 && !errors.Is(err, io.EOF):
			return time.Duration(float64(size*8) / assumedBitrate * float64(time.Second)), nil
		default:
			return total, nil
		}
	}
}

// flacLength reads the sample count from STREAMINFO
func flacLength(_ context.Context, f *os.File, _ int64) (time.Duration, error) {
	stream, err := flac.New(f)
	if err != nil {
		return 0, err
	}
	info := stream.Info
	if info.SampleRate == 0 || info.NSamples == 0 {
		return 0, errors.New("flac stream has no sample count")
	}
	return time.Duration(info.NSamples) * time.Second / time.Duration(info.SampleRate), nil
}

// wavLength divides the data chunk size by the byte rate of the format
func wavLength(_ context.Context, f *os.File, _ int64) (time.Duration, error) {
	dec := wav.NewDecoder(f)
	if err := dec.FwdToPCM(); err != nil {
		return 0, err
	}
	byteRate := int64(dec.SampleRate) * int64(dec.NumChans) * int64(dec.BitDepth) / 8
	if byteRate <= 0 {
		return 0, errors.New("invalid wav header")
	}
	return time.Duration(dec.PCMLen()) * time.Second / time.Duration(byteRate), nil
}
