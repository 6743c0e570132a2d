// Package convert encodes captured speech as FLAC, the format the recogniser
// accepts.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
	"github.com/orcaman/writerseeker"
)

const blockSize = 4096

var ErrNoConverter = errors.New("FLAC conversion utility not available - consider installing the FLAC command line application")

// EncodeFLAC encodes mono 16-bit pcm as a FLAC stream.
func EncodeFLAC(pcm []int16, sampleRate int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, errors.New("no samples to encode")
	}

	info := &meta.StreamInfo{
		BlockSizeMin:  16,
		BlockSizeMax:  blockSize,
		SampleRate:    uint32(sampleRate),
		NChannels:     1,
		BitsPerSample: 16,
		NSamples:      uint64(len(pcm)),
	}

	// a seekable target lets the encoder patch the stream info on close
	file := &writerseeker.WriterSeeker{}
	enc, err := flac.NewEncoder(file, info)
	if err != nil {
		return nil, fmt.Errorf("creating FLAC encoder: %w", err)
	}

	samples := make([]int32, len(pcm))
	for i, s := range pcm {
		samples[i] = int32(s)
	}

	for i, num := 0, uint64(0); i < len(samples); i, num = i+blockSize, num+1 {
		end := min(i+blockSize, len(samples))
		f := &frame.Frame{
			Header: frame.Header{
				HasFixedBlockSize: true,
				BlockSize:         uint16(end - i),
				SampleRate:        uint32(sampleRate),
				Channels:          frame.ChannelsMono,
				BitsPerSample:     16,
				Num:               num,
			},
			Subframes: []*frame.Subframe{{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   samples[i:end],
				NSamples:  end - i,
			}},
		}
		if err := enc.WriteFrame(f); err != nil {
			return nil, fmt.Errorf("writing FLAC frame: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing FLAC encoder: %w", err)
	}
	return io.ReadAll(file.Reader())
}

// EncodeFLACExecutable pipes a WAV file through the flac command line tool.
func EncodeFLACExecutable(ctx context.Context, wavData []byte) ([]byte, error) {
	flacConverter, err := getExecutableFLAC()
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, flacConverter, "--stdout", "--totally-silent", "--best", "-")
	cmd.Stdin = bytes.NewReader(wavData)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("failed to run FLAC converter: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return out.Bytes(), nil
}

func getExecutableFLAC() (string, error) {
	if path, err := exec.LookPath("flac"); err == nil {
		return path, nil
	}

	// fall back to a binary shipped next to the executable
	basePath, err := filepath.Abs(filepath.Dir(os.Args[0]))
	if err != nil {
		return "", err
	}
	system, machine := runtime.GOOS, runtime.GOARCH
	if system != "darwin" || (machine != "amd64" && machine != "arm64") {
		return "", ErrNoConverter
	}
	flacConverter := filepath.Join(basePath, "flac-mac")
	if err := ensureExecutable(flacConverter); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoConverter, err)
	}
	return flacConverter, nil
}

// ensureExecutable ensures that the file at the given path is executable.
func ensureExecutable(path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	return os.Chmod(path, 0755)
}
