package encoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const defaultThumbnailTimeout = 2 * time.Minute

// ThumbnailExtractor captures a representative still frame from a video
// file using ffprobe (duration) and ffmpeg (frame grab).
type ThumbnailExtractor struct {
	FFmpegPath  string
	FFprobePath string
	Timeout     time.Duration
}

// NewThumbnailExtractor creates a ThumbnailExtractor with defaults filled in.
func NewThumbnailExtractor(ffmpegPath, ffprobePath string, timeout time.Duration) *ThumbnailExtractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if timeout <= 0 {
		timeout = defaultThumbnailTimeout
	}
	return &ThumbnailExtractor{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath, Timeout: timeout}
}

// Extract writes a single jpeg frame from inputPath to outputPath. The
// frame is taken at min(2s, 10% of duration); when the duration probe
// fails the offset falls back to the start of the video.
func (e *ThumbnailExtractor) Extract(ctx context.Context, inputPath, outputPath string) error {
	captureAt := 0.0
	duration, err := e.probeDuration(ctx, inputPath)
	if err != nil {
		log.Printf("WARN: Duration probe failed for %s, capturing first frame: %v", inputPath, err)
	} else {
		captureAt = duration * 0.1
		if captureAt > 2.0 {
			captureAt = 2.0
		}
	}

	args := []string{
		"-y",
		"-ss", strconv.FormatFloat(captureAt, 'f', -1, 64),
		"-i", inputPath,
		"-frames:v", "1",
		"-q:v", "2",
		"-vf", "scale=iw:-1",
		outputPath,
	}

	cmd := exec.Command(e.FFmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &EncodeError{Err: err}
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return &EncodeError{Err: err}
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			log.Printf("INFO: ffmpeg[thumbnail]: %s", scanner.Text())
		}
	}()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timeout := time.NewTimer(e.Timeout)
	defer timeout.Stop()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		<-drained
		return &EncodeError{Err: ctx.Err()}
	case <-timeout.C:
		_ = cmd.Process.Kill()
		<-done
		<-drained
		return &EncodeError{Timeout: true}
	case err := <-done:
		<-drained
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return &EncodeError{ExitCode: exitErr.ExitCode()}
			}
			return &EncodeError{Err: err}
		}
	}
	return nil
}

func (e *ThumbnailExtractor) probeDuration(ctx context.Context, inputPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, err
	}
	text := strings.TrimSpace(string(out))
	if text == "" {
		return 0, fmt.Errorf("ffprobe returned empty duration")
	}
	return strconv.ParseFloat(text, 64)
}
