package encoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"clipstream/video-app/internal/domain"
)

// ManifestName is the DASH manifest file ffmpeg writes into the output dir.
const ManifestName = "manifest.mpd"

const defaultTimeout = 20 * time.Minute

// EncodeError reports a failed encoder invocation: the process could not
// be launched, exceeded the wall-clock timeout, or exited non-zero.
type EncodeError struct {
	Timeout  bool
	ExitCode int
	Err      error
}

func (e *EncodeError) Error() string {
	switch {
	case e.Timeout:
		return "encode: timed out and was killed"
	case e.Err != nil:
		return fmt.Sprintf("encode: %v", e.Err)
	default:
		return fmt.Sprintf("encode: ffmpeg exited with code %d", e.ExitCode)
	}
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Runner owns the external ffmpeg process lifecycle for DASH packaging:
// command construction, output draining, timeout enforcement and exit-code
// interpretation.
type Runner struct {
	FFmpegPath      string
	Timeout         time.Duration
	SegmentDuration int

	// UseFilterGraph switches from per-representation mapped flags to a
	// single split/scale filter graph. Both strategies produce the same
	// set of representations.
	UseFilterGraph bool
}

// NewRunner creates a Runner with production defaults filled in.
func NewRunner(ffmpegPath string, timeout time.Duration, segmentDuration int, useFilterGraph bool) *Runner {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if segmentDuration <= 0 {
		segmentDuration = 10
	}
	return &Runner{
		FFmpegPath:      ffmpegPath,
		Timeout:         timeout,
		SegmentDuration: segmentDuration,
		UseFilterGraph:  useFilterGraph,
	}
}

// Run transcodes inputPath into a segmented DASH package under outputDir,
// one representation per quality in the plan plus a single audio stream.
func (r *Runner) Run(ctx context.Context, inputPath, outputDir string, plan []domain.VideoQuality) error {
	if len(plan) == 0 {
		return &EncodeError{Err: fmt.Errorf("empty quality plan")}
	}

	var args []string
	if r.UseFilterGraph {
		args = r.filterGraphArgs(inputPath, outputDir, plan)
	} else {
		args = r.mappedArgs(inputPath, outputDir, plan)
	}

	cmd := exec.Command(r.FFmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &EncodeError{Err: err}
	}
	// Fold stderr into the same pipe so one reader drains everything.
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return &EncodeError{Err: err}
	}

	// Drain continuously while the process runs. Unread output fills the
	// OS pipe buffer and deadlocks ffmpeg, so the reader must not wait
	// for process exit.
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			log.Printf("INFO: ffmpeg: %s", scanner.Text())
		}
	}()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timeout := time.NewTimer(r.Timeout)
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

// mappedArgs maps the decoded video stream once per representation and
// assigns per-stream bitrate/size flags. No filter graph involved.
func (r *Runner) mappedArgs(inputPath, outputDir string, plan []domain.VideoQuality) []string {
	args := []string{"-y", "-i", inputPath}

	for range plan {
		args = append(args, "-map", "0:v:0")
	}

	args = append(args, "-c:v", "libx264", "-preset", "fast", "-profile:v", "main")
	for i, q := range plan {
		args = append(args,
			"-b:v:"+strconv.Itoa(i), q.Bitrate,
			"-s:v:"+strconv.Itoa(i), q.Resolution,
			"-vf:v:"+strconv.Itoa(i), "setsar=1",
		)
	}

	args = append(args, r.gopArgs()...)
	args = append(args, r.audioArgs()...)
	args = append(args, r.dashArgs(outputDir)...)
	return args
}

// filterGraphArgs splits the decoded video into one branch per
// representation and scales each branch to its target resolution.
func (r *Runner) filterGraphArgs(inputPath, outputDir string, plan []domain.VideoQuality) []string {
	var filter strings.Builder
	filter.WriteString("[0:v]split=" + strconv.Itoa(len(plan)))
	for i := range plan {
		fmt.Fprintf(&filter, "[v%d]", i)
	}
	for i, q := range plan {
		fmt.Fprintf(&filter, ";[v%d]scale=%s,setsar=1[v%dout]",
			i, strings.ReplaceAll(q.Resolution, "x", ":"), i)
	}

	args := []string{"-y", "-i", inputPath, "-filter_complex", filter.String()}
	for i, q := range plan {
		args = append(args,
			"-map", fmt.Sprintf("[v%dout]", i),
			"-c:v:"+strconv.Itoa(i), "libx264",
			"-b:v:"+strconv.Itoa(i), q.Bitrate,
		)
	}

	args = append(args, "-profile:v", "main")
	args = append(args, r.gopArgs()...)
	args = append(args, r.audioArgs()...)
	args = append(args, r.dashArgs(outputDir)...)
	return args
}

// Keyframe alignment across representations; segment boundaries must
// coincide or players cannot switch mid-stream.
func (r *Runner) gopArgs() []string {
	return []string{"-g", "48", "-keyint_min", "48", "-sc_threshold", "0"}
}

// Audio is mapped once and encoded independently of video quality.
func (r *Runner) audioArgs() []string {
	return []string{"-map", "0:a?", "-c:a", "aac", "-b:a", "128k"}
}

func (r *Runner) dashArgs(outputDir string) []string {
	return []string{
		"-f", "dash",
		"-seg_duration", strconv.Itoa(r.SegmentDuration),
		"-use_template", "1",
		"-use_timeline", "1",
		"-init_seg_name", "init-$RepresentationID$.m4s",
		"-media_seg_name", "chunk-$RepresentationID$-$Number$.m4s",
		"-adaptation_sets", "id=0,streams=v id=1,streams=a",
		filepath.Join(outputDir, ManifestName),
	}
}
