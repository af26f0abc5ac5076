package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	_ "image/png"

	"media-cache/internal/logging"
	"media-cache/internal/metrics"

	"github.com/disintegration/imaging"
)

// ErrExtractionFailed is returned for every failure to turn a video into a
// still frame.
var ErrExtractionFailed = errors.New("thumbnail extraction failed")

// endMargin keeps a clamped seek inside the last frame; ffmpeg produces no
// output when seeking exactly to the end of the stream.
const endMargin = 0.1

var log = logging.For("thumbnail")

// Options controls frame capture.
type Options struct {
	AtSeconds float64
	Width     int
	Height    int
	Quality   int
}

// DefaultOptions captures the frame at 1s onto a 300x300 canvas at JPEG quality 80.
func DefaultOptions() Options {
	return Options{AtSeconds: 1, Width: 300, Height: 300, Quality: 80}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.AtSeconds < 0 {
		o.AtSeconds = 0
	}
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = d.Quality
	}
	return o
}

// Config configures an Extractor.
type Config struct {
	// TempDir holds the short-lived copy of each video; "" uses os.TempDir.
	TempDir     string
	FFmpegPath  string
	FFprobePath string
	// UseVips renders frames through libvips when it has been initialized.
	UseVips bool
}

// Extractor converts video payloads to still JPEG frames using ffmpeg.
type Extractor struct {
	tempDir string
	ffmpeg  string
	ffprobe string
	useVips bool
}

// New creates an Extractor.
func New(cfg Config) *Extractor {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	return &Extractor{
		tempDir: cfg.TempDir,
		ffmpeg:  cfg.FFmpegPath,
		ffprobe: cfg.FFprobePath,
		useVips: cfg.UseVips,
	}
}

// CheckTools reports whether ffmpeg and ffprobe can be found.
func (e *Extractor) CheckTools() error {
	for _, tool := range []string{e.ffmpeg, e.ffprobe} {
		if _, err := exec.LookPath(tool); err != nil {
			return fmt.Errorf("%s not found: %w", tool, err)
		}
	}
	return nil
}

// ExtractFrame captures one frame of video at opts.AtSeconds (clamped to the
// video's duration) and returns it as JPEG bytes sized opts.Width x
// opts.Height. The temporary copy of the video is removed on every path.
// ctx bounds the whole operation.
func (e *Extractor) ExtractFrame(ctx context.Context, video []byte, opts Options) (frame []byte, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.ThumbnailExtractionsTotal.WithLabelValues(status).Inc()
		metrics.ThumbnailExtractionDuration.Observe(time.Since(start).Seconds())
	}()

	opts = opts.withDefaults()

	if len(video) == 0 {
		return nil, fmt.Errorf("%w: empty video payload", ErrExtractionFailed)
	}

	path, release, err := e.stage(video)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	defer release()

	duration, err := e.probeDuration(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata unavailable: %w", ErrExtractionFailed, err)
	}

	seek := clampSeek(opts.AtSeconds, duration)
	log.Debug("Extracting frame at %.2fs (requested %.2fs, duration %.2fs)", seek, opts.AtSeconds, duration)

	raw, err := e.grabFrame(ctx, path, seek)
	if err != nil && seek > 0 && ctx.Err() == nil {
		log.Debug("Frame grab at %.2fs failed: %v, retrying from start", seek, err)
		raw, err = e.grabFrame(ctx, path, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: seek failed: %w", ErrExtractionFailed, err)
	}

	frame, err = e.render(raw, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	if len(frame) == 0 {
		return nil, fmt.Errorf("%w: encoder produced no data", ErrExtractionFailed)
	}

	log.Debug("Extracted %dx%d frame (%d bytes) in %v", opts.Width, opts.Height, len(frame), time.Since(start))
	return frame, nil
}

// stage writes the payload to a temp file and returns a release func that
// removes it.
func (e *Extractor) stage(video []byte) (string, func(), error) {
	f, err := os.CreateTemp(e.tempDir, "media-cache-*.video")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()
	release := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove temp video %s: %v", path, err)
		}
	}

	if _, err := f.Write(video); err != nil {
		_ = f.Close()
		release()
		return "", nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		release()
		return "", nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	return path, release, nil
}

func (e *Extractor) probeDuration(ctx context.Context, path string) (float64, error) {
	start := time.Now()
	defer func() {
		metrics.ThumbnailFFmpegDuration.WithLabelValues("ffprobe").Observe(time.Since(start).Seconds())
	}()

	cmd := exec.CommandContext(ctx, e.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %v, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" || out == "N/A" {
		// Streams without a container duration can still be decoded
		return 0, nil
	}
	duration, err := strconv.ParseFloat(out, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable duration %q: %w", out, err)
	}
	return duration, nil
}

func (e *Extractor) grabFrame(ctx context.Context, path string, seek float64) ([]byte, error) {
	start := time.Now()
	defer func() {
		metrics.ThumbnailFFmpegDuration.WithLabelValues("ffmpeg").Observe(time.Since(start).Seconds())
	}()

	cmd := exec.CommandContext(ctx, e.ffmpeg,
		"-v", "error",
		"-i", path,
		"-ss", strconv.FormatFloat(seek, 'f', 3, 64),
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame at %.3fs", seek)
	}
	return stdout.Bytes(), nil
}

// render draws the frame onto the fixed-size canvas and encodes it.
func (e *Extractor) render(raw []byte, opts Options) ([]byte, error) {
	if e.useVips && IsVipsAvailable() {
		out, err := renderWithVips(raw, opts.Width, opts.Height, opts.Quality)
		if err == nil {
			return out, nil
		}
		log.Debug("vips render failed, falling back to imaging: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return encodeCanvas(img, opts)
}

func encodeCanvas(img image.Image, opts Options) ([]byte, error) {
	canvas := imaging.Resize(img, opts.Width, opts.Height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// clampSeek keeps the seek position inside the video. Unknown or zero
// durations seek to the start.
func clampSeek(at, duration float64) float64 {
	if at <= 0 || duration <= 0 {
		return 0
	}
	if at < duration-endMargin {
		return at
	}
	if duration <= endMargin {
		return 0
	}
	return duration - endMargin
}
