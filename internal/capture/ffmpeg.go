package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"
)

const bytesPerPixel = 4

// FFmpegSource pipes raw RGBA frames out of an ffmpeg process and keeps the latest one.
type FFmpegSource struct {
	input     string
	inputArgs ffmpeg.KwArgs
	device    string // checked for access before ffmpeg starts
	width     int
	height    int
	fps       int
	logger    *zap.Logger

	mu         sync.Mutex
	cancel     context.CancelFunc
	reader     *io.PipeReader
	workers    sync.WaitGroup
	firstFrame chan struct{}
	exited     chan struct{}
	closed     bool

	latest  atomic.Pointer[image.RGBA]
	runErr  atomic.Value
	gotOnce sync.Once
}

// NewWebcamSource captures from a local camera device (/dev/videoN on Linux, a dshow name on Windows).
func NewWebcamSource(device string, width, height, fps int, logger *zap.Logger) *FFmpegSource {
	input, args := webcamInput(runtime.GOOS, device)
	src := newFFmpegSource(input, args, width, height, fps, logger)
	if runtime.GOOS == "linux" {
		src.device = device
	}
	return src
}

// NewVideoFileSource replays a local video file in real time, looping forever.
func NewVideoFileSource(path string, width, height, fps int, logger *zap.Logger) *FFmpegSource {
	src := newFFmpegSource(path, ffmpeg.KwArgs{"re": "", "stream_loop": -1}, width, height, fps, logger)
	src.device = path
	return src
}

func newFFmpegSource(input string, args ffmpeg.KwArgs, width, height, fps int, logger *zap.Logger) *FFmpegSource {
	return &FFmpegSource{
		input:      input,
		inputArgs:  args,
		width:      width,
		height:     height,
		fps:        fps,
		logger:     logger,
		firstFrame: make(chan struct{}),
		exited:     make(chan struct{}),
	}
}

func webcamInput(goos, device string) (string, ffmpeg.KwArgs) {
	switch goos {
	case "windows":
		return "video=" + device, ffmpeg.KwArgs{"f": "dshow"}
	case "darwin":
		return device, ffmpeg.KwArgs{"f": "avfoundation"}
	default:
		return device, ffmpeg.KwArgs{"f": "v4l2"}
	}
}

func (s *FFmpegSource) outputArgs() ffmpeg.KwArgs {
	return ffmpeg.KwArgs{
		"format":  "rawvideo",
		"pix_fmt": "rgba",
		"vf":      fmt.Sprintf("fps=%d,scale=%d:%d", s.fps, s.width, s.height),
	}
}

// Open starts ffmpeg and blocks until the first frame arrives, the process fails, or ctx ends.
func (s *FFmpegSource) Open(ctx context.Context) error {
	if err := checkAccess(s.device); err != nil {
		return err
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: source closed", ErrFrameUnavailable)
	}
	if s.cancel != nil {
		s.mu.Unlock()
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	s.cancel = cancel
	s.reader = pr
	s.mu.Unlock()

	var stderr bytes.Buffer
	stream := ffmpeg.Input(s.input, s.inputArgs).
		Output("pipe:", s.outputArgs()).
		WithOutput(pw).
		WithErrorOutput(&stderr)
	stream.Context = runCtx

	s.workers.Add(2)
	go func() {
		defer s.workers.Done()
		defer close(s.exited)
		err := stream.Run()
		if err != nil && runCtx.Err() == nil {
			s.runErr.Store(classifyFFmpegError(err, stderr.String()))
			s.logger.Warn("ffmpeg exited", zap.String("input", s.input), zap.Error(err))
		}
		pw.CloseWithError(io.EOF)
	}()
	go s.readFrames(pr)

	select {
	case <-s.firstFrame:
		s.logger.Info("Frame source opened", zap.String("input", s.input))
		return nil
	case <-s.exited:
		select {
		case <-s.firstFrame:
			return nil
		default:
		}
		err := s.err()
		if err == nil {
			err = fmt.Errorf("%w: ffmpeg produced no frames", ErrFrameUnavailable)
		}
		_ = s.Close()
		return err
	case <-ctx.Done():
		_ = s.Close()
		return fmt.Errorf("%w: waiting for first frame: %v", ErrFrameUnavailable, ctx.Err())
	}
}

func (s *FFmpegSource) readFrames(r io.Reader) {
	defer s.workers.Done()

	frameSize := s.width * s.height * bytesPerPixel
	buffer := make([]byte, frameSize)

	for {
		if _, err := io.ReadFull(r, buffer); err != nil {
			return
		}

		pixels := make([]byte, frameSize)
		copy(pixels, buffer)

		s.latest.Store(&image.RGBA{
			Pix:    pixels,
			Stride: s.width * bytesPerPixel,
			Rect:   image.Rect(0, 0, s.width, s.height),
		})
		s.gotOnce.Do(func() { close(s.firstFrame) })
	}
}

// Capture returns the most recent frame. Frames are never mutated after capture.
func (s *FFmpegSource) Capture(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("%w: source closed", ErrFrameUnavailable)
	}

	select {
	case <-s.exited:
		if err := s.err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: ffmpeg exited", ErrFrameUnavailable)
	default:
	}

	frame := s.latest.Load()
	if frame == nil {
		return nil, ErrFrameUnavailable
	}
	return frame, nil
}

// Close stops ffmpeg and waits for the reader goroutines. Safe to call more than once.
func (s *FFmpegSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel, reader := s.cancel, s.reader
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if reader != nil {
		_ = reader.Close()
	}
	s.workers.Wait()
	s.latest.Store(nil)
	s.logger.Info("Frame source released", zap.String("input", s.input))
	return nil
}

func (s *FFmpegSource) err() error {
	if v := s.runErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func checkAccess(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f.Close()
}

func classifyFFmpegError(err error, stderr string) error {
	if strings.Contains(stderr, "Permission denied") {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, lastLine(stderr))
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && stderr != "" {
		return fmt.Errorf("ffmpeg failed: %s: %w", lastLine(stderr), err)
	}
	return fmt.Errorf("ffmpeg failed: %w", err)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// ListCameras returns the capture devices ffmpeg can open on this host.
func ListCameras() ([]string, error) {
	if runtime.GOOS == "windows" {
		return listDshowCameras()
	}

	devices, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, err
	}
	return devices, nil
}

var dshowDeviceRe = regexp.MustCompile(`"([^"]+)"\s+\(video\)`)

func listDshowCameras() ([]string, error) {
	cmd := exec.Command("ffmpeg", "-hide_banner", "-list_devices", "true", "-f", "dshow", "-i", "dummy")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// ffmpeg always exits non-zero here; the device list is on stderr
	_ = cmd.Run()
	return parseDshowDevices(stderr.String()), nil
}

func parseDshowDevices(output string) []string {
	var cameras []string
	seen := make(map[string]bool)
	for _, m := range dshowDeviceRe.FindAllStringSubmatch(output, -1) {
		name := m[1]
		if name != "dummy" && !seen[name] {
			cameras = append(cameras, name)
			seen[name] = true
		}
	}
	return cameras
}
