package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"barcodescan/internal/logger"
	"barcodescan/internal/ports"
)

// Size is a capture resolution in pixels.
type Size struct {
	Width  int
	Height int
}

// DefaultPresets maps quality presets to capture resolutions.
var DefaultPresets = map[ports.QualityPreset]Size{
	ports.QualityHigh:   {Width: 1280, Height: 720},
	ports.QualityMedium: {Width: 640, Height: 480},
	ports.QualityLow:    {Width: 352, Height: 288},
}

// Options configures FFMPEGCamera.
type Options struct {
	Command      string
	InputFormat  string
	DeviceRoot   string
	FrontDevices []string
	FrameRate    int
	Presets      map[ports.QualityPreset]Size
	// StartupGrace is how long ffmpeg must stay alive before the camera counts as attached.
	StartupGrace time.Duration
}

// FFMPEGCamera captures grayscale frames from V4L2 devices using ffmpeg.
type FFMPEGCamera struct {
	opts Options
}

func NewFFMPEGCamera(opts Options) *FFMPEGCamera {
	if opts.Command == "" {
		opts.Command = "ffmpeg"
	}
	if opts.InputFormat == "" {
		opts.InputFormat = "v4l2"
	}
	if opts.DeviceRoot == "" {
		opts.DeviceRoot = "/sys/class/video4linux"
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = 15
	}
	if len(opts.Presets) == 0 {
		opts.Presets = DefaultPresets
	}
	if opts.StartupGrace <= 0 {
		opts.StartupGrace = 250 * time.Millisecond
	}
	return &FFMPEGCamera{opts: opts}
}

func (c *FFMPEGCamera) Devices(_ context.Context) ([]ports.DeviceDescriptor, error) {
	return listDevices(c.opts.DeviceRoot, c.opts.FrontDevices)
}

func (c *FFMPEGCamera) Open(ctx context.Context, device ports.DeviceDescriptor, quality ports.QualityPreset) (ports.CameraSession, error) {
	size, ok := c.opts.Presets[quality]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ports.ErrUnsupportedQuality, quality)
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", c.opts.InputFormat,
		"-framerate", strconv.Itoa(c.opts.FrameRate),
		"-video_size", fmt.Sprintf("%dx%d", size.Width, size.Height),
		"-i", device.ID,
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"-",
	}

	// ctx bounds startup only. Once attached, the process is stopped through Close.
	cmd := exec.Command(c.opts.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: ffmpeg stdout pipe: %v", ports.ErrOutputAttach, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %v", ports.ErrInputAttach, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("%w: ffmpeg exited before capture started: %v: %s", ports.ErrInputAttach, err, stringsTrimSpaceSafe(stderr.String()))
		}
		return nil, fmt.Errorf("%w: ffmpeg exited before capture started", ports.ErrInputAttach)
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-waitErr
		return nil, fmt.Errorf("%w: %v", ports.ErrInputAttach, ctx.Err())
	case <-time.After(c.opts.StartupGrace):
	}

	geometry := ports.Geometry{
		Width:       size.Width,
		Height:      size.Height,
		PixelFormat: ports.PixelFormatGray8,
	}
	session := &ffmpegSession{
		device:     device.ID,
		geometry:   geometry,
		stdout:     stdout,
		stderr:     &stderr,
		process:    cmd.Process,
		waitErr:    waitErr,
		frames:     make(chan ports.Frame, 1),
		closed:     make(chan struct{}),
		readerDone: make(chan struct{}),
	}
	go session.readFrames()
	return session, nil
}

type ffmpegSession struct {
	device   string
	geometry ports.Geometry

	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	frames chan ports.Frame
	seq    atomic.Uint64
	closed chan struct{}
	// readErr is written once before readerDone is closed.
	readErr    error
	readerDone chan struct{}

	stopOnce sync.Once
	stopErr  error
}

// readFrames keeps only the newest frame. A slow consumer sees the latest image, not a backlog.
func (s *ffmpegSession) readFrames() {
	defer close(s.readerDone)

	frameSize := s.geometry.Width * s.geometry.Height
	for {
		buf := make([]byte, frameSize)
		if _, err := io.ReadFull(s.stdout, buf); err != nil {
			s.readErr = err
			return
		}
		frame := ports.Frame{
			Data:        buf,
			Width:       s.geometry.Width,
			Height:      s.geometry.Height,
			Stride:      s.geometry.Width,
			PixelFormat: ports.PixelFormatGray8,
			Seq:         s.seq.Add(1),
			Timestamp:   time.Now(),
		}
		select {
		case s.frames <- frame:
		default:
			select {
			case <-s.frames:
			default:
			}
			s.frames <- frame
		}
	}
}

func (s *ffmpegSession) NextFrame(ctx context.Context) (ports.Frame, error) {
	select {
	case <-s.closed:
		return ports.Frame{}, ports.ErrCameraClosed
	default:
	}

	select {
	case frame := <-s.frames:
		return frame, nil
	case <-s.closed:
		return ports.Frame{}, ports.ErrCameraClosed
	case <-ctx.Done():
		return ports.Frame{}, ctx.Err()
	case <-s.readerDone:
		select {
		case frame := <-s.frames:
			return frame, nil
		default:
		}
		if isStreamEnd(s.readErr) {
			return ports.Frame{}, io.EOF
		}
		// The reader is gone for good, so report the stream as ended.
		return ports.Frame{}, fmt.Errorf("%w: read frame from %s: %w", io.EOF, s.device, s.readErr)
	}
}

func (s *ffmpegSession) Geometry() ports.Geometry {
	return s.geometry
}

func (s *ffmpegSession) Close() error {
	return s.Stop()
}

func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		close(s.closed)
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			logger.Log.Warn("ffmpeg did not stop after interrupt, killing",
				slog.String("component", "camera"),
				slog.String("device_id", s.device))
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}
		<-s.readerDone

		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, stringsTrimSpaceSafe(s.stderr.String()))
		}
	})

	return s.stopErr
}

func isStreamEnd(err error) bool {
	return err == nil ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, os.ErrClosed)
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func stringsTrimSpaceSafe(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
