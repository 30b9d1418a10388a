package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"barcodescan/internal/domain"
	"barcodescan/internal/logger"
	"barcodescan/internal/ports"
)

type frameSource interface {
	NextFrame(ctx context.Context) (ports.Frame, error)
}

type decodeLoopConfig struct {
	formats       domain.FormatSet
	ready         <-chan struct{}
	errorBackoff  time.Duration
	rotation      func() domain.Rotation
	// offer hands a detection to the arbiter. The loop exits after any offer.
	offer         func(domain.Detection) bool
	onFrameError  func(error)
	// onSourceEnded is called when the camera stops producing frames before stop was called.
	onSourceEnded func(error)
}

// frameDecodeLoop pulls the latest frame and decodes it, one decode at a time.
type frameDecodeLoop struct {
	source  frameSource
	decoder ports.Decoder
	cfg     decodeLoopConfig

	ctx      context.Context
	cancel   context.CancelFunc
	stopped  atomic.Bool
	stopOnce sync.Once
	done     chan struct{}

	frames atomic.Uint64
}

func newFrameDecodeLoop(source frameSource, decoder ports.Decoder, cfg decodeLoopConfig) *frameDecodeLoop {
	if cfg.errorBackoff <= 0 {
		cfg.errorBackoff = 50 * time.Millisecond
	}
	if cfg.onFrameError == nil {
		cfg.onFrameError = func(error) {}
	}
	if cfg.onSourceEnded == nil {
		cfg.onSourceEnded = func(error) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &frameDecodeLoop{
		source:  source,
		decoder: decoder,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

func (l *frameDecodeLoop) start() {
	go l.run()
}

func (l *frameDecodeLoop) run() {
	defer close(l.done)
	defer l.cancel()

	if !l.awaitReady() {
		return
	}

	for !l.stopped.Load() {
		frame, err := l.source.NextFrame(l.ctx)
		if err != nil {
			if l.stopped.Load() {
				return
			}
			if isSourceClosed(err) {
				l.cfg.onSourceEnded(err)
				return
			}
			l.cfg.onFrameError(err)
			if !l.pause(l.cfg.errorBackoff) {
				return
			}
			continue
		}
		l.frames.Add(1)

		if l.cfg.rotation != nil {
			frame.Rotation = l.cfg.rotation()
		}

		detection, found, err := l.decoder.TryDecode(l.ctx, frame, l.cfg.formats)
		if l.stopped.Load() {
			return
		}
		if err != nil {
			logger.Log.Debug("decode failed, treating as miss",
				slog.String("component", "decode_loop"),
				slog.Uint64("seq", frame.Seq),
				slog.String("error", err.Error()))
			continue
		}
		if !found {
			continue
		}
		if !l.cfg.formats.Allows(detection.Format) {
			logger.Log.Debug("discarding detection of unrequested format",
				slog.String("component", "decode_loop"),
				slog.String("format", string(detection.Format)))
			continue
		}

		l.cfg.offer(detection)
		return
	}
}

func (l *frameDecodeLoop) awaitReady() bool {
	if l.cfg.ready == nil {
		return true
	}
	select {
	case <-l.cfg.ready:
		return !l.stopped.Load()
	case <-l.ctx.Done():
		return false
	}
}

func (l *frameDecodeLoop) pause(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return !l.stopped.Load()
	case <-l.ctx.Done():
		return false
	}
}

// stop prevents further frame pulls and candidate offers. It does not wait.
func (l *frameDecodeLoop) stop() {
	if l == nil {
		return
	}
	l.stopOnce.Do(func() {
		l.stopped.Store(true)
		l.cancel()
	})
}

// wait blocks until the loop goroutine has exited.
func (l *frameDecodeLoop) wait() {
	if l == nil {
		return
	}
	<-l.done
}

func (l *frameDecodeLoop) framesPulled() uint64 {
	return l.frames.Load()
}

func isSourceClosed(err error) bool {
	return errors.Is(err, ports.ErrCameraClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, context.Canceled)
}
