package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"barcodescan/internal/domain"
	"barcodescan/internal/logger"
	"barcodescan/internal/ports"
)

var (
	ErrSessionStarted  = errors.New("scan session already started")
	ErrOutcomeConsumed = errors.New("scan outcome already consumed")
)

// SessionConfig controls per-session capture behaviour.
type SessionConfig struct {
	Quality           ports.QualityPreset
	FrameErrorBackoff time.Duration
	// AwaitPreviewReady holds the decode loop until MarkReady is called.
	AwaitPreviewReady bool
	// After delays camera acquisition until the channel is closed.
	After <-chan struct{}
}

// ScanSession arbitrates one scan request from camera acquisition to a single outcome.
type ScanSession struct {
	id          string
	device      *captureDevice
	decoder     ports.Decoder
	events      ports.EventSink
	finalizer   sessionFinalizer
	cfg         SessionConfig
	orientation *orientationAdapter
	arbiter     *resultArbiter
	queue       *eventQueue

	ready     chan struct{}
	readyOnce sync.Once

	lifetime     context.Context
	stopLifetime context.CancelFunc
	lanes        sync.WaitGroup

	outcome chan domain.Outcome
	done    chan struct{}

	mu          sync.Mutex
	state       domain.SessionState
	request     domain.ScanRequest
	formats     domain.FormatSet
	preferFront bool
	flips       int
	gen         uint64
	handle      *deviceHandle
	loop        *frameDecodeLoop
	release     []func()
	onDone      []func()
}

func NewScanSession(cameras ports.CameraSystem, decoder ports.Decoder, events ports.EventSink, cfg SessionConfig) *ScanSession {
	id := uuid.NewString()
	lifetime, stop := context.WithCancel(context.Background())
	s := &ScanSession{
		id:           id,
		device:       newCaptureDevice(cameras, cfg.Quality),
		decoder:      decoder,
		events:       events,
		finalizer:    newSessionFinalizer(id),
		cfg:          cfg,
		orientation:  newOrientationAdapter(),
		arbiter:      newResultArbiter(),
		queue:        newEventQueue(),
		ready:        make(chan struct{}),
		lifetime:     lifetime,
		stopLifetime: stop,
		outcome:      make(chan domain.Outcome, 1),
		done:         make(chan struct{}),
		state:        domain.SessionStateIdle,
	}
	if !cfg.AwaitPreviewReady {
		s.MarkReady()
	}
	return s
}

func (s *ScanSession) ID() string {
	return s.id
}

// Start begins camera acquisition and returns immediately. Cancelling ctx cancels the scan.
func (s *ScanSession) Start(ctx context.Context, request domain.ScanRequest) (*Subscription, error) {
	formats, err := domain.NormalizeFormats(request.Formats)
	if err != nil {
		return nil, err
	}
	request.Formats = formats

	s.mu.Lock()
	if s.state != domain.SessionStateIdle {
		s.mu.Unlock()
		return nil, ErrSessionStarted
	}
	s.request = request
	s.formats = request.FormatSet()
	s.preferFront = request.PreferFrontCamera
	s.state = domain.SessionStateAcquiring
	gen := s.nextGenLocked()
	s.emitStateLocked(domain.SessionStateAcquiring, domain.SessionReasonAcquiringCamera)
	s.lanes.Add(1)
	preferFront := s.preferFront
	s.mu.Unlock()

	logger.Log.Info("scan session started",
		slog.String("component", "scan_session"),
		slog.String("session_id", s.id),
		slog.Bool("prefer_front", request.PreferFrontCamera),
		slog.Int("formats", len(request.Formats)))

	go s.queue.run(s.events)
	go s.afterDispatch()
	go s.acquire(gen, preferFront)
	go s.watchContext(ctx)

	return &Subscription{SessionID: s.id, outcome: s.outcome, done: s.done}, nil
}

// MarkReady signals that the host preview is presented and decoding may begin.
func (s *ScanSession) MarkReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// FlipCamera switches between front and back cameras. It is ignored outside Scanning.
func (s *ScanSession) FlipCamera() bool {
	s.mu.Lock()
	if s.state != domain.SessionStateScanning || !s.request.ShowFlipButton {
		s.mu.Unlock()
		return false
	}
	s.state = domain.SessionStateFlipping
	s.flips++
	s.preferFront = !s.preferFront
	gen := s.nextGenLocked()
	loop, handle := s.loop, s.handle
	s.loop, s.handle = nil, nil
	s.emitStateLocked(domain.SessionStateFlipping, domain.SessionReasonFlippingCamera)
	s.lanes.Add(1)
	s.mu.Unlock()

	go s.flip(gen, loop, handle)
	return true
}

// SubmitManual offers user-entered text. It is ignored outside Scanning or when text is blank.
func (s *ScanSession) SubmitManual(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.SessionStateScanning {
		return false
	}
	return s.offerLocked(candidate{kind: candidateManual, manual: text}, domain.SessionReasonManualSubmitted)
}

// Cancel offers a cancellation. It is a no-op once the session has finished.
func (s *ScanSession) Cancel() bool {
	return s.cancelWithReason(domain.SessionReasonScanCancelled)
}

func (s *ScanSession) cancelWithReason(reason domain.SessionStateReason) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case domain.SessionStateAcquiring, domain.SessionStateScanning, domain.SessionStateFlipping:
		return s.offerLocked(candidate{kind: candidateCancel}, reason)
	default:
		return false
	}
}

// OrientationChanged recomputes the frame rotation. Ignored once Finalizing has begun.
func (s *ScanSession) OrientationChanged(orientation domain.DeviceOrientation) domain.Rotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.SessionStateIdle || s.state.Terminal() {
		return s.orientation.Rotation()
	}
	previous := s.orientation.Rotation()
	rotation := s.orientation.Update(orientation)
	if rotation != previous {
		s.queue.push(func(sink ports.EventSink) { sink.RotationChanged(rotation) })
	}
	return rotation
}

// OnRelease registers a hook run during Finalizing after the camera is released.
func (s *ScanSession) OnRelease(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release = append(s.release, fn)
}

// onFinished registers a hook run after the outcome has been delivered.
func (s *ScanSession) onFinished(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDone = append(s.onDone, fn)
}

// Done is closed once the outcome has been delivered and the camera released.
func (s *ScanSession) Done() <-chan struct{} {
	return s.done
}

func (s *ScanSession) Status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Status{
		State:     s.state,
		Active:    s.state != domain.SessionStateIdle && s.state != domain.SessionStateDone,
		SessionID: s.id,
		Rotation:  s.orientation.Rotation(),
	}
}

func (s *ScanSession) acquire(gen uint64, preferFront bool) {
	defer s.lanes.Done()

	if !s.awaitPrevious() {
		return
	}

	handle, err := s.device.open(s.lifetime, preferFront, s.request.FallbackToDefault)

	s.mu.Lock()
	if s.gen != gen || s.state != domain.SessionStateAcquiring {
		s.mu.Unlock()
		_ = handle.Close()
		return
	}

	if err != nil {
		var openErr *OpenError
		if !errors.As(err, &openErr) {
			openErr = &OpenError{Reason: InputAttachFailed, Err: err}
		}
		logger.Log.Error("camera acquisition failed",
			slog.String("component", "scan_session"),
			slog.String("session_id", s.id),
			slog.String("error", err.Error()))
		s.offerLocked(candidate{kind: candidateAcquisitionError, err: openErr.ScanError()}, domain.SessionReasonAcquisitionFailed)
		s.mu.Unlock()
		return
	}

	s.handle = handle
	rotation := s.orientation.SetMirrored(handle.Mirrored())
	s.loop = newFrameDecodeLoop(handle, s.decoder, decodeLoopConfig{
		formats:      s.formats,
		ready:        s.ready,
		errorBackoff: s.cfg.FrameErrorBackoff,
		rotation:     s.orientation.Rotation,
		offer: func(detection domain.Detection) bool {
			return s.offerDetection(gen, detection)
		},
		onFrameError: s.frameError,
		onSourceEnded: func(err error) {
			s.sourceEnded(gen, err)
		},
	})
	s.state = domain.SessionStateScanning
	geometry := handle.Geometry()
	logger.Log.Info("scanning started",
		slog.String("component", "scan_session"),
		slog.String("session_id", s.id),
		slog.Int("width", geometry.Width),
		slog.Int("height", geometry.Height),
		slog.String("pixel_format", string(geometry.PixelFormat)))
	s.emitStateLocked(domain.SessionStateScanning, domain.SessionReasonScanningStarted)
	s.queue.push(func(sink ports.EventSink) { sink.RotationChanged(rotation) })
	s.loop.start()
	s.mu.Unlock()
}

func (s *ScanSession) awaitPrevious() bool {
	if s.cfg.After == nil {
		return true
	}
	select {
	case <-s.cfg.After:
		return true
	case <-s.lifetime.Done():
		return false
	}
}

func (s *ScanSession) flip(gen uint64, loop *frameDecodeLoop, handle *deviceHandle) {
	defer s.lanes.Done()

	loop.stop()
	loop.wait()
	if err := handle.Close(); err != nil {
		s.queue.push(func(sink ports.EventSink) {
			sink.SessionError(domain.ErrorCodeCameraRelease, err.Error())
		})
	}

	s.mu.Lock()
	if s.gen != gen || s.state != domain.SessionStateFlipping {
		s.mu.Unlock()
		return
	}
	s.state = domain.SessionStateAcquiring
	s.emitStateLocked(domain.SessionStateAcquiring, domain.SessionReasonAcquiringCamera)
	preferFront := s.preferFront
	s.lanes.Add(1)
	s.mu.Unlock()

	s.acquire(gen, preferFront)
}

func (s *ScanSession) offerDetection(gen uint64, detection domain.Detection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.state != domain.SessionStateScanning {
		return false
	}
	return s.offerLocked(candidate{kind: candidateDetection, detection: detection}, domain.SessionReasonBarcodeDetected)
}

// offerLocked hands c to the arbiter and, if it wins, enters Finalizing. Callers hold s.mu.
func (s *ScanSession) offerLocked(c candidate, reason domain.SessionStateReason) bool {
	if s.state == domain.SessionStateIdle || s.state.Terminal() {
		return false
	}
	if !s.arbiter.Offer(c) {
		return false
	}

	s.state = domain.SessionStateFinalize
	s.emitStateLocked(domain.SessionStateFinalize, reason)

	t := teardown{
		loop:      s.loop,
		handle:    s.handle,
		interrupt: s.stopLifetime,
		lanes:     &s.lanes,
		release:   append([]func(){}, s.release...),
	}
	s.loop, s.handle = nil, nil
	flipped := s.flips > 0

	logger.Log.Info("scan candidate accepted",
		slog.String("component", "scan_session"),
		slog.String("session_id", s.id),
		slog.String("kind", c.kind.String()))

	go s.finalize(c, t, flipped)
	return true
}

func (s *ScanSession) finalize(c candidate, t teardown, flipped bool) {
	if err := s.finalizer.Finalize(t); err != nil {
		s.queue.push(func(sink ports.EventSink) {
			sink.SessionError(domain.ErrorCodeCameraRelease, err.Error())
		})
	}

	outcome := outcomeFor(c, flipped)

	s.mu.Lock()
	s.state = domain.SessionStateDone
	s.emitStateLocked(domain.SessionStateDone, domain.SessionReasonResultDelivered)
	s.queue.push(func(sink ports.EventSink) {
		if outcome.Err != nil {
			sink.ScanFailed(*outcome.Err)
		} else {
			sink.ScanCompleted(*outcome.Result)
		}
		s.outcome <- outcome
		close(s.outcome)
	})
	s.queue.close()
	s.mu.Unlock()
}

// afterDispatch closes done once every queued event, including the outcome, was emitted.
func (s *ScanSession) afterDispatch() {
	<-s.queue.done
	s.mu.Lock()
	hooks := append([]func(){}, s.onDone...)
	s.mu.Unlock()
	close(s.done)
	for _, hook := range hooks {
		hook()
	}
}

func (s *ScanSession) watchContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	select {
	case <-ctx.Done():
		s.Cancel()
	case <-s.done:
	}
}

func (s *ScanSession) frameError(err error) {
	logger.Log.Warn("frame read failed",
		slog.String("component", "scan_session"),
		slog.String("session_id", s.id),
		slog.String("error", err.Error()))
	s.queue.push(func(sink ports.EventSink) {
		sink.SessionError(domain.ErrorCodeFrameRead, err.Error())
	})
}

// sourceEnded ends a scan whose camera stopped producing frames. Nothing else can
// finish the session in that case short of a host cancel.
func (s *ScanSession) sourceEnded(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.state != domain.SessionStateScanning {
		return
	}
	logger.Log.Error("camera stream ended",
		slog.String("component", "scan_session"),
		slog.String("session_id", s.id),
		slog.String("error", err.Error()))
	s.queue.push(func(sink ports.EventSink) {
		sink.SessionError(domain.ErrorCodeFrameRead, err.Error())
	})
	lost := &domain.ScanError{Code: domain.ErrorCodeCameraLost, Message: "camera stream ended: " + err.Error()}
	s.offerLocked(candidate{kind: candidateCameraLost, err: lost}, domain.SessionReasonCameraLost)
}

func (s *ScanSession) emitStateLocked(state domain.SessionState, reason domain.SessionStateReason) {
	s.queue.push(func(sink ports.EventSink) { sink.SessionStateChanged(state, reason) })
}

func (s *ScanSession) nextGenLocked() uint64 {
	s.gen++
	return s.gen
}
