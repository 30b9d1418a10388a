package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"barcodescan/internal/domain"
	"barcodescan/internal/ports"
)

var ErrNoActiveSession = errors.New("no active scan session")

// Config controls scan session behaviour.
type Config struct {
	Quality           ports.QualityPreset
	FrameErrorBackoff time.Duration
	AwaitPreviewReady bool
	DefaultEncodeSize int
}

// SessionController owns the host's current scan session and routes UI events to it.
type SessionController struct {
	cameras ports.CameraSystem
	decoder ports.Decoder
	encoder ports.QREncoder
	events  ports.EventSink
	cfg     Config

	mu      sync.Mutex
	current *ScanSession
}

func NewSessionController(
	cameras ports.CameraSystem,
	decoder ports.Decoder,
	encoder ports.QREncoder,
	events ports.EventSink,
	cfg Config,
) *SessionController {
	if cfg.Quality == "" {
		cfg.Quality = ports.QualityMedium
	}
	if cfg.FrameErrorBackoff <= 0 {
		cfg.FrameErrorBackoff = 50 * time.Millisecond
	}
	if cfg.DefaultEncodeSize <= 0 {
		cfg.DefaultEncodeSize = 256
	}
	return &SessionController{
		cameras: cameras,
		decoder: decoder,
		encoder: encoder,
		events:  events,
		cfg:     cfg,
	}
}

// Scan starts a new session. A session still running is cancelled first and the new one
// does not open a camera until the previous one has released its camera.
func (c *SessionController) Scan(ctx context.Context, request domain.ScanRequest) (*Subscription, error) {
	formats, err := domain.NormalizeFormats(request.Formats)
	if err != nil {
		return nil, err
	}
	request.Formats = formats

	c.mu.Lock()
	previous := c.current
	c.current = nil
	c.mu.Unlock()

	var after <-chan struct{}
	if previous != nil {
		previous.cancelWithReason(domain.SessionReasonScanReplaced)
		after = previous.Done()
	}

	session := NewScanSession(c.cameras, c.decoder, c.events, SessionConfig{
		Quality:           c.cfg.Quality,
		FrameErrorBackoff: c.cfg.FrameErrorBackoff,
		AwaitPreviewReady: c.cfg.AwaitPreviewReady,
		After:             after,
	})
	session.onFinished(func() { c.clear(session) })

	c.mu.Lock()
	c.current = session
	c.mu.Unlock()

	sub, err := session.Start(ctx, request)
	if err != nil {
		c.clear(session)
		return nil, err
	}
	return sub, nil
}

// Current returns the active session, if any.
func (c *SessionController) Current() (*ScanSession, error) {
	return c.getCurrent()
}

// FlipCamera switches cameras on the active session. Ignored outside Scanning.
func (c *SessionController) FlipCamera() error {
	session, err := c.getCurrent()
	if err != nil {
		return err
	}
	session.FlipCamera()
	return nil
}

// SubmitManual offers manual text to the active session. Ignored outside Scanning.
func (c *SessionController) SubmitManual(text string) error {
	session, err := c.getCurrent()
	if err != nil {
		return err
	}
	session.SubmitManual(text)
	return nil
}

// Cancel cancels the active session.
func (c *SessionController) Cancel() error {
	session, err := c.getCurrent()
	if err != nil {
		return err
	}
	session.Cancel()
	return nil
}

// OrientationChanged forwards a device orientation event to the active session.
func (c *SessionController) OrientationChanged(orientation domain.DeviceOrientation) (domain.Rotation, error) {
	session, err := c.getCurrent()
	if err != nil {
		return 0, err
	}
	return session.OrientationChanged(orientation), nil
}

// PreviewReady releases the decode loop of the active session.
func (c *SessionController) PreviewReady() error {
	session, err := c.getCurrent()
	if err != nil {
		return err
	}
	session.MarkReady()
	return nil
}

// Encode renders text as a QR image file. It is independent of any scan session.
func (c *SessionController) Encode(ctx context.Context, text string, size int) (domain.EncodeResult, error) {
	if size <= 0 {
		size = c.cfg.DefaultEncodeSize
	}
	return c.encoder.Encode(ctx, text, size)
}

// Status returns the current backend status.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()
	if current == nil {
		return domain.Status{State: domain.SessionStateIdle, Active: false}
	}
	return current.Status()
}

// Devices lists the cameras available to scan sessions.
func (c *SessionController) Devices(ctx context.Context) ([]ports.DeviceDescriptor, error) {
	return c.cameras.Devices(ctx)
}

func (c *SessionController) getCurrent() (*ScanSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, ErrNoActiveSession
	}
	return c.current, nil
}

func (c *SessionController) clear(session *ScanSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == session {
		c.current = nil
	}
}
