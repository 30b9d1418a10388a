package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"barcodescan/internal/domain"
	"barcodescan/internal/ports"
)

type fakeCameraSystem struct {
	mu      sync.Mutex
	devices []ports.DeviceDescriptor
	listErr error
	openErr error

	// streamEnds makes opened sessions report io.EOF instead of frames.
	streamEnds bool

	opened   []string
	sessions []*fakeCameraSession
	open     int
	maxOpen  int
}

func newFakeCameraSystem(devices ...ports.DeviceDescriptor) *fakeCameraSystem {
	return &fakeCameraSystem{devices: devices}
}

func backCamera() ports.DeviceDescriptor {
	return ports.DeviceDescriptor{ID: "/dev/video0", Name: "Back", Position: domain.CameraPositionBack, Default: true}
}

func frontCamera() ports.DeviceDescriptor {
	return ports.DeviceDescriptor{ID: "/dev/video2", Name: "Front", Position: domain.CameraPositionFront}
}

func (f *fakeCameraSystem) Devices(_ context.Context) ([]ports.DeviceDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]ports.DeviceDescriptor(nil), f.devices...), nil
}

func (f *fakeCameraSystem) Open(_ context.Context, device ports.DeviceDescriptor, _ ports.QualityPreset) (ports.CameraSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened = append(f.opened, device.ID)
	f.open++
	if f.open > f.maxOpen {
		f.maxOpen = f.open
	}
	session := &fakeCameraSession{system: f, closed: make(chan struct{}), streamEnds: f.streamEnds}
	f.sessions = append(f.sessions, session)
	return session, nil
}

func (f *fakeCameraSystem) released() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open--
}

func (f *fakeCameraSystem) snapshotOpened() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}

func (f *fakeCameraSystem) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeCameraSystem) maxConcurrentOpen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxOpen
}

func (f *fakeCameraSystem) totalCloseCalls() int {
	f.mu.Lock()
	sessions := append([]*fakeCameraSession(nil), f.sessions...)
	f.mu.Unlock()
	total := 0
	for _, s := range sessions {
		total += int(s.closeCalls.Load())
	}
	return total
}

type fakeCameraSession struct {
	system     *fakeCameraSystem
	seq        atomic.Uint64
	closed     chan struct{}
	closeOnce  sync.Once
	closeCalls atomic.Int32
	closeErr   error
	streamEnds bool
}

func (s *fakeCameraSession) NextFrame(ctx context.Context) (ports.Frame, error) {
	timer := time.NewTimer(time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ports.Frame{}, ctx.Err()
	case <-s.closed:
		return ports.Frame{}, ports.ErrCameraClosed
	case <-timer.C:
	}
	if s.streamEnds {
		return ports.Frame{}, io.EOF
	}
	return ports.Frame{
		Data:        []byte{0},
		Width:       1,
		Height:      1,
		Stride:      1,
		PixelFormat: ports.PixelFormatGray8,
		Seq:         s.seq.Add(1),
		Timestamp:   time.Now(),
	}, nil
}

func (s *fakeCameraSession) Geometry() ports.Geometry {
	return ports.Geometry{Width: 1, Height: 1, PixelFormat: ports.PixelFormatGray8}
}

func (s *fakeCameraSession) Close() error {
	s.closeCalls.Add(1)
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.system != nil {
			s.system.released()
		}
	})
	return s.closeErr
}

type decodeFunc func(call int, frame ports.Frame) (domain.Detection, bool, error)

type fakeDecoder struct {
	mu          sync.Mutex
	fn          decodeFunc
	calls       int
	inFlight    int
	maxInFlight int
}

func newFakeDecoder(fn decodeFunc) *fakeDecoder {
	return &fakeDecoder{fn: fn}
}

func neverFound(int, ports.Frame) (domain.Detection, bool, error) {
	return domain.Detection{}, false, nil
}

func (d *fakeDecoder) TryDecode(_ context.Context, frame ports.Frame, _ domain.FormatSet) (domain.Detection, bool, error) {
	d.mu.Lock()
	d.calls++
	call := d.calls
	d.inFlight++
	if d.inFlight > d.maxInFlight {
		d.maxInFlight = d.inFlight
	}
	fn := d.fn
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.inFlight--
		d.mu.Unlock()
	}()

	if fn == nil {
		return domain.Detection{}, false, nil
	}
	return fn(call, frame)
}

func (d *fakeDecoder) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDecoder) maxConcurrent() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxInFlight
}

type fakeEventSink struct {
	mu sync.Mutex

	states    []stateEvent
	rotations []domain.Rotation
	results   []domain.ScanResult
	failures  []domain.ScanError
	errors    []errEvent
}

type stateEvent struct {
	state  domain.SessionState
	reason domain.SessionStateReason
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
}

func (f *fakeEventSink) RotationChanged(rotation domain.Rotation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rotations = append(f.rotations, rotation)
}

func (f *fakeEventSink) ScanCompleted(result domain.ScanResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
}

func (f *fakeEventSink) ScanFailed(err domain.ScanError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, err)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]errEvent(nil), f.errors...)
}

func (f *fakeEventSink) snapshotRotations() []domain.Rotation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Rotation(nil), f.rotations...)
}

func (f *fakeEventSink) terminalCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.results) + len(f.failures)
}

func (f *fakeEventSink) hasState(state domain.SessionState) bool {
	for _, s := range f.snapshotStates() {
		if s.state == state {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitOutcome(t *testing.T, sub *Subscription) domain.Outcome {
	t.Helper()
	select {
	case outcome, ok := <-sub.Outcome():
		if !ok {
			t.Fatalf("outcome channel closed without a value")
		}
		return outcome
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for outcome")
	}
	return domain.Outcome{}
}

func waitScanning(t *testing.T, session *ScanSession) {
	t.Helper()
	waitFor(t, "scanning state", func() bool {
		return session.Status().State == domain.SessionStateScanning
	})
}

var errBoom = errors.New("boom")
