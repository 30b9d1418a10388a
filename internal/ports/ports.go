package ports

import (
	"context"
	"errors"
	"time"

	"barcodescan/internal/domain"
)

var (
	// ErrUnsupportedQuality is returned when the camera cannot capture at the requested preset.
	ErrUnsupportedQuality = errors.New("unsupported capture quality")
	// ErrInputAttach is returned when the device input could not be attached to a capture session.
	ErrInputAttach = errors.New("failed to attach camera input")
	// ErrOutputAttach is returned when frame output could not be attached to a capture session.
	ErrOutputAttach = errors.New("failed to attach frame output")
	// ErrCameraClosed is returned by NextFrame after the session has been closed.
	ErrCameraClosed = errors.New("camera session closed")
)

// QualityPreset names a capture resolution class.
type QualityPreset string

const (
	QualityLow    QualityPreset = "low"
	QualityMedium QualityPreset = "medium"
	QualityHigh   QualityPreset = "high"
)

// PixelFormat describes the layout of Frame.Data.
type PixelFormat string

const (
	PixelFormatGray8 PixelFormat = "gray8"
	PixelFormatNV21  PixelFormat = "nv21"
	PixelFormatRGBA  PixelFormat = "rgba"
	PixelFormatBGRA  PixelFormat = "bgra"
)

// DeviceDescriptor identifies one enumerated camera.
type DeviceDescriptor struct {
	ID       string
	Name     string
	Position domain.CameraPosition
	Default  bool
}

// Geometry reports the frame size a capture session produces.
type Geometry struct {
	Width       int
	Height      int
	PixelFormat PixelFormat
}

// Frame is an opaque camera frame handed to the decoder. Data must not be modified.
type Frame struct {
	Data        []byte
	Width       int
	Height      int
	Stride      int
	PixelFormat PixelFormat
	Rotation    domain.Rotation
	Seq         uint64
	Timestamp   time.Time
}

// CameraSession is an open camera producing frames.
type CameraSession interface {
	// NextFrame blocks until a frame newer than the previously returned one is available.
	NextFrame(ctx context.Context) (Frame, error)
	Geometry() Geometry
	Close() error
}

// CameraSystem enumerates and opens cameras.
type CameraSystem interface {
	Devices(ctx context.Context) ([]DeviceDescriptor, error)
	Open(ctx context.Context, device DeviceDescriptor, quality QualityPreset) (CameraSession, error)
}

// Decoder is the external barcode decoding library.
type Decoder interface {
	TryDecode(ctx context.Context, frame Frame, allowed domain.FormatSet) (domain.Detection, bool, error)
}

// QREncoder renders text into a barcode image file.
type QREncoder interface {
	Encode(ctx context.Context, text string, size int) (domain.EncodeResult, error)
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	RotationChanged(rotation domain.Rotation)
	ScanCompleted(result domain.ScanResult)
	ScanFailed(err domain.ScanError)
	SessionError(code domain.ErrorCode, detail string)
}
