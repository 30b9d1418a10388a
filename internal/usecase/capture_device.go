package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"barcodescan/internal/domain"
	"barcodescan/internal/logger"
	"barcodescan/internal/ports"
)

// OpenFailure classifies why a camera could not be acquired.
type OpenFailure int

const (
	NoDeviceAvailable OpenFailure = iota + 1
	UnsupportedQuality
	InputAttachFailed
	OutputAttachFailed
)

// OpenError is returned by captureDevice.open.
type OpenError struct {
	Reason OpenFailure
	Err    error
}

func (e *OpenError) Error() string {
	if e.Err == nil {
		return e.message()
	}
	return fmt.Sprintf("%s: %v", e.message(), e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

func (e *OpenError) message() string {
	switch e.Reason {
	case NoDeviceAvailable:
		return "no camera device available"
	case UnsupportedQuality:
		return "camera does not support the requested capture quality"
	case InputAttachFailed:
		return "could not attach camera input"
	case OutputAttachFailed:
		return "could not attach frame output"
	default:
		return "camera acquisition failed"
	}
}

// ScanError converts the failure into the host-facing error value.
func (e *OpenError) ScanError() *domain.ScanError {
	code := domain.ErrorCodeNoDevice
	switch e.Reason {
	case UnsupportedQuality:
		code = domain.ErrorCodeUnsupportedQuality
	case InputAttachFailed:
		code = domain.ErrorCodeInputAttach
	case OutputAttachFailed:
		code = domain.ErrorCodeOutputAttach
	}
	return &domain.ScanError{Code: code, Message: e.Error()}
}

// captureDevice selects and opens cameras through a ports.CameraSystem.
type captureDevice struct {
	cameras ports.CameraSystem
	quality ports.QualityPreset
}

func newCaptureDevice(cameras ports.CameraSystem, quality ports.QualityPreset) *captureDevice {
	if quality == "" {
		quality = ports.QualityMedium
	}
	return &captureDevice{cameras: cameras, quality: quality}
}

// open acquires a camera. A front camera request without a front device fails with
// NoDeviceAvailable unless fallback was requested.
func (d *captureDevice) open(ctx context.Context, preferFront bool, fallback bool) (*deviceHandle, error) {
	devices, err := d.cameras.Devices(ctx)
	if err != nil {
		return nil, &OpenError{Reason: NoDeviceAvailable, Err: err}
	}

	device, ok := selectDevice(devices, preferFront, fallback)
	if !ok {
		return nil, &OpenError{Reason: NoDeviceAvailable}
	}

	session, err := d.cameras.Open(ctx, device, d.quality)
	if err != nil {
		return nil, classifyOpenErr(err)
	}

	logger.Log.Info("camera opened",
		slog.String("component", "capture_device"),
		slog.String("device_id", device.ID),
		slog.String("position", string(device.Position)),
		slog.String("quality", string(d.quality)))

	return &deviceHandle{device: device, session: session}, nil
}

func classifyOpenErr(err error) *OpenError {
	switch {
	case errors.Is(err, ports.ErrUnsupportedQuality):
		return &OpenError{Reason: UnsupportedQuality, Err: err}
	case errors.Is(err, ports.ErrOutputAttach):
		return &OpenError{Reason: OutputAttachFailed, Err: err}
	default:
		return &OpenError{Reason: InputAttachFailed, Err: err}
	}
}

func selectDevice(devices []ports.DeviceDescriptor, preferFront bool, fallback bool) (ports.DeviceDescriptor, bool) {
	if len(devices) == 0 {
		return ports.DeviceDescriptor{}, false
	}
	if preferFront {
		front, ok := lo.Find(devices, func(d ports.DeviceDescriptor) bool {
			return d.Position == domain.CameraPositionFront
		})
		if ok {
			return front, true
		}
		if !fallback {
			return ports.DeviceDescriptor{}, false
		}
	}
	if def, ok := lo.Find(devices, func(d ports.DeviceDescriptor) bool { return d.Default }); ok {
		return def, true
	}
	return devices[0], true
}

// deviceHandle is an opened camera. Close is idempotent and safe on a nil handle.
type deviceHandle struct {
	device  ports.DeviceDescriptor
	session ports.CameraSession

	closeOnce sync.Once
	closeErr  error
}

func (h *deviceHandle) Mirrored() bool {
	return h != nil && h.device.Position == domain.CameraPositionFront
}

func (h *deviceHandle) Geometry() ports.Geometry {
	if h == nil || h.session == nil {
		return ports.Geometry{}
	}
	return h.session.Geometry()
}

func (h *deviceHandle) NextFrame(ctx context.Context) (ports.Frame, error) {
	return h.session.NextFrame(ctx)
}

func (h *deviceHandle) Close() error {
	if h == nil {
		return nil
	}
	h.closeOnce.Do(func() {
		if h.session != nil {
			h.closeErr = h.session.Close()
		}
		logger.Log.Info("camera released",
			slog.String("component", "capture_device"),
			slog.String("device_id", h.device.ID))
	})
	return h.closeErr
}
