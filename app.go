package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"barcodescan/internal/bootstrap"
	"barcodescan/internal/config"
	"barcodescan/internal/domain"
	"barcodescan/internal/logger"
	"barcodescan/internal/usecase"
)

const (
	eventSession  = "scanner:session"
	eventRotation = "scanner:rotation"
	eventResult   = "scanner:result"
	eventFailed   = "scanner:failed"
	eventError    = "scanner:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	controller *usecase.SessionController
	services   bootstrap.Services
	cfg        config.Config
	bootErr    error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.cfg = services.Config
	a.controller = services.Controller
	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonCameraCold)
}

func (a *App) shutdown(_ context.Context) {
	if a.controller != nil {
		if err := a.controller.Cancel(); err != nil && !errors.Is(err, usecase.ErrNoActiveSession) {
			logger.Log.Warn("cancel on shutdown failed", "error", err)
		}
	}
	if err := a.services.Close(); err != nil {
		logger.Log.Warn("service close failed", "error", err)
	}
}

// Scan starts a scan session. The outcome arrives through the result or failed events.
func (a *App) Scan(request domain.ScanRequest) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if _, err := a.controller.Scan(a.ctx, request); err != nil {
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return domain.Status{}, err
	}
	return a.controller.Status(), nil
}

// PreviewReady tells the backend the preview surface is on screen.
func (a *App) PreviewReady() error {
	return a.route(a.controller.PreviewReady)
}

// FlipCamera switches between the front and back camera.
func (a *App) FlipCamera() error {
	return a.route(a.controller.FlipCamera)
}

// SubmitManual offers typed text as the scan result.
func (a *App) SubmitManual(text string) error {
	return a.route(func() error { return a.controller.SubmitManual(text) })
}

// Cancel ends the current scan without a result.
func (a *App) Cancel() error {
	return a.route(a.controller.Cancel)
}

// OrientationChanged reports a device orientation change and returns the preview rotation.
func (a *App) OrientationChanged(orientation string) (int, error) {
	if err := a.requireReady(); err != nil {
		return 0, err
	}
	rotation, err := a.controller.OrientationChanged(domain.DeviceOrientation(orientation))
	if err != nil {
		if errors.Is(err, usecase.ErrNoActiveSession) {
			return 0, nil
		}
		return 0, err
	}
	return int(rotation), nil
}

// Encode renders text as a QR code image file.
func (a *App) Encode(text string, size int) (domain.EncodeResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.EncodeResult{}, err
	}
	result, err := a.controller.Encode(a.ctx, text, size)
	if err != nil {
		a.SessionError(domain.ErrorCodeEncode, err.Error())
		return domain.EncodeResult{}, err
	}
	return result, nil
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateIdle, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle, Active: false}
	}
	return a.controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"decoder":           a.cfg.Decoder.Kind,
		"cameraQuality":     string(a.cfg.Camera.Quality),
		"cameraInput":       a.cfg.Camera.InputFormat,
		"deviceRoot":        a.cfg.Camera.DeviceRoot,
		"encodeDir":         a.cfg.Encode.Dir,
		"awaitPreviewReady": strconv.FormatBool(a.cfg.Session.AwaitPreviewReady),
	}
}

func (a *App) route(fn func() error) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if errors.Is(err, usecase.ErrNoActiveSession) {
			return nil
		}
		return err
	}
	return nil
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": domain.ReasonMessage(reason),
	})
}

// RotationChanged emits the preview rotation in degrees.
func (a *App) RotationChanged(rotation domain.Rotation) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventRotation, map[string]int{"rotation": int(rotation)})
}

// ScanCompleted emits the terminal scan result.
func (a *App) ScanCompleted(result domain.ScanResult) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventResult, result)
}

// ScanFailed emits an acquisition failure.
func (a *App) ScanFailed(scanErr domain.ScanError) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventFailed, map[string]string{
		"code":    string(scanErr.Code),
		"message": domain.ErrorMessage(scanErr.Code, scanErr.Message),
		"detail":  scanErr.Message,
	})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": domain.ErrorMessage(code, detail),
		"detail":  detail,
	})
}
