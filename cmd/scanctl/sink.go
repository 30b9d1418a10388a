package main

import (
	"barcodescan/internal/domain"
	"barcodescan/internal/logger"
	"barcodescan/internal/ports"
)

// logSink reports session events through the process logger when no view is attached.
type logSink struct{}

func (logSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	logger.Log.Debug("session state changed", "state", state, "reason", reason)
}

func (logSink) RotationChanged(rotation domain.Rotation) {
	logger.Log.Debug("preview rotation changed", "rotation", int(rotation))
}

func (logSink) ScanCompleted(result domain.ScanResult) {
	logger.Log.Debug("scan completed", "format", result.Format, "cancelled", result.Cancelled, "manual", result.Manual)
}

func (logSink) ScanFailed(err domain.ScanError) {
	logger.Log.Warn("scan failed", "code", err.Code, "error", err.Message)
}

func (logSink) SessionError(code domain.ErrorCode, detail string) {
	logger.Log.Warn(domain.ErrorMessage(code, detail), "code", code, "detail", detail)
}

var _ ports.EventSink = logSink{}
