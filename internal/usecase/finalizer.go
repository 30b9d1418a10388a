package usecase

import (
	"log/slog"
	"sync"

	"barcodescan/internal/logger"
)

// teardown is everything a session holds when it enters Finalizing.
type teardown struct {
	loop   *frameDecodeLoop
	handle *deviceHandle
	// interrupt aborts in-flight acquisitions once the loop is stopped.
	interrupt func()
	lanes     *sync.WaitGroup
	release   []func()
}

type sessionFinalizer struct {
	sessionID string
}

func newSessionFinalizer(sessionID string) sessionFinalizer {
	return sessionFinalizer{sessionID: sessionID}
}

// Finalize stops the frame loop, waits for capture work, releases the camera and then any
// other held resources. Every step runs regardless of how finalization was triggered.
func (f sessionFinalizer) Finalize(t teardown) error {
	t.loop.stop()
	t.loop.wait()

	if t.interrupt != nil {
		t.interrupt()
	}
	if t.lanes != nil {
		t.lanes.Wait()
	}

	releaseErr := t.handle.Close()
	if releaseErr != nil {
		logger.Log.Warn("camera release failed",
			slog.String("component", "finalizer"),
			slog.String("session_id", f.sessionID),
			slog.String("error", releaseErr.Error()))
	}

	for _, release := range t.release {
		release()
	}
	return releaseErr
}
