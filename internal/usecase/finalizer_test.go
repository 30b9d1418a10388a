package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"barcodescan/internal/ports"
)

func TestSessionFinalizerReleasesInOrder(t *testing.T) {
	t.Parallel()

	cameras := newFakeCameraSystem(backCamera())
	handle, err := newCaptureDevice(cameras, ports.QualityMedium).open(context.Background(), false, false)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	loop := newFrameDecodeLoop(handle, newFakeDecoder(neverFound), decodeLoopConfig{})
	loop.start()

	var mu sync.Mutex
	var steps []string
	record := func(step string) {
		mu.Lock()
		defer mu.Unlock()
		steps = append(steps, step)
	}

	var lanes sync.WaitGroup
	lanes.Add(1)
	interrupted := make(chan struct{})
	go func() {
		defer lanes.Done()
		<-interrupted
		record("lane")
	}()

	err = newSessionFinalizer("s1").Finalize(teardown{
		loop:   loop,
		handle: handle,
		interrupt: func() {
			record("interrupt")
			close(interrupted)
		},
		lanes: &lanes,
		release: []func(){
			func() {
				if cameras.openCount() != 0 {
					record("release-before-close")
					return
				}
				record("release")
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected finalize error: %v", err)
	}

	select {
	case <-loop.done:
	default:
		t.Fatalf("loop still running after finalize")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"interrupt", "lane", "release"}
	if len(steps) != len(want) {
		t.Fatalf("unexpected steps: %v", steps)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Fatalf("unexpected steps: %v", steps)
		}
	}
}

func TestSessionFinalizerNilResources(t *testing.T) {
	t.Parallel()

	if err := newSessionFinalizer("s2").Finalize(teardown{}); err != nil {
		t.Fatalf("expected nil error for empty teardown, got %v", err)
	}
}

func TestSessionFinalizerReturnsReleaseError(t *testing.T) {
	t.Parallel()

	cameras := newFakeCameraSystem(backCamera())
	handle, err := newCaptureDevice(cameras, ports.QualityMedium).open(context.Background(), false, false)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	cameras.sessions[0].closeErr = errBoom

	hookRan := false
	err = newSessionFinalizer("s3").Finalize(teardown{
		handle:  handle,
		release: []func(){func() { hookRan = true }},
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected release error, got %v", err)
	}
	if !hookRan {
		t.Fatalf("release hooks must run after a camera release failure")
	}
}
