package usecase

import (
	"sync"

	"barcodescan/internal/domain"
)

// RotationFor maps a device orientation to a frame rotation. Mirrored front cameras swap the
// portrait rotations. ok is false for orientations that carry no rotation (face up/down, unknown).
func RotationFor(orientation domain.DeviceOrientation, mirrored bool) (rotation domain.Rotation, ok bool) {
	switch orientation {
	case domain.OrientationPortrait:
		if mirrored {
			return domain.Rotation270, true
		}
		return domain.Rotation90, true
	case domain.OrientationPortraitUpsideDown:
		if mirrored {
			return domain.Rotation90, true
		}
		return domain.Rotation270, true
	case domain.OrientationLandscapeLeft:
		return domain.Rotation0, true
	case domain.OrientationLandscapeRight:
		return domain.Rotation180, true
	default:
		return 0, false
	}
}

// orientationAdapter caches the last computed rotation for repeated reads.
type orientationAdapter struct {
	mu          sync.RWMutex
	orientation domain.DeviceOrientation
	mirrored    bool
	rotation    domain.Rotation
}

func newOrientationAdapter() *orientationAdapter {
	rotation, _ := RotationFor(domain.OrientationPortrait, false)
	return &orientationAdapter{orientation: domain.OrientationPortrait, rotation: rotation}
}

// Update records a new orientation and returns the rotation now in effect.
func (a *orientationAdapter) Update(orientation domain.DeviceOrientation) domain.Rotation {
	a.mu.Lock()
	defer a.mu.Unlock()
	if rotation, ok := RotationFor(orientation, a.mirrored); ok {
		a.orientation = orientation
		a.rotation = rotation
	}
	return a.rotation
}

// SetMirrored recomputes the rotation after a camera switch.
func (a *orientationAdapter) SetMirrored(mirrored bool) domain.Rotation {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mirrored = mirrored
	if rotation, ok := RotationFor(a.orientation, mirrored); ok {
		a.rotation = rotation
	}
	return a.rotation
}

func (a *orientationAdapter) Rotation() domain.Rotation {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.rotation
}
