package domain

// DeviceOrientation is the physical orientation reported by the host.
type DeviceOrientation string

const (
	OrientationUnknown            DeviceOrientation = "unknown"
	OrientationPortrait           DeviceOrientation = "portrait"
	OrientationPortraitUpsideDown DeviceOrientation = "portrait_upside_down"
	OrientationLandscapeLeft      DeviceOrientation = "landscape_left"
	OrientationLandscapeRight     DeviceOrientation = "landscape_right"
	OrientationFaceUp             DeviceOrientation = "face_up"
	OrientationFaceDown           DeviceOrientation = "face_down"
)

// Rotation is a preview/frame rotation in degrees.
type Rotation int

const (
	Rotation0   Rotation = 0
	Rotation90  Rotation = 90
	Rotation180 Rotation = 180
	Rotation270 Rotation = 270
)

// CameraPosition is the panel a camera faces.
type CameraPosition string

const (
	CameraPositionUnspecified CameraPosition = "unspecified"
	CameraPositionFront       CameraPosition = "front"
	CameraPositionBack        CameraPosition = "back"
)
