package domain

// SessionState models the scan session lifecycle.
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateAcquiring SessionState = "acquiring_device"
	SessionStateScanning  SessionState = "scanning"
	SessionStateFlipping  SessionState = "flipping"
	SessionStateFinalize  SessionState = "finalizing"
	SessionStateDone      SessionState = "done"
)

// Terminal reports whether no further candidates can be accepted.
func (s SessionState) Terminal() bool {
	return s == SessionStateFinalize || s == SessionStateDone
}

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonCameraCold         SessionStateReason = "camera_cold"
	SessionReasonAcquiringCamera    SessionStateReason = "acquiring_camera"
	SessionReasonScanningStarted    SessionStateReason = "scanning_started"
	SessionReasonFlippingCamera     SessionStateReason = "flipping_camera"
	SessionReasonBarcodeDetected    SessionStateReason = "barcode_detected"
	SessionReasonManualSubmitted    SessionStateReason = "manual_submitted"
	SessionReasonScanCancelled      SessionStateReason = "scan_cancelled"
	SessionReasonAcquisitionFailed  SessionStateReason = "acquisition_failed"
	SessionReasonScanReplaced       SessionStateReason = "scan_replaced"
	SessionReasonResultDelivered    SessionStateReason = "result_delivered"
	SessionReasonCameraReleaseIssue SessionStateReason = "camera_release_issue"
	SessionReasonCameraLost         SessionStateReason = "camera_lost"
)

// ErrorCode identifies acquisition failures and other backend errors.
type ErrorCode string

const (
	ErrorCodeStartup            ErrorCode = "startup"
	ErrorCodeNoDevice           ErrorCode = "no_device"
	ErrorCodeUnsupportedQuality ErrorCode = "unsupported_quality"
	ErrorCodeInputAttach        ErrorCode = "input_attach"
	ErrorCodeOutputAttach       ErrorCode = "output_attach"
	ErrorCodeCameraRelease      ErrorCode = "camera_release"
	ErrorCodeFrameRead          ErrorCode = "frame_read"
	ErrorCodeCameraLost         ErrorCode = "camera_lost"
	ErrorCodeEncode             ErrorCode = "encode"
)

// ScanRequest is immutable once a session starts.
type ScanRequest struct {
	Formats           []DecodeFormat `json:"formats"`
	PreferFrontCamera bool           `json:"preferFrontCamera"`
	ShowFlipButton    bool           `json:"showFlipButton"`
	// FallbackToDefault lets a front-camera request use the default camera when no front camera exists.
	FallbackToDefault bool `json:"fallbackToDefault"`
}

// FormatSet returns the requested formats as a membership set.
func (r ScanRequest) FormatSet() FormatSet {
	return NewFormatSet(r.Formats...)
}

// Detection is a single successful decode of one frame.
type Detection struct {
	Text   string
	Format DecodeFormat
}

// ScanResult is the terminal, non-error outcome of a scan.
type ScanResult struct {
	Text      string `json:"text"`
	Format    string `json:"format"`
	Cancelled bool   `json:"cancelled"`
	Flipped   bool   `json:"flipped"`
	Manual    bool   `json:"manual"`
}

// ScanError is delivered when the camera could not be acquired or stopped producing frames.
type ScanError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *ScanError) Error() string {
	return e.Message
}

// Outcome carries exactly one of Result or Err.
type Outcome struct {
	Result *ScanResult
	Err    *ScanError
}

// Status summarizes the current runtime status.
type Status struct {
	State     SessionState `json:"state"`
	Active    bool         `json:"active"`
	SessionID string       `json:"sessionId,omitempty"`
	Rotation  Rotation     `json:"rotation"`
	Message   string       `json:"message,omitempty"`
}

// EncodeResult locates a rendered barcode image.
type EncodeResult struct {
	FilePath string `json:"filePath"`
	Format   string `json:"format"`
}
