package domain

// ReasonMessage returns the user-facing text for a session state reason.
func ReasonMessage(reason SessionStateReason) string {
	switch reason {
	case SessionReasonCameraCold:
		return "Camera cold"
	case SessionReasonAcquiringCamera:
		return "Opening camera..."
	case SessionReasonScanningStarted:
		return "Scanning"
	case SessionReasonFlippingCamera:
		return "Switching camera..."
	case SessionReasonBarcodeDetected:
		return "Barcode detected"
	case SessionReasonManualSubmitted:
		return "Manual entry submitted"
	case SessionReasonScanCancelled:
		return "Scan cancelled"
	case SessionReasonAcquisitionFailed:
		return "Camera could not be opened"
	case SessionReasonScanReplaced:
		return "Scan replaced by a newer request"
	case SessionReasonResultDelivered:
		return "Result delivered"
	case SessionReasonCameraReleaseIssue:
		return "Camera release issue"
	case SessionReasonCameraLost:
		return "Camera stopped sending frames"
	default:
		return ""
	}
}

// ErrorMessage returns the user-facing text for an error code, falling back to detail.
func ErrorMessage(code ErrorCode, detail string) string {
	switch code {
	case ErrorCodeStartup:
		return "Startup failed"
	case ErrorCodeNoDevice:
		return "No camera available"
	case ErrorCodeUnsupportedQuality:
		return "Camera does not support the requested quality"
	case ErrorCodeInputAttach:
		return "Camera input could not be attached"
	case ErrorCodeOutputAttach:
		return "Frame output could not be attached"
	case ErrorCodeCameraRelease:
		return "Camera release issue"
	case ErrorCodeFrameRead:
		return "Frame read issue"
	case ErrorCodeCameraLost:
		return "Camera disconnected"
	case ErrorCodeEncode:
		return "Barcode encoding failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
