package usecase

import (
	"sync"

	"barcodescan/internal/domain"
)

type candidateKind int

const (
	candidateDetection candidateKind = iota + 1
	candidateManual
	candidateCancel
	candidateAcquisitionError
	candidateCameraLost
)

func (k candidateKind) String() string {
	switch k {
	case candidateDetection:
		return "detection"
	case candidateManual:
		return "manual"
	case candidateCancel:
		return "cancel"
	case candidateAcquisitionError:
		return "acquisition_error"
	case candidateCameraLost:
		return "camera_lost"
	default:
		return "unknown"
	}
}

// candidate is one competing terminal outcome.
type candidate struct {
	kind      candidateKind
	detection domain.Detection
	manual    string
	err       *domain.ScanError
}

// resultArbiter is a single-assignment latch. The first offer wins regardless of kind.
type resultArbiter struct {
	mu       sync.Mutex
	accepted *candidate
}

func newResultArbiter() *resultArbiter {
	return &resultArbiter{}
}

// Offer records c and returns true only if nothing has been accepted yet.
func (a *resultArbiter) Offer(c candidate) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.accepted != nil {
		return false
	}
	accepted := c
	a.accepted = &accepted
	return true
}

// outcomeFor builds the host-facing outcome for an accepted candidate.
func outcomeFor(c candidate, flipped bool) domain.Outcome {
	switch c.kind {
	case candidateDetection:
		return domain.Outcome{Result: &domain.ScanResult{
			Text:   c.detection.Text,
			Format: string(c.detection.Format),
		}}
	case candidateManual:
		return domain.Outcome{Result: &domain.ScanResult{
			Text:   c.manual,
			Manual: true,
		}}
	case candidateAcquisitionError, candidateCameraLost:
		scanErr := *c.err
		return domain.Outcome{Err: &scanErr}
	default:
		return domain.Outcome{Result: &domain.ScanResult{
			Cancelled: true,
			Flipped:   flipped,
		}}
	}
}
