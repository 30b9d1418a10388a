package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"barcodescan/internal/domain"
	"barcodescan/internal/ports"
)

type stateMsg struct {
	state  domain.SessionState
	reason domain.SessionStateReason
}

type rotationMsg domain.Rotation

type completedMsg domain.ScanResult

type failedMsg domain.ScanError

type sessionErrorMsg struct {
	code   domain.ErrorCode
	detail string
}

// Sink forwards session events into a running bubbletea program.
// Events arriving while no program is attached are dropped.
type Sink struct {
	mu      sync.Mutex
	program *tea.Program
}

func NewSink() *Sink {
	return &Sink{}
}

func (s *Sink) Attach(p *tea.Program) {
	s.mu.Lock()
	s.program = p
	s.mu.Unlock()
}

func (s *Sink) Detach() {
	s.Attach(nil)
}

func (s *Sink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	s.send(stateMsg{state: state, reason: reason})
}

func (s *Sink) RotationChanged(rotation domain.Rotation) {
	s.send(rotationMsg(rotation))
}

func (s *Sink) ScanCompleted(result domain.ScanResult) {
	s.send(completedMsg(result))
}

func (s *Sink) ScanFailed(err domain.ScanError) {
	s.send(failedMsg(err))
}

func (s *Sink) SessionError(code domain.ErrorCode, detail string) {
	s.send(sessionErrorMsg{code: code, detail: detail})
}

func (s *Sink) send(msg tea.Msg) {
	s.mu.Lock()
	p := s.program
	s.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

var _ ports.EventSink = (*Sink)(nil)
