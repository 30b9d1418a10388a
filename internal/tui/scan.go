package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"barcodescan/internal/domain"
	"barcodescan/internal/usecase"
)

// Controller is the part of the session controller the scan view drives.
type Controller interface {
	Scan(ctx context.Context, request domain.ScanRequest) (*usecase.Subscription, error)
	FlipCamera() error
	SubmitManual(text string) error
	Cancel() error
	OrientationChanged(orientation domain.DeviceOrientation) (domain.Rotation, error)
	PreviewReady() error
}

type scanStartedMsg struct{}

type scanStartErrMsg struct{ err error }

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("86")).Padding(0, 1)
)

type scanModel struct {
	ctx        context.Context
	controller Controller
	request    domain.ScanRequest

	input   textinput.Model
	spinner spinner.Model

	state       domain.SessionState
	reason      domain.SessionStateReason
	rotation    domain.Rotation
	orientation domain.DeviceOrientation
	notice      string

	started         bool
	cancelRequested bool
	result          *domain.ScanResult
	failure         *domain.ScanError
	err             error
}

func newScanModel(ctx context.Context, controller Controller, request domain.ScanRequest) scanModel {
	input := textinput.New()
	input.Placeholder = "type a code and press enter"
	input.CharLimit = 256
	input.Width = 40
	input.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#01FAC6"))

	return scanModel{
		ctx:         ctx,
		controller:  controller,
		request:     request,
		input:       input,
		spinner:     s,
		state:       domain.SessionStateIdle,
		reason:      domain.SessionReasonCameraCold,
		orientation: domain.OrientationUnknown,
	}
}

func (m scanModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.startScan())
}

func (m scanModel) startScan() tea.Cmd {
	ctx, controller, request := m.ctx, m.controller, m.request
	return func() tea.Msg {
		if _, err := controller.Scan(ctx, request); err != nil {
			return scanStartErrMsg{err: err}
		}
		return scanStartedMsg{}
	}
}

func (m scanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case scanStartedMsg:
		m.started = true
		if m.cancelRequested {
			return m.cancel()
		}
		if m.orientation != domain.OrientationUnknown {
			m.applyOrientation()
		}
		m.call(m.controller.PreviewReady)
		return m, nil

	case scanStartErrMsg:
		m.err = msg.err
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.input.Width = max(msg.Width-8, 10)
		orientation := orientationForWindow(msg.Width, msg.Height)
		if orientation != m.orientation {
			m.orientation = orientation
			if m.started {
				m.applyOrientation()
			}
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m.cancel()
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				m.notice = "Enter a code first"
				return m, nil
			}
			m.notice = ""
			m.call(func() error { return m.controller.SubmitManual(text) })
			return m, nil
		case "ctrl+f":
			if !m.request.ShowFlipButton {
				return m, nil
			}
			m.call(m.controller.FlipCamera)
			return m, nil
		}

	case stateMsg:
		m.state = msg.state
		m.reason = msg.reason
		return m, nil

	case rotationMsg:
		m.rotation = domain.Rotation(msg)
		return m, nil

	case sessionErrorMsg:
		m.notice = domain.ErrorMessage(msg.code, msg.detail)
		return m, nil

	case completedMsg:
		result := domain.ScanResult(msg)
		m.result = &result
		return m, tea.Quit

	case failedMsg:
		failure := domain.ScanError(msg)
		m.failure = &failure
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// cancel asks the session to finish; the program quits once the outcome arrives.
func (m scanModel) cancel() (tea.Model, tea.Cmd) {
	m.cancelRequested = true
	if !m.started {
		return m, nil
	}
	if err := m.controller.Cancel(); err != nil {
		if errors.Is(err, usecase.ErrNoActiveSession) && m.result == nil && m.failure == nil {
			result := domain.ScanResult{Cancelled: true}
			m.result = &result
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m *scanModel) applyOrientation() {
	rotation, err := m.controller.OrientationChanged(m.orientation)
	if err != nil {
		return
	}
	m.rotation = rotation
}

func (m *scanModel) call(fn func() error) {
	if err := fn(); err != nil && !errors.Is(err, usecase.ErrNoActiveSession) {
		m.notice = err.Error()
	}
}

func (m scanModel) View() string {
	var s strings.Builder

	s.WriteString(headerStyle.Render("Scan barcode"))
	s.WriteString("\n\n")

	status := domain.ReasonMessage(m.reason)
	if status == "" {
		status = string(m.state)
	}
	if m.state.Terminal() {
		s.WriteString(status)
	} else {
		s.WriteString(fmt.Sprintf("%s %s", m.spinner.View(), status))
	}
	s.WriteString("\n")
	s.WriteString(labelStyle.Render(fmt.Sprintf("formats: %s  rotation: %d°", formatsLabel(m.request.Formats), int(m.rotation))))
	s.WriteString("\n\n")

	s.WriteString(labelStyle.Render("Manual entry"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Render(m.input.View()))
	s.WriteString("\n")

	if m.notice != "" {
		s.WriteString(noticeStyle.Render(m.notice))
		s.WriteString("\n")
	}

	help := "Enter to submit, Esc to cancel"
	if m.request.ShowFlipButton {
		help = "Enter to submit, Ctrl+F to flip camera, Esc to cancel"
	}
	s.WriteString("\n")
	s.WriteString(helpStyle.Render(help))
	return s.String()
}

func formatsLabel(formats []domain.DecodeFormat) string {
	if len(formats) == 0 {
		return "any"
	}
	parts := make([]string, 0, len(formats))
	for _, format := range formats {
		parts = append(parts, string(format))
	}
	return strings.Join(parts, ",")
}

// orientationForWindow treats a terminal as landscape when it is more than twice as
// wide in cells as it is tall, since cells are roughly twice as tall as they are wide.
func orientationForWindow(width, height int) domain.DeviceOrientation {
	if width <= 0 || height <= 0 {
		return domain.OrientationUnknown
	}
	if width > 2*height {
		return domain.OrientationLandscapeLeft
	}
	return domain.OrientationPortrait
}

// Run starts a scan and drives it interactively until the session delivers its outcome.
func Run(ctx context.Context, controller Controller, sink *Sink, request domain.ScanRequest) (domain.Outcome, error) {
	p := tea.NewProgram(newScanModel(ctx, controller, request), tea.WithAltScreen(), tea.WithContext(ctx))
	sink.Attach(p)
	defer sink.Detach()

	finalModel, err := p.Run()
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("error running scan view: %w", err)
	}

	final := finalModel.(scanModel)
	switch {
	case final.err != nil:
		return domain.Outcome{}, final.err
	case final.failure != nil:
		return domain.Outcome{Err: final.failure}, nil
	case final.result != nil:
		return domain.Outcome{Result: final.result}, nil
	}
	return domain.Outcome{}, errors.New("scan ended without an outcome")
}
