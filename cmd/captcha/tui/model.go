// Package tui is the interactive terminal client. The bubbletea update loop
// is the only place session state changes; generate and verify calls run as
// commands and report back as messages tagged with their session ticket.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"captchaclient/cmd/captcha/ui"
	"captchaclient/internal/captcha"
	"captchaclient/internal/logging"
	"captchaclient/internal/presenter"
	"captchaclient/internal/render"
	"captchaclient/internal/session"
	"captchaclient/internal/trajectory"
	"captchaclient/internal/ux"
)

// The challenge view is drawn at a fixed offset so mouse coordinates can be
// translated to renderer-local cells.
const (
	challengeTop  = 2
	challengeLeft = 2
)

// Config configures the model.
type Config struct {
	Backend   Backend
	Styles    ui.Styles
	Variant   captcha.Variant
	Timeout   time.Duration
	Session   session.Options
	AutoStart bool
	// Recorder, when set, is told about variant switches and answered
	// verifications.
	Recorder Recorder
}

// Recorder keeps per-variant history across runs.
type Recorder interface {
	SetLastVariant(v captcha.Variant)
	RecordOutcome(v captcha.Variant, passed bool)
	Stats(v captcha.Variant) ux.VariantStats
}

// Model is the bubbletea model of the client.
type Model struct {
	ctrl      *session.Controller
	backend   Backend
	timeout   time.Duration
	styles    ui.Styles
	autoStart bool
	recorder  Recorder

	input   textinput.Model
	spinner spinner.Model

	showHelp bool
	helpText string
	width    int
	height   int
}

// New builds the model. The session starts idle on cfg.Variant.
func New(cfg Config) Model {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if !cfg.Variant.Valid() {
		cfg.Variant = captcha.VariantCharacter
	}
	if cfg.Session.Palette == nil {
		p := cfg.Styles.Palette()
		cfg.Session.Palette = &p
	}

	ti := textinput.New()
	ti.Placeholder = "type the code"
	ti.Prompt = "› "
	ti.PromptStyle = cfg.Styles.Prompt
	ti.CharLimit = 16
	ti.Width = 20

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(cfg.Styles.Spinner))

	cfg.Session.Variant = cfg.Variant

	return Model{
		ctrl:      session.New(cfg.Session),
		backend:   cfg.Backend,
		timeout:   cfg.Timeout,
		styles:    cfg.Styles,
		autoStart: cfg.AutoStart,
		recorder:  cfg.Recorder,
		input:     ti,
		spinner:   sp,
	}
}

// Session exposes the controller.
func (m Model) Session() *session.Controller { return m.ctrl }

func (m Model) Init() tea.Cmd {
	if !m.autoStart {
		return nil
	}
	v := m.ctrl.Variant()
	return func() tea.Msg { return startMsg{variant: v} }
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if m.showHelp {
			m.helpText = renderHelp(m.styles.Theme.Name, m.width-4)
		}
		return m, nil

	case startMsg:
		return m.start(msg.variant)

	case generatedMsg:
		return m.onGenerated(msg)

	case verifiedMsg:
		return m.onVerified(msg)

	case autoResetMsg:
		if m.ctrl.ResetIfCurrent(msg.ticket) {
			logging.TUIDebug("auto reset after success")
			m.input.Reset()
			m.input.Blur()
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) busy() bool {
	s := m.ctrl.State()
	return s == session.StateGenerating || s == session.StateVerifying
}

// start begins a new session and issues its generate request.
func (m Model) start(v captcha.Variant) (tea.Model, tea.Cmd) {
	t := m.ctrl.Start(v)
	if m.recorder != nil {
		m.recorder.SetLastVariant(v)
	}
	m.input.Reset()
	m.input.Blur()
	m.showHelp = false
	return m, tea.Batch(generateCmd(m.backend, m.timeout, t, v), m.spinner.Tick)
}

func (m Model) onGenerated(msg generatedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.ctrl.OnGenerateFailed(msg.ticket, msg.err)
		return m, nil
	}
	if !m.ctrl.OnGenerated(msg.ticket, msg.challenge) {
		return m, nil
	}
	if m.ctrl.Variant() == captcha.VariantCharacter && m.ctrl.Renderer() != nil {
		cmd := m.input.Focus()
		return m, cmd
	}
	return m, nil
}

func (m Model) onVerified(msg verifiedMsg) (tea.Model, tea.Cmd) {
	res, ok := m.ctrl.OnVerified(msg.ticket, msg.valid, msg.err)
	if !ok {
		return m, nil
	}
	if m.recorder != nil && msg.err == nil {
		m.recorder.RecordOutcome(m.ctrl.Variant(), msg.valid)
	}
	if view := presenter.Present(res); view.AutoReset > 0 {
		m.input.Blur()
		return m, autoResetCmd(m.ctrl.Token(), view.AutoReset)
	}
	return m, nil
}

func (m Model) verify() (tea.Model, tea.Cmd) {
	t, req, err := m.ctrl.RequestVerification()
	if err != nil {
		logging.TUIDebug("verify blocked: %v", err)
		return m, nil
	}
	return m, tea.Batch(verifyCmd(m.backend, m.timeout, t, req), m.spinner.Tick)
}

// ===== INPUT =====

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		return m, tea.Quit
	case "?":
		m.showHelp = !m.showHelp
		if m.showHelp {
			m.helpText = renderHelp(m.styles.Theme.Name, m.width-4)
		}
		return m, nil
	case "tab":
		return m.start(m.ctrl.Variant().Next())
	case "shift+tab":
		return m.start(m.ctrl.Variant().Next().Next())
	case "ctrl+r":
		return m.start(m.ctrl.Variant())
	case "enter":
		return m.verify()
	}

	switch r := m.ctrl.Renderer().(type) {
	case *render.ImageSelectRenderer:
		if len(msg.Runes) == 1 && msg.Runes[0] >= '1' && msg.Runes[0] <= '9' {
			r.Toggle(int(msg.Runes[0] - '1'))
		}
		return m, nil
	case *render.CharacterRenderer:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		r.SetCode(m.input.Value())
		return m, cmd
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	r := m.ctrl.Renderer()
	if r == nil || m.showHelp {
		return m, nil
	}

	var kind trajectory.PointerKind
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return m, nil
		}
		kind = trajectory.PointerDown
	case tea.MouseActionMotion:
		kind = trajectory.PointerMove
	case tea.MouseActionRelease:
		kind = trajectory.PointerUp
	default:
		return m, nil
	}

	if r.Pointer(kind, msg.X-challengeLeft, msg.Y-challengeTop) == render.ActionRegenerate {
		return m.start(m.ctrl.Variant())
	}
	return m, nil
}

// ===== VIEW =====

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n\n")

	if m.showHelp {
		b.WriteString(m.helpText)
		return b.String()
	}

	b.WriteString(lipgloss.NewStyle().PaddingLeft(challengeLeft).Render(m.body()))
	b.WriteString("\n\n")

	if res, ok := m.ctrl.Resolution(); ok {
		banner := presenter.Render(presenter.Present(res), m.styles.Banner())
		b.WriteString(lipgloss.NewStyle().PaddingLeft(challengeLeft).Render(banner))
		b.WriteString("\n\n")
	}

	footer := "tab switch · ctrl+r new · enter verify · ? help · esc quit"
	if m.recorder != nil {
		if st := m.recorder.Stats(m.ctrl.Variant()); st.Attempts > 0 {
			footer += fmt.Sprintf(" · passed %d/%d", st.Passed, st.Attempts)
		}
	}
	b.WriteString(m.styles.Footer.Render(footer))
	return b.String()
}

func (m Model) header() string {
	tabs := make([]string, 0, len(captcha.Variants))
	for _, v := range captcha.Variants {
		style := m.styles.Tab
		if v == m.ctrl.Variant() {
			style = m.styles.ActiveTab
		}
		tabs = append(tabs, style.Render(v.Label()))
	}
	return m.styles.Header.Render("captcha") + "  " + strings.Join(tabs, " ")
}

func (m Model) body() string {
	switch m.ctrl.State() {
	case session.StateIdle:
		return m.styles.Muted.Render("Press ctrl+r to generate a challenge")
	case session.StateGenerating:
		return m.spinner.View() + " Generating..."
	}

	r := m.ctrl.Renderer()
	if r == nil {
		return m.styles.Muted.Render("No challenge on screen")
	}

	out := r.Render()
	if r.Variant() == captcha.VariantCharacter {
		out += "\n\n" + m.input.View()
	}
	if m.ctrl.State() == session.StateVerifying {
		out += "\n\n" + m.spinner.View() + " Verifying..."
	} else if m.ctrl.Expired(time.Now()) {
		out += "\n\n" + m.styles.Warning.Render(fmt.Sprintf("This challenge has expired (%s)", time.Unix(m.ctrl.ExpireTime(), 0).Format("15:04:05")))
	}
	return out
}
