package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"captchaclient/internal/captcha"
	"captchaclient/internal/session"
)

// Backend is the part of the gateway the UI needs.
type Backend interface {
	Generate(ctx context.Context, v captcha.Variant) (*captcha.Challenge, error)
	Verify(ctx context.Context, req captcha.VerifyRequest) (bool, error)
}

// startMsg asks the model to start a session of a variant.
type startMsg struct {
	variant captcha.Variant
}

// generatedMsg carries a generate result back to the loop with the ticket
// it was issued under.
type generatedMsg struct {
	ticket    session.Ticket
	challenge *captcha.Challenge
	err       error
}

// verifiedMsg carries a verify result back to the loop.
type verifiedMsg struct {
	ticket session.Ticket
	valid  bool
	err    error
}

// autoResetMsg fires after a success has been shown long enough.
type autoResetMsg struct {
	ticket session.Ticket
}

func generateCmd(b Backend, timeout time.Duration, t session.Ticket, v captcha.Variant) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ch, err := b.Generate(ctx, v)
		return generatedMsg{ticket: t, challenge: ch, err: err}
	}
}

func verifyCmd(b Backend, timeout time.Duration, t session.Ticket, req captcha.VerifyRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		valid, err := b.Verify(ctx, req)
		return verifiedMsg{ticket: t, valid: valid, err: err}
	}
}

func autoResetCmd(t session.Ticket, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return autoResetMsg{ticket: t}
	})
}
