// Package presenter projects a session resolution onto the feedback banner
// shown under the challenge.
package presenter

import (
	"time"

	"github.com/charmbracelet/lipgloss"

	"captchaclient/internal/captcha"
	"captchaclient/internal/session"
)

// Tone selects the banner colour.
type Tone int

const (
	ToneNone Tone = iota
	ToneSuccess
	ToneFailure
	// ToneWarning is used for local validation failures, which the user
	// fixes without a new challenge.
	ToneWarning
)

// View is what the banner shows.
type View struct {
	Tone      Tone
	Icon      string
	Message   string
	Hint      string
	AutoReset time.Duration
}

// Empty reports whether there is nothing to show.
func (v View) Empty() bool { return v.Tone == ToneNone }

// Present maps a resolution to a view. It has no side effects; arming the
// auto-reset is up to the caller, using View.AutoReset.
func Present(r session.Resolution) View {
	switch r.Outcome {
	case session.OutcomeSuccess:
		msg := r.Message
		if msg == "" {
			msg = "Verification passed"
		}
		return View{Tone: ToneSuccess, Icon: "✓", Message: msg, AutoReset: r.AutoReset}
	case session.OutcomeFailure:
		v := View{Tone: ToneFailure, Icon: "✗", Message: r.Message}
		if v.Message == "" {
			v.Message = "Verification failed"
		}
		if r.Kind == captcha.KindValidation {
			v.Tone, v.Icon = ToneWarning, "!"
		}
		if r.Retry {
			v.Hint = "fix your answer and press enter to try again"
		} else {
			v.Hint = "press ctrl+r for a new captcha"
		}
		return v
	default:
		return View{}
	}
}

// Styles holds the banner styles.
type Styles struct {
	Success lipgloss.Style
	Failure lipgloss.Style
	Warning lipgloss.Style
	Hint    lipgloss.Style
}

// DefaultStyles returns banner styles matching the render palette.
func DefaultStyles() Styles {
	return Styles{
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")).Bold(true),
		Failure: lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD54F")).Bold(true),
		Hint:    lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280")).Italic(true),
	}
}

// Render draws the banner, or "" for an empty view.
func Render(v View, s Styles) string {
	var style lipgloss.Style
	switch v.Tone {
	case ToneSuccess:
		style = s.Success
	case ToneFailure:
		style = s.Failure
	case ToneWarning:
		style = s.Warning
	default:
		return ""
	}
	out := style.Render(v.Icon + " " + v.Message)
	if v.Hint != "" {
		out += "\n" + s.Hint.Render(v.Hint)
	}
	return out
}
