// Package session owns the single active captcha session: its id, variant,
// lifecycle state and captured answer.
//
// The controller runs on the UI event loop and is not safe for concurrent
// use. Network calls happen elsewhere; their results come back through
// OnGenerated, OnGenerateFailed and OnVerified together with the Ticket that
// was current when the request was issued. A result whose ticket is no
// longer current is dropped, so a late reply can never touch a newer session.
package session

import (
	"errors"
	"time"

	"captchaclient/internal/captcha"
	"captchaclient/internal/logging"
	"captchaclient/internal/render"
	"captchaclient/internal/trajectory"
)

const (
	msgVerifyPassed   = "Verification passed"
	msgVerifyFailed   = "Verification failed, please try again"
	msgNoSession      = "Please generate a captcha first"
	msgBusy           = "Verification already in progress"
	msgAlreadyPassed  = "Already verified"
	msgBadChallenge   = "The server sent a challenge that cannot be shown"
	msgGenerateFailed = "Failed to generate captcha"
	msgVerifyError    = "Verification request failed"
)

// Controller is the session state machine.
type Controller struct {
	opts   Options
	router *trajectory.Router
	log    *logging.Logger

	state      State
	variant    captcha.Variant
	token      Ticket
	sessionID  string
	expireTime int64
	renderer   render.Renderer
	answers    answerState
	resolution *Resolution
}

// New creates an idle controller.
func New(opts Options) *Controller {
	if opts.AutoResetDelay <= 0 {
		opts.AutoResetDelay = DefaultAutoResetDelay
	}
	if !opts.Variant.Valid() {
		opts.Variant = captcha.VariantCharacter
	}
	return &Controller{
		opts:    opts,
		router:  trajectory.NewRouter(),
		log:     logging.Get(logging.CategorySession),
		variant: opts.Variant,
	}
}

// ===== ACCESSORS =====

func (c *Controller) State() State { return c.state }
func (c *Controller) Variant() captcha.Variant { return c.variant }
func (c *Controller) SessionID() string { return c.sessionID }
func (c *Controller) Token() Ticket { return c.token }
func (c *Controller) Router() *trajectory.Router { return c.router }

// ExpireTime is the backend expiry of the current challenge as a Unix
// timestamp, zero when unknown.
func (c *Controller) ExpireTime() int64 { return c.expireTime }

// Renderer is the renderer of the displayed challenge, nil when nothing is
// displayed.
func (c *Controller) Renderer() render.Renderer { return c.renderer }

// Resolution returns the last resolution, if the session is resolved.
func (c *Controller) Resolution() (Resolution, bool) {
	if c.resolution == nil {
		return Resolution{}, false
	}
	return *c.resolution, true
}

// Store exposes the captured answer state.
func (c *Controller) Store() render.Store { return &c.answers }

// SetCode records the typed character code.
func (c *Controller) SetCode(code string) { c.answers.SetCode(code) }

// Expired reports whether the backend expiry has passed.
func (c *Controller) Expired(now time.Time) bool {
	return c.expireTime > 0 && now.Unix() > c.expireTime
}

// ===== TRANSITIONS =====

// Start begins a new session of variant v and returns the ticket the
// generate request must carry. A session that is not idle is reset first,
// which also abandons any request still in flight.
func (c *Controller) Start(v captcha.Variant) Ticket {
	if c.state != StateIdle {
		c.Reset()
	}
	c.token++
	c.variant = v
	c.state = StateGenerating
	c.log.With("token", c.token).Info("start %s", v)
	return c.token
}

// OnGenerated delivers a generated challenge. It returns false when the
// ticket is stale and nothing changed.
func (c *Controller) OnGenerated(t Ticket, ch *captcha.Challenge) bool {
	if !c.current(t, StateGenerating) {
		c.log.With("token", t, "current", c.token).Debug("drop stale challenge")
		return false
	}
	if ch == nil || ch.Variant != c.variant {
		c.resolveFailure(captcha.KindTransport, msgBadChallenge, false)
		return true
	}

	r, err := render.New(ch, render.Options{
		Store:     &c.answers,
		Router:    c.router,
		TrackMax:  c.opts.TrackMax,
		Threshold: c.opts.Threshold,
		Clock:     c.opts.Clock,
		Palette:   c.opts.Palette,
	})
	if err != nil {
		c.log.Warn("cannot render %s challenge: %v", ch.Variant, err)
		c.resolveFailure(captcha.KindTransport, msgBadChallenge, false)
		return true
	}

	c.sessionID = ch.ID
	c.expireTime = ch.ExpireTime
	c.renderer = r
	c.resolution = nil
	c.state = StateDisplayed
	c.log.With("token", t, "captcha_id", ch.ID).Info("displayed %s", ch.Variant)
	return true
}

// OnGenerateFailed delivers a failed generate request. The session id stays
// absent. It returns false when the ticket is stale.
func (c *Controller) OnGenerateFailed(t Ticket, err error) bool {
	if !c.current(t, StateGenerating) {
		c.log.With("token", t, "current", c.token).Debug("drop stale generate failure")
		return false
	}
	kind := captcha.KindOf(err)
	if kind == 0 {
		kind = captcha.KindTransport
	}
	msg := captcha.UserMessage(err)
	if msg == "" {
		msg = msgGenerateFailed
	}
	c.resolveFailure(kind, msg, false)
	return true
}

// RequestVerification runs the local precondition checks and, when they
// pass, moves to Verifying and returns the request to send with its ticket.
// A failed check returns a validation error and sends nothing; the
// challenge stays on screen for another try.
func (c *Controller) RequestVerification() (Ticket, captcha.VerifyRequest, error) {
	switch {
	case c.state == StateVerifying:
		return 0, captcha.VerifyRequest{}, captcha.NewValidationError(msgBusy, nil)
	case c.state == StateGenerating:
		return 0, captcha.VerifyRequest{}, captcha.NewValidationError(msgNoSession, captcha.ErrNoSession)
	case c.resolution != nil && c.resolution.Success():
		return 0, captcha.VerifyRequest{}, captcha.NewValidationError(msgAlreadyPassed, nil)
	}

	if c.sessionID == "" || c.renderer == nil {
		err := captcha.NewValidationError(msgNoSession, captcha.ErrNoSession)
		c.resolveFailure(captcha.KindValidation, err.Message, false)
		return 0, captcha.VerifyRequest{}, err
	}

	answer, err := c.renderer.ExtractAnswer()
	if err == nil {
		var req captcha.VerifyRequest
		req, err = captcha.BuildVerifyRequest(c.sessionID, answer)
		if err == nil {
			c.token++
			c.state = StateVerifying
			c.resolution = nil
			c.log.With("token", c.token, "captcha_id", c.sessionID).Info("verify %s", c.variant)
			return c.token, req, nil
		}
	}

	kind := captcha.KindOf(err)
	if kind == 0 {
		kind = captcha.KindValidation
	}
	c.resolveFailure(kind, captcha.UserMessage(err), true)
	return 0, captcha.VerifyRequest{}, err
}

// OnVerified delivers a verification result. Success arms the auto-reset;
// a negative result or an error keeps the session for a retry. The second
// return is false when the ticket is stale and nothing changed.
func (c *Controller) OnVerified(t Ticket, valid bool, err error) (Resolution, bool) {
	if !c.current(t, StateVerifying) {
		c.log.With("token", t, "current", c.token).Debug("drop stale verify result")
		return Resolution{}, false
	}

	switch {
	case err != nil:
		kind := captcha.KindOf(err)
		if kind == 0 {
			kind = captcha.KindTransport
		}
		msg := captcha.UserMessage(err)
		if msg == "" || errors.Is(err, captcha.ErrMalformedResponse) {
			msg = msgVerifyError
		}
		c.resolveFailure(kind, msg, true)
	case valid:
		c.state = StateResolved
		c.resolution = &Resolution{
			Outcome:   OutcomeSuccess,
			Message:   msgVerifyPassed,
			AutoReset: c.opts.AutoResetDelay,
		}
		c.log.With("token", t, "captcha_id", c.sessionID).Info("verification passed")
	default:
		c.resolveFailure(0, msgVerifyFailed, true)
	}
	return *c.resolution, true
}

// ResetIfCurrent resets only when t is still the current ticket. The
// auto-reset timer uses it so that a timer armed for an old session does
// nothing to a newer one.
func (c *Controller) ResetIfCurrent(t Ticket) bool {
	if t != c.token {
		return false
	}
	c.Reset()
	return true
}

// Reset clears the session id and every captured answer, releases the
// renderer's listeners and returns to Idle. Any request in flight becomes
// stale.
func (c *Controller) Reset() {
	if c.renderer != nil {
		c.renderer.Close()
		c.renderer = nil
	}
	c.answers.clear()
	c.sessionID = ""
	c.expireTime = 0
	c.resolution = nil
	c.token++
	c.state = StateIdle
	c.log.With("token", c.token).Debug("reset")
}

func (c *Controller) current(t Ticket, want State) bool {
	return t == c.token && c.state == want
}

func (c *Controller) resolveFailure(kind captcha.Kind, msg string, retry bool) {
	c.state = StateResolved
	c.resolution = &Resolution{
		Outcome: OutcomeFailure,
		Kind:    kind,
		Message: msg,
		Retry:   retry && c.sessionID != "" && c.renderer != nil,
	}
	c.log.With("token", c.token, "kind", kind.String()).Info("failure: %s", msg)
}
