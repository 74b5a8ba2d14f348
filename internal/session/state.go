package session

import (
	"time"

	"captchaclient/internal/captcha"
	"captchaclient/internal/render"
	"captchaclient/internal/trajectory"
)

// State is the lifecycle state of the active session.
type State int

const (
	StateIdle State = iota
	StateGenerating
	StateDisplayed
	StateVerifying
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	case StateDisplayed:
		return "displayed"
	case StateVerifying:
		return "verifying"
	case StateResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Outcome of a resolved session.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeSuccess
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "none"
	}
}

// Resolution describes how the last attempt ended.
type Resolution struct {
	Outcome Outcome
	// Kind is zero for a success or a negative verification.
	Kind    captcha.Kind
	Message string
	// Retry is set when the challenge is still on screen and can be answered
	// again without regenerating.
	Retry bool
	// AutoReset is the delay before the session returns to idle, zero when
	// nothing is armed.
	AutoReset time.Duration
}

// Success reports whether the attempt passed.
func (r Resolution) Success() bool { return r.Outcome == OutcomeSuccess }

// Ticket identifies one request. Results carrying an older ticket than the
// controller's current token are stale and dropped.
type Ticket uint64

// DefaultAutoResetDelay is how long a success stays on screen.
const DefaultAutoResetDelay = 2000 * time.Millisecond

// Options configure a Controller.
type Options struct {
	// Variant is the initial variant of an idle controller.
	Variant        captcha.Variant
	TrackMax       int
	Threshold      int
	Clock          trajectory.Clock
	AutoResetDelay time.Duration
	Palette        *render.Palette
}

// answerState is the captured answer of the current session. Renderers reach
// it only through the render.Store methods.
type answerState struct {
	code      string
	selection render.SelectionSet
	trace     *trajectory.Trace
}

func (a *answerState) Code() string { return a.code }
func (a *answerState) SetCode(code string) { a.code = code }
func (a *answerState) ToggleSelection(i int) bool { return a.selection.Toggle(i) }
func (a *answerState) IsSelected(i int) bool { return a.selection.Has(i) }
func (a *answerState) SelectionCount() int { return a.selection.Len() }
func (a *answerState) Selection() []int { return a.selection.Sorted() }
func (a *answerState) SetTrace(tr trajectory.Trace) { a.trace = &tr }
func (a *answerState) ClearTrace() { a.trace = nil }

func (a *answerState) Trace() (trajectory.Trace, bool) {
	if a.trace == nil {
		return trajectory.Trace{}, false
	}
	return *a.trace, true
}

func (a *answerState) clear() {
	a.code = ""
	a.selection.Clear()
	a.trace = nil
}
