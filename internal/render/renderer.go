// Package render turns a generated challenge into a terminal view and reads
// the raw answer back out of it. There is one renderer per variant, chosen
// once when the session's challenge arrives.
//
// Renderers keep no answer state of their own: typed codes, selections and
// slide traces go through the Store owned by the session controller.
package render

import (
	"fmt"

	"captchaclient/internal/captcha"
	"captchaclient/internal/trajectory"

	"github.com/charmbracelet/lipgloss"
)

// Store is the captured-answer state a renderer reads and writes.
type Store interface {
	Code() string
	SetCode(code string)

	ToggleSelection(index int) bool
	IsSelected(index int) bool
	SelectionCount() int
	Selection() []int

	Trace() (trajectory.Trace, bool)
	SetTrace(trace trajectory.Trace)
	ClearTrace()
}

// Action is what the UI should do after a pointer event.
type Action int

const (
	ActionNone Action = iota
	// ActionRegenerate asks for a fresh challenge of the same variant.
	ActionRegenerate
	// ActionChanged means the view changed and should be redrawn.
	ActionChanged
)

// Palette holds the colours renderers use.
type Palette struct {
	Accent lipgloss.Color
	Muted  lipgloss.Color
	Danger lipgloss.Color
	Text   lipgloss.Color
}

// DefaultPalette is used when Options carries no palette.
var DefaultPalette = Palette{
	Accent: lipgloss.Color("#8BC34A"),
	Muted:  lipgloss.Color("#6b7280"),
	Danger: lipgloss.Color("#e53935"),
	Text:   lipgloss.Color("#f2f2f2"),
}

// Options configure renderer construction.
type Options struct {
	Store     Store
	Router    *trajectory.Router
	TrackMax  int
	Threshold int
	Clock     trajectory.Clock
	Palette   *Palette
}

// Renderer is implemented once per variant.
type Renderer interface {
	Variant() captcha.Variant

	// Render draws the challenge. Coordinates passed to Pointer are
	// relative to the top-left cell of this output.
	Render() string

	// Pointer handles a pointer event at local cell coordinates.
	Pointer(kind trajectory.PointerKind, x, y int) Action

	// ExtractAnswer returns the captured answer or a validation error.
	ExtractAnswer() (captcha.Answer, error)

	// Close releases anything the renderer acquired (pointer listeners).
	Close()
}

// New resolves the renderer for the challenge's variant.
func New(c *captcha.Challenge, opts Options) (Renderer, error) {
	if c == nil {
		return nil, fmt.Errorf("nil challenge")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("renderer needs a store")
	}
	palette := DefaultPalette
	if opts.Palette != nil {
		palette = *opts.Palette
	}

	switch c.Variant {
	case captcha.VariantCharacter:
		if c.Character == nil {
			return nil, fmt.Errorf("%w: character payload missing", captcha.ErrMalformedResponse)
		}
		return newCharacterRenderer(c.Character, opts.Store, palette), nil
	case captcha.VariantImageSelect:
		if c.ImageSelect == nil {
			return nil, fmt.Errorf("%w: image select payload missing", captcha.ErrMalformedResponse)
		}
		return newImageSelectRenderer(c.ImageSelect, opts.Store, palette), nil
	case captcha.VariantSlide:
		if c.Slide == nil {
			return nil, fmt.Errorf("%w: slide payload missing", captcha.ErrMalformedResponse)
		}
		if opts.Router == nil {
			return nil, fmt.Errorf("slide renderer needs a pointer router")
		}
		return newSlideRenderer(c.Slide, opts, palette), nil
	default:
		return nil, fmt.Errorf("%w: %q", captcha.ErrUnsupportedVariant, c.Variant)
	}
}
