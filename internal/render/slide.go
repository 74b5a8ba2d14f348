package render

import (
	"fmt"
	"math"
	"strings"

	"captchaclient/internal/captcha"
	"captchaclient/internal/trajectory"

	"github.com/charmbracelet/lipgloss"
)

const (
	trackCells   = 56
	handleCells  = 3
	slideImgRows = 10
	templateCols = 8
)

// SlideRenderer shows the background and a draggable handle on a fixed
// track. Pointer events are converted to track units and dispatched to the
// program-wide router, where the slide control picks them up.
type SlideRenderer struct {
	challenge *captcha.SlideChallenge
	store     Store
	palette   Palette
	router    *trajectory.Router
	control   *trajectory.Control

	unitsPerCell float64
	trackRow     int
}

func newSlideRenderer(c *captcha.SlideChallenge, opts Options, p Palette) *SlideRenderer {
	sampler := trajectory.NewSampler(opts.TrackMax, opts.Threshold, opts.Clock)
	r := &SlideRenderer{
		challenge:    c,
		store:        opts.Store,
		palette:      p,
		router:       opts.Router,
		unitsPerCell: float64(sampler.TrackMax()) / float64(trackCells),
		trackRow:     slideImgRows,
	}
	r.control = trajectory.NewControl(opts.Router, sampler, r.onHandle)
	r.control.OnStart(opts.Store.ClearTrace)
	r.control.OnFinish(opts.Store.SetTrace)
	r.control.Attach()
	return r
}

func (r *SlideRenderer) Variant() captcha.Variant { return captcha.VariantSlide }

// Control exposes the slide control.
func (r *SlideRenderer) Control() *trajectory.Control { return r.control }

// TrackRow is the local row of the track line.
func (r *SlideRenderer) TrackRow() int { return r.trackRow }

// ToUnits converts a local column to track units.
func (r *SlideRenderer) ToUnits(x int) int {
	return int(math.Round(float64(x) * r.unitsPerCell))
}

func (r *SlideRenderer) handleCol() int {
	return int(math.Round(float64(r.control.Offset()) / r.unitsPerCell))
}

// onHandle is the hit test: the press must land on the handle, with one cell
// of slack on each side.
func (r *SlideRenderer) onHandle(ev trajectory.PointerEvent) bool {
	if ev.Y != r.trackRow {
		return false
	}
	col := int(math.Round(float64(ev.X) / r.unitsPerCell))
	start := r.handleCol()
	return col >= start-1 && col <= start+handleCells
}

func (r *SlideRenderer) Render() string {
	bg := ImageBlock(r.challenge.BackgroundImage, trackCells+handleCells, slideImgRows, r.palette.Muted)
	if r.challenge.TemplateImage != "" {
		piece := ImageBlock(r.challenge.TemplateImage, templateCols, templateCols/2, r.palette.Muted)
		bg = lipgloss.JoinHorizontal(lipgloss.Top, bg, " ", piece)
		// Keep the track on the same row whatever the piece height.
		bg = lipgloss.NewStyle().Height(slideImgRows).MaxHeight(slideImgRows).Render(bg)
	}

	col := r.handleCol()
	track := lipgloss.NewStyle().Foreground(r.palette.Muted).Render(strings.Repeat("─", col)) +
		lipgloss.NewStyle().Foreground(r.palette.Accent).Bold(true).Render("[→]") +
		lipgloss.NewStyle().Foreground(r.palette.Muted).Render(strings.Repeat("─", trackCells-col))

	status := "drag the handle to complete the puzzle"
	if tr, ok := r.store.Trace(); ok {
		status = fmt.Sprintf("released at %d%% · %d points · %d ms", tr.FinalPercent, len(tr.Points), tr.Duration.Milliseconds())
	} else if r.control.Dragging() {
		status = fmt.Sprintf("%d%%", trajectory.Percent(r.control.Offset(), r.control.TrackMax()))
	}
	return bg + "\n" + track + "\n" + lipgloss.NewStyle().Foreground(r.palette.Muted).Render(status)
}

// Pointer forwards every event, wherever it landed, to the router.
func (r *SlideRenderer) Pointer(kind trajectory.PointerKind, x, y int) Action {
	r.router.Dispatch(trajectory.PointerEvent{Kind: kind, X: r.ToUnits(x), Y: y})
	return ActionChanged
}

func (r *SlideRenderer) ExtractAnswer() (captcha.Answer, error) {
	tr, ok := r.store.Trace()
	if !ok {
		return nil, captcha.NewValidationError("Please complete the slide", nil)
	}
	return tr.Answer(), nil
}

// Close detaches the control, releasing every listener it holds.
func (r *SlideRenderer) Close() {
	r.control.Detach()
}
