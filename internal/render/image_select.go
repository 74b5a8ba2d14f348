package render

import (
	"fmt"
	"strings"

	"captchaclient/internal/captcha"
	"captchaclient/internal/trajectory"

	"github.com/charmbracelet/lipgloss"
)

const (
	tileCols    = 14
	tileRows    = 5
	tileGap     = 2
	tilesPerRow = 4
	// Rows above the grid: question and a blank line.
	gridTop = 2
	// Each tile is drawn with its label line under it.
	tileHeight = tileRows + 1
)

// ImageSelectRenderer shows the question and a grid of selectable images.
type ImageSelectRenderer struct {
	challenge *captcha.ImageSelectChallenge
	store     Store
	palette   Palette
}

func newImageSelectRenderer(c *captcha.ImageSelectChallenge, store Store, p Palette) *ImageSelectRenderer {
	return &ImageSelectRenderer{challenge: c, store: store, palette: p}
}

func (r *ImageSelectRenderer) Variant() captcha.Variant { return captcha.VariantImageSelect }

// Images is the number of choices.
func (r *ImageSelectRenderer) Images() int { return len(r.challenge.Images) }

// Required is the number of images the backend asks for.
func (r *ImageSelectRenderer) Required() int { return r.challenge.SelectCount }

// Toggle flips the selection of image i. Out-of-range indexes are ignored.
func (r *ImageSelectRenderer) Toggle(i int) bool {
	if i < 0 || i >= len(r.challenge.Images) {
		return false
	}
	r.store.ToggleSelection(i)
	return true
}

func (r *ImageSelectRenderer) Render() string {
	question := lipgloss.NewStyle().Bold(true).Render(r.challenge.Question)

	var rows []string
	for start := 0; start < len(r.challenge.Images); start += tilesPerRow {
		end := start + tilesPerRow
		if end > len(r.challenge.Images) {
			end = len(r.challenge.Images)
		}
		var tiles []string
		for i := start; i < end; i++ {
			if i > start {
				tiles = append(tiles, strings.Repeat(" ", tileGap))
			}
			tiles = append(tiles, r.tile(i))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, tiles...))
	}

	count := fmt.Sprintf("Selected: %d  ·  Select %d image(s)", r.store.SelectionCount(), r.challenge.SelectCount)
	return question + "\n\n" + strings.Join(rows, "\n") + "\n" +
		lipgloss.NewStyle().Foreground(r.palette.Muted).Render(count)
}

func (r *ImageSelectRenderer) tile(i int) string {
	img := ImageBlock(r.challenge.Images[i], tileCols, tileRows, r.palette.Muted)

	mark, color := "[ ]", r.palette.Muted
	if r.store.IsSelected(i) {
		mark, color = "[x]", r.palette.Accent
	}
	label := lipgloss.NewStyle().Width(tileCols).Foreground(color).Render(fmt.Sprintf("%s %d", mark, i+1))
	return img + "\n" + label
}

// TileAt maps local cell coordinates to an image index, or -1.
func (r *ImageSelectRenderer) TileAt(x, y int) int {
	if y < gridTop || x < 0 {
		return -1
	}
	row := (y - gridTop) / tileHeight
	col := x / (tileCols + tileGap)
	if x%(tileCols+tileGap) >= tileCols || col >= tilesPerRow {
		return -1
	}
	i := row*tilesPerRow + col
	if i >= len(r.challenge.Images) {
		return -1
	}
	return i
}

// Pointer toggles the tile under a press.
func (r *ImageSelectRenderer) Pointer(kind trajectory.PointerKind, x, y int) Action {
	if kind != trajectory.PointerDown {
		return ActionNone
	}
	if i := r.TileAt(x, y); i >= 0 && r.Toggle(i) {
		return ActionChanged
	}
	return ActionNone
}

func (r *ImageSelectRenderer) ExtractAnswer() (captcha.Answer, error) {
	if r.store.SelectionCount() == 0 {
		return nil, captcha.NewValidationError("Please select at least one image", nil)
	}
	return captcha.SelectAnswer{SelectedIndexes: r.store.Selection()}, nil
}

func (r *ImageSelectRenderer) Close() {}
