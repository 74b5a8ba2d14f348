package render

import (
	"strings"

	"captchaclient/internal/captcha"
	"captchaclient/internal/trajectory"

	"github.com/charmbracelet/lipgloss"
)

const (
	characterCols = 40
	characterRows = 8
)

// CharacterRenderer shows the code image. The code itself is typed into a
// field the UI owns and written to the store.
type CharacterRenderer struct {
	challenge *captcha.CharacterChallenge
	store     Store
	palette   Palette
}

func newCharacterRenderer(c *captcha.CharacterChallenge, store Store, p Palette) *CharacterRenderer {
	return &CharacterRenderer{challenge: c, store: store, palette: p}
}

func (r *CharacterRenderer) Variant() captcha.Variant { return captcha.VariantCharacter }

func (r *CharacterRenderer) Render() string {
	img := ImageBlock(r.challenge.Image, characterCols, characterRows, r.palette.Muted)
	hint := lipgloss.NewStyle().Foreground(r.palette.Muted).Render("click the image to refresh")
	return img + "\n" + hint
}

// Pointer regenerates on a press inside the image.
func (r *CharacterRenderer) Pointer(kind trajectory.PointerKind, x, y int) Action {
	if kind == trajectory.PointerDown && x >= 0 && x < characterCols && y >= 0 && y < characterRows {
		return ActionRegenerate
	}
	return ActionNone
}

// SetCode records the typed code.
func (r *CharacterRenderer) SetCode(code string) { r.store.SetCode(code) }

func (r *CharacterRenderer) ExtractAnswer() (captcha.Answer, error) {
	code := strings.TrimSpace(r.store.Code())
	if code == "" {
		return nil, captcha.NewValidationError("Please enter the code", nil)
	}
	return captcha.CodeAnswer(code), nil
}

func (r *CharacterRenderer) Close() {}
