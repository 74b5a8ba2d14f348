package tui

import (
	"github.com/charmbracelet/glamour"
)

const helpMarkdown = `# Captcha client

| Key | Action |
| --- | --- |
| ` + "`tab` / `shift+tab`" + ` | switch challenge type (starts a new one) |
| ` + "`ctrl+r`" + ` | generate or refresh the challenge |
| ` + "`enter`" + ` | verify the answer |
| ` + "`1`-`9`" + ` | toggle an image (image select) |
| ` + "`?`" + ` | show or hide this help |
| ` + "`esc` / `ctrl+c`" + ` | quit |

## Challenges

- **Characters**: type the code shown in the image. Click the image for a new one.
- **Image select**: click the images that match the question.
- **Slide puzzle**: drag the ` + "`[→]`" + ` handle until the piece fits the hole.

A passed challenge clears itself after a moment. A failed one stays on
screen so you can correct your answer and try again.
`

// renderHelp renders the help page for the theme, falling back to the raw
// markdown when glamour cannot.
func renderHelp(themeName string, width int) string {
	if width <= 0 || width > 80 {
		width = 80
	}
	style := "light"
	if themeName == "dark" {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return helpMarkdown
	}
	out, err := r.Render(helpMarkdown)
	if err != nil {
		return helpMarkdown
	}
	return out
}
