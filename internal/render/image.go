package render

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/charmbracelet/lipgloss"
	xdraw "golang.org/x/image/draw"
)

// ErrNotDataURI is returned for image references that are plain URLs. The
// terminal client does not fetch remote images.
var ErrNotDataURI = errors.New("image reference is not a data URI")

// DecodeImageRef decodes a base64 data URI such as
// "data:image/png;base64,iVBOR...".
func DecodeImageRef(ref string) (image.Image, error) {
	if !strings.HasPrefix(ref, "data:") {
		return nil, ErrNotDataURI
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("data URI has no payload")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("unsupported data URI encoding %q", meta)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image payload: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Thumbnail draws img into a cols x rows block of terminal cells. Each cell
// holds two vertical pixels: the upper half block takes the top pixel as
// foreground and the bottom pixel as background.
func Thumbnail(img image.Image, cols, rows int) string {
	if cols <= 0 || rows <= 0 {
		return ""
	}
	dst := image.NewRGBA(image.Rect(0, 0, cols, rows*2))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	var b strings.Builder
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			top := hexColor(dst.RGBAAt(x, y*2))
			bottom := hexColor(dst.RGBAAt(x, y*2+1))
			b.WriteString(lipgloss.NewStyle().Foreground(top).Background(bottom).Render("▀"))
		}
		if y < rows-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// ImageBlock renders ref at the given size, falling back to a framed caption
// when the reference cannot be decoded. The result always spans rows lines.
func ImageBlock(ref string, cols, rows int, muted lipgloss.Color) string {
	img, err := DecodeImageRef(ref)
	if err == nil {
		return Thumbnail(img, cols, rows)
	}

	caption := "[image unavailable]"
	if errors.Is(err, ErrNotDataURI) {
		caption = "[" + truncate(ref, cols-2) + "]"
	}
	return lipgloss.NewStyle().
		Width(cols).
		Height(rows).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(muted).
		Render(truncate(caption, cols))
}

func hexColor(c color.RGBA) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
