package stubserver

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/color"
	"math"
	"math/rand"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	codeCharset = "23456789ABCDEFGHKMNPRSTUVWXYZ"
	codeLength  = 4
	codeWidth   = 160
	codeHeight  = 60

	tileSize    = 120
	imageCount  = 8
	selectCount = 2

	slideWidth     = 350
	slideHeight    = 200
	templateWidth  = 50
	templateHeight = 50
)

var shapes = []string{"circle", "square", "triangle", "star"}

// generator draws the fixture images. It is safe for concurrent use.
type generator struct {
	mu   sync.Mutex
	rand *rand.Rand
	font *truetype.Font
}

func newGenerator(seed int64) (*generator, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return &generator{
		rand: rand.New(rand.NewSource(seed)),
		font: f,
	}, nil
}

func (g *generator) intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rand.Intn(n)
}

func (g *generator) float() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rand.Float64()
}

func (g *generator) perm(n int) []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rand.Perm(n)
}

func dataURI(dc *gg.Context) (string, error) {
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (g *generator) noise(dc *gg.Context, w, h, n int) {
	for i := 0; i < n; i++ {
		dc.SetRGBA(g.float(), g.float(), g.float(), 0.3)
		dc.DrawPoint(float64(g.intn(w)), float64(g.intn(h)), 1)
		dc.Fill()
	}
}

// character returns a new code and its image.
func (g *generator) character() (code, image string, err error) {
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeCharset[g.intn(len(codeCharset))]
	}
	code = string(b)

	dc := gg.NewContext(codeWidth, codeHeight)
	dc.SetRGB(0.97, 0.97, 0.97)
	dc.Clear()
	g.noise(dc, codeWidth, codeHeight, 300)

	// Faces cache glyphs and are not safe to share between requests.
	dc.SetFontFace(truetype.NewFace(g.font, &truetype.Options{Size: 36}))
	for i, ch := range code {
		dc.SetRGB(0.1+0.6*float64(i)/codeLength, 0.1+0.5*float64(codeLength-i)/codeLength, 0.2+0.5*math.Abs(math.Sin(float64(i))))
		angle := -0.2 + 0.4*float64(i)/codeLength
		x := float64(codeWidth)/8 + float64(i)*float64(codeWidth)/4.5
		y := float64(codeHeight)/2 + 6*math.Sin(float64(i))
		dc.RotateAbout(angle, x, y)
		dc.DrawStringAnchored(string(ch), x, y, 0.5, 0.5)
		dc.RotateAbout(-angle, x, y)
	}
	for i := 0; i < 3; i++ {
		dc.SetRGBA(0.5, 0.5, 0.5, 0.5)
		dc.SetLineWidth(1)
		dc.DrawLine(0, float64(g.intn(codeHeight)), codeWidth, float64(g.intn(codeHeight)))
		dc.Stroke()
	}

	image, err = dataURI(dc)
	return code, image, err
}

// imageSelect returns the target shape, the target indexes and the tiles.
func (g *generator) imageSelect() (target string, targets []int, images []string, err error) {
	target = shapes[g.intn(len(shapes))]
	order := g.perm(imageCount)
	targets = append([]int(nil), order[:selectCount]...)

	isTarget := make(map[int]bool, selectCount)
	for _, i := range targets {
		isTarget[i] = true
	}

	images = make([]string, imageCount)
	for i := range images {
		shape := target
		if !isTarget[i] {
			for shape == target {
				shape = shapes[g.intn(len(shapes))]
			}
		}
		images[i], err = g.tile(shape)
		if err != nil {
			return "", nil, nil, err
		}
	}
	return target, targets, images, nil
}

func (g *generator) tile(shape string) (string, error) {
	dc := gg.NewContext(tileSize, tileSize)
	dc.SetRGB(0.9+0.1*g.float(), 0.9+0.1*g.float(), 0.9+0.1*g.float())
	dc.Clear()
	g.noise(dc, tileSize, tileSize, 80)

	c := float64(tileSize) / 2
	r := float64(tileSize)/3 + 8*g.float()
	dc.SetRGB(0.2+0.6*g.float(), 0.2+0.6*g.float(), 0.2+0.6*g.float())
	switch shape {
	case "circle":
		dc.DrawCircle(c, c, r)
	case "square":
		dc.DrawRectangle(c-r, c-r, 2*r, 2*r)
	case "triangle":
		dc.DrawRegularPolygon(3, c, c, r, 0)
	case "star":
		for i := 0; i < 10; i++ {
			rr := r
			if i%2 == 1 {
				rr = r / 2.5
			}
			a := float64(i)*math.Pi/5 - math.Pi/2
			dc.LineTo(c+rr*math.Cos(a), c+rr*math.Sin(a))
		}
		dc.ClosePath()
	}
	dc.Fill()
	return dataURI(dc)
}

// slide returns the background with a hole, the matching piece, its row
// and the hole position as a percent of the track.
func (g *generator) slide() (background, template string, templateY, targetPercent int, err error) {
	bg := gg.NewContext(slideWidth, slideHeight)
	grad := gg.NewLinearGradient(0, 0, slideWidth, slideHeight)
	grad.AddColorStop(0, colorAt(g.float()))
	grad.AddColorStop(1, colorAt(g.float()))
	bg.SetFillStyle(grad)
	bg.DrawRectangle(0, 0, slideWidth, slideHeight)
	bg.Fill()
	g.noise(bg, slideWidth, slideHeight, 100)

	span := slideWidth - templateWidth
	// Keep the hole off the start so a zero-length drag never passes.
	holeX := span/5 + g.intn(span-span/5)
	templateY = 10 + g.intn(slideHeight-templateHeight-20)

	piece := gg.NewContext(templateWidth, templateHeight)
	piece.DrawImage(bg.Image(), -holeX, -templateY)
	piece.SetRGBA(1, 1, 1, 0.8)
	piece.SetLineWidth(2)
	piece.DrawRectangle(1, 1, templateWidth-2, templateHeight-2)
	piece.Stroke()

	bg.SetRGBA(0, 0, 0, 0.5)
	bg.DrawRectangle(float64(holeX), float64(templateY), templateWidth, templateHeight)
	bg.Fill()

	if background, err = dataURI(bg); err != nil {
		return
	}
	if template, err = dataURI(piece); err != nil {
		return
	}
	targetPercent = int(math.Round(float64(holeX) * 100 / float64(span)))
	return background, template, templateY, targetPercent, nil
}

func colorAt(t float64) color.Color {
	return color.RGBA{R: uint8(100 + 155*t), G: uint8(150 + 100*(1-t)), B: 200, A: 255}
}
