// Package qrcode renders the share-the-app QR code as PNG or as a
// printable HTML page.
package qrcode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"os"
	"strconv"
	"strings"

	goqrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ecotracker/backend/internal/apperr"
	"github.com/ecotracker/backend/pkg/logger"
)

const (
	DefaultURL   = "https://ecotracker-vercel.vercel.app/"
	DefaultTitle = "EcoTracker App"
	DefaultColor = "#28a745"

	// ModuleSize is the width of one QR module in pixels. go-qrcode reads a
	// negative size as pixels per module.
	ModuleSize = 10

	TitleHeight = 50
	logoRatio   = 0.2
	logoPadding = 5
	titleScale  = 2
)

var ErrInvalidColor = errors.New("invalid colour, expected #rrggbb")

type Options struct {
	URL   string
	Title string
	Color string
	// LogoPath is an optional PNG or JPEG overlaid at the centre.
	LogoPath string
}

func (o Options) withDefaults() Options {
	if o.Color == "" {
		o.Color = DefaultColor
	}
	return o
}

// ParseColor accepts "#rrggbb" or "rrggbb". Errors match both
// ErrInvalidColor and apperr.ErrInvalidInput.
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return color.RGBA{}, invalidColor(s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, invalidColor(s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

func invalidColor(s string) error {
	return fmt.Errorf("%q: %w: %w", s, ErrInvalidColor, apperr.ErrInvalidInput)
}

// Generate renders opts.URL at the highest error-correction level so a
// centred logo does not break decoding. A title, when set, is drawn in a
// white strip above the code.
func Generate(opts Options) (image.Image, error) {
	opts = opts.withDefaults()
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("url is required: %w", apperr.ErrInvalidInput)
	}

	fg, err := ParseColor(opts.Color)
	if err != nil {
		return nil, err
	}

	q, err := goqrcode.New(opts.URL, goqrcode.Highest)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	q.ForegroundColor = fg
	q.BackgroundColor = color.White

	code := q.Image(-ModuleSize)
	img := image.NewRGBA(code.Bounds())
	draw.Draw(img, img.Bounds(), code, code.Bounds().Min, draw.Src)

	if opts.LogoPath != "" {
		if err := overlayLogo(img, opts.LogoPath); err != nil {
			logger.Warn("Error adding logo", zap.String("path", opts.LogoPath), zap.Error(err))
		}
	}

	if opts.Title != "" {
		return withTitle(img, opts.Title), nil
	}
	return img, nil
}

func overlayLogo(img *image.RGBA, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	logo, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("failed to decode logo: %w", err)
	}

	b := img.Bounds()
	size := int(float64(b.Dx()) * logoRatio)
	if size <= 0 {
		return nil
	}

	padded := size + 2*logoPadding
	x0 := b.Min.X + (b.Dx()-size)/2 - logoPadding
	y0 := b.Min.Y + (b.Dy()-size)/2 - logoPadding

	pad := image.Rect(x0, y0, x0+padded, y0+padded)
	draw.Draw(img, pad, image.White, image.Point{}, draw.Src)

	dst := image.Rect(x0+logoPadding, y0+logoPadding, x0+logoPadding+size, y0+logoPadding+size)
	xdraw.CatmullRom.Scale(img, dst, logo, logo.Bounds(), xdraw.Over, nil)
	return nil
}

func withTitle(code *image.RGBA, title string) *image.RGBA {
	cb := code.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, cb.Dx(), cb.Dy()+TitleHeight))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(out, image.Rect(0, TitleHeight, cb.Dx(), cb.Dy()+TitleHeight), code, cb.Min, draw.Src)

	face := basicfont.Face7x13
	d := &font.Drawer{Face: face}
	w := d.MeasureString(title).Ceil()
	h := face.Metrics().Height.Ceil()
	if w == 0 {
		return out
	}

	text := image.NewRGBA(image.Rect(0, 0, w, h))
	d.Dst = text
	d.Src = image.Black
	d.Dot = fixed.P(0, face.Metrics().Ascent.Ceil())
	d.DrawString(title)

	sw, sh := w*titleScale, h*titleScale
	if sw > out.Bounds().Dx() {
		sw, sh = w, h
	}
	x := (out.Bounds().Dx() - sw) / 2
	if x < 0 {
		x = 0
	}
	y := TitleHeight / 4
	xdraw.NearestNeighbor.Scale(out, image.Rect(x, y, x+sw, y+sh), text, text.Bounds(), xdraw.Over, nil)
	return out
}

// EncodePNG renders opts and returns PNG bytes.
func EncodePNG(opts Options) ([]byte, error) {
	img, err := Generate(opts)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile renders opts to a PNG file at path.
func WriteFile(path string, opts Options) error {
	data, err := EncodePNG(opts)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
