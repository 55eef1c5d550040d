package frames

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// ErrInvalidCanvas is returned when the canvas size is not positive.
var ErrInvalidCanvas = errors.New("frames: canvas width and height must be positive")

// fallbackFontName identifies the embedded Go Bold face in style names.
const fallbackFontName = "gobold"

var (
	numeralColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	alarmColor   = color.RGBA{R: 255, A: 255}
)

// Renderer draws a single countdown frame.
type Renderer interface {
	// RenderFrame draws text centred on a fresh canvas. Alarm frames use the
	// alarm colour.
	RenderFrame(text string, alarm bool) (image.Image, error)

	// Style names the visual parameters that affect the rendered pixels.
	// Frames rendered with different styles must not share a cache directory.
	Style() string
}

// RendererOptions configures a FontRenderer.
type RendererOptions struct {
	Width    int
	Height   int
	FontPath string
	FontSize float64
}

// FontRenderer draws numerals with an OpenType face.
type FontRenderer struct {
	width       int
	height      int
	size        float64
	fontName    string
	face        font.Face
	transparent bool
}

// Compile-time check that FontRenderer implements Renderer.
var _ Renderer = (*FontRenderer)(nil)

// NewFontRenderer loads the configured font. When the font cannot be read or
// parsed a warning is logged and the embedded Go Bold face is used instead.
func NewFontRenderer(opts RendererOptions, logger *slog.Logger) (*FontRenderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidCanvas, opts.Width, opts.Height)
	}

	parsed, name, err := loadFont(opts.FontPath)
	if err != nil {
		logger.Warn("font unavailable, using embedded fallback",
			slog.String("font_path", opts.FontPath),
			slog.String("error", err.Error()),
		)
		parsed, err = opentype.Parse(gobold.TTF)
		if err != nil {
			return nil, fmt.Errorf("parse fallback font: %w", err)
		}
		name = fallbackFontName
	}

	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    opts.FontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}

	return &FontRenderer{
		width:    opts.Width,
		height:   opts.Height,
		size:     opts.FontSize,
		fontName: name,
		face:     face,
	}, nil
}

func loadFont(path string) (*opentype.Font, string, error) {
	if path == "" {
		return nil, "", errors.New("no font path configured")
	}
	data, err := os.ReadFile(path) // #nosec G304 - path comes from configuration
	if err != nil {
		return nil, "", fmt.Errorf("read font file: %w", err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, "", fmt.Errorf("parse font: %w", err)
	}
	return f, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), nil
}

// Transparent returns a renderer sharing the same face that leaves the
// background fully transparent, for compositing over a background video.
func (r *FontRenderer) Transparent() *FontRenderer {
	c := *r
	c.transparent = true
	return &c
}

// Style implements Renderer.
func (r *FontRenderer) Style() string {
	style := fmt.Sprintf("%s_%g_%dx%d", sanitize(r.fontName), r.size, r.width, r.height)
	if r.transparent {
		style += "_overlay"
	}
	return style
}

// RenderFrame implements Renderer.
func (r *FontRenderer) RenderFrame(text string, alarm bool) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	if !r.transparent {
		draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	}

	fg := numeralColor
	if alarm {
		fg = alarmColor
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: r.face,
	}

	bounds, _ := drawer.BoundString(text)
	textWidth := (bounds.Max.X - bounds.Min.X).Ceil()
	textHeight := (bounds.Max.Y - bounds.Min.Y).Ceil()

	x := (r.width-textWidth)/2 - bounds.Min.X.Floor()
	y := (r.height-textHeight)/2 - bounds.Min.Y.Floor()

	drawer.Dot = fixed.P(x, y)
	drawer.DrawString(text)

	return img, nil
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}
