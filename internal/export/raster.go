package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"

	"slides/internal/domain"
)

// Canvas size of the editor in CSS pixels.
const (
	CanvasWidth  = 960
	CanvasHeight = 540
)

// MaxThumbnailWidth caps Thumbnail's width argument.
const MaxThumbnailWidth = 2 * CanvasWidth

var (
	highlightColor   = color.NRGBA{R: 0x3B, G: 0x82, B: 0xF6, A: 0xFF}
	placeholderColor = color.NRGBA{R: 0xE5, G: 0xE7, B: 0xEB, A: 0xFF}
)

// RenderOptions controls how a slide is rasterized.
type RenderOptions struct {
	Scale float64
	// Highlight outlines this element like the editor's selection. Export
	// captures always leave it at NoElement.
	Highlight domain.ElementID
}

type faceKey struct {
	bold, italic bool
	size         float64
}

// Rasterizer draws slides the way the canvas shows them. Font faces are
// built per Render call.
type Rasterizer struct {
	logger *zap.Logger
}

func NewRasterizer(logger *zap.Logger) *Rasterizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rasterizer{logger: logger}
}

var (
	fontsOnce sync.Once
	fontSet   map[[2]bool]*truetype.Font
	fontsErr  error
)

func loadFonts() (map[[2]bool]*truetype.Font, error) {
	fontsOnce.Do(func() {
		fontSet = map[[2]bool]*truetype.Font{}
		for key, ttf := range map[[2]bool][]byte{
			{false, false}: goregular.TTF,
			{true, false}:  gobold.TTF,
			{false, true}:  goitalic.TTF,
			{true, true}:   gobolditalic.TTF,
		} {
			f, err := truetype.Parse(ttf)
			if err != nil {
				fontsErr = fmt.Errorf("parse font: %w", err)
				return
			}
			fontSet[key] = f
		}
	})
	return fontSet, fontsErr
}

type faceCache map[faceKey]font.Face

func (c faceCache) face(bold, italic bool, size float64) (font.Face, error) {
	fs, err := loadFonts()
	if err != nil {
		return nil, err
	}
	key := faceKey{bold: bold, italic: italic, size: size}
	if f, ok := c[key]; ok {
		return f, nil
	}
	f := truetype.NewFace(fs[[2]bool{bold, italic}], &truetype.Options{Size: size, DPI: 72})
	c[key] = f
	return f, nil
}

// Render rasterizes one slide. Elements are painted in z-order.
func (r *Rasterizer) Render(slide domain.Slide, opts RenderOptions) (image.Image, error) {
	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}
	dc := gg.NewContext(int(CanvasWidth*scale), int(CanvasHeight*scale))

	r.drawBackground(dc, slide.Background)
	faces := faceCache{}

	for _, el := range slide.Elements {
		switch el.Kind {
		case domain.KindText:
			if err := r.drawText(dc, faces, el, scale); err != nil {
				return nil, err
			}
		case domain.KindImage:
			r.drawImage(dc, el, scale)
		}
		if opts.Highlight != domain.NoElement && el.ID == opts.Highlight {
			dc.SetColor(highlightColor)
			dc.SetLineWidth(2 * scale)
			dc.DrawRectangle(el.X*scale, el.Y*scale, el.Width*scale, el.Height*scale)
			dc.Stroke()
		}
	}
	return dc.Image(), nil
}

// RenderPNG renders a slide and encodes it as PNG.
func (r *Rasterizer) RenderPNG(slide domain.Slide, opts RenderOptions) ([]byte, error) {
	img, err := r.Render(slide, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	dc := gg.NewContextForImage(img)
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Thumbnail renders a slide at the given pixel width as a PNG data URL.
func (r *Rasterizer) Thumbnail(slide domain.Slide, width int, highlight domain.ElementID) (string, error) {
	if width <= 0 {
		width = 192
	}
	if width > MaxThumbnailWidth {
		width = MaxThumbnailWidth
	}
	png, err := r.RenderPNG(slide, RenderOptions{
		Scale:     float64(width) / CanvasWidth,
		Highlight: highlight,
	})
	if err != nil {
		return "", err
	}
	return EncodeDataURL(png, "image/png"), nil
}

func (r *Rasterizer) drawBackground(dc *gg.Context, bg *domain.Background) {
	dc.SetColor(color.White)
	dc.Clear()
	if bg == nil {
		return
	}
	if c, ok := parseColor(bg.Color); ok {
		dc.SetColor(c)
		dc.Clear()
	}
	if bg.Image == "" {
		return
	}
	img, err := decodeImage(bg.Image)
	if err != nil {
		r.logger.Warn("skip background image", zap.Error(err))
		return
	}
	w, h := dc.Width(), dc.Height()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	dc.DrawImage(dst, 0, 0)
}

func (r *Rasterizer) drawText(dc *gg.Context, faces faceCache, el domain.Element, scale float64) error {
	x, y, w, h := el.X*scale, el.Y*scale, el.Width*scale, el.Height*scale

	if c, ok := parseColor(el.Style.BackgroundColor); ok {
		dc.SetColor(c)
		dc.DrawRectangle(x, y, w, h)
		dc.Fill()
	}

	size := el.Style.FontSize
	if size <= 0 {
		size = domain.DefaultStyle().FontSize
	}
	face, err := faces.face(el.Style.Bold(), el.Style.Italic(), size*scale)
	if err != nil {
		return err
	}

	fg, ok := parseColor(el.Style.Color)
	if !ok {
		fg = color.NRGBA{A: 0xFF}
	}

	dc.Push()
	defer dc.Pop()
	dc.DrawRectangle(x, y, w, h)
	dc.Clip()
	dc.SetFontFace(face)
	dc.SetColor(fg)
	dc.DrawStringWrapped(el.Content, x, y, 0, 0, w, 1.2, gg.AlignLeft)
	dc.ResetClip()
	return nil
}

func (r *Rasterizer) drawImage(dc *gg.Context, el domain.Element, scale float64) {
	x, y := el.X*scale, el.Y*scale
	w, h := el.Width*scale, el.Height*scale
	if !(w > 0 && h > 0) {
		return
	}
	// Only the part of the element that lands on the canvas is scaled.
	vis, ok := visibleRect(x, y, w, h, dc.Width(), dc.Height())
	if !ok {
		return
	}

	img, err := decodeImage(el.Content)
	if err != nil {
		if el.Content != "" {
			r.logger.Warn("skip image element", zap.Int64("element", int64(el.ID)), zap.Error(err))
		}
		dc.SetColor(placeholderColor)
		dc.DrawRectangle(float64(vis.Min.X), float64(vis.Min.Y), float64(vis.Dx()), float64(vis.Dy()))
		dc.Fill()
		return
	}

	b := img.Bounds()
	sx, sy := float64(b.Dx())/w, float64(b.Dy())/h
	src := image.Rect(
		b.Min.X+int(math.Floor((float64(vis.Min.X)-x)*sx)),
		b.Min.Y+int(math.Floor((float64(vis.Min.Y)-y)*sy)),
		b.Min.X+int(math.Ceil((float64(vis.Max.X)-x)*sx)),
		b.Min.Y+int(math.Ceil((float64(vis.Max.Y)-y)*sy)),
	).Intersect(b)
	if src.Empty() {
		return
	}

	dst := image.NewRGBA(image.Rect(0, 0, vis.Dx(), vis.Dy()))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Over, nil)
	dc.DrawImage(dst, vis.Min.X, vis.Min.Y)
}

// visibleRect clips an element rectangle to a canvas of cw×ch pixels.
func visibleRect(x, y, w, h float64, cw, ch int) (image.Rectangle, bool) {
	x0, y0 := math.Max(x, 0), math.Max(y, 0)
	x1, y1 := math.Min(x+w, float64(cw)), math.Min(y+h, float64(ch))
	if !(x1 > x0 && y1 > y0) {
		return image.Rectangle{}, false
	}
	r := image.Rect(int(x0), int(y0), int(math.Ceil(x1)), int(math.Ceil(y1)))
	return r, !r.Empty()
}
