package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"

	ppt "github.com/VantageDataChat/GoPPT"
	"go.uber.org/zap"

	"slides/internal/domain"
)

const (
	emuPerInch = 914400
	pxPerInch  = 100
)

// emu converts canvas pixels to EMU at 100px per inch.
func emu(px float64) int64 {
	return int64(math.Round(px / pxPerInch * emuPerInch))
}

func init() { Register(pptxExporter{}) }

type pptxExporter struct{}

func (pptxExporter) Spec() FormatSpec {
	return FormatSpec{
		Format:    "pptx",
		Label:     "PowerPoint",
		Extension: ".pptx",
		MIMEType:  "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	}
}

func (pptxExporter) Export(ctx context.Context, doc Document, w io.Writer, logger *zap.Logger) error {
	p := ppt.New()
	p.GetDocumentProperties().Title = doc.Title

	for i, s := range doc.Slides {
		if err := ctx.Err(); err != nil {
			return err
		}
		// A new presentation starts with one empty slide.
		slide := p.GetActiveSlide()
		if i > 0 {
			slide = p.CreateSlide()
		}
		writePPTXBackground(slide, s.Background, logger)
		for _, el := range s.Elements {
			switch el.Kind {
			case domain.KindText:
				writePPTXText(slide, el)
			case domain.KindImage:
				writePPTXImage(slide, el, logger)
			}
		}
	}

	pw, err := ppt.NewWriter(p, ppt.WriterPowerPoint2007)
	if err != nil {
		return fmt.Errorf("create pptx writer: %w", err)
	}
	var buf bytes.Buffer
	if err := pw.(*ppt.PPTXWriter).WriteTo(&buf); err != nil {
		return fmt.Errorf("write pptx: %w", err)
	}
	_, err = buf.WriteTo(w)
	return err
}

func writePPTXBackground(slide *ppt.Slide, bg *domain.Background, logger *zap.Logger) {
	if bg == nil {
		return
	}
	if c, ok := parseColor(bg.Color); ok {
		fill := slide.CreateRichTextShape()
		fill.SetOffsetX(0).SetOffsetY(0)
		fill.SetWidth(emu(CanvasWidth)).SetHeight(emu(CanvasHeight))
		fill.SetFill(ppt.NewFill().SetSolid(ppt.NewColor(argb(c))))
	}
	if bg.Image == "" {
		return
	}
	data, mimeType, err := DecodeDataURL(bg.Image)
	if err != nil {
		logger.Warn("skip background image", zap.Error(err))
		return
	}
	img := slide.CreateDrawingShape()
	img.SetImageData(data, mimeType)
	img.SetOffsetX(0).SetOffsetY(0)
	img.SetWidth(emu(CanvasWidth)).SetHeight(emu(CanvasHeight))
}

func writePPTXText(slide *ppt.Slide, el domain.Element) {
	shape := slide.CreateRichTextShape()
	shape.SetOffsetX(emu(el.X)).SetOffsetY(emu(el.Y))
	shape.SetWidth(emu(el.Width)).SetHeight(emu(el.Height))
	if c, ok := parseColor(el.Style.BackgroundColor); ok {
		shape.SetFill(ppt.NewFill().SetSolid(ppt.NewColor(argb(c))))
	}

	tr := shape.CreateTextRun(el.Content)
	f := tr.GetFont().SetSize(int(math.Round(el.Style.FontSize))).SetBold(el.Style.Bold())
	if c, ok := parseColor(el.Style.Color); ok {
		f.SetColor(ppt.NewColor(argb(c)))
	}
	f.Italic = el.Style.Italic()
}

func writePPTXImage(slide *ppt.Slide, el domain.Element, logger *zap.Logger) {
	data, mimeType, err := DecodeDataURL(el.Content)
	if err != nil {
		logger.Warn("skip image element", zap.Int64("element", int64(el.ID)), zap.Error(err))
		return
	}
	img := slide.CreateDrawingShape()
	img.SetImageData(data, mimeType)
	img.SetOffsetX(emu(el.X)).SetOffsetY(emu(el.Y))
	img.SetWidth(emu(el.Width)).SetHeight(emu(el.Height))
}
