package export

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/signintech/gopdf"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CaptureScale is the pixel density of slide captures in PDFs.
const CaptureScale = 2

func init() { Register(pdfExporter{}) }

type pdfExporter struct{}

func (pdfExporter) Spec() FormatSpec {
	return FormatSpec{Format: "pdf", Label: "PDF", Extension: ".pdf", MIMEType: "application/pdf"}
}

// Export rasterizes every slide and places each capture on its own
// CanvasWidth x CanvasHeight pt page.
func (pdfExporter) Export(ctx context.Context, doc Document, w io.Writer, logger *zap.Logger) error {
	raster := NewRasterizer(logger)
	captures := make([][]byte, len(doc.Slides))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, slide := range doc.Slides {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			png, err := raster.RenderPNG(slide, RenderOptions{Scale: CaptureScale})
			if err != nil {
				return fmt.Errorf("capture slide %d: %w", slide.ID, err)
			}
			captures[i] = png
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	page := gopdf.Rect{W: CanvasWidth, H: CanvasHeight}
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: page})
	if doc.Title != "" {
		pdf.SetInfo(gopdf.PdfInfo{Title: doc.Title})
	}

	for i, png := range captures {
		pdf.AddPage()
		holder, err := gopdf.ImageHolderByBytes(png)
		if err != nil {
			return fmt.Errorf("load capture %d: %w", i+1, err)
		}
		if err := pdf.ImageByHolder(holder, 0, 0, &page); err != nil {
			return fmt.Errorf("place capture %d: %w", i+1, err)
		}
	}

	if _, err := pdf.WriteTo(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
