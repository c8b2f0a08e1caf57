package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"baliance.com/gooxml/color"
	"baliance.com/gooxml/common"
	"baliance.com/gooxml/document"
	"baliance.com/gooxml/measurement"
	"go.uber.org/zap"

	"slides/internal/domain"
)

// Display size of every embedded image in docx output.
const (
	docxImageWidth  = 4 * measurement.Inch
	docxImageHeight = 3 * measurement.Inch
)

const imageUnavailable = "[image unavailable]"

func init() { Register(docxExporter{}) }

type docxExporter struct{}

func (docxExporter) Spec() FormatSpec {
	return FormatSpec{
		Format:    "docx",
		Label:     "Word document",
		Extension: ".docx",
		MIMEType:  "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
}

// Export writes a heading and a paragraph for every element, in reading
// order within each slide.
func (docxExporter) Export(ctx context.Context, doc Document, w io.Writer, logger *zap.Logger) error {
	// gooxml reads embedded images from disk when the document is saved.
	tmp, err := os.MkdirTemp("", "slides-docx-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	d := document.New()
	if doc.Title != "" {
		title := d.AddParagraph()
		title.SetStyle("Title")
		title.AddRun().AddText(doc.Title)
	}

	for n, slide := range doc.Slides {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i, el := range domain.ReadingOrder(slide.Elements) {
			heading := d.AddParagraph()
			heading.SetStyle("Heading2")
			heading.AddRun().AddText(fmt.Sprintf("Slide %d · %s", n+1, kindLabel(el.Kind)))

			para := d.AddParagraph()
			switch el.Kind {
			case domain.KindText:
				writeDocxText(para, el)
			case domain.KindImage:
				path := filepath.Join(tmp, strconv.Itoa(n)+"-"+strconv.Itoa(i))
				if err := writeDocxImage(d, para, el, path); err != nil {
					logger.Warn("image embed failed", zap.Int64("element", int64(el.ID)), zap.Error(err))
					para.AddRun().AddText(imageUnavailable)
				}
			}
		}
	}

	if err := d.Save(w); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}

func kindLabel(k domain.ElementKind) string {
	switch k {
	case domain.KindText:
		return "Text"
	case domain.KindImage:
		return "Image"
	}
	return string(k)
}

func writeDocxText(para document.Paragraph, el domain.Element) {
	run := para.AddRun()
	run.AddText(el.Content)

	props := run.Properties()
	props.SetBold(el.Style.Bold())
	props.SetItalic(el.Style.Italic())
	if el.Style.FontSize > 0 {
		props.SetSize(measurement.Distance(el.Style.FontSize) * measurement.Point)
	}
	if c, ok := parseColor(el.Style.Color); ok {
		props.SetColor(color.RGB(c.R, c.G, c.B))
	}
}

func writeDocxImage(d *document.Document, para document.Paragraph, el domain.Element, path string) error {
	data, mimeType, err := DecodeDataURL(el.Content)
	if err != nil {
		return err
	}
	path += extensionFor(mimeType)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("stage image: %w", err)
	}

	img, err := common.ImageFromFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	ref, err := d.AddImage(img)
	if err != nil {
		return fmt.Errorf("add image: %w", err)
	}
	inl, err := para.AddRun().AddDrawingInline(ref)
	if err != nil {
		return fmt.Errorf("inline image: %w", err)
	}
	inl.SetSize(docxImageWidth, docxImageHeight)
	return nil
}
