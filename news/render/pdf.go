package render

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/m3rciful/newsbot/news/model"
)

// PDF renders a one-column digest: a bold title, then "title (date)" followed by a blue link per entry.
type PDF struct {
	now func() time.Time
}

// Format implements Renderer.
func (p *PDF) Format() string { return FormatPDF }

// Render implements Renderer.
func (p *PDF) Render(entries []model.NewsEntry, title, descriptor string) (Document, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetTitle(title, true)
	doc.SetMargins(15, 15, 15)
	doc.SetAutoPageBreak(true, 15)
	doc.AddPage()

	doc.SetFont("Times", "B", 18)
	doc.MultiCell(0, 10, tr(title), "", "C", false)
	doc.Ln(4)

	for _, e := range entries {
		doc.SetFont("Times", "", 12)
		doc.SetTextColor(0, 0, 0)
		doc.Write(6, tr(entryLine(e)))
		doc.SetTextColor(0, 0, 255)
		doc.SetFont("Times", "U", 12)
		doc.WriteLinkString(6, "Link", e.Link)
		doc.Ln(9)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return Document{}, fmt.Errorf("%w: pdf: %v", ErrRender, err)
	}
	return Document{
		Data:     buf.Bytes(),
		Filename: Filename(p.now(), descriptor, FormatPDF),
		MIME:     "application/pdf",
	}, nil
}

func entryLine(e model.NewsEntry) string {
	if e.Date == "" {
		return e.Title + " "
	}
	return fmt.Sprintf("%s (%s) ", e.Title, e.Date)
}
