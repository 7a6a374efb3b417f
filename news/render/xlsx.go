package render

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/m3rciful/newsbot/news/model"
)

const xlsxSheet = "Sheet1"

// XLSX renders entries as a Title/Date/Link sheet with clickable links.
type XLSX struct {
	now func() time.Time
}

// Format implements Renderer.
func (x *XLSX) Format() string { return FormatXLSX }

// Render implements Renderer.
func (x *XLSX) Render(entries []model.NewsEntry, title, descriptor string) (Document, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := x.fill(f, entries, title); err != nil {
		return Document{}, fmt.Errorf("%w: xlsx: %v", ErrRender, err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return Document{}, fmt.Errorf("%w: xlsx: %v", ErrRender, err)
	}
	return Document{
		Data:     buf.Bytes(),
		Filename: Filename(x.now(), descriptor, FormatXLSX),
		MIME:     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}, nil
}

func (x *XLSX) fill(f *excelize.File, entries []model.NewsEntry, title string) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return err
	}
	if err := f.SetCellValue(xlsxSheet, "A1", title); err != nil {
		return err
	}
	if err := f.SetCellStyle(xlsxSheet, "A1", "A1", bold); err != nil {
		return err
	}
	for i, h := range []string{"Title", "Date", "Link"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		if err := f.SetCellValue(xlsxSheet, cell, h); err != nil {
			return err
		}
	}
	for i, e := range entries {
		row := i + 3
		values := []string{e.Title, e.Date, e.Link}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(xlsxSheet, cell, v); err != nil {
				return err
			}
		}
		linkCell, _ := excelize.CoordinatesToCellName(3, row)
		if err := f.SetCellHyperLink(xlsxSheet, linkCell, e.Link, "External"); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(xlsxSheet, "A", "A", 90); err != nil {
		return err
	}
	return f.SetColWidth(xlsxSheet, "B", "C", 20)
}
