package export

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// MimeXLSX is the content type of spreadsheet exports.
const MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// maxSheetName is the longest sheet name spreadsheet apps accept.
const maxSheetName = 31

// XLSXExporter renders datasets into a single-sheet workbook.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// SheetName makes name usable as a worksheet title: forbidden characters are
// replaced and the result is cut to 31 characters.
func SheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		return "Hoja1"
	}
	if utf8.RuneCountInString(name) > maxSheetName {
		name = string([]rune(name)[:maxSheetName])
	}
	return name
}

// Render writes the header row followed by one row per record. Numeric
// columns are stored as numbers when their value parses.
func (e *XLSXExporter) Render(data Dataset, sheet string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	f := excelize.NewFile()
	defer f.Close()

	name := SheetName(sheet)
	if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for i, header := range data.Headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellStr(name, cell, header); err != nil {
			return nil, fmt.Errorf("write header %s: %w", header, err)
		}
		if width, ok := data.Widths[header]; ok && width > 0 {
			col, err := excelize.ColumnNumberToName(i + 1)
			if err != nil {
				return nil, fmt.Errorf("column name: %w", err)
			}
			if err := f.SetColWidth(name, col, col, width); err != nil {
				return nil, fmt.Errorf("column width %s: %w", header, err)
			}
		}
	}

	for r, row := range data.Rows {
		for i, header := range data.Headers {
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return nil, fmt.Errorf("row cell: %w", err)
			}
			value := row[header]
			if data.Numeric[header] {
				if n, err := strconv.ParseFloat(value, 64); err == nil {
					if err := f.SetCellFloat(name, cell, n, -1, 64); err != nil {
						return nil, fmt.Errorf("write %s: %w", cell, err)
					}
					continue
				}
			}
			if err := f.SetCellStr(name, cell, value); err != nil {
				return nil, fmt.Errorf("write %s: %w", cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
