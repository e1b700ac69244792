package profile

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/nonprofit-ranker/internal/model"
)

// XLSXOptions selects the worksheet holding profiles.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadXLSX reads profiles from a worksheet whose first row is a header.
func ReadXLSX(path string, opts XLSXOptions) ([]model.RawProfile, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	mapper, err := newRowMapper(rowToStrings(sheet.Rows[0]))
	if err != nil {
		return nil, err
	}

	var out []model.RawProfile
	for i, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		if blankRow(cells) {
			continue
		}
		p, err := mapper.Map(cells, i+2)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// WriteXLSXTemplate writes an empty profile workbook containing only the
// header row.
func WriteXLSXTemplate(path string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Profiles")
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}
	row := sheet.AddRow()
	for _, h := range Header() {
		row.AddCell().SetString(h)
	}
	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "xlsx: save template")
	}
	return nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
