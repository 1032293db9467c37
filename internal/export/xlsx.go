package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// WriteXLSX saves tables as worksheets of one workbook, in order.
func WriteXLSX(path string, tables []Table) error {
	if len(tables) == 0 {
		return eris.New("xlsx: nothing to write")
	}

	f := xlsx.NewFile()
	for _, t := range tables {
		sheet, err := f.AddSheet(sheetName(t.Name))
		if err != nil {
			return eris.Wrapf(err, "xlsx: add sheet %q", t.Name)
		}
		if len(t.Header) > 0 {
			addRow(sheet, t.Header)
		}
		for _, r := range t.Rows {
			addRow(sheet, r)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "xlsx: save file")
	}
	return nil
}

// sheetName trims to the 31 characters a worksheet name allows.
func sheetName(name string) string {
	if name == "" {
		name = "Sheet1"
	}
	if r := []rune(name); len(r) > 31 {
		return string(r[:31])
	}
	return name
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
