package ingest

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadXLSX parses a business feed from an XLSX file. The first row of
// the sheet must be a header.
func ReadXLSX(path string, sheetIndex int) ([]Record, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open xlsx")
	}
	if sheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("ingest: sheet index %d out of range (file has %d sheets)", sheetIndex, len(f.Sheets))
	}
	sheet := f.Sheets[sheetIndex]

	var cm columnMap
	var records []Record
	for i, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}

		if i == 0 {
			cm, err = mapHeader(cells)
			if err != nil {
				return nil, err
			}
			continue
		}

		rec := cm.toRecord(cells)
		if rec.Business.Name == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
