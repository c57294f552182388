package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/lead-enrichment/internal/lead"
)

// ReadRows loads lead rows from a .json file (an array of objects) or the
// first sheet of an .xlsx file whose first row is the header.
func ReadRows(path string) ([]lead.Row, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ReadJSON(path)
	case ".xlsx":
		return ReadXLSX(path, 0)
	default:
		return nil, eris.Errorf("export: unsupported input %q (want .json or .xlsx)", path)
	}
}

// ReadJSON decodes a JSON array of objects. Numbers are kept as
// json.Number so phone-like values do not lose digits.
func ReadJSON(path string) ([]lead.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "export: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	dec := json.NewDecoder(f)
	dec.UseNumber()
	var rows []lead.Row
	if err := dec.Decode(&rows); err != nil {
		return nil, eris.Wrapf(err, "export: decode %s", path)
	}
	return rows, nil
}

// ReadXLSX reads sheet index sheetIndex. Blank rows and header cells are
// skipped.
func ReadXLSX(path string, sheetIndex int) ([]lead.Row, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "export: open %s", path)
	}
	if sheetIndex < 0 || sheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("export: sheet index %d out of range (file has %d sheets)", sheetIndex, len(f.Sheets))
	}
	sheet := f.Sheets[sheetIndex]
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	header := cellStrings(sheet.Rows[0])
	var rows []lead.Row
	for _, r := range sheet.Rows[1:] {
		row := lead.Row{}
		for j, v := range cellStrings(r) {
			if j >= len(header) || header[j] == "" || v == "" {
				continue
			}
			row[header[j]] = v
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func cellStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	out := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		out[j] = strings.TrimSpace(cell.String())
	}
	return out
}
