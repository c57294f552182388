// Package export reads lead rows from files and writes enriched leads to
// spreadsheets.
package export

import (
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/lead-enrichment/internal/checkpoint"
	"github.com/sells-group/lead-enrichment/internal/lead"
)

// SheetName is the name of the sheet WriteXLSX produces.
const SheetName = "Enriched Leads"

// Columns is the header row of an export.
var Columns = []string{
	"Lead Key", "Saved At", "First Name", "Last Name", "Phone", "Email",
	"Address", "City", "State", "ZIP", "Line Type", "Carrier", "Carrier Type",
	"Normalized Carrier", "Age", "DOB", "Gate Passed", "Gate Reason",
	"Profile URL", "Error",
}

// WriteXLSX saves summaries to path, one row per lead under a header row.
func WriteXLSX(path string, summaries []checkpoint.Summary) error {
	f, err := build(summaries)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// Write streams the workbook to w.
func Write(w io.Writer, summaries []checkpoint.Summary) error {
	f, err := build(summaries)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "export: write workbook")
}

func build(summaries []checkpoint.Summary) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return nil, eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, c := range Columns {
		header.AddCell().SetString(c)
	}
	for _, s := range summaries {
		addSummary(sheet.AddRow(), s)
	}
	return f, nil
}

func addSummary(row *xlsx.Row, s checkpoint.Summary) {
	r := s.Result
	profile, _ := s.Row.Lookup(lead.FieldProfileURL)
	for _, v := range []string{
		s.Key,
		s.SavedAt.UTC().Format(time.RFC3339),
		r.FirstName, r.LastName, r.Phone, r.Email,
		r.Address, r.City, r.State, r.ZIP,
		r.LineType, r.Carrier, r.CarrierType, r.NormalizedCarrier,
	} {
		row.AddCell().SetString(v)
	}

	age := row.AddCell()
	if n, err := strconv.Atoi(r.Age); err == nil {
		age.SetInt(n)
	} else {
		age.SetString(r.Age)
	}
	row.AddCell().SetString(r.DOB)
	row.AddCell().SetBool(r.GatePassed)
	row.AddCell().SetString(r.GateReason)
	row.AddCell().SetString(profile)
	row.AddCell().SetString(r.Error)
}
