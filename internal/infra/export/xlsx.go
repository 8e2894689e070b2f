// Package export renders scan rows into spreadsheet reports.
package export

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	domain "github.com/bryanwahyu/qa-scanlog/internal/domain/scans"
)

const sheet = "Sheet1"

// Headers of the QA report, in column order.
var Headers = []string{
	"SL.NO", "QR Code", "Power", "RPM", "Power Factor", "Failure Code",
	"IS 302-1 A-3 Functional test",
	"IS 374  18.4 d Simple running  test",
	"IS 374 4.6 Enclosure",
	"IS 374 Cl. 4.3 Blades and Motor",
	"Result",
	"Voice Recognition",
}

// fixed verdict of the four standard test columns
const standardTestOK = "OK"

// XLSX implements scans.ReportWriter.
type XLSX struct{}

func (XLSX) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (XLSX) Extension() string { return ".xlsx" }

func (XLSX) Write(w io.Writer, rows []*domain.Scan) error {
	f := excelize.NewFile()
	defer f.Close()

	widths := make([]int, len(Headers))
	put := func(row int, values []interface{}) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		for i, v := range values {
			if n := utf8.RuneCountInString(fmt.Sprint(v)); n > widths[i] {
				widths[i] = n
			}
		}
		return f.SetSheetRow(sheet, cell, &values)
	}

	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := put(1, header); err != nil {
		return err
	}
	for i, s := range rows {
		if err := put(i+2, rowValues(s)); err != nil {
			return err
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(Headers))
	if err != nil {
		return err
	}
	headStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	bodyStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headStyle); err != nil {
		return err
	}
	if len(rows) > 0 {
		end := fmt.Sprintf("%s%d", lastCol, len(rows)+1)
		if err := f.SetCellStyle(sheet, "A2", end, bodyStyle); err != nil {
			return err
		}
	}

	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, float64(width+2)); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func rowValues(s *domain.Scan) []interface{} {
	return []interface{}{
		s.DailyNumber,
		s.QRCode,
		s.Power,
		s.RPM,
		s.PowerFactor,
		s.FailureCode,
		standardTestOK,
		standardTestOK,
		standardTestOK,
		standardTestOK,
		s.Result,
		s.VoiceRecognition,
	}
}
