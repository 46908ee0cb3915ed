package exporter

import (
	"bytes"

	"github.com/xuri/excelize/v2"

	"qbank/internal/question"
)

type XLSXEncoder struct{}

const xlsxSheet = "Questions"

func (XLSXEncoder) Encode(items []question.Question, _ Options) ([]byte, error) {
	b, err := encodeXLSX(items)
	if err != nil {
		return nil, &EncodingError{Format: FormatXLSX, Err: err}
	}
	return b, nil
}

func encodeXLSX(items []question.Question) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), xlsxSheet); err != nil {
		return nil, err
	}

	for i, h := range tableHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(xlsxSheet, cell, h); err != nil {
			return nil, err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetRowStyle(xlsxSheet, 1, 1, bold); err != nil {
		return nil, err
	}

	for i, q := range items {
		row, err := tableRow(q)
		if err != nil {
			return nil, err
		}
		for col, v := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			var value interface{} = v
			if col == 0 {
				value = q.ID
			}
			if err := f.SetCellValue(xlsxSheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	_ = f.SetColWidth(xlsxSheet, "B", "B", 60)
	_ = f.SetColWidth(xlsxSheet, "E", "E", 50)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (XLSXEncoder) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
func (XLSXEncoder) FileExtension() string { return "xlsx" }
