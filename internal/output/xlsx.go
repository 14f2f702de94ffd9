package output

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// XLSXWriter writes records to a single-sheet workbook. The workbook is
// serialized on Flush.
type XLSXWriter struct {
	w     io.Writer
	sheet string
	items []Record
}

// NewXLSXWriter creates an xlsx writer.
func NewXLSXWriter(w io.Writer, sheet string) *XLSXWriter {
	return &XLSXWriter{w: w, sheet: sheet}
}

// Write buffers a single record.
func (w *XLSXWriter) Write(r Record) error {
	w.items = append(w.items, r)
	return nil
}

// WriteAll buffers records.
func (w *XLSXWriter) WriteAll(rs []Record) error {
	w.items = append(w.items, rs...)
	return nil
}

// Flush writes the workbook with a bold, frozen header row.
func (w *XLSXWriter) Flush() error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), w.sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(w.sheet, "A1", &header); err != nil {
		return err
	}

	for i, r := range w.items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := make([]any, 0, len(Columns))
		for _, v := range r.Row() {
			row = append(row, v)
		}
		if err := f.SetSheetRow(w.sheet, cell, &row); err != nil {
			return err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(Columns), 1)
	if err := f.SetCellStyle(w.sheet, "A1", lastHeader, bold); err != nil {
		return err
	}
	if err := f.SetPanes(w.sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	if _, err := f.WriteTo(w.w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	w.items = nil
	return nil
}

// Close flushes the writer.
func (w *XLSXWriter) Close() error {
	return w.Flush()
}
