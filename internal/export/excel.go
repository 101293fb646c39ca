package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/fmuoria/recruitment-scoring/internal/form"
)

const (
	summarySheet = "Summary"
	recordsSheet = "Records"
)

// Band fills, keyed by the share of the record cap reached
const (
	fillHigh   = "C6EFCE" // >= 90%
	fillGood   = "FFEB9C" // >= 70%
	fillFair   = "FFC7CE" // >= 50%
	fillLow    = "FF9999"
	fillHeader = "4472C4"
)

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

// ExportScoreSheet writes a section's current scores to an xlsx workbook.
// The .xlsx extension is appended when missing.
func ExportScoreSheet(view form.View, outputPath string) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	if !strings.HasSuffix(strings.ToLower(outputPath), ".xlsx") {
		outputPath = outputPath + ".xlsx"
	}
	outputPath = filepath.Clean(outputPath)

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return "", err
	}
	if _, err := f.NewSheet(recordsSheet); err != nil {
		return "", err
	}

	if err := writeSummary(f, view); err != nil {
		return "", fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if err := writeRecords(f, view); err != nil {
		return "", fmt.Errorf("failed to create records sheet: %w", err)
	}

	if err := f.SaveAs(outputPath); err != nil {
		var buf bytes.Buffer
		if writeErr := f.Write(&buf); writeErr != nil {
			return "", fmt.Errorf("failed to save workbook: direct save failed (%v), buffer write also failed: %w", err, writeErr)
		}
		if fileErr := os.WriteFile(outputPath, buf.Bytes(), 0644); fileErr != nil {
			return "", fmt.Errorf("failed to save workbook: direct save failed (%v), file write failed: %w", err, fileErr)
		}
	}
	return outputPath, nil
}

// Band returns the fill colour for score out of limit
func Band(score, limit float64) string {
	if limit <= 0 {
		return fillLow
	}
	share := score / limit
	switch {
	case share >= 0.9:
		return fillHigh
	case share >= 0.7:
		return fillGood
	case share >= 0.5:
		return fillFair
	default:
		return fillLow
	}
}

func writeSummary(f *excelize.File, view form.View) error {
	sheet := summarySheet
	f.SetColWidth(sheet, "A", "A", 25)
	f.SetColWidth(sheet, "B", "B", 40)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{fillHeader}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	labelStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	f.SetCellValue(sheet, "A1", "Score Sheet")
	f.SetCellStyle(sheet, "A1", "B1", headerStyle)
	f.MergeCell(sheet, "A1", "B1")

	active := 0
	for _, r := range view.Records {
		if r.Selected && !r.Deleted {
			active++
		}
	}

	rows := []struct {
		label string
		value any
	}{
		{"Heading:", view.Heading},
		{"Registration No:", view.Owner.RegistrationNo},
		{"Application ID:", view.Owner.ApplicationID},
		{"Mode:", view.Mode},
		{"Generated:", time.Now().Format("2006-01-02 15:04:05")},
		{"Records Scored:", active},
		{"Raw Value:", view.Score.Raw},
		{"Actual Value:", view.Score.Actual},
		{"Calculated Value:", view.Score.Calculated},
		{"Maximum Marks:", view.Cap},
	}
	row := 3
	for _, r := range rows {
		label := fmt.Sprintf("A%d", row)
		f.SetCellValue(sheet, label, r.label)
		f.SetCellStyle(sheet, label, label, labelStyle)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), r.value)
		row++
	}
	return nil
}

func writeRecords(f *excelize.File, view form.View) error {
	sheet := recordsSheet
	widths := map[string]float64{"A": 30, "B": 8, "C": 10, "D": 10, "E": 12, "F": 12, "G": 14, "H": 10, "I": 60}
	for col, w := range widths {
		f.SetColWidth(sheet, col, col, w)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{fillHeader}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder,
	})
	if err != nil {
		return err
	}

	styles := make(map[string]int)
	for _, fill := range []string{fillHigh, fillGood, fillFair, fillLow} {
		id, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{fill}, Pattern: 1},
			Border:    thinBorder,
			Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
		})
		if err != nil {
			return err
		}
		styles[fill] = id
	}

	headers := []string{"Subheading", "Row", "Status", "Raw", "Actual", "Calculated", "Maximum", "Selected", "Values"}
	for col, header := range headers {
		cell := fmt.Sprintf("%s1", string(rune('A'+col)))
		f.SetCellValue(sheet, cell, header)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	row := 2
	for _, r := range view.Records {
		if r.Deleted {
			continue
		}
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), r.Subheading)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), r.RowIndex+1)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), r.StatusID)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), r.Score.Raw)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), r.Score.Actual)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), r.Score.Calculated)
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), r.Cap)
		f.SetCellValue(sheet, fmt.Sprintf("H%d", row), r.Selected)
		f.SetCellValue(sheet, fmt.Sprintf("I%d", row), summarizeFields(r.Fields))
		f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("I%d", row), styles[Band(r.Score.Calculated, r.Cap)])
		row++
	}

	if row > 2 {
		f.AutoFilter(sheet, fmt.Sprintf("A1:I%d", row-1), []excelize.AutoFilterOptions{})
	}
	f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
	return nil
}

func summarizeFields(fields []form.FieldView) string {
	parts := make([]string, 0, len(fields))
	for _, fv := range fields {
		v := fv.Value
		if fv.FilePath != "" {
			v = filepath.Base(fv.FilePath)
		}
		if v == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fv.Name, v))
	}
	return strings.Join(parts, "; ")
}
