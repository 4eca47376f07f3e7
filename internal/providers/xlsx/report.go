// Package xlsx renders admin spreadsheet exports.
package xlsx

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/smallbiznis/grievance-portal/internal/complaint/domain"
	"github.com/xuri/excelize/v2"
)

const (
	complaintsSheet = "Complaints"
	statsSheet      = "Daily"
)

var complaintHeader = []any{
	"ID", "Filed (UTC)", "Email", "Status", "Fee (cents)", "Complexity Score", "Complaint", "Response",
}

// WriteComplaintReport writes complaints and daily counts as a two-sheet
// workbook to w.
func WriteComplaintReport(w io.Writer, complaints []*domain.Complaint, daily []domain.DailyCount) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", complaintsSheet); err != nil {
		return err
	}
	if err := writeComplaints(f, complaints); err != nil {
		return fmt.Errorf("write complaints sheet: %w", err)
	}

	if _, err := f.NewSheet(statsSheet); err != nil {
		return err
	}
	if err := writeDaily(f, daily); err != nil {
		return fmt.Errorf("write daily sheet: %w", err)
	}

	_, err := f.WriteTo(w)
	return err
}

func writeComplaints(f *excelize.File, complaints []*domain.Complaint) error {
	sw, err := f.NewStreamWriter(complaintsSheet)
	if err != nil {
		return err
	}
	if err := sw.SetColWidth(7, 8, 60); err != nil {
		return err
	}
	if err := sw.SetRow("A1", complaintHeader); err != nil {
		return err
	}
	for i, c := range complaints {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, complaintRow(c)); err != nil {
			return err
		}
	}
	return sw.Flush()
}

func complaintRow(c *domain.Complaint) []any {
	var score, response any = "", ""
	if c.ComplexityScore != nil {
		score = *c.ComplexityScore
	}
	if c.AIResponse != nil {
		response = *c.AIResponse
	}
	return []any{
		c.ID,
		c.CreatedAt.UTC().Format(time.RFC3339),
		c.CustomerEmail,
		string(c.Status),
		c.FilingFee,
		score,
		c.Content,
		response,
	}
}

func writeDaily(f *excelize.File, daily []domain.DailyCount) error {
	if err := f.SetSheetRow(statsSheet, "A1", &[]any{"Date", "Complaints"}); err != nil {
		return err
	}
	for i, d := range daily {
		row := strconv.Itoa(i + 2)
		if err := f.SetSheetRow(statsSheet, "A"+row, &[]any{d.Date, d.Count}); err != nil {
			return err
		}
	}
	return nil
}
