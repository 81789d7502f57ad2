// Package export renders booking reports as Excel workbooks.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"slotify/internal/domain"
	"slotify/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

type Exporter struct {
	repo   domain.Repository
	dir    string
	logger zerolog.Logger
}

func NewExporter(repo domain.Repository, dir string, logger *zerolog.Logger) *Exporter {
	return &Exporter{
		repo:   repo,
		dir:    dir,
		logger: logger.With().Str("component", "export").Logger(),
	}
}

// BookingsReport writes an xlsx workbook with every booking of the
// business in [from, to] and returns the file path.
func (e *Exporter) BookingsReport(ctx context.Context, businessID int64, from, to string) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	bookings, err := e.repo.GetBookingsByDateRange(ctx, businessID, from, to)
	if err != nil {
		return "", fmt.Errorf("failed to get bookings: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "Bookings"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Bookings %s - %s", from, to))
	lastCol, _ := excelize.ColumnNumberToName(len(reportHeaders))
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, header := range reportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, b := range bookings {
		row := i + 3
		writeBookingRow(f, sheetName, row, b)
	}

	_ = f.SetColWidth(sheetName, "A", "A", 8)
	_ = f.SetColWidth(sheetName, "B", "C", 12)
	_ = f.SetColWidth(sheetName, "D", "D", 25)
	_ = f.SetColWidth(sheetName, "E", "G", 18)
	_ = f.SetColWidth(sheetName, "H", "K", 14)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("bookings_%d_%s_to_%s_%s.xlsx",
		businessID, from, to, time.Now().Format("20060102_150405"))
	filePath := filepath.Join(e.dir, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("failed to save export file: %w", err)
	}

	e.logger.Info().
		Int64("business_id", businessID).
		Int("bookings", len(bookings)).
		Str("file_path", filePath).
		Msg("bookings report created")

	return filePath, nil
}

var reportHeaders = []string{
	"ID", "Date", "Time", "Service", "Customer", "Phone", "Email",
	"Status", "Payment", "Amount", "Created",
}

func writeBookingRow(f *excelize.File, sheetName string, row int, b *models.Booking) {
	values := []interface{}{
		b.ID, b.Date, b.Time, b.ServiceName, b.CustomerName, b.CustomerPhone, b.CustomerEmail,
		b.Status, b.PaymentStatus, b.TotalPrice, b.CreatedAt.Format("2006-01-02 15:04"),
	}
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheetName, cell, v)
	}
}
