package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"campusbook/internal/config"
	"campusbook/internal/domain"
	"campusbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Bookings"

// Exporter writes booking workbooks: one grid sheet with facilities down the
// side and days across the top, each cell listing the requests that touch
// that facility on that day.
type Exporter struct {
	store  domain.Store
	cfg    config.ExportConfig
	logger *zerolog.Logger
}

func NewExporter(store domain.Store, cfg config.ExportConfig, logger *zerolog.Logger) *Exporter {
	childLogger := logger.With().Str("component", "exporter").Logger()
	return &Exporter{
		store:  store,
		cfg:    cfg,
		logger: &childLogger,
	}
}

// ExportBookings builds the workbook for [start, end] and returns the path of
// the saved file.
func (e *Exporter) ExportBookings(ctx context.Context, start, end time.Time) (string, error) {
	if err := os.MkdirAll(e.cfg.Path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	bookings, err := e.store.GetBookingsByDateRange(ctx, start, end)
	if err != nil {
		return "", fmt.Errorf("error getting bookings: %w", err)
	}
	facilities := e.store.GetActiveFacilities()

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Period: %s - %s",
		start.Format("02.01.2006"), end.Format("02.01.2006")))

	dateCols := e.writeDateHeaders(f, start, end)
	e.writeFacilityHeaders(f, facilities)
	e.writeBookingCells(f, bookings, facilities, dateCols)

	_ = f.SetColWidth(sheetName, "A", "A", 25)
	for i := 'B'; i <= 'Z'; i++ {
		_ = f.SetColWidth(sheetName, string(i), string(i), 24)
	}

	lastCol, _ := excelize.ColumnNumberToName(len(dateCols) + 1)
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("bookings_%s_to_%s.xlsx",
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	filePath := filepath.Join(e.cfg.Path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("bookings", len(bookings)).Msg("Excel file created")
	return filePath, nil
}

func (e *Exporter) writeDateHeaders(f *excelize.File, start, end time.Time) map[string]int {
	col := 2
	day := start.Truncate(24 * time.Hour)
	last := end.Truncate(24 * time.Hour)
	dateCols := make(map[string]int)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	for !day.After(last) {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(sheetName, cell, day.Format("02.01"))
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
		dateCols[day.Format("2006-01-02")] = col

		col++
		day = day.AddDate(0, 0, 1)
	}
	return dateCols
}

func (e *Exporter) writeFacilityHeaders(f *excelize.File, facilities []models.Facility) {
	style, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})

	for i, facility := range facilities {
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		_ = f.SetCellValue(sheetName, cell, fmt.Sprintf("%s (cap. %d)", facility.Name, facility.Capacity))
		_ = f.SetCellStyle(sheetName, cell, cell, style)
	}
}

func (e *Exporter) writeBookingCells(f *excelize.File, bookings []*models.Booking, facilities []models.Facility, dateCols map[string]int) {
	type slot struct {
		facilityID int64
		date       string
	}
	cells := make(map[slot][]*models.Booking)
	for _, booking := range bookings {
		for _, date := range bookingDays(booking) {
			key := slot{facilityID: booking.FacilityID, date: date}
			cells[key] = append(cells[key], booking)
		}
	}

	for row, facility := range facilities {
		for date, col := range dateCols {
			cell, _ := excelize.CoordinatesToCellName(col, row+3)
			dayBookings := cells[slot{facilityID: facility.ID, date: date}]

			var cellValue string
			if len(dayBookings) == 0 {
				cellValue = "Free"
			} else {
				for _, booking := range dayBookings {
					cellValue += fmt.Sprintf("%s %s %s-%s\n%s\n",
						statusIcon(booking.Status),
						booking.RequesterName,
						booking.StartsAt.Format("15:04"),
						booking.EndsAt.Format("15:04"),
						booking.Purpose)
				}
			}
			_ = f.SetCellValue(sheetName, cell, cellValue)

			if styleID, err := e.cellStyle(f, dayBookings); err == nil {
				_ = f.SetCellStyle(sheetName, cell, cell, styleID)
			}
		}
	}
}

// bookingDays returns every calendar day the booking window touches.
func bookingDays(b *models.Booking) []string {
	var days []string
	day := b.StartsAt.Truncate(24 * time.Hour)
	last := b.EndsAt.Add(-time.Nanosecond).Truncate(24 * time.Hour)
	for !day.After(last) {
		days = append(days, day.Format("2006-01-02"))
		day = day.AddDate(0, 0, 1)
	}
	return days
}

func statusIcon(status string) string {
	switch status {
	case models.StatusApproved:
		return "✅"
	case models.StatusPrebooking, models.StatusInReview, models.StatusPending:
		return "⏳"
	case models.StatusDenied:
		return "❌"
	default:
		return "❓"
	}
}

// cellStyle picks a fill: white when the day is free or denied-only, green
// when everything touching it is approved, yellow while decisions are open.
func (e *Exporter) cellStyle(f *excelize.File, dayBookings []*models.Booking) (int, error) {
	active := make([]*models.Booking, 0, len(dayBookings))
	for _, booking := range dayBookings {
		if booking.Status != models.StatusDenied {
			active = append(active, booking)
		}
	}

	fill := "#FFFFFF"
	if len(active) > 0 {
		fill = "#C6EFCE"
		for _, booking := range active {
			if booking.Status != models.StatusApproved {
				fill = "#FFEB9C"
				break
			}
		}
	}

	return f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{fill}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "top",
			WrapText:   true,
		},
	})
}
