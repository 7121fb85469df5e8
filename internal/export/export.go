package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"shefixes/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Default report range when the caller passes zero dates.
const (
	DefaultRangeMonthsBefore = 1
	DefaultRangeMonthsAfter  = 2
)

const sheetName = "Bookings"

// ReportSource provides the data behind a bookings report.
type ReportSource interface {
	GetDailyBookings(ctx context.Context, start, end time.Time) (map[string][]*models.Booking, error)
	ListTechnicians(ctx context.Context) ([]*models.Technician, error)
}

// Exporter writes bookings schedule reports as xlsx files.
type Exporter struct {
	source ReportSource
	path   string
	logger *zerolog.Logger
}

func NewExporter(source ReportSource, path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{source: source, path: path, logger: logger}
}

// DefaultRange returns the report window used when none is requested.
func DefaultRange(now time.Time) (time.Time, time.Time) {
	start := now.AddDate(0, -DefaultRangeMonthsBefore, 0)
	end := now.AddDate(0, DefaultRangeMonthsAfter, 0)
	return start, end
}

// BookingsReport renders a technician-by-day grid of bookings and returns
// the path of the written file.
func (e *Exporter) BookingsReport(ctx context.Context, startDate, endDate time.Time) (string, error) {
	if startDate.IsZero() || endDate.IsZero() {
		startDate, endDate = DefaultRange(time.Now())
	}
	if endDate.Before(startDate) {
		return "", fmt.Errorf("invalid report range: %s after %s",
			startDate.Format(models.DateLayout), endDate.Format(models.DateLayout))
	}

	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	dailyBookings, err := e.source.GetDailyBookings(ctx, startDate, endDate)
	if err != nil {
		return "", fmt.Errorf("error getting bookings: %w", err)
	}

	technicians, err := e.source.ListTechnicians(ctx)
	if err != nil {
		return "", fmt.Errorf("error getting technicians: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Period: %s - %s",
		startDate.Format(models.DateLayout), endDate.Format(models.DateLayout)))

	dateCols := e.writeDateHeaders(f, startDate, endDate)
	e.writeTechnicianHeaders(f, technicians)
	e.writeBookingCells(f, dailyBookings, technicians, dateCols)

	_ = f.SetColWidth(sheetName, "A", "A", 28)
	for i := 'B'; i <= 'Z'; i++ {
		_ = f.SetColWidth(sheetName, string(i), string(i), 22)
	}

	lastCol, _ := excelize.ColumnNumberToName(len(dateCols) + 1)
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")

	style, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", style)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("bookings_%s_to_%s.xlsx",
		startDate.Format(models.DateLayout), endDate.Format(models.DateLayout))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("bookings report written")
	return filePath, nil
}

func (e *Exporter) writeDateHeaders(f *excelize.File, startDate, endDate time.Time) map[string]int {
	col := 2
	currentDate := startDate
	dateCols := make(map[string]int)

	style, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	for !currentDate.After(endDate) {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(sheetName, cell, currentDate.Format("01-02"))
		_ = f.SetCellStyle(sheetName, cell, cell, style)
		dateCols[currentDate.Format(models.DateLayout)] = col

		col++
		currentDate = currentDate.AddDate(0, 0, 1)
	}
	return dateCols
}

func (e *Exporter) writeTechnicianHeaders(f *excelize.File, technicians []*models.Technician) {
	style, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})

	row := 3
	for _, tech := range technicians {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(sheetName, cell, fmt.Sprintf("%s (%s)", tech.Name, tech.City))
		_ = f.SetCellStyle(sheetName, cell, cell, style)
		row++
	}
}

func (e *Exporter) writeBookingCells(
	f *excelize.File,
	dailyBookings map[string][]*models.Booking,
	technicians []*models.Technician,
	dateCols map[string]int,
) {
	for dateKey, bookings := range dailyBookings {
		col, exists := dateCols[dateKey]
		if !exists {
			continue
		}

		byTechnician := make(map[string][]*models.Booking)
		for _, booking := range bookings {
			byTechnician[booking.TechnicianID] = append(byTechnician[booking.TechnicianID], booking)
		}

		row := 3
		for _, tech := range technicians {
			techBookings := filterActive(byTechnician[tech.ID])
			if len(techBookings) == 0 {
				row++
				continue
			}

			cell, _ := excelize.CoordinatesToCellName(col, row)
			var cellValue string
			for _, booking := range techBookings {
				cellValue += fmt.Sprintf("%s %s #%d (%s)\n",
					minuteClock(booking.StartMinute), booking.Category, booking.ID, booking.Status)
			}
			_ = f.SetCellValue(sheetName, cell, cellValue)

			if styleID, err := cellStyle(f, techBookings); err == nil {
				_ = f.SetCellStyle(sheetName, cell, cell, styleID)
			}
			row++
		}
	}
}

// cellStyle picks a fill by day progress: green when every visit is done,
// yellow while work is still open.
func cellStyle(f *excelize.File, bookings []*models.Booking) (int, error) {
	color := "#C6EFCE"
	for _, booking := range bookings {
		if booking.Status != models.StatusCompleted {
			color = "#FFEB9C"
			break
		}
	}

	return f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "top",
			WrapText:   true,
		},
	})
}

func filterActive(bookings []*models.Booking) []*models.Booking {
	var active []*models.Booking
	for _, booking := range bookings {
		if booking.Status != models.StatusCancelled {
			active = append(active, booking)
		}
	}
	return active
}

func minuteClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
