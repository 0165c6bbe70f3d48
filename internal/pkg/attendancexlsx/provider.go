package attendancexlsx

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/timesheet"
	"github.com/xuri/excelize/v2"
)

const processedDir = "processed"

var requiredColumns = []string{"employee_code", "date", "start_time", "end_time", "company_id"}

// Provider reads attendance exports dropped into an inbox directory. A
// workbook whose rows all fall inside the requested range is moved to
// processed/ once read.
type Provider struct {
	inbox string
}

func NewProvider(inbox string) *Provider {
	return &Provider{inbox: inbox}
}

func (p *Provider) Name() string { return "attendance-xlsx" }

// Fetch implements attendance.Provider.
func (p *Provider) Fetch(ctx context.Context, from, to time.Time) ([]attendance.Record, error) {
	from, to = timesheet.TruncateDate(from), timesheet.TruncateDate(to)

	files, err := filepath.Glob(filepath.Join(p.inbox, "*.xlsx"))
	if err != nil {
		return nil, &attendance.ExternalServiceError{Op: "list inbox", Err: err}
	}
	sort.Strings(files)

	var records []attendance.Record
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := readWorkbook(path)
		if err != nil {
			return nil, &attendance.ExternalServiceError{Op: "read " + filepath.Base(path), Err: err}
		}

		complete := true
		for _, rec := range rows {
			if rec.Date.Before(from) || rec.Date.After(to) {
				complete = false
				continue
			}
			records = append(records, rec)
		}

		if complete {
			if err := p.markProcessed(path); err != nil {
				return nil, &attendance.ExternalServiceError{Op: "archive " + filepath.Base(path), Err: err}
			}
		} else {
			slog.Info("Attendance workbook kept in inbox; rows outside the sync range", "file", filepath.Base(path))
		}
	}
	return records, nil
}

func (p *Provider) markProcessed(path string) error {
	dir := filepath.Join(p.inbox, processedDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.Rename(path, filepath.Join(dir, filepath.Base(path)))
}

func readWorkbook(path string) ([]attendance.Record, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	sheetName := file.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("no worksheet found")
	}
	rows, err := file.GetRows(sheetName)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	columns := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		columns[normalizeHeader(h)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	col := func(row []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var records []attendance.Record
	for i, row := range rows[1:] {
		line := i + 2
		if isBlank(row) {
			continue
		}

		date, err := parseDateCell(col(row, "date"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		start, err := parseTimeCell(col(row, "start_time"))
		if err != nil {
			return nil, fmt.Errorf("row %d: start_time: %w", line, err)
		}
		end, err := parseTimeCell(col(row, "end_time"))
		if err != nil {
			return nil, fmt.Errorf("row %d: end_time: %w", line, err)
		}

		externalID := col(row, "id")
		if externalID == "" {
			externalID = fmt.Sprintf("%s#%d", filepath.Base(path), line)
		}

		records = append(records, attendance.Record{
			ExternalID:   externalID,
			EmployeeCode: col(row, "employee_code"),
			Date:         date,
			StartTime:    start,
			EndTime:      end,
			EntryType:    timesheet.OtherEntryType(col(row, "entry_type")),
			CompanyID:    col(row, "company_id"),
			CompanyName:  col(row, "company_name"),
		})
	}
	return records, nil
}

func normalizeHeader(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	return strings.ReplaceAll(h, " ", "_")
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// parseDateCell accepts ISO dates and Excel serial numbers.
func parseDateCell(value string) (time.Time, error) {
	if d, err := timesheet.ParseDate(value); err == nil {
		return d, nil
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		if d, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return timesheet.TruncateDate(d), nil
		}
	}
	for _, layout := range []string{"1/2/2006", "01/02/2006", "1/2/06", "01-02-06"} {
		if d, err := time.Parse(layout, value); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", value)
}

// parseTimeCell accepts "HH:MM", "HH:MM:SS" and Excel day fractions.
func parseTimeCell(value string) (timesheet.ClockTime, error) {
	if c, err := timesheet.ParseClockTime(value); err == nil {
		return c, nil
	}
	if frac, err := strconv.ParseFloat(value, 64); err == nil && frac >= 0 && frac < 1 {
		minutes := int(frac*24*60 + 0.5)
		return timesheet.ClockTime(minutes), nil
	}
	return 0, fmt.Errorf("invalid time %q", value)
}
