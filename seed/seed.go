// Package seed fills a payroll database with demo data or with rows
// imported from CSV.
package seed

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"axiapac.com/payroll/model"
	"axiapac.com/payroll/utils"
)

// Batch is a set of rows ready to insert, parents first.
type Batch struct {
	Timesheets  []*model.Timesheet
	DTRs        []*model.DTR
	Timelogs    []*model.Timelog
	ClockEvents []*model.ClockEvent
}

// Insert writes the batch in one transaction.
func (b *Batch) Insert(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(b.Timesheets) > 0 {
			if err := tx.CreateInBatches(b.Timesheets, 100).Error; err != nil {
				return fmt.Errorf("failed to insert timesheets: %w", err)
			}
		}
		if len(b.DTRs) > 0 {
			if err := tx.CreateInBatches(b.DTRs, 100).Error; err != nil {
				return fmt.Errorf("failed to insert dtrs: %w", err)
			}
		}
		if len(b.Timelogs) > 0 {
			if err := tx.CreateInBatches(b.Timelogs, 100).Error; err != nil {
				return fmt.Errorf("failed to insert timelogs: %w", err)
			}
		}
		if len(b.ClockEvents) > 0 {
			if err := tx.CreateInBatches(b.ClockEvents, 100).Error; err != nil {
				return fmt.Errorf("failed to insert clock events: %w", err)
			}
		}
		return nil
	})
}

// Append moves the rows of o to the end of b.
func (b *Batch) Append(o *Batch) {
	b.Timesheets = append(b.Timesheets, o.Timesheets...)
	b.DTRs = append(b.DTRs, o.DTRs...)
	b.Timelogs = append(b.Timelogs, o.Timelogs...)
	b.ClockEvents = append(b.ClockEvents, o.ClockEvents...)
}

// addDay adds a DTR for ts with an in and out timelog, each carrying the
// clock event that produced it.
func (b *Batch) addDay(ts *model.Timesheet, date time.Time, hours model.Hours, in, out *time.Time) {
	dtr := &model.DTR{
		ID:          uuid.NewString(),
		TimesheetID: ts.ID,
		Date:        datatypes.Date(date),
		Hours:       hours,
	}
	b.DTRs = append(b.DTRs, dtr)

	for _, p := range []struct {
		mode string
		at   *time.Time
	}{{model.ModeIn, in}, {model.ModeOut, out}} {
		if p.at == nil {
			continue
		}
		tl := &model.Timelog{ID: uuid.NewString(), DtrID: dtr.ID, Mode: p.mode, Timestamp: *p.at}
		b.Timelogs = append(b.Timelogs, tl)
		b.ClockEvents = append(b.ClockEvents, &model.ClockEvent{ID: uuid.NewString(), TimelogID: tl.ID, ClockTime: *p.at})
	}
}

// total sets every Timesheet's hours to the sum of its DTRs.
func (b *Batch) total() {
	byTimesheet := utils.GroupBy(b.DTRs, func(d *model.DTR) string { return d.TimesheetID })
	for _, ts := range b.Timesheets {
		children := utils.Map(byTimesheet[ts.ID], func(d *model.DTR) model.Aggregated { return d })
		ts.Hours = model.Recompute(ts, children).Totals()
	}
}

var (
	demoNames       = []string{"Juan Dela Cruz", "Maria Clara", "Jose Rizal", "Andres Bonifacio", "Gabriela Silang", "Emilio Aguinaldo"}
	demoDetachments = []string{"North", "South", "Harbour"}
)

// Demo builds one Timesheet per employee for the week starting at start,
// with a DTR per day and clock in/out records. Night shift employees earn
// night differential.
func Demo(employees int, start time.Time, payPeriod string) *Batch {
	b := &Batch{}
	for i := 0; i < employees; i++ {
		shift := utils.FormatBoolean(i%3 == 2, "night", "day")
		ts := &model.Timesheet{
			ID:           uuid.NewString(),
			EmployeeName: demoNames[i%len(demoNames)],
			PayPeriod:    payPeriod,
			Detachment:   demoDetachments[i%len(demoDetachments)],
			Shift:        shift,
		}
		if i >= len(demoNames) {
			ts.EmployeeName = fmt.Sprintf("%s %d", ts.EmployeeName, i/len(demoNames)+1)
		}
		b.Timesheets = append(b.Timesheets, ts)

		for d := 0; d < 7; d++ {
			date := start.AddDate(0, 0, d)
			startHour := 8
			hours := model.Hours{RegularHours: 8}
			if shift == "night" {
				startHour = 22
				hours.NightDifferential = 7
			}
			if d%4 == 1 {
				hours.OvertimeHours = 2
			}
			in := time.Date(date.Year(), date.Month(), date.Day(), startHour, 0, 0, 0, utils.BrisbaneTZ)
			out := in.Add(time.Duration(hours.RegularHours+hours.OvertimeHours+1) * time.Hour)
			b.addDay(ts, date, hours, &in, &out)
		}
	}
	b.total()
	return b
}

// csvColumns are the recognised header names. Only employeeName and date
// are required.
var csvColumns = []string{
	"employeeName", "payPeriod", "detachment", "shift", "date",
	"regularHours", "overtimeHours", "nightDifferential", "timeIn", "timeOut",
}

// FromCSV builds a batch from rows with a header line. Rows of the same
// employee and pay period become DTRs of one Timesheet. timeIn and timeOut
// are HH:MM on the row's date in Brisbane time.
func FromCSV(r io.Reader) (*Batch, error) {
	records, err := utils.ParseCSV(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) < 2 {
		return &Batch{}, nil
	}

	header := utils.Map(records[0], strings.TrimSpace)
	col := make(map[string]int, len(header))
	for i, name := range header {
		if !slices.Contains(csvColumns, name) {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		col[name] = i
	}
	for _, required := range []string{"employeeName", "date"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	get := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	b := &Batch{}
	seen := make(map[string]*model.Timesheet)
	for n, row := range records[1:] {
		if get(row, "employeeName") == "" {
			continue
		}
		// the header is line 1
		line := n + 2
		groupKey := get(row, "employeeName") + "\x00" + get(row, "payPeriod")
		ts, ok := seen[groupKey]
		if !ok {
			ts = &model.Timesheet{
				ID:           uuid.NewString(),
				EmployeeName: get(row, "employeeName"),
				PayPeriod:    get(row, "payPeriod"),
				Detachment:   get(row, "detachment"),
				Shift:        get(row, "shift"),
			}
			seen[groupKey] = ts
			b.Timesheets = append(b.Timesheets, ts)
		}

		dateStr := get(row, "date")
		date := utils.MustParseDate(dateStr)
		if date.IsZero() {
			return nil, fmt.Errorf("row %d: invalid date %q", line, dateStr)
		}

		var hours model.Hours
		for name, dst := range map[string]*float64{
			"regularHours":      &hours.RegularHours,
			"overtimeHours":     &hours.OvertimeHours,
			"nightDifferential": &hours.NightDifferential,
		} {
			s := get(row, name)
			if s == "" {
				continue
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil || v < 0 {
				return nil, fmt.Errorf("row %d: invalid %s %q", line, name, s)
			}
			*dst = v
		}

		in, err := clockTime(date, get(row, "timeIn"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		out, err := clockTime(date, get(row, "timeOut"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		b.addDay(ts, date, hours, in, out)
	}

	b.total()
	return b, nil
}

func clockTime(date time.Time, hhmm string) (*time.Time, error) {
	if hhmm == "" {
		return nil, nil
	}
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return nil, fmt.Errorf("invalid time %q", hhmm)
	}
	return utils.Ptr(time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, utils.BrisbaneTZ)), nil
}
