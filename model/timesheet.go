package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Hours are the aggregate fields carried by Timesheets and DTRs.
type Hours struct {
	RegularHours      float64 `gorm:"column:regular_hours;type:decimal(10,2);not null;default:0" json:"regularHours" validate:"gte=0"`
	OvertimeHours     float64 `gorm:"column:overtime_hours;type:decimal(10,2);not null;default:0" json:"overtimeHours" validate:"gte=0"`
	NightDifferential float64 `gorm:"column:night_differential;type:decimal(10,2);not null;default:0" json:"nightDifferential" validate:"gte=0"`
}

func (h Hours) Add(o Hours) Hours {
	return Hours{
		RegularHours:      h.RegularHours + o.RegularHours,
		OvertimeHours:     h.OvertimeHours + o.OvertimeHours,
		NightDifferential: h.NightDifferential + o.NightDifferential,
	}
}

type Timesheet struct {
	ID           string `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	EmployeeName string `gorm:"column:employee_name;type:varchar(255);not null" json:"employeeName" validate:"required"`
	PayPeriod    string `gorm:"column:pay_period;type:varchar(50);index" json:"payPeriod"`
	Detachment   string `gorm:"column:detachment;type:varchar(100)" json:"detachment"`
	Shift        string `gorm:"column:shift;type:varchar(50)" json:"shift"`
	Hours

	CreatedAt time.Time `gorm:"<-:create" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Timesheet) TableName() string {
	return "timesheets"
}

func (t *Timesheet) Key() Key       { return Key{Level: LevelTimesheet, ID: t.ID} }
func (t *Timesheet) ParentKey() Key { return RootKey }
func (t *Timesheet) Clone() Node    { c := *t; return &c }
func (t *Timesheet) Totals() Hours  { return t.Hours }

func (t *Timesheet) WithTotals(h Hours) Aggregated {
	c := *t
	c.Hours = h
	return &c
}

// DTR is a daily time record.
type DTR struct {
	ID          string         `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	TimesheetID string         `gorm:"column:timesheet_id;type:varchar(36);not null;index" json:"timesheetId" validate:"required"`
	Date        datatypes.Date `gorm:"column:date" json:"date"`
	Hours

	CreatedAt time.Time `gorm:"<-:create" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (DTR) TableName() string {
	return "daily_time_records"
}

func (d *DTR) Key() Key       { return Key{Level: LevelDTR, ID: d.ID} }
func (d *DTR) ParentKey() Key { return Key{Level: LevelTimesheet, ID: d.TimesheetID} }
func (d *DTR) Clone() Node    { c := *d; return &c }
func (d *DTR) Totals() Hours  { return d.Hours }

func (d *DTR) WithTotals(h Hours) Aggregated {
	c := *d
	c.Hours = h
	return &c
}

const dateLayout = "2006-01-02"

func (d DTR) MarshalJSON() ([]byte, error) {
	type Alias DTR
	date := ""
	if !time.Time(d.Date).IsZero() {
		date = time.Time(d.Date).Format(dateLayout)
	}
	return json.Marshal(&struct {
		Date string `json:"date"`
		*Alias
	}{
		Date:  date,
		Alias: (*Alias)(&d),
	})
}

// UnmarshalJSON leaves Date untouched when the field is absent so a partial
// document can be applied onto an existing record.
func (d *DTR) UnmarshalJSON(b []byte) error {
	type Alias DTR
	aux := &struct {
		Date *string `json:"date"`
		*Alias
	}{Alias: (*Alias)(d)}
	if err := json.Unmarshal(b, aux); err != nil {
		return err
	}
	if aux.Date == nil {
		return nil
	}
	if *aux.Date == "" {
		d.Date = datatypes.Date{}
		return nil
	}
	t, err := time.Parse(dateLayout, *aux.Date)
	if err != nil {
		// accept full timestamps as well
		if t, err = time.Parse(time.RFC3339, *aux.Date); err != nil {
			return fmt.Errorf("invalid date format: %v", err)
		}
	}
	d.Date = datatypes.Date(t)
	return nil
}

// Timelog modes.
const (
	ModeIn  = "in"
	ModeOut = "out"
)

type Timelog struct {
	ID        string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	DtrID     string    `gorm:"column:dtr_id;type:varchar(36);not null;index" json:"dtrId" validate:"required"`
	Mode      string    `gorm:"column:mode;type:varchar(3);not null" json:"mode" validate:"required,oneof=in out"`
	Timestamp time.Time `gorm:"column:timestamp" json:"timestamp"`

	CreatedAt time.Time `gorm:"<-:create" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Timelog) TableName() string {
	return "timelogs"
}

func (t *Timelog) Key() Key       { return Key{Level: LevelTimelog, ID: t.ID} }
func (t *Timelog) ParentKey() Key { return Key{Level: LevelDTR, ID: t.DtrID} }
func (t *Timelog) Clone() Node    { c := *t; return &c }

// ClockEvent is a raw time-clock punch.
type ClockEvent struct {
	ID        string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	TimelogID string    `gorm:"column:timelog_id;type:varchar(36);not null;index" json:"timelogId" validate:"required"`
	ClockTime time.Time `gorm:"column:clock_time" json:"clockTime"`

	CreatedAt time.Time `gorm:"<-:create" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (ClockEvent) TableName() string {
	return "clock_events"
}

func (c *ClockEvent) Key() Key       { return Key{Level: LevelClockEvent, ID: c.ID} }
func (c *ClockEvent) ParentKey() Key { return Key{Level: LevelTimelog, ID: c.TimelogID} }
func (c *ClockEvent) Clone() Node    { n := *c; return &n }
