package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"axiapac.com/payroll/model"
)

type Sort struct {
	Field string `json:"field"`
	Dir   string `json:"dir"`
}

type Filter struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}

type FilterGroup struct {
	Logic   string   `json:"logic"` // "and" or "or"
	Filters []Filter `json:"filters"`
}

// SearchParams narrows the timesheet list. StartDate and EndDate keep only
// timesheets with at least one DTR in the range.
type SearchParams struct {
	StartDate   *time.Time
	EndDate     *time.Time
	PayPeriods  []string
	Detachments []string
	Shifts      []string
	Sorts       []Sort
	Filters     *FilterGroup
}

type TimesheetCounts struct {
	Total                 int64 `json:"total"`
	WithOvertime          int64 `json:"withOvertime"`
	WithNightDifferential int64 `json:"withNightDifferential"`
}

var fieldMap = map[string]string{
	"id":                "t.id",
	"employeeName":      "t.employee_name",
	"payPeriod":         "t.pay_period",
	"detachment":        "t.detachment",
	"shift":             "t.shift",
	"regularHours":      "t.regular_hours",
	"overtimeHours":     "t.overtime_hours",
	"nightDifferential": "t.night_differential",
	"createdAt":         "t.created_at",

	// UI custom fields
	"totalHours": "(t.regular_hours + t.overtime_hours)",
}

func (s *Store) SearchTimesheets(ctx context.Context, params SearchParams, limit, offset int) ([]model.Timesheet, TimesheetCounts, error) {
	var results []model.Timesheet
	var counts TimesheetCounts

	query := s.db.WithContext(ctx).Table("timesheets t")

	if params.StartDate != nil || params.EndDate != nil {
		sub := s.db.Table("daily_time_records d").Select("1").Where("d.timesheet_id = t.id")
		if params.StartDate != nil {
			sub = sub.Where("d.date >= ?", params.StartDate.Format("2006-01-02"))
		}
		if params.EndDate != nil {
			// exclusive upper bound so stored date-times on the end day match
			sub = sub.Where("d.date < ?", params.EndDate.AddDate(0, 0, 1).Format("2006-01-02"))
		}
		query = query.Where("EXISTS (?)", sub)
	}
	if len(params.PayPeriods) > 0 {
		query = query.Where("t.pay_period IN ?", params.PayPeriods)
	}
	if len(params.Detachments) > 0 {
		query = query.Where("t.detachment IN ?", params.Detachments)
	}
	if len(params.Shifts) > 0 {
		query = query.Where("t.shift IN ?", params.Shifts)
	}

	// Apply Filters
	if params.Filters != nil && len(params.Filters.Filters) > 0 {
		logic := strings.ToLower(params.Filters.Logic)
		if logic != "and" && logic != "or" {
			logic = "and" // default to AND
		}

		var conditions []string
		var values []interface{}

		for _, f := range params.Filters.Filters {
			dbField, ok := fieldMap[f.Field]
			if !ok {
				continue
			}

			var condition string
			switch strings.ToLower(f.Operator) {
			case "eq":
				condition = fmt.Sprintf("%s = ?", dbField)
				values = append(values, f.Value)
			case "neq":
				condition = fmt.Sprintf("%s != ?", dbField)
				values = append(values, f.Value)
			case "gt":
				condition = fmt.Sprintf("%s > ?", dbField)
				values = append(values, f.Value)
			case "gte":
				condition = fmt.Sprintf("%s >= ?", dbField)
				values = append(values, f.Value)
			case "lt":
				condition = fmt.Sprintf("%s < ?", dbField)
				values = append(values, f.Value)
			case "lte":
				condition = fmt.Sprintf("%s <= ?", dbField)
				values = append(values, f.Value)
			case "contains":
				condition = fmt.Sprintf("%s LIKE ?", dbField)
				values = append(values, fmt.Sprintf("%%%v%%", f.Value))
			case "in":
				condition = fmt.Sprintf("%s IN ?", dbField)
				values = append(values, f.Value)
			default:
				continue
			}

			conditions = append(conditions, condition)
		}

		if len(conditions) > 0 {
			if logic == "or" {
				query = query.Where(strings.Join(conditions, " OR "), values...)
			} else {
				for i, condition := range conditions {
					query = query.Where(condition, values[i])
				}
			}
		}
	}

	// Calculate counts using query clones
	if err := query.Session(&gorm.Session{}).Count(&counts.Total).Error; err != nil {
		return nil, counts, err
	}
	if err := query.Session(&gorm.Session{}).Where("t.overtime_hours > 0").Count(&counts.WithOvertime).Error; err != nil {
		return nil, counts, err
	}
	if err := query.Session(&gorm.Session{}).Where("t.night_differential > 0").Count(&counts.WithNightDifferential).Error; err != nil {
		return nil, counts, err
	}

	// Apply Sorts
	for _, sort := range params.Sorts {
		dbField, ok := fieldMap[sort.Field]
		if !ok {
			continue
		}
		direction := "ASC"
		if sort.Dir == "desc" {
			direction = "DESC"
		}
		query = query.Order(fmt.Sprintf("%s %s", dbField, direction))
	}

	if len(params.Sorts) == 0 {
		query = query.Order("t.pay_period DESC, t.employee_name ASC")
	}

	if limit > 0 {
		query = query.Limit(limit)
	}
	query = query.Offset(offset)

	if err := query.Find(&results).Error; err != nil {
		return nil, counts, err
	}

	return results, counts, nil
}
