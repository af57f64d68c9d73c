package hierarchy

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"axiapac.com/payroll/apperr"
	"axiapac.com/payroll/store"
	"axiapac.com/payroll/web/common"
)

type SearchDTO struct {
	StartDate   *common.DateOnly   `json:"startDate"`
	EndDate     *common.DateOnly   `json:"endDate"`
	PayPeriods  []string           `json:"payPeriods"`
	Detachments []string           `json:"detachments"`
	Shifts      []string           `json:"shifts"`
	Sorts       []store.Sort       `json:"sorts"`
	Filters     *store.FilterGroup `json:"filters"`
}

func (d SearchDTO) params() store.SearchParams {
	p := store.SearchParams{
		PayPeriods:  d.PayPeriods,
		Detachments: d.Detachments,
		Shifts:      d.Shifts,
		Sorts:       d.Sorts,
		Filters:     d.Filters,
	}
	if d.StartDate != nil && !d.StartDate.IsZero() {
		p.StartDate = &d.StartDate.Time
	}
	if d.EndDate != nil && !d.EndDate.IsZero() {
		p.EndDate = &d.EndDate.Time
	}
	return p
}

func (ep *Endpoint) Search(c *gin.Context) {
	var dto SearchDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err), apperr.CodeValidation))
		return
	}

	// get limit, offset from query params
	limit := 1000
	offset := 0
	if val, err := strconv.Atoi(c.Query("limit")); err == nil && val > 0 {
		limit = val
	}
	if val, err := strconv.Atoi(c.Query("offset")); err == nil && val >= 0 {
		offset = val
	}

	timesheets, counts, err := ep.store.SearchTimesheets(c.Request.Context(), dto.params(), limit, offset)
	if err != nil {
		ep.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, common.NewSearchResponse(timesheets, counts.Total, limit, offset).WithCounts(counts))
}
