package hierarchy

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"axiapac.com/payroll/apperr"
	"axiapac.com/payroll/engine"
	"axiapac.com/payroll/model"
	"axiapac.com/payroll/store"
	"axiapac.com/payroll/web/common"
	"axiapac.com/payroll/web/events"
)

// Store is the persistence the endpoints need.
type Store interface {
	engine.Remote
	Get(ctx context.Context, key model.Key) (model.Node, error)
	SearchTimesheets(ctx context.Context, params store.SearchParams, limit, offset int) ([]model.Timesheet, store.TimesheetCounts, error)
}

type Publisher interface {
	PublishChange(events.Change)
}

type Endpoint struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
}

func Register(r *gin.RouterGroup, s Store, p Publisher, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	ep := &Endpoint{store: s, publisher: p, logger: logger}

	r.GET("/timesheets", ep.ListTimesheets)
	r.POST("/timesheets/search", ep.Search)

	r.POST("/hierarchy/:level", ep.Create)
	r.GET("/hierarchy/:level/:id", ep.Get)
	r.PATCH("/hierarchy/:level/:id", ep.Update)
	r.DELETE("/hierarchy/:level/:id", ep.Delete)
	r.GET("/hierarchy/:level/:id/children", ep.Children)
	r.GET("/hierarchy/:level/:id/has-children", ep.HasChildren)
}

func (ep *Endpoint) ListTimesheets(c *gin.Context) {
	nodes, err := ep.store.FetchChildren(c.Request.Context(), model.RootKey)
	if err != nil {
		ep.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(nodes))
}

func (ep *Endpoint) Get(c *gin.Context) {
	key, ok := ep.key(c)
	if !ok {
		return
	}
	node, err := ep.store.Get(c.Request.Context(), key)
	if err != nil {
		ep.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(node))
}

func (ep *Endpoint) Children(c *gin.Context) {
	key, ok := ep.key(c)
	if !ok {
		return
	}
	nodes, err := ep.store.FetchChildren(c.Request.Context(), key)
	if err != nil {
		ep.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(nodes))
}

type hasChildrenDTO struct {
	HasChildren bool `json:"hasChildren"`
}

func (ep *Endpoint) HasChildren(c *gin.Context) {
	key, ok := ep.key(c)
	if !ok {
		return
	}
	has, err := ep.store.ProbeHasChildren(c.Request.Context(), key)
	if err != nil {
		ep.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(hasChildrenDTO{HasChildren: has}))
}

func (ep *Endpoint) Create(c *gin.Context) {
	level, ok := ep.level(c)
	if !ok {
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("Request body is empty", apperr.CodeValidation))
		return
	}
	draft, err := model.Decode(level, body)
	if err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err), apperr.CodeValidation))
		return
	}

	res, err := ep.store.CreateEntity(c.Request.Context(), draft)
	if err != nil {
		ep.fail(c, err)
		return
	}
	ep.publish(level, events.Created, res.Entity, res.Ancestors)
	c.JSON(http.StatusCreated, common.NewSuccessResponse(res))
}

func (ep *Endpoint) Update(c *gin.Context) {
	key, ok := ep.key(c)
	if !ok {
		return
	}
	var patch model.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(common.FormatBindingError(err), apperr.CodeValidation))
		return
	}

	res, err := ep.store.UpdateEntity(c.Request.Context(), key, patch)
	if err != nil {
		ep.fail(c, err)
		return
	}
	ep.publish(key.Level, events.Updated, res.Entity, res.Ancestors)
	c.JSON(http.StatusOK, common.NewSuccessResponse(res))
}

func (ep *Endpoint) Delete(c *gin.Context) {
	key, ok := ep.key(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	// the parent id is only known before the row is gone
	node, err := ep.store.Get(ctx, key)
	if err != nil {
		ep.fail(c, err)
		return
	}
	res, err := ep.store.DeleteEntity(ctx, key)
	if err != nil {
		ep.fail(c, err)
		return
	}
	ep.publish(key.Level, events.Deleted, node, res.Ancestors)
	c.JSON(http.StatusOK, common.NewSuccessResponse(res))
}

func (ep *Endpoint) publish(level model.Level, kind string, node model.Node, ancestors []model.Node) {
	if ep.publisher == nil || node == nil {
		return
	}
	ep.publisher.PublishChange(events.Change{
		Level:    level,
		Kind:     kind,
		ID:       node.Key().ID,
		ParentID: node.ParentKey().ID,
	})
	for _, a := range ancestors {
		k := a.Key()
		ep.publisher.PublishChange(events.Change{Level: k.Level, Kind: events.Updated, ID: k.ID, ParentID: a.ParentKey().ID})
	}
}

func (ep *Endpoint) level(c *gin.Context) (model.Level, bool) {
	level, err := model.ParseLevel(c.Param("level"))
	if err != nil || !level.Valid() {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("Invalid level", apperr.CodeValidation))
		return 0, false
	}
	return level, true
}

func (ep *Endpoint) key(c *gin.Context) (model.Key, bool) {
	level, ok := ep.level(c)
	if !ok {
		return model.Key{}, false
	}
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("Invalid id", apperr.CodeValidation))
		return model.Key{}, false
	}
	return model.Key{Level: level, ID: id}, true
}

// fail writes err with the status matching its sentinel. Unclassified
// errors are attached to the context for the error reporter.
func (ep *Endpoint) fail(c *gin.Context, err error) {
	code := apperr.Code(err)
	status := http.StatusInternalServerError
	message := err.Error()
	switch code {
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeValidation:
		status = http.StatusBadRequest
		message = common.FormatBindingError(err)
	case apperr.CodeHasChildren:
		status = http.StatusConflict
	case apperr.CodeInvariantViolation:
		status = http.StatusUnprocessableEntity
		ep.logger.Error("invariant violation", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	default:
		_ = c.Error(err)
	}
	c.JSON(status, common.NewErrorResponse(message, code))
}
