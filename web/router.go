// Package web serves the hierarchy over HTTP.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"axiapac.com/payroll/infrastructure/communication"
	"axiapac.com/payroll/seed"
	"axiapac.com/payroll/web/events"
	"axiapac.com/payroll/web/handlers"
	"axiapac.com/payroll/web/handlers/hierarchy"
	"axiapac.com/payroll/web/middlewares"
)

type RouterOptions struct {
	Store     hierarchy.Store
	// DB enables POST /import when set.
	DB        *gorm.DB
	Broker    *events.Broker
	Notifier  communication.Notifier
	JWTSecret []byte
	Cookie    string
	Logger    *slog.Logger
}

func NewRouter(opts RouterOptions) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = communication.Discard{}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestLogger(logger))
	r.Use(middlewares.ErrorReporter(notifier, logger))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	protected := r.Group("/api/v1.0")
	protected.Use(middlewares.Authentication(opts.JWTSecret, opts.Cookie))
	{
		var publisher hierarchy.Publisher
		if opts.Broker != nil {
			publisher = opts.Broker
			protected.GET("/events", gin.WrapH(opts.Broker))
		}
		hierarchy.Register(protected, opts.Store, publisher, logger)
		if opts.DB != nil {
			importer := func(ctx context.Context, b *seed.Batch) error { return b.Insert(ctx, opts.DB) }
			protected.POST("/import", handlers.UploadTimesheetsHandler(importer, publisher, logger))
		}
	}

	return r
}
