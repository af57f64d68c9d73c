package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"axiapac.com/payroll/apperr"
	"axiapac.com/payroll/model"
	"axiapac.com/payroll/seed"
	"axiapac.com/payroll/web/common"
	"axiapac.com/payroll/web/events"
)

// Importer persists a parsed batch.
type Importer func(ctx context.Context, b *seed.Batch) error

type ChangePublisher interface {
	PublishChange(events.Change)
}

type ImportResult struct {
	Files       []string `json:"files"`
	Timesheets  int      `json:"timesheets"`
	DTRs        int      `json:"dtrs"`
	Timelogs    int      `json:"timelogs"`
	ClockEvents int      `json:"clockEvents"`
}

// UploadTimesheetsHandler imports the csv files sent as "files". Every file
// is parsed before anything is written, so a bad row rejects the upload.
func UploadTimesheetsHandler(importer Importer, publisher ChangePublisher, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Parse multipart form (max 50 MB)
		if err := c.Request.ParseMultipartForm(50 << 20); err != nil {
			c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), apperr.CodeValidation))
			return
		}

		files := c.Request.MultipartForm.File["files"]
		if len(files) == 0 {
			c.JSON(http.StatusBadRequest, common.NewErrorResponse("no files uploaded", apperr.CodeValidation))
			return
		}

		all := &seed.Batch{}
		res := ImportResult{Files: []string{}}
		for _, file := range files {
			if !strings.EqualFold(filepath.Ext(file.Filename), ".csv") {
				c.JSON(http.StatusBadRequest, common.NewErrorResponse(fmt.Sprintf("%s is not a csv file", file.Filename), apperr.CodeValidation))
				return
			}
			f, err := file.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), apperr.CodeValidation))
				return
			}
			b, err := seed.FromCSV(f)
			_ = f.Close()
			if err != nil {
				c.JSON(http.StatusBadRequest, common.NewErrorResponse(fmt.Sprintf("%s: %s", file.Filename, err), apperr.CodeValidation))
				return
			}
			all.Append(b)
			res.Files = append(res.Files, file.Filename)
		}

		if err := importer(c.Request.Context(), all); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, common.NewErrorResponse("import failed", apperr.CodeInternal))
			return
		}

		res.Timesheets, res.DTRs = len(all.Timesheets), len(all.DTRs)
		res.Timelogs, res.ClockEvents = len(all.Timelogs), len(all.ClockEvents)
		logger.Info("timesheets imported", slog.Any("files", res.Files), slog.Int("timesheets", res.Timesheets), slog.Int("dtrs", res.DTRs))

		if publisher != nil {
			for _, ts := range all.Timesheets {
				publisher.PublishChange(events.Change{Level: model.LevelTimesheet, Kind: events.Created, ID: ts.ID})
			}
		}

		c.JSON(http.StatusCreated, common.NewSuccessResponse(res))
	}
}
