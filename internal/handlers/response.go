// Package handlers holds the gin handlers of the portfolio API. Every
// response uses the {success, data} / {success, error, details} envelope.
package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	apperrors "github.com/jonesrussell/site-portfolio/infrastructure/errors"
	infragin "github.com/jonesrussell/site-portfolio/infrastructure/gin"
	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	"github.com/jonesrussell/site-portfolio/internal/export"
	"github.com/jonesrussell/site-portfolio/internal/models"
)

// Response is the envelope of a successful call.
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// ErrorResponse is the envelope of a failed call.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Success: true, Data: data})
}

// base carries what every handler needs to log and report errors.
type base struct {
	logger infralogger.Logger
}

func newBase(log infralogger.Logger) base {
	if log == nil {
		log = infralogger.NewNop()
	}
	return base{logger: log}
}

// log returns the request-scoped logger when the request ID middleware ran,
// and the handler logger otherwise.
func (b base) log(c *gin.Context) infralogger.Logger {
	if _, ok := c.Get(infragin.RequestIDKey); ok {
		return infralogger.FromContext(c.Request.Context())
	}
	return b.logger
}

// respondError maps err onto the envelope. Server-side failures are logged
// with the full error and reported with a generic message; details are added
// only in debug mode.
func (b base) respondError(c *gin.Context, err error, action string) {
	status := apperrors.HTTPStatus(err)
	resp := ErrorResponse{Error: apperrors.PublicMessage(err)}

	if status >= http.StatusInternalServerError {
		b.log(c).Error("Request failed",
			infralogger.String("action", action),
			infralogger.String("path", c.FullPath()),
			infralogger.Error(err),
		)
	} else {
		b.log(c).Debug("Request rejected",
			infralogger.String("action", action),
			infralogger.Int("status", status),
			infralogger.Error(err),
		)
	}

	if gin.IsDebugging() {
		resp.Details = err.Error()
	}
	c.JSON(status, resp)
}

// bindJSON decodes the body into dst, answering 400 on failure.
func (b base) bindJSON(c *gin.Context, dst any) bool {
	return b.bindResult(c, c.ShouldBindJSON(dst))
}

// bindOptionalJSON is bindJSON for endpoints whose body may be omitted. An
// empty body leaves dst untouched whatever the Content-Length says, so
// chunked requests with no payload are accepted too.
func (b base) bindOptionalJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if errors.Is(err, io.EOF) {
		return true
	}
	return b.bindResult(c, err)
}

func (b base) bindResult(c *gin.Context, err error) bool {
	if err != nil {
		resp := ErrorResponse{Error: "Invalid request body"}
		if gin.IsDebugging() {
			resp.Details = err.Error()
		}
		b.log(c).Debug("Invalid request body", infralogger.Error(err))
		c.JSON(http.StatusBadRequest, resp)
		return false
	}
	return true
}

// pageQuery reads page and pageSize. Malformed values fall back to the
// defaults applied by models.Page.Normalize.
func pageQuery(c *gin.Context) models.Page {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("pageSize"))
	return models.Page{Page: page, PageSize: size}.Normalize()
}

// exportFormat reads ?format= (default csv), answering 400 when unknown.
func (b base) exportFormat(c *gin.Context, name string) (export.Format, bool) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		b.respondError(c, apperrors.Validation("%v", err), "export "+name)
		return "", false
	}
	return format, true
}

// sendTable renders t in format as an attachment.
func (b base) sendTable(c *gin.Context, name string, format export.Format, t export.Table) {
	var buf bytes.Buffer
	if err := export.Write(&buf, format, t); err != nil {
		b.respondError(c, fmt.Errorf("render %s export: %w", name, err), "export "+name)
		return
	}

	filename := export.Filename(name, format, models.Today())
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}
