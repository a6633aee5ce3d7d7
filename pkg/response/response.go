package response

import (
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-portal-api/internal/models"
	"github.com/noah-isme/college-portal-api/pkg/middleware/requestid"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
)

const defaultFilename = "download"

// Envelope represents the common response contract. Meta carries the request id whenever the
// request went through the request id middleware.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// JSON sends a success response with optional pagination and handler supplied metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	noStore(c)
	var extra map[string]interface{}
	if len(meta) > 0 {
		extra = meta[0]
	}
	c.JSON(status, Envelope{Data: data, Pagination: pagination, Meta: withRequestID(c, extra)})
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error renders err as the common error envelope. Server-side failures are attached to the gin
// context so the access logger records the underlying cause; the client only sees the public message.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if appErr.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	noStore(c)
	c.JSON(appErr.Status, Envelope{Error: appErr, Meta: withRequestID(c, nil)})
}

// Attachment streams a rendered export. The filename is reduced to a safe token before it is placed
// in Content-Disposition.
func Attachment(c *gin.Context, filename, contentType string, payload []byte) {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": SafeFilename(filename)})
	c.Header("Content-Disposition", disposition)
	c.Header("Content-Length", strconv.Itoa(len(payload)))
	c.Header("X-Content-Type-Options", "nosniff")
	noStore(c)
	c.Data(http.StatusOK, contentType, payload)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// SafeFilename keeps letters, digits, dot, dash and underscore, replacing anything else with a
// dash. Path components are dropped.
func SafeFilename(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, name)
	cleaned = strings.Trim(cleaned, ".-")
	if cleaned == "" {
		return defaultFilename
	}
	return cleaned
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}

func withRequestID(c *gin.Context, meta map[string]interface{}) map[string]interface{} {
	id := requestid.Value(c)
	if id == "" {
		if len(meta) == 0 {
			return nil
		}
		return meta
	}
	out := make(map[string]interface{}, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out["request_id"] = id
	return out
}
