package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-relay-bot/internal/http/middleware"
	"github.com/tbourn/go-relay-bot/internal/utils"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go)
	Code string `json:"code" example:"not_found"`
	// Human-readable message
	Message string `json:"message" example:"request not found"`
}

// Pagination carries list metadata.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, size int, total int64) Pagination {
	pages := utils.TotalPages(total, size)
	return Pagination{
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: pages,
		HasNext:    page < pages,
	}
}

// fail aborts with the error envelope; 5xx are logged with the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		ev := lg.Error().Int("status", status).Str("code", code)
		if last := c.Errors.Last(); last != nil {
			ev = ev.Err(last.Err)
		}
		ev.Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail for router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func okJSON(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// clampPagination reads page and page_size with defaults 1 and 5; page_size
// is capped at 50.
func clampPagination(c *gin.Context) (page, size int) {
	const (
		defPage = 1
		defSize = 5
		maxSize = 50
	)
	page = utils.AtoiDefault(c.Query("page"), defPage)
	if page < 1 {
		page = defPage
	}
	size = utils.AtoiDefault(c.Query("page_size"), defSize)
	if size < 1 {
		size = defSize
	}
	if size > maxSize {
		size = maxSize
	}
	return page, size
}

// pathID parses the :id route parameter. It writes a 400 and returns false
// when the value is not a positive integer.
func pathID(c *gin.Context) (uint, bool) {
	id := utils.ParseID(c.Param("id"))
	if id == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request id")
		return 0, false
	}
	return id, true
}

// actor returns the caller resolved by middleware.Auth, answering 401 when
// it is missing.
func actor(c *gin.Context) (int64, bool) {
	tg, ok := middleware.Actor(c)
	if !ok {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing actor")
	}
	return tg, ok
}
