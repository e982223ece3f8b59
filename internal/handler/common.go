package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"hospital-inventory/internal/middleware"
	"hospital-inventory/internal/service"
	"hospital-inventory/pkg/apperror"
	"hospital-inventory/pkg/logger"
	"hospital-inventory/pkg/response"
	"hospital-inventory/pkg/validator"

	"github.com/gin-gonic/gin"
)

// respondError is the single place where errors become HTTP responses.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	status, res := response.FromError(err)
	if status >= http.StatusInternalServerError {
		log.Error(c.Request.Context(), "request failed", err)
	}
	c.JSON(status, res)
}

// bindJSON decodes the body into req. An empty body is accepted for
// endpoints whose payload is optional when allowEmpty is set.
func bindJSON(c *gin.Context, req interface{}, allowEmpty bool) error {
	if err := c.ShouldBindJSON(req); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return validator.Translate(err)
	}
	return nil
}

func actorFrom(c *gin.Context) service.Actor {
	return service.Actor{
		UserID: c.GetString(middleware.ContextUserID),
		Role:   c.GetString(middleware.ContextUserRole),
	}
}

func queryBool(c *gin.Context, key string) (*bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperror.Validation(key + " must be true or false")
	}
	return &v, nil
}

// queryDate parses YYYY-MM-DD or RFC3339, returning fallback when absent.
func queryDate(c *gin.Context, key string, fallback time.Time) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperror.Validation(key + " must be YYYY-MM-DD or RFC3339")
	}
	return t, nil
}
