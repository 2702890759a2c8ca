package handler // package handler contains the echo HTTP handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resource-api/internal/logging"
	"github.com/iliyamo/resource-api/internal/schema"
	"github.com/iliyamo/resource-api/internal/service"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool             `json:"success"`
	Data    any              `json:"data,omitempty"`
	Total   *int64           `json:"total,omitempty"`
	Message string           `json:"message,omitempty"`
	Fields  []string         `json:"fields,omitempty"`
	Errors  []schema.Problem `json:"errors,omitempty"`
}

func ok(c echo.Context, status int, msg string, data any) error {
	return c.JSON(status, envelope{Success: true, Data: data, Message: msg})
}

func okList(c echo.Context, data any, total int64) error {
	return c.JSON(http.StatusOK, envelope{Success: true, Data: data, Total: &total})
}

func badRequest(c echo.Context, msg string, fields ...string) error {
	return c.JSON(http.StatusBadRequest, envelope{Message: msg, Fields: fields})
}

// statusOf maps service error kinds to HTTP status codes.
func statusOf(k service.Kind) int {
	switch k {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindDuplicate:
		return http.StatusConflict
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// fail writes err as an envelope.  Internal causes never reach the client.
func fail(c echo.Context, err error) error {
	var se *service.Error
	if !errors.As(err, &se) {
		logging.FromContext(c.Request().Context()).Error("unexpected_error", "error", err)
		return c.JSON(http.StatusInternalServerError, envelope{Message: "internal error"})
	}
	body := envelope{Message: se.Message, Fields: se.Fields, Errors: se.Problems}
	if se.Kind == service.KindInternal {
		body = envelope{Message: "internal error"}
	}
	return c.JSON(statusOf(se.Kind), body)
}
