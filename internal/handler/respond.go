// Package handler adapts the services to HTTP.  Handlers bind and validate
// transport-level input, call one service method and render the result;
// every failure leaves as {"message": "..."} with the status implied by its
// service.Kind.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/cliora-storefront/internal/service"
)

// requestTimeout bounds the storage and payment calls made for one request.
const requestTimeout = 15 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func statusOf(k service.Kind) int {
	switch k {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindConflict:
		return http.StatusConflict
	case service.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fail renders err.  Internal causes are logged and never sent to the client.
func fail(c echo.Context, err error) error {
	se := asServiceError(err)
	if se.Kind == service.KindInternal {
		logInternal(c, se)
	}
	return c.JSON(statusOf(se.Kind), echo.Map{"message": se.Message})
}

func asServiceError(err error) *service.Error {
	var se *service.Error
	if errors.As(err, &se) {
		return se
	}
	return &service.Error{Kind: service.KindInternal, Message: "Internal server error", Err: err}
}

func logInternal(c echo.Context, se *service.Error) {
	ctx := c.Request().Context()
	attrs := []any{
		"err", se.Err,
		"method", c.Request().Method,
		"path", c.Path(),
		"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		attrs = append(attrs, "trace_id", sc.TraceID().String())
	}
	slog.ErrorContext(ctx, se.Message, attrs...)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"message": msg})
}

func ok(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// queryInt parses an integer query parameter, returning 0 when absent or
// malformed.
func queryInt(c echo.Context, name string) int {
	n, _ := strconv.Atoi(c.QueryParam(name))
	return n
}
