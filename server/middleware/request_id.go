package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/hrygo/tagsync/server/internal/observability"
)

// RequestID propagates the X-Request-ID header, or a generated id, into the
// request context so service logs carry it.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			var reqCtx *observability.RequestContext
			if id := req.Header.Get(echo.HeaderXRequestID); id != "" {
				reqCtx = observability.NewRequestContextWithID(nil, id, "", 0, "")
			} else {
				reqCtx = observability.NewRequestContext(nil, "", 0, "")
			}
			c.SetRequest(req.WithContext(observability.WithRequestContext(req.Context(), reqCtx)))
			c.Response().Header().Set(echo.HeaderXRequestID, reqCtx.RequestID)
			return next(c)
		}
	}
}
