package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hrygo/tagsync/internal/profile"
	tagerrors "github.com/hrygo/tagsync/server/internal/errors"
	"github.com/hrygo/tagsync/server/service/tag"
)

type APIV1Service struct {
	Profile      *profile.Profile
	Synchronizer *tag.Synchronizer
	QueryService *tag.QueryService
}

func NewAPIV1Service(profile *profile.Profile, synchronizer *tag.Synchronizer, queryService *tag.QueryService) *APIV1Service {
	return &APIV1Service{
		Profile:      profile,
		Synchronizer: synchronizer,
		QueryService: queryService,
	}
}

// RegisterRoutes registers the REST handlers with the given Echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	echoServer.GET("/healthz", s.Healthz)
	echoServer.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	g := echoServer.Group("/api/v1", middleware.CORS())

	g.GET("/tags", s.ListTags)
	g.DELETE("/tags", s.DeleteTags)
	g.GET("/tags/most-used", s.ListMostUsedTags)
	g.POST("/tags/sweep", s.SweepTags)
	g.GET("/tags/slug/:slug", s.GetTagBySlug)
	g.GET("/tags/:id", s.GetTag)
	g.PATCH("/tags/:id", s.UpdateTag)
	g.GET("/tags/:id/modules", s.ListTagModules)
	g.GET("/tags/:id/items", s.ListTagItems)

	g.GET("/items/:module/tags", s.ListModuleItemTags)
	g.GET("/items/:module/:itemId/tags", s.GetItemTags)
	g.PUT("/items/:module/:itemId/tags", s.SyncItemTags)
	g.DELETE("/items/:module/:itemId/tags", s.RemoveItemTags)
	g.GET("/items/:module/:itemId/related", s.ListRelatedItems)
}

// Healthz reports liveness.
// GET /healthz
func (s *APIV1Service) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.Profile.Version,
	})
}

// toHTTPError maps a service error to an HTTP error.
func toHTTPError(err error) error {
	status := http.StatusInternalServerError
	switch tagerrors.GetCodeFromError(err, tagerrors.ErrCodePersistence) {
	case tagerrors.ErrCodeInvalidArgument:
		status = http.StatusBadRequest
	case tagerrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case tagerrors.ErrCodeCapabilityNotImplemented:
		status = http.StatusNotImplemented
	case tagerrors.ErrCodeIndexing:
		status = http.StatusBadGateway
	}
	return echo.NewHTTPError(status, err.Error()).SetInternal(err)
}

func parseTagID(c echo.Context) (int32, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid tag id")
	}
	return int32(id), nil
}

func parseItemID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("itemId"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}
	return id, nil
}

func parseLimit(c echo.Context) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	return limit, nil
}
