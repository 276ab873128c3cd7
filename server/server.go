package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/tagsync/internal/profile"
	"github.com/hrygo/tagsync/plugin/navigation"
	"github.com/hrygo/tagsync/plugin/search"
	"github.com/hrygo/tagsync/server/middleware"
	apiv1 "github.com/hrygo/tagsync/server/router/api/v1"
	"github.com/hrygo/tagsync/server/runner/sweep"
	"github.com/hrygo/tagsync/server/service/tag"
	"github.com/hrygo/tagsync/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	Synchronizer *tag.Synchronizer
	QueryService *tag.QueryService

	echoServer *echo.Echo
	runnerStop context.CancelFunc
}

// NewServer wires the tag services and the HTTP API. modules are the taggable
// modules whose items can be resolved from tags.
func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store, modules ...tag.TaggableModule) (*Server, error) {
	registry, err := tag.NewRegistry(modules...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to register taggable modules")
	}

	var indexer tag.SearchIndexer = search.NopIndexer{}
	if profile.IsIndexerEnabled() {
		indexer = search.NewHTTPIndexer(search.Config{
			URL:     profile.IndexerURL,
			RPS:     profile.IndexerRPS,
			Retries: profile.IndexerRetries,
		})
		slog.Info("search indexer enabled", slog.String("url", profile.IndexerURL))
	}

	locale := tag.StaticLocale(profile.DefaultLanguage)
	nav := navigation.NewStatic(profile.InstanceURL, profile.DefaultLanguage)

	s := &Server{
		Profile:      profile,
		Store:        store,
		Synchronizer: tag.NewSynchronizer(store, indexer, locale),
		QueryService: tag.NewQueryService(store, nav, locale, registry),
	}

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(echomiddleware.Recover())
	echoServer.Use(middleware.RequestID())
	echoServer.Use(middleware.Metrics())
	echoServer.Use(middleware.NewRateLimiter(profile.RateLimitRPS).Middleware())
	s.echoServer = echoServer

	apiv1.NewAPIV1Service(profile, s.Synchronizer, s.QueryService).RegisterRoutes(echoServer)
	return s, nil
}

// Start starts the background sweep and serves HTTP until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}

	runnerCtx, cancel := context.WithCancel(context.Background())
	s.runnerStop = cancel
	go sweep.NewRunner(s.Synchronizer, s.Profile.SweepInterval).Run(runnerCtx)

	s.echoServer.Listener = listener
	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	slog.Info("tagsync server started", slog.String("address", listener.Addr().String()), slog.String("mode", s.Profile.Mode))
	return nil
}

// Shutdown stops the HTTP server, the background runner and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	if s.runnerStop != nil {
		s.runnerStop()
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", slog.String("error", err.Error()))
	}
	slog.Info("tagsync stopped properly")
}
