package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/urmzd/alpacaswitch/pkg/api/handlers"
)

// shutdownTimeout bounds how long in-flight requests may run after the
// serve context is cancelled.
const shutdownTimeout = 5 * time.Second

// Router holds the Gin engine and dependencies
type Router struct {
	engine  *gin.Engine
	alpaca  *handlers.AlpacaHandler
	health  *handlers.HealthHandler
	metrics http.Handler
}

// Dispatcher is the Alpaca dispatcher as seen by the router.
type Dispatcher interface {
	handlers.Dispatcher
	handlers.TransactionCounter
}

// NewRouter creates a new API router. metrics may be nil.
func NewRouter(dispatcher Dispatcher, roster handlers.RosterStatus, metrics http.Handler) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	// Alpaca clients expect exact paths; a redirect would hide the 400.
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false
	SetupMiddleware(engine)

	router := &Router{
		engine:  engine,
		alpaca:  handlers.NewAlpacaHandler(dispatcher),
		health:  handlers.NewHealthHandler(roster, dispatcher),
		metrics: metrics,
	}

	router.setupRoutes()

	return router
}

// setupRoutes configures all routes. Health, metrics and the API docs are
// served outside the dispatcher; they never allocate transaction ids.
func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.health.Health)
	if r.metrics != nil {
		r.engine.GET("/metrics", gin.WrapH(r.metrics))
	}

	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.engine.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})

	// Alpaca device-control and management
	r.engine.Any("/api/*path", r.alpaca.Serve)
	r.engine.Any("/management/*path", r.alpaca.Serve)

	// Everything else still gets an Alpaca-shaped 400 and a transaction id.
	r.engine.NoRoute(r.alpaca.Serve)
}

// Handler returns the router as an http.Handler.
func (r *Router) Handler() http.Handler {
	return r.engine
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (r *Router) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           r.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	log.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("HTTP server stopped")
	return nil
}

// Run listens on addr and serves until ctx is cancelled.
func (r *Router) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return r.Serve(ctx, ln)
}
