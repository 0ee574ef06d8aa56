package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// servicePaths are scraped often and logged at debug on success.
var servicePaths = []string{"/health", "/metrics"}

// SetupMiddleware configures the middleware stack for the Gin router
func SetupMiddleware(r *gin.Engine) {
	r.Use(gin.Recovery())
	r.Use(RequestLogger(servicePaths...))

	// Browser-based Alpaca clients issue GET/PUT from other origins.
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
}

// RequestLogger returns a Gin middleware that logs one line per request,
// at info, warn or error by status class. Successful requests to quiet
// paths are logged at debug. Errors attached with c.Error are logged
// individually.
func RequestLogger(quiet ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(quiet))
	for _, p := range quiet {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		uri := c.Request.RequestURI

		for _, e := range c.Errors {
			log.Warn().Err(e.Err).Str("uri", uri).Msg("request error")
		}

		var event *zerolog.Event
		switch _, isQuiet := skip[c.Request.URL.Path]; {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		case isQuiet:
			event = log.Debug()
		default:
			event = log.Info()
		}

		event.
			Str("method", c.Request.Method).
			Str("uri", uri).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}
