package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"honeymatch/internal/model"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// BuildInfo is reported by /health and /version
type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps carries everything the router wires together
type RouterDeps struct {
	Match          *MatchHandler
	Itinerary      *ItineraryHandler
	Embedding      *EmbeddingHandler
	DB             Pinger
	Logger         *zap.Logger
	AllowedOrigins string
	Build          BuildInfo
}

// SetupRouter builds the gin engine with CORS, tracing, logging and all routes
func SetupRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true

	router.Use(gin.Recovery())
	router.Use(TraceIDMiddleware())
	if deps.Logger != nil {
		router.Use(RequestLogger(deps.Logger))
	}
	router.Use(cors.New(corsConfig(deps.AllowedOrigins)))

	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, model.ErrorResponse{Message: "Method not allowed"})
	})
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Message: "Not found"})
	})

	router.GET("/health", func(c *gin.Context) {
		if deps.DB != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := deps.DB.Ping(ctx); err != nil {
				_ = c.Error(err)
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": "itinerary-matching",
					"error":   err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":     "healthy",
			"service":    "itinerary-matching",
			"version":    deps.Build.Version,
			"build_time": deps.Build.BuildTime,
			"git_commit": deps.Build.GitCommit,
		})
	})
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, deps.Build)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := router.Group("/api/v1")
	{
		// Match endpoints
		apiV1.POST("/match", deps.Match.Match)
		apiV1.POST("/match/stream", deps.Match.MatchStream)
		apiV1.OPTIONS("/match", preflight)
		apiV1.OPTIONS("/match/stream", preflight)

		// Itinerary endpoints
		apiV1.GET("/itineraries/:id", deps.Itinerary.GetItinerary)
		apiV1.POST("/itineraries/embeddings", deps.Embedding.BatchUpdate)
		apiV1.OPTIONS("/itineraries/embeddings", preflight)
	}

	return router
}

// preflight answers OPTIONS requests that reach the router. Browser
// preflights carrying an Origin are answered by the CORS middleware first.
func preflight(c *gin.Context) {
	c.Status(http.StatusOK)
}

func corsConfig(allowedOrigins string) cors.Config {
	cfg := cors.DefaultConfig()
	origins := splitOrigins(allowedOrigins)
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	cfg.AllowHeaders = []string{"Content-Type", "Authorization", "x-client-info", "apikey", traceIDHeader}
	cfg.ExposeHeaders = []string{traceIDHeader}
	cfg.OptionsResponseStatusCode = http.StatusOK
	return cfg
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
