package httpapi

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/brettericmartin/teed-sub011/internal/learning"
	"github.com/brettericmartin/teed-sub011/internal/library"
	"github.com/brettericmartin/teed-sub011/internal/pipeline"
	"github.com/brettericmartin/teed-sub011/internal/product"
)

// Service is the pipeline surface the handlers call.
type Service interface {
	Identify(ctx context.Context, req pipeline.Request) (pipeline.Response, error)
	Extract(ctx context.Context, req pipeline.ExtractRequest) (pipeline.ExtractResponse, error)
	Correct(ctx context.Context, c product.Correction, related *product.ValidatedProduct) learning.Result
	LibraryStats(ctx context.Context) (library.Stats, error)
}

// Options configures the router.
type Options struct {
	// Mode is a gin mode: release, debug, or test.
	Mode           string
	AllowedOrigins []string
	// MaxBodyBytes caps request bodies; zero disables the cap.
	MaxBodyBytes int64
	Version      string
}

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(opts Options, svc Service, logger *slog.Logger) *gin.Engine {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	router := gin.New()
	router.Use(RequestID())
	router.Use(Recovery(logger))
	router.Use(RequestLogger(logger))
	router.Use(CORS(opts.AllowedOrigins))

	h := &handler{svc: svc, version: opts.Version}
	router.GET("/health", h.health)

	v1 := router.Group("/api/v1")
	v1.Use(BodyLimit(opts.MaxBodyBytes))
	{
		v1.POST("/identify", h.identify)
		v1.POST("/extract", h.extract)
		v1.POST("/corrections", h.correct)
		v1.GET("/library/stats", h.libraryStats)
	}
	return router
}
