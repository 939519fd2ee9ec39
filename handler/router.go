package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/AnTengye/contractrisk/config"
	"github.com/AnTengye/contractrisk/middleware"
	"github.com/AnTengye/contractrisk/pkg/telemetry"
	"github.com/AnTengye/contractrisk/service"
	"github.com/AnTengye/contractrisk/web"
	"github.com/gin-gonic/gin"
)

// Deps are the services the HTTP surface talks to.
type Deps struct {
	Config   *config.Config
	Store    *service.JobStore
	Checker  FormatChecker
	Pipeline JobSubmitter
	Renderer service.PDFRenderer
}

// NewRouter builds the gin engine with middleware, templates and all routes.
func NewRouter(d Deps) (*gin.Engine, error) {
	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	router := gin.New()
	router.MaxMultipartMemory = 8 << 20
	router.SetHTMLTemplate(tmpl)

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger("/health", "/metrics", "/static", "/api/job"))
	router.Use(cacheMiddleware())

	analysis := NewAnalysisHandler(d.Config, d.Store, d.Checker, d.Pipeline)
	jobs := NewJobHandler(d.Store)
	reports := NewReportHandler(d.Store, d.Renderer)

	limiter := middleware.NewRateLimiter(d.Config.RateLimit.Requests, d.Config.RateLimit.Window)

	router.StaticFS("/static", web.Static())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	router.GET("/metrics", gin.WrapH(telemetry.Handler()))

	router.GET("/", analysis.Index)
	router.GET("/upload", analysis.Index)
	router.POST("/analyze", middleware.RateLimit(limiter), analysis.Analyze)
	router.GET("/analyzing/:id", analysis.Analyzing)

	router.GET("/api/job/:id", jobs.Status)

	router.GET("/report/:id", reports.HTML)
	router.GET("/report/:id/pdf", reports.PDF)

	return router, nil
}

// cacheMiddleware lets browsers cache embedded assets and nothing else.
func cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/static/") {
			c.Header("Cache-Control", "public, max-age=3600")
		} else {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		}
		c.Next()
	}
}
