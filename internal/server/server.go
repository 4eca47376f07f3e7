package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	admindomain "github.com/smallbiznis/grievance-portal/internal/admin/domain"
	"github.com/smallbiznis/grievance-portal/internal/admin/session"
	complaintdomain "github.com/smallbiznis/grievance-portal/internal/complaint/domain"
	"github.com/smallbiznis/grievance-portal/internal/config"
	"github.com/smallbiznis/grievance-portal/internal/observability"
	obsmiddleware "github.com/smallbiznis/grievance-portal/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/grievance-portal/internal/observability/metrics"
	obstracing "github.com/smallbiznis/grievance-portal/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/grievance-portal/internal/payment/domain"
	"github.com/smallbiznis/grievance-portal/internal/providers/pdf"
	"github.com/smallbiznis/grievance-portal/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)

const defaultStreamInterval = 2 * time.Second

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// RunHTTP serves the engine for the lifetime of the fx app.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	log            *zap.Logger
	complaintSvc   complaintdomain.Service
	webhookSvc     paymentdomain.WebhookService
	adminSvc       admindomain.Service
	cookies        *session.Cookies
	letters        pdf.Provider
	limiter        *ratelimit.ClientLimiter
	obsMetrics     *obsmetrics.Metrics
	streamInterval time.Duration
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	ComplaintSvc complaintdomain.Service
	WebhookSvc   paymentdomain.WebhookService
	AdminSvc     admindomain.Service
	Cookies      *session.Cookies
	Letters      pdf.Provider
	Limiter      *ratelimit.ClientLimiter `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            p.Log.Named("http.server"),
		complaintSvc:   p.ComplaintSvc,
		webhookSvc:     p.WebhookSvc,
		adminSvc:       p.AdminSvc,
		cookies:        p.Cookies,
		letters:        p.Letters,
		limiter:        p.Limiter,
		obsMetrics:     p.ObsMetrics,
		streamInterval: defaultStreamInterval,
	}

	svc.registerPublicRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPublicRoutes() {
	api := s.engine.Group("/api")

	// -------- Complaints --------
	api.POST("/complaints", s.RateLimit(), s.SubmitComplaint)
	api.GET("/complaints/:id", s.GetComplaint)
	api.GET("/complaints/:id/letter.pdf", s.ComplaintLetter)
	api.GET("/complaints/:id/stream", s.StreamComplaint)

	// -------- Payments --------
	api.POST("/payments/checkout-session", s.RateLimit(), s.CreateCheckoutSession)
	api.POST("/payments/verify-session", s.RateLimit(), s.VerifySession)
	api.POST("/payments/webhook/:provider", s.HandlePaymentWebhook)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin")

	admin.POST("/login", s.RateLimit(), s.AdminLogin)
	admin.POST("/logout", s.AdminLogout)
	admin.GET("/check", s.AdminCheck)

	authed := admin.Group("", s.AdminRequired())
	{
		authed.GET("/complaints", s.RequireAccess(admindomain.ObjectComplaints), s.AdminListComplaints)
		authed.GET("/complaints/export", s.RequireAccess(admindomain.ObjectReports), s.AdminExportComplaints)
		authed.GET("/stats/daily", s.RequireAccess(admindomain.ObjectStats), s.AdminDailyStats)
	}
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			AbortWithError(c, ErrNotFound)
			return
		}

		// static assets (vite)
		if fileExists("./public", c.Request.URL.Path) {
			c.File("./public" + c.Request.URL.Path)
			return
		}

		// SPA fallback
		serveIndex(c)
	})
}

func fileExists(publicDir, reqPath string) bool {
	clean := filepath.Clean(reqPath)

	// prevent path traversal
	if clean == "." || clean == "/" || clean == ".." {
		return false
	}

	fullPath := filepath.Join(publicDir, clean)

	info, err := os.Stat(fullPath)
	if err != nil {
		return false
	}

	return !info.IsDir()
}
