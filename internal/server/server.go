package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/payequity/internal/authorization"
	"github.com/smallbiznis/payequity/internal/config"
	splitdomain "github.com/smallbiznis/payequity/internal/equitysplit/domain"
	invoicedomain "github.com/smallbiznis/payequity/internal/invoice/domain"
	"github.com/smallbiznis/payequity/internal/observability"
	obsmiddleware "github.com/smallbiznis/payequity/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/payequity/internal/observability/metrics"
	obstracing "github.com/smallbiznis/payequity/internal/observability/tracing"
	"github.com/smallbiznis/payequity/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware("/health", obsCfg.MetricsRoute()))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET(obsCfg.MetricsRoute(), gin.WrapH(promhttp.Handler()))

	return r
}

type ginParams struct {
	fx.In

	ObsCfg      observability.Config
	HTTPMetrics *obsmetrics.HTTPMetrics `optional:"true"`
}

func registerGin(p ginParams) *gin.Engine {
	return NewEngine(p.ObsCfg, p.HTTPMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
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
	engine     *gin.Engine
	cfg        config.Config
	authzSvc   authorization.Service
	splitSvc   splitdomain.Service
	invoiceSvc invoicedomain.Service
	limiter    *ratelimit.Limiter
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	AuthzSvc   authorization.Service
	SplitSvc   splitdomain.Service
	InvoiceSvc invoicedomain.Service
	Limiter    *ratelimit.Limiter
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		authzSvc:   p.AuthzSvc,
		splitSvc:   p.SplitSvc,
		invoiceSvc: p.InvoiceSvc,
		limiter:    p.Limiter,
		obsMetrics: p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/companies/:company_id", s.ActorRequired(), CompanyContext())

	// -------- Equity --------
	api.POST("/equity_calculations",
		s.authorizeCompanyAction(authorization.ObjectEquityCalculation, authorization.ActionEquityPreview),
		s.EquityPreviewRateLimit(),
		s.CalculateEquity,
	)

	// -------- Invoices --------
	api.POST("/invoices", s.authorizeCompanyAction(authorization.ObjectInvoice, authorization.ActionInvoiceCreate), s.CreateInvoice)
	api.GET("/invoices/:id", s.authorizeCompanyAction(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.GetInvoice)
	api.POST("/invoices/:id/approve", s.authorizeCompanyAction(authorization.ObjectInvoice, authorization.ActionInvoiceApprove), s.ApproveInvoice)
	api.POST("/invoices/:id/accept_payment", s.authorizeCompanyAction(authorization.ObjectInvoice, authorization.ActionInvoiceAcceptPayment), s.AcceptInvoicePayment)
	api.POST("/invoices/:id/settle", s.authorizeCompanyAction(authorization.ObjectInvoice, authorization.ActionInvoiceSettle), s.SettleInvoice)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
