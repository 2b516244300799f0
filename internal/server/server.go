package server

import (
	"context"
	"net/http"
	"time"

	audittraildomain "github.com/dealerdesk/taxengine/internal/audittrail/domain"
	calculationdomain "github.com/dealerdesk/taxengine/internal/calculation/domain"
	"github.com/dealerdesk/taxengine/internal/config"
	jurisdictiondomain "github.com/dealerdesk/taxengine/internal/jurisdiction/domain"
	obsmetrics "github.com/dealerdesk/taxengine/internal/observability/metrics"
	stateruledomain "github.com/dealerdesk/taxengine/internal/staterule/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(obsmetrics.HTTP().Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, log *zap.Logger) *gin.Engine {
	return NewEngine(cfg, log)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
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
	engine   *gin.Engine
	cfg      config.Config
	log      *zap.Logger
	calcSvc  calculationdomain.Service
	jurSvc   jurisdictiondomain.Service
	ruleSvc  stateruledomain.Service
	auditSvc audittraildomain.Service
}

type ServerParams struct {
	fx.In

	Gin      *gin.Engine
	Cfg      config.Config
	Log      *zap.Logger
	CalcSvc  calculationdomain.Service
	JurSvc   jurisdictiondomain.Service
	RuleSvc  stateruledomain.Service
	AuditSvc audittraildomain.Service
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:   p.Gin,
		cfg:      p.Cfg,
		log:      p.Log.Named("http.server"),
		calcSvc:  p.CalcSvc,
		jurSvc:   p.JurSvc,
		ruleSvc:  p.RuleSvc,
		auditSvc: p.AuditSvc,
	}

	s.registerAPIRoutes()
	s.registerAdminRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Tax Calculations --------
	api.POST("/tax/sales", s.CalculateSalesTax)
	api.POST("/tax/deal", s.CalculateDealTaxes)
	api.POST("/tax/estimate", s.EstimateSalesTax)
	api.GET("/tax/doc-fee", s.CalculateDocFee)
	api.GET("/tax/title-fee/:state", s.CalculateTitleFee)

	// -------- Rates --------
	api.GET("/rates/:postalCode", s.GetRatesByPostalCode)

	// -------- Audit Trail --------
	api.GET("/audit/calculations/:calculationId", s.GetAuditByCalculationID)
	api.GET("/audit/deals/:dealId", s.GetAuditByDeal)
	api.GET("/audit/logs", s.ListAuditLogs)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	// -------- Jurisdictions --------
	admin.POST("/jurisdictions", s.LoadJurisdiction)
	admin.GET("/jurisdictions/:postalCode/history", s.GetJurisdictionHistory)

	// -------- State Rules --------
	admin.POST("/state-rules", s.LoadStateRules)
	admin.GET("/state-rules/:state", s.GetStateRules)
	admin.GET("/state-rules/:state/versions", s.ListStateRuleVersions)
}
