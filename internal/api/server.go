package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"pvyield/internal/pvwatts"
	"pvyield/internal/storage"
	"pvyield/internal/yield"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ResultPublisher receives every successful calculation.
type ResultPublisher interface {
	Publish(result *yield.CalculationResult)
}

// CacheStatter reports engine cache usage for the health endpoint.
type CacheStatter interface {
	Stats() (*storage.CacheStats, error)
}

type Server struct {
	router    *gin.Engine
	server    *http.Server
	calc      *yield.Calculator
	losses    yield.LossParameters
	publisher ResultPublisher
	cache     CacheStatter
	timeout   time.Duration
	port      int
	logger    *zap.Logger
	started   time.Time
}

type ServerConfig struct {
	Port       int
	Calculator *yield.Calculator
	// Losses fill in whatever a request leaves out.
	Losses    yield.LossParameters
	Publisher ResultPublisher
	Cache     CacheStatter
	// Timeout bounds one calculation, engine round trips included.
	Timeout time.Duration
	Logger  *zap.Logger
}

func NewServer(cfg ServerConfig) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		router:    router,
		calc:      cfg.Calculator,
		losses:    cfg.Losses,
		publisher: cfg.Publisher,
		cache:     cfg.Cache,
		timeout:   cfg.Timeout,
		port:      cfg.Port,
		logger:    logger,
		started:   time.Now(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api/v1")
	{
		api.POST("/simulations", s.simulationHandler)
		api.POST("/simulations/site", s.siteSimulationHandler)
		api.POST("/estimates", s.estimateHandler)
		api.GET("/module-classes", s.moduleClassesHandler)
		api.GET("/module-classes/match", s.matchModuleClassHandler)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}

	s.logger.Info("API server starting", zap.Int("port", s.port))
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) healthHandler(c *gin.Context) {
	body := gin.H{
		"status":    "healthy",
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"timestamp": time.Now(),
	}

	if s.cache != nil {
		stats, err := s.cache.Stats()
		if err != nil {
			s.logger.Warn("Cache stats unavailable", zap.Error(err))
			body["cache"] = gin.H{"error": err.Error()}
		} else {
			body["cache"] = stats
		}
	}

	c.JSON(http.StatusOK, body)
}

func (s *Server) calculationContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(c.Request.Context(), s.timeout)
	}
	return context.WithCancel(c.Request.Context())
}

func (s *Server) simulationHandler(c *gin.Context) {
	var req SimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in, err := req.Input(s.losses)
	if err != nil {
		s.writeError(c, err)
		return
	}

	ctx, cancel := s.calculationContext(c)
	defer cancel()

	result, err := s.calc.Calculate(ctx, in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.publish(result)
	c.JSON(http.StatusOK, result)
}

func (s *Server) siteSimulationHandler(c *gin.Context) {
	var req SiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in, err := req.Input(s.losses)
	if err != nil {
		s.writeError(c, err)
		return
	}

	ctx, cancel := s.calculationContext(c)
	defer cancel()

	result, err := s.calc.CalculateSite(ctx, in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.publish(result)
	c.JSON(http.StatusOK, result)
}

func (s *Server) estimateHandler(c *gin.Context) {
	var req SimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in, err := req.Input(s.losses)
	if err != nil {
		s.writeError(c, err)
		return
	}

	result, err := s.calc.Estimate(in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.publish(result)
	c.JSON(http.StatusOK, gin.H{
		"approximate": true,
		"result":      result,
	})
}

func (s *Server) moduleClassesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.calc.Matcher().Classes())
}

func (s *Server) matchModuleClassHandler(c *gin.Context) {
	raw := c.Query("efficiency")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "efficiency query parameter is required"})
		return
	}
	eff, err := strconv.ParseFloat(raw, 64)
	if err != nil || !(eff > 0) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid efficiency %q", raw)})
		return
	}
	c.JSON(http.StatusOK, s.calc.Matcher().Match(eff))
}

func (s *Server) publish(result *yield.CalculationResult) {
	if s.publisher != nil {
		s.publisher.Publish(result)
	}
}

// writeError maps calculation failures onto HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	var (
		missing   *yield.MissingParameterError
		invalid   *yield.InvalidModuleSpecError
		noSystems *yield.NoValidSystemsError
		engineErr *pvwatts.EngineError
	)

	switch {
	case errors.As(err, &missing):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  err.Error(),
			"group":  missing.Group,
			"fields": missing.Fields,
		})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
			"field": invalid.Field,
		})
	case errors.As(err, &noSystems):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &engineErr):
		status := http.StatusBadGateway
		switch {
		case engineErr.Timeout():
			status = http.StatusGatewayTimeout
		case engineErr.Kind == pvwatts.KindUnavailable:
			status = http.StatusServiceUnavailable
		}
		s.logger.Warn("Simulation engine failed", zap.Int("status", status), zap.Error(err))
		c.JSON(status, gin.H{
			"error":  err.Error(),
			"kind":   engineErr.Kind,
			"errors": engineErr.Errors,
		})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	case errors.Is(err, yield.ErrNoEngine):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		s.logger.Error("Calculation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
