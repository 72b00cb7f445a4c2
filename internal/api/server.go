// Package api exposes the transfer decision engine over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/lorenz-liu/disaster-agent/internal/domain"
	"github.com/lorenz-liu/disaster-agent/internal/middleware"
	"github.com/lorenz-liu/disaster-agent/internal/service"
)

// Server represents the HTTP server.
type Server struct {
	logger        *logrus.Logger
	configManager domain.ConfigManager
	transfers     *service.TransferService
	rosterSource  domain.FacilitySource
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance.
func NewServer(logger *logrus.Logger, configManager domain.ConfigManager, transfers *service.TransferService, rosterSource domain.FacilitySource) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RateLimit(cfg.Server.RateLimitPerSecond, cfg.Server.RateLimitBurst))

	s := &Server{
		logger:        logger,
		configManager: configManager,
		transfers:     transfers,
		rosterSource:  rosterSource,
		router:        router,
	}
	s.setupRoutes()
	return s
}

// Start starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/transfer/decide", s.handleDecide)
		v1.POST("/transfer/batch", s.handleDecideBatch)
		v1.GET("/facilities", s.handleFacilities)
	}
}

// decideRequest is the body of a single-patient decision request. Facilities
// are optional; the configured roster serves as default.
type decideRequest struct {
	Patient      *domain.Patient     `json:"patient" binding:"required"`
	Facilities   []domain.Facility   `json:"facilities,omitempty"`
	IncidentType domain.IncidentType `json:"incident_type,omitempty"`
}

// batchRequest is the body of a pooled batch decision request.
type batchRequest struct {
	Patients   []domain.Patient  `json:"patients" binding:"required"`
	Facilities []domain.Facility `json:"facilities,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	})
}

func (s *Server) handleDecide(c *gin.Context) {
	var req decideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Invalid request body", err.Error())
		return
	}

	if req.Patient.ID == "" {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "patient_id is required", "")
		return
	}
	if req.Patient.Acuity == "" {
		req.Patient.Acuity = domain.UNDEFINED
	}
	if !req.Patient.Acuity.IsValid() {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput,
			"Invalid acuity", fmt.Sprintf("unknown SALT category %q", req.Patient.Acuity))
		return
	}
	// Unrecognized incident types dispatch like MCI; only MEDEVAC selects
	// the chain path.
	if req.IncidentType == "" {
		req.IncidentType = domain.MCI
	}

	facilities, ok := s.resolveFacilities(c, req.Facilities)
	if !ok {
		return
	}

	decision := s.transfers.Decide(c.Request.Context(), req.Patient, facilities, req.IncidentType)
	c.JSON(http.StatusOK, decision)
}

func (s *Server) handleDecideBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Invalid request body", err.Error())
		return
	}
	if len(req.Patients) == 0 {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "patients must not be empty", "")
		return
	}
	for i := range req.Patients {
		p := &req.Patients[i]
		if p.ID == "" {
			s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput,
				"patient_id is required", fmt.Sprintf("patients[%d] has no patient_id", i))
			return
		}
		if p.Acuity == "" {
			p.Acuity = domain.UNDEFINED
		}
		if !p.Acuity.IsValid() {
			s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput,
				"Invalid acuity", fmt.Sprintf("patients[%d]: unknown SALT category %q", i, p.Acuity))
			return
		}
	}

	facilities, ok := s.resolveFacilities(c, req.Facilities)
	if !ok {
		return
	}

	decisions := s.transfers.DecideBatch(c.Request.Context(), req.Patients, facilities)
	c.JSON(http.StatusOK, gin.H{"decisions": decisions})
}

func (s *Server) handleFacilities(c *gin.Context) {
	facilities, err := s.rosterSource.Facilities(c.Request.Context())
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, domain.ErrRosterError, "Failed to load facility roster", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"facilities": facilities})
}

// resolveFacilities returns the request's facility list, falling back to the
// configured roster. Facility validation applies either way.
func (s *Server) resolveFacilities(c *gin.Context, provided []domain.Facility) ([]domain.Facility, bool) {
	if len(provided) > 0 {
		for i := range provided {
			if err := provided[i].Validate(); err != nil {
				s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Invalid facility", err.Error())
				return nil, false
			}
		}
		return provided, true
	}

	facilities, err := s.rosterSource.Facilities(c.Request.Context())
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, domain.ErrRosterError, "Failed to load facility roster", err.Error())
		return nil, false
	}
	return facilities, true
}

func (s *Server) respondError(c *gin.Context, status int, code, message, details string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": domain.NewDecisionError(code, message, details, c.GetString("correlation_id")),
	})
}
