// Package server exposes the loaded rent model over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rent-predictor/models"
	"rent-predictor/services"
	"rent-predictor/utils"
)

// Predictor is the part of the model service the HTTP layer needs.
type Predictor interface {
	Ready() bool
	Artifact() *models.Artifact
	Predict(features []float64) (float64, error)
	PredictNamed(named map[string]float64) (float64, error)
}

type predictRequest struct {
	Features []float64         `json:"features" binding:"required_without=Named"`
	Named    map[string]float64 `json:"named" binding:"required_without=Features"`
}

type predictResponse struct {
	Rent      float64 `json:"rent"`
	ModelID   string  `json:"model_id"`
	ModelName string  `json:"model_name"`
}

// Options tunes the engine returned by New.
type Options struct {
	// AllowedOrigins is a comma-separated origin list; "*" or empty allows all.
	AllowedOrigins string
}

// New builds the gin engine serving health, metrics and predictions.
func New(svc Predictor, logger *utils.Logger, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), setupCORS(opts.AllowedOrigins))

	h := &handler{svc: svc, logger: logger}
	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/predict", h.predict)
	return router
}

type handler struct {
	svc    Predictor
	logger *utils.Logger
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "UP",
		"ready":  h.svc.Ready(),
	})
}

func (h *handler) predict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.Features != nil && req.Named != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "send either features or named, not both"})
		return
	}

	var (
		rent float64
		err  error
	)
	if req.Named != nil {
		rent, err = h.svc.PredictNamed(req.Named)
	} else {
		rent, err = h.svc.Predict(req.Features)
	}
	switch {
	case errors.Is(err, services.ErrModelNotLoaded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model is not loaded"})
		return
	case errors.Is(err, services.ErrFeatureMismatch), errors.Is(err, services.ErrInvalidFeature):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("[server] predict failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "prediction failed"})
		return
	}

	resp := predictResponse{Rent: rent}
	if art := h.svc.Artifact(); art != nil {
		resp.ModelID = art.ID
		resp.ModelName = art.Name
	}
	c.JSON(http.StatusOK, resp)
}

func requestLogger(logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Slog().Debug("[server] request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start))
	}
}

func setupCORS(allowed string) gin.HandlerFunc {
	origins := strings.Split(allowed, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if allowed == "" || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// Run serves handler on addr until ctx is cancelled, then shuts down
// gracefully.
func Run(ctx context.Context, addr string, handler http.Handler, logger *utils.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("[server] listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("[server] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
