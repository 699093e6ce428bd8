package bridge

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"trafficstats-agent/internal/model"
	"trafficstats-agent/internal/trafficstats"
)

type HTTPDeps struct {
	Table    *trafficstats.Table
	Snapshot func(ctx context.Context) (model.TrafficSnapshot, error)
	Health   func() map[string]any
	Version  func() any
	Metrics  http.Handler
	Logger   *slog.Logger
}

func NewHTTPHandler(d HTTPDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Logger))

	h := &httpHandlers{deps: d}
	v1 := r.Group("/v1")
	{
		v1.GET("/methods", h.listMethods)
		v1.GET("/stats/:method", h.callNoArg)
		v1.GET("/uid/:uid/:method", h.callUID)
		v1.GET("/snapshot", h.snapshot)
		v1.GET("/version", h.version)
	}
	r.GET("/healthz", h.health)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}
	return r
}

type httpHandlers struct {
	deps HTTPDeps
}

func (h *httpHandlers) listMethods(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"methods": h.deps.Table.Methods()})
}

func (h *httpHandlers) callNoArg(c *gin.Context) {
	h.invoke(c, c.Param("method"))
}

func (h *httpHandlers) callUID(c *gin.Context) {
	uid, err := strconv.ParseInt(c.Param("uid"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "uid must be a 32-bit integer"})
		return
	}
	h.invoke(c, c.Param("method"), int32(uid))
}

func (h *httpHandlers) invoke(c *gin.Context, method string, args ...int32) {
	v, err := h.deps.Table.Invoke(method, args...)
	switch {
	case errors.Is(err, trafficstats.ErrUnknownMethod):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, trafficstats.ErrArity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, InvokeResponse{Method: method, Value: v})
	}
}

func (h *httpHandlers) snapshot(c *gin.Context) {
	if h.deps.Snapshot == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshots not configured"})
		return
	}
	snap, err := h.deps.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *httpHandlers) version(c *gin.Context) {
	if h.deps.Version == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "version not available"})
		return
	}
	c.JSON(http.StatusOK, h.deps.Version())
}

func (h *httpHandlers) health(c *gin.Context) {
	if h.deps.Health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	c.JSON(http.StatusOK, h.deps.Health())
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if logger == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
