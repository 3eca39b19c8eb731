package lifeline

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/lifeline/pkg/component/storage"
	"github.com/kart-io/lifeline/pkg/infra/datasource"
	"github.com/kart-io/lifeline/pkg/response"
	"github.com/kart-io/logger"
)

// Handler serves the status API over a datasource manager.
type Handler struct {
	mgr  *datasource.Manager
	opts *HTTPOptions
}

// NewRouter builds the gin engine of the status API. metrics is mounted at
// /metrics when non-nil.
func NewRouter(mgr *datasource.Manager, opts *HTTPOptions, metrics http.Handler) *gin.Engine {
	gin.SetMode(opts.Mode)

	r := gin.New()
	r.Use(gin.Recovery(), accessLog())

	h := &Handler{mgr: mgr, opts: opts}
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := r.Group("/v1/resources")
	{
		v1.GET("", h.List)
		v1.GET("/:name", h.Get)
		v1.POST("/:name/start", h.action(func(ctx context.Context, res managed) error { return res.Start(ctx) }))
		v1.POST("/:name/stop", h.action(func(ctx context.Context, res managed) error { return res.Stop(ctx) }))
		v1.POST("/:name/restart", h.action(func(ctx context.Context, res managed) error { return res.Cycle(ctx) }))
	}
	return r
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugw("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// Healthz reports that the process is serving.
func (h *Handler) Healthz(c *gin.Context) {
	response.OK(c, gin.H{"status": "ok"})
}

// Readyz pings every resource. It fails with 503 unless all are up and
// answer.
func (h *Handler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.opts.HealthTimeout)
	defer cancel()

	statuses := h.mgr.HealthCheckAll(ctx)
	for _, s := range statuses {
		if !s.Healthy {
			response.Fail(c, http.StatusServiceUnavailable, storage.ErrNotConnected, statuses)
			return
		}
	}
	response.OK(c, statuses)
}

// List returns the status of every resource.
func (h *Handler) List(c *gin.Context) {
	response.OK(c, h.mgr.Statuses())
}

// Get returns the status of one resource.
func (h *Handler) Get(c *gin.Context) {
	res, typ, err := h.mgr.Lookup(c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, datasource.Status{Type: typ, Snapshot: res.Snapshot()})
}

type managed interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Cycle(ctx context.Context) error
}

// action runs fn on the named resource and answers with its status
// afterwards, also on failure.
func (h *Handler) action(fn func(ctx context.Context, res managed) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, typ, err := h.mgr.Lookup(c.Param("name"))
		if err != nil {
			response.Error(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.opts.ActionTimeout)
		defer cancel()

		err = fn(ctx, res)
		status := datasource.Status{Type: typ, Snapshot: res.Snapshot()}
		if err != nil {
			response.Fail(c, response.HTTPStatus(err), err, status)
			return
		}
		response.OK(c, status)
	}
}
