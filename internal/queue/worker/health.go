package worker

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler serves liveness, readiness, stats and metrics for the worker
// process.
func (w *Worker) HealthHandler(gatherer prometheus.Gatherer) http.Handler {
	r := gin.New()

	r.Use(gin.Recovery())

	// liveness: process is up
	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// readiness: consuming and redis answers
	r.GET("/readyz", func(ctx *gin.Context) {
		if !w.isReady() {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
			return
		}

		pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 500*time.Millisecond)
		defer cancel()

		if err := w.queue.Ping(pingCtx); err != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis_unavailable"})
			return
		}

		ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/stats", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, w.Stats())
	})

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return r
}
