package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.Name,
			"version": Version,
		})
	})

	// 503 until the device has answered the handshake.
	s.router.GET("/ready", func(c *gin.Context) {
		ready := s.provider != nil && s.provider.Ready()
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"ready":   ready,
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.Name,
			"version": Version,
		})
	})

	s.router.GET("/status", func(c *gin.Context) {
		if s.provider == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no stream attached"})
			return
		}
		c.JSON(http.StatusOK, s.provider.Status())
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
