package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/navarrastar/contactsheet/pkg/middleware"
)

// NewRouter builds the gin engine with recovery, request logging, CORS and
// the submission routes. metricsHandler is mounted at /metrics when non-nil.
func NewRouter(h *Handlers, metricsHandler http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CORS())

	h.RegisterRoutes(router)
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}
	return router
}
