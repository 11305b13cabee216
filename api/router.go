package api

import (
	"ffcompress/config"
	"ffcompress/logging"
	"ffcompress/task"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
)

func SetupRouter(tm *task.Manager, inspector Inspector, cfg *config.Config, log hclog.Logger) *gin.Engine {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	r := gin.New()
	r.Use(gin.LoggerWithWriter(logging.Writer(log.Named("http"))), gin.Recovery())
	h := NewHandler(tm, inspector, cfg)

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg))
	{
		v1.POST("/tasks", h.handleCreateTask)
		v1.GET("/tasks", h.handleListTasks)
		v1.GET("/tasks/:taskId", h.handleGetTaskStatus)
		v1.PATCH("/tasks/:taskId/cancel", h.handleCancelTask)
		v1.GET("/tasks/:taskId/output", h.handleGetOutput)

		v1.GET("/events", h.handleEvents)

		v1.GET("/probe", h.handleProbe)
		v1.GET("/capabilities", h.handleCapabilities)
		v1.GET("/profiles", h.handleProfiles)
	}
	return r
}
