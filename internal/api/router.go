package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wflowhq/engine/internal/ingress"
	"github.com/wflowhq/engine/internal/progress"
)

// Router bundles every handler group the engine serves. Credentials may be
// nil when no encryption key is configured; its routes are then not
// mounted.
type Router struct {
	Workflows   *WorkflowHandlers
	Executions  *ExecutionHandlers
	Triggers    *TriggerHandlers
	Credentials *CredentialHandlers
	Webhook     *ingress.WebhookHandler
	Email       *ingress.EmailHandler
	Hub         *progress.Hub
	CORSOrigin  string
}

// Register mounts the engine's full HTTP surface: the /api prefix for CRUD
// and lifecycle operations, the public /webhooks ingress endpoints, and
// the websocket namespace for execution progress.
func (r *Router) Register(engine *gin.Engine) {
	if r.CORSOrigin != "" {
		engine.Use(corsMiddleware(r.CORSOrigin))
	}

	// Public ingress — no /api prefix, no auth.
	engine.POST("/webhooks/email", r.Email.Handle)
	engine.POST("/webhooks/:token", r.Webhook.Handle)

	// Execution progress websocket namespace.
	engine.GET("/ws/executions", func(c *gin.Context) {
		r.Hub.ServeWS(c.Writer, c.Request)
	})

	apiGroup := engine.Group("/api")
	{
		workflows := apiGroup.Group("/workflows")
		{
			workflows.GET("", r.Workflows.HandleList)
			workflows.POST("", r.Workflows.HandleCreate)
			workflows.GET("/:id", r.Workflows.HandleGet)
			workflows.PUT("/:id", r.Workflows.HandleUpdate)
			workflows.DELETE("/:id", r.Workflows.HandleDelete)
			workflows.POST("/:id/activate", r.Workflows.HandleActivate)
			workflows.POST("/:id/deactivate", r.Workflows.HandleDeactivate)
			workflows.POST("/:id/test", r.Workflows.HandleTest)
		}

		executions := apiGroup.Group("/executions")
		{
			executions.GET("", r.Executions.HandleList)
			executions.GET("/stats", r.Executions.HandleStats)
			executions.GET("/:id", r.Executions.HandleGet)
			executions.POST("/:id/replay", r.Executions.HandleReplay)
			executions.POST("/:id/cancel", r.Executions.HandleCancel)
		}

		triggers := apiGroup.Group("/triggers")
		{
			triggers.POST("", r.Triggers.HandleCreate)
			triggers.GET("/:id", r.Triggers.HandleGet)
			triggers.DELETE("/:id", r.Triggers.HandleDelete)
		}

		if r.Credentials != nil {
			credentials := apiGroup.Group("/credentials")
			{
				credentials.POST("", r.Credentials.HandleCreate)
				credentials.GET("", r.Credentials.HandleList)
				credentials.PUT("/:id", r.Credentials.HandleUpdate)
				credentials.DELETE("/:id", r.Credentials.HandleDelete)
			}
		}
	}
}

func corsMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
