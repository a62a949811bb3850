package router

import (
	"github.com/gin-gonic/gin"

	"github.com/songquanpeng/llm-gateway/common/graceful"
	"github.com/songquanpeng/llm-gateway/controller"
	"github.com/songquanpeng/llm-gateway/middleware"
)

// trackInFlight counts relay requests so shutdown can drain them.
func trackInFlight(c *gin.Context) {
	done := graceful.BeginRequest()
	defer done()
	c.Next()
}

func SetRelayRouter(router *gin.Engine) {
	router.GET("/health", controller.Health)

	v1Router := router.Group("/v1")
	v1Router.Use(middleware.RelayPanicRecover())

	v1Router.GET("/models", controller.ListModels)

	relayRouter := v1Router.Group("")
	relayRouter.Use(trackInFlight, middleware.TokenAuth(), middleware.Distribute())
	{
		relayRouter.POST("/chat/completions", controller.Relay)
		relayRouter.POST("/embeddings", controller.Relay)
		relayRouter.POST("/images/generations", controller.Relay)
		// Chat variants grounded on an uploaded file or a knowledge base.
		relayRouter.POST("/file/completions", controller.Relay)
		relayRouter.POST("/rag/completions", controller.Relay)
	}
}
