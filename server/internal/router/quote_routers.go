package router

import (
	"github.com/gin-gonic/gin"

	"skinarb/server/internal/handler"
)

func registerQuoteRoutes(router *gin.RouterGroup, quoteHandler *handler.QuoteHandler) {
	items := router.Group("/items")
	{
		items.GET("", quoteHandler.ListItems)
		items.GET("/:id/risk", quoteHandler.GetRisk)
	}

	quotes := router.Group("/quotes")
	{
		quotes.GET("/latest", quoteHandler.GetLatest)
	}
}
