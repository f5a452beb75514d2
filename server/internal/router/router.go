package router

import (
	"github.com/gin-gonic/gin"

	"skinarb/server/internal/handler"
)

type Config struct {
	QuoteHandler *handler.QuoteHandler
}

func NewRouter(cfg *Config) *gin.Engine {
	router := gin.Default()

	api := router.Group("/v1/")
	registerQuoteRoutes(api, cfg.QuoteHandler)

	return router
}
