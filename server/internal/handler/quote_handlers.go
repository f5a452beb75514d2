package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"skinarb/server/internal/service"
)

type QuoteHandler struct {
	quoteService *service.QuoteService
}

func NewQuoteHandler(service *service.QuoteService) *QuoteHandler {
	return &QuoteHandler{
		quoteService: service,
	}
}

func (h *QuoteHandler) ListItems(c *gin.Context) {
	items, err := h.quoteService.ListItems()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *QuoteHandler) GetLatest(c *gin.Context) {
	var itemID *uint
	if raw := c.Query("item_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "item_id must be a positive integer"})
			return
		}
		id := uint(parsed)
		itemID = &id
	}

	quotes, err := h.quoteService.LatestQuotes(itemID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, quotes)
}

func (h *QuoteHandler) GetRisk(c *gin.Context) {
	itemID, ok := parseItemID(c)
	if !ok {
		return
	}

	assessment, err := h.quoteService.AssessItem(itemID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, assessment)
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
	case errors.Is(err, service.ErrNoQuotes):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func parseItemID(c *gin.Context) (uint, bool) {
	parsed, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a positive integer"})
		return 0, false
	}
	return uint(parsed), true
}
