package handler

import (
	"net/http"

	"indi-radio-go/internal/service"

	"github.com/gin-gonic/gin"
)

// SearchHandler 负责目录全文搜索
type SearchHandler struct {
	searchService service.SearchService
}

func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

func (h *SearchHandler) Search(c *gin.Context) {
	hits, err := h.searchService.Search(c.Request.Context(), c.Query("q"), queryInt(c, "size", 0))
	if err != nil {
		respondError(c, "CatalogSearch", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Search completed",
		"data":    hits,
	})
}
