package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vanityline/vanityline/services/numbers-service/internal/models"
)

type AdminHandler struct {
	responder
	stats    Stats
	accounts Accounts
}

func NewAdminHandler(stats Stats, accounts Accounts, opts Options) *AdminHandler {
	return &AdminHandler{responder: newResponder(opts), stats: stats, accounts: accounts}
}

// Stats reports inventory and subscription counts plus revenue over ?days= (default 30).
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.stats.AdminStats(c.Request.Context(), queryInt(c, "days", 0))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, "", stats)
}

func (h *AdminHandler) Users(c *gin.Context) {
	page, limit := models.NormalizePage(queryInt(c, "page", 1), queryInt(c, "limit", 20))

	users, total, err := h.accounts.ListUsers(c.Request.Context(), page, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.responder.page(c, users, models.NewPage(page, limit, total))
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   "numbers-service",
	})
}
