package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jroosing/domainguard/internal/api/middleware"
	"github.com/jroosing/domainguard/internal/api/models"
)

// Query godoc
// @Summary Probe the filtering decision for a domain
// @Description Resolves the decision the engine would take, without side effects beyond the counters.
// @Tags filtering
// @Produce json
// @Param domain query string true "Domain to probe"
// @Param app query string false "Application identifier"
// @Success 200 {object} models.QueryResponse
// @Failure 400 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /query [get]
func (h *Handler) Query(c *gin.Context) {
	domain := c.Query("domain")
	if domain == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "domain query parameter is required"})
		return
	}
	appID := c.Query("app")

	d := h.backend.ShouldBlock(domain, appID)
	c.Set(middleware.LogDomainKey, domain)
	c.Set(middleware.LogActionKey, d.Action.String())
	c.JSON(http.StatusOK, models.QueryResponse{
		Domain:      domain,
		AppID:       appID,
		Action:      d.Action.String(),
		Reason:      d.Reason,
		MatchedList: d.MatchedList,
		MatchedRule: d.MatchedRule,
	})
}

// Apply godoc
// @Summary Commit pending changes
// @Description Re-materializes rules, rebuilds the matcher, and refreshes any derived artifact.
// @Tags filtering
// @Produce json
// @Success 200 {object} models.StatusResponse
// @Failure 500 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /apply [post]
func (h *Handler) Apply(c *gin.Context) {
	if err := h.backend.ApplyChanges(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{Status: "applied"})
}

// Revert godoc
// @Summary Withdraw the backend's effect
// @Description Stops filtering (memory mode) or restores the pristine artifact (hostsfile mode).
// @Tags filtering
// @Produce json
// @Success 200 {object} models.StatusResponse
// @Failure 500 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /revert [post]
func (h *Handler) Revert(c *gin.Context) {
	if err := h.backend.Revert(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{Status: "reverted"})
}
