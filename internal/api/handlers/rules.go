package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jroosing/domainguard/internal/api/models"
	"github.com/jroosing/domainguard/internal/database"
	"github.com/jroosing/domainguard/internal/rules"
)

func ruleToModel(r rules.CustomRule) models.Rule {
	return models.Rule{
		ID:        r.ID,
		Domain:    r.Domain,
		Action:    r.Action.String(),
		AppID:     r.AppID,
		Enabled:   r.Enabled,
		CreatedAt: r.CreatedAt,
	}
}

// ListRules godoc
// @Summary List custom rules
// @Tags rules
// @Produce json
// @Success 200 {object} models.RulesResponse
// @Security ApiKeyAuth
// @Router /rules [get]
func (h *Handler) ListRules(c *gin.Context) {
	all, err := h.db.ListRules()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	out := make([]models.Rule, 0, len(all))
	for _, r := range all {
		out = append(out, ruleToModel(r))
	}
	c.JSON(http.StatusOK, models.RulesResponse{Rules: out, Count: len(out)})
}

// AddRule godoc
// @Summary Create a custom rule
// @Description Creates an exact-domain override. Empty app_id means global scope.
// @Tags rules
// @Accept json
// @Produce json
// @Param rule body models.AddRuleRequest true "Rule to create"
// @Success 201 {object} models.Rule
// @Failure 400 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /rules [post]
func (h *Handler) AddRule(c *gin.Context) {
	var req models.AddRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	action, err := rules.ParseAction(req.Action)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	rule := rules.NewCustomRule(req.Domain, action, req.AppID)
	if rule.Domain == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "domain is required"})
		return
	}
	if err := h.db.InsertRule(rule); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.manager.ReloadRules(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	h.logger.Info("rule created", "rule", rule.ID, "domain", rule.Domain, "action", rule.Action.String())
	c.JSON(http.StatusCreated, ruleToModel(rule))
}

// SetRuleEnabled godoc
// @Summary Enable or disable a rule
// @Tags rules
// @Accept json
// @Produce json
// @Param id path string true "Rule id"
// @Param enabled body models.RuleEnabledRequest true "Enable state"
// @Success 200 {object} models.StatusResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /rules/{id}/enabled [put]
func (h *Handler) SetRuleEnabled(c *gin.Context) {
	var req models.RuleEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	id := c.Param("id")
	if err := h.db.SetRuleEnabled(id, *req.Enabled); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.manager.ReloadRules(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}

// DeleteRule godoc
// @Summary Delete a rule
// @Tags rules
// @Produce json
// @Param id path string true "Rule id"
// @Success 200 {object} models.StatusResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /rules/{id} [delete]
func (h *Handler) DeleteRule(c *gin.Context) {
	id := c.Param("id")
	if err := h.db.DeleteRule(id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.manager.ReloadRules(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{Status: "deleted"})
}
