package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jroosing/domainguard/internal/api/models"
	"github.com/jroosing/domainguard/internal/database"
)

func sourceToModel(s database.Source) models.Source {
	out := models.Source{
		ID:          s.ID,
		Name:        s.Name,
		URL:         s.URL,
		Enabled:     s.Enabled,
		DomainCount: s.DomainCount,
	}
	if s.LastUpdated != nil {
		v := s.LastUpdated.Format(time.RFC3339)
		out.LastUpdated = &v
	}
	return out
}

// ListSources godoc
// @Summary List blocklist sources
// @Tags sources
// @Produce json
// @Success 200 {object} models.SourcesResponse
// @Security ApiKeyAuth
// @Router /sources [get]
func (h *Handler) ListSources(c *gin.Context) {
	sources, err := h.manager.Sources()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	out := make([]models.Source, 0, len(sources))
	for _, s := range sources {
		out = append(out, sourceToModel(s))
	}
	c.JSON(http.StatusOK, models.SourcesResponse{Sources: out, Count: len(out)})
}

// AddSource godoc
// @Summary Register a blocklist source
// @Description Registers a new source. Sources start disabled; enable them to pull their list.
// @Tags sources
// @Accept json
// @Produce json
// @Param source body models.AddSourceRequest true "Source to add"
// @Success 201 {object} models.StatusResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /sources [post]
func (h *Handler) AddSource(c *gin.Context) {
	var req models.AddSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.manager.AddSource(req.ID, req.Name, req.URL); err != nil {
		if errors.Is(err, database.ErrDuplicateID) {
			c.JSON(http.StatusConflict, models.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, models.StatusResponse{Status: "created"})
}

// RefreshSource godoc
// @Summary Refresh one source
// @Tags sources
// @Produce json
// @Param id path string true "Source id"
// @Success 200 {object} models.StatusResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /sources/{id}/refresh [post]
func (h *Handler) RefreshSource(c *gin.Context) {
	id := c.Param("id")
	if err := h.manager.Refresh(c.Request.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{Status: "refreshed"})
}

// RefreshAllSources godoc
// @Summary Refresh all enabled sources
// @Description Refreshes every enabled source; per-source failures are reported, not fatal.
// @Tags sources
// @Produce json
// @Success 200 {object} models.RefreshResponse
// @Security ApiKeyAuth
// @Router /sources/refresh [post]
func (h *Handler) RefreshAllSources(c *gin.Context) {
	failed := h.manager.RefreshAll(c.Request.Context())
	resp := models.RefreshResponse{Status: "ok"}
	for _, f := range failed {
		resp.Failed = append(resp.Failed, f.Error())
	}
	if len(resp.Failed) > 0 {
		resp.Status = "partial"
	}
	c.JSON(http.StatusOK, resp)
}

// SetSourceEnabled godoc
// @Summary Enable or disable a source
// @Tags sources
// @Accept json
// @Produce json
// @Param id path string true "Source id"
// @Param enabled body models.SourceEnabledRequest true "Enable state"
// @Success 200 {object} models.StatusResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /sources/{id}/enabled [put]
func (h *Handler) SetSourceEnabled(c *gin.Context) {
	var req models.SourceEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	id := c.Param("id")
	if err := h.manager.Toggle(c.Request.Context(), id, *req.Enabled); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}

// DeleteSource godoc
// @Summary Delete a source
// @Description Removes a source and its stored contribution, then rebuilds the matcher.
// @Tags sources
// @Produce json
// @Param id path string true "Source id"
// @Success 200 {object} models.StatusResponse
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /sources/{id} [delete]
func (h *Handler) DeleteSource(c *gin.Context) {
	id := c.Param("id")
	if err := h.manager.DeleteSource(c.Request.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{Status: "deleted"})
}
