package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/jroosing/domainguard/internal/api/models"
)

// Health godoc
// @Summary Health check
// @Description Returns server health status
// @Tags system
// @Produce json
// @Success 200 {object} models.StatusResponse
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}

// Stats godoc
// @Summary Server statistics
// @Description Returns runtime statistics including memory, goroutines, and filtering totals
// @Tags system
// @Produce json
// @Success 200 {object} models.ServerStatsResponse
// @Security ApiKeyAuth
// @Router /stats [get]
func (h *Handler) Stats(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(h.startTime)

	resp := models.ServerStatsResponse{
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
		StartTime:     h.startTime,
		GoRoutines:    runtime.NumGoroutine(),
		MemoryAllocMB: float64(m.Alloc) / 1024 / 1024,
		NumCPU:        runtime.NumCPU(),
	}

	// Host figures are decorative; a probe failure never fails the call.
	if vm, err := mem.VirtualMemory(); err == nil {
		resp.SystemMemUsedPct = vm.UsedPercent
	}
	if up, err := host.Uptime(); err == nil {
		resp.SystemUptimeSec = up
	}

	if h.backend != nil {
		if stats, err := h.backend.Statistics(); err == nil {
			resp.FilterStats = &models.FilterStatsResponse{
				DomainsBlocked:  stats.DomainsBlocked,
				RequestsBlocked: stats.RequestsBlocked,
				RequestsAllowed: stats.RequestsAllowed,
				ActiveSources:   stats.ActiveSources,
				CustomRules:     stats.CustomRules,
			}
		}
	}

	c.JSON(http.StatusOK, resp)
}
