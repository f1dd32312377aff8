package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// StartZoneRequest is the body of POST /api/v1/zones/{id}/start.
type StartZoneRequest struct {
	// Run time in minutes, 1..max_zone_duration
	DurationMinutes int `json:"duration_minutes" binding:"required" example:"15"`
}

func zoneIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidZoneID})
		return 0, false
	}
	return id, true
}

// @Summary      List zones
// @Description  Configured zones with their activity and remaining seconds.
// @Tags         zones
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "zones, active_count"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/zones [get]
// @Security     BearerAuth
func (h *Handler) listZones(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"zones":        h.services.Zones.ZonesStatus(),
		"active_count": h.services.Zones.ActiveZoneCount(),
	})
}

// @Summary      Start zone
// @Tags         zones
// @Accept       json
// @Produce      json
// @Param        id    path  int               true  "Zone id"
// @Param        body  body  StartZoneRequest  true  "Run time"
// @Success      200  {object}  map[string]interface{}  "status, zones"
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string  "program running or zone limit reached"
// @Failure      502  {object}  map[string]string  "relay failure"
// @Router       /api/v1/zones/{id}/start [post]
// @Security     BearerAuth
func (h *Handler) startZone(c *gin.Context) {
	id, ok := zoneIDParam(c)
	if !ok {
		return
	}
	var req StartZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logAndJSONError(c, http.StatusBadRequest, errInvalidBodyPref+err.Error(), "zone_start_bad_body", err)
		return
	}
	if err := h.services.Zones.StartZone(c.Request.Context(), id, req.DurationMinutes); err != nil {
		h.respondServiceError(c, "zone_start_failed", "failed to start zone", err, "zone_id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusStarted, "zones": h.services.Zones.ZonesStatus()})
}

// @Summary      Stop zone
// @Tags         zones
// @Produce      json
// @Param        id  path  int  true  "Zone id"
// @Success      200  {object}  map[string]interface{}  "status, zones"
// @Failure      404  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/zones/{id}/stop [post]
// @Security     BearerAuth
func (h *Handler) stopZone(c *gin.Context) {
	id, ok := zoneIDParam(c)
	if !ok {
		return
	}
	if err := h.services.Zones.StopZone(c.Request.Context(), id); err != nil {
		h.respondServiceError(c, "zone_stop_failed", "failed to stop zone", err, "zone_id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusStopped, "zones": h.services.Zones.ZonesStatus()})
}

// @Summary      Stop all zones
// @Tags         zones
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, zones"
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/zones/stop-all [post]
// @Security     BearerAuth
func (h *Handler) stopAllZones(c *gin.Context) {
	if err := h.services.Zones.StopAllZones(c.Request.Context()); err != nil {
		h.respondServiceError(c, "zones_stop_all_failed", "failed to stop zones", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusStopped, "zones": h.services.Zones.ZonesStatus()})
}
