package handlers

import (
	"net/http"

	"irrigation_controller/internal/models"

	"github.com/gin-gonic/gin"
)

// @Summary      Get settings
// @Tags         settings
// @Produce      json
// @Success      200  {object}  models.Settings
// @Router       /api/v1/settings [get]
// @Security     BearerAuth
func (h *Handler) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Settings.Get(c.Request.Context()))
}

// @Summary      Replace settings
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        body  body  models.Settings  true  "Controller settings"
// @Success      200  {object}  models.Settings
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/settings [put]
// @Security     BearerAuth
func (h *Handler) updateSettings(c *gin.Context) {
	var in models.Settings
	if err := c.ShouldBindJSON(&in); err != nil {
		h.logAndJSONError(c, http.StatusBadRequest, errInvalidBodyPref+err.Error(), "settings_bad_body", err)
		return
	}
	out, err := h.services.Settings.Update(c.Request.Context(), in)
	if err != nil {
		h.respondServiceError(c, "settings_update_failed", "failed to save settings", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary      Restore factory settings
// @Description  Programs are kept.
// @Tags         settings
// @Produce      json
// @Success      200  {object}  models.Settings
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/settings/factory-reset [post]
// @Security     BearerAuth
func (h *Handler) factoryReset(c *gin.Context) {
	out, err := h.services.Settings.FactoryReset(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, "settings_factory_reset_failed", "failed to restore settings", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary      Reset all data
// @Description  Stops everything, deletes all programs and restores factory settings.
// @Tags         settings
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/settings/reset-all [post]
// @Security     BearerAuth
func (h *Handler) resetAll(c *gin.Context) {
	if err := h.services.Maintenance.ResetAllData(c.Request.Context()); err != nil {
		h.respondServiceError(c, "reset_all_failed", "failed to reset data", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusReset})
}
