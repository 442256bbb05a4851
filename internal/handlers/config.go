package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

const errWriteConfig = "failed to write config"

// @Summary      Current hub configuration
// @Tags         config
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/config [get]
func (h *Handler) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Settings.Get())
}

// @Summary      Update hub configuration (partial merge)
// @Description  Submitted keys overlay the snapshot; the nested mqtt object is merged independently.
// @Tags         config
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, config"
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/config [post]
func (h *Handler) updateConfig(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		h.logAndJSONError(c, http.StatusBadRequest, errReadBody, "config_read_failed", err)
		return
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil || body == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + "must be a JSON object"})
		return
	}

	cfg, err := h.services.Settings.Update(c.Request.Context(), raw)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errWriteConfig, "config_update_failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "config": cfg})
}
