package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"esphub/internal/service"
)

const (
	errInvalidBodyPref = "invalid body: "
	errSetPin          = "failed to write pin state"
	errLoadPins        = "failed to read pin states"
)

// Request DTO for pin control. Pointer so a missing state is told apart
// from an explicit 0.
type pinRequest struct {
	State *int `json:"state" binding:"required"`
}

// @Summary      Set a pin state (manual override)
// @Description  A manual command on the automation-governed pin disables the automation flags.
// @Tags         pins
// @Accept       json
// @Produce      json
// @Param        pin   path  string  true  "Logical pin name, e.g. pin12"
// @Param        body  body  pinRequest  true  "Desired state"
// @Success      200   {object}  map[string]interface{}  "status, state, sentToEsp"
// @Failure      400   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/pins/{pin} [post]
func (h *Handler) setPin(c *gin.Context) {
	var req pinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	pin := c.Param("pin")
	out, err := h.services.Pins.ManualSet(c.Request.Context(), pin, *req.State)
	if err != nil {
		if errors.Is(err, service.ErrInvalidState) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errSetPin, "pin_set_failed", err, "pin", pin)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"state":     out.State,
		"sentToEsp": out.SentToEsp,
	})
}

// @Summary      Current pin states
// @Tags         pins
// @Produce      json
// @Success      200  {object}  map[string]int
// @Failure      500  {object}  map[string]string
// @Router       /pins.json [get]
func (h *Handler) pinsJSON(c *gin.Context) {
	states, err := h.services.Pins.States(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadPins, "pins_load_failed", err)
		return
	}
	c.JSON(http.StatusOK, states)
}
