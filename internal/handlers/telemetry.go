package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"esphub/internal/models"
	"esphub/internal/service"
)

const (
	errReadBody      = "failed to read request body"
	errStoreRecord   = "failed to store telemetry record"
	errLoadLatest    = "failed to read latest data"
	errLoadHistory   = "failed to read history data"
	errDeleteRecord  = "failed to delete record"
	errDeleteRecords = "failed to delete records"
)

// @Summary      Ingest a telemetry report (legacy device HTTP push)
// @Tags         telemetry
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, uploadIntervalSeconds"
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /upload [post]
func (h *Handler) upload(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		h.logAndJSONError(c, http.StatusBadRequest, errReadBody, "upload_read_failed", err)
		return
	}

	if _, err := h.services.Ingest.Process(c.Request.Context(), raw, models.SourceHTTP); err != nil {
		if errors.Is(err, service.ErrMalformedPayload) {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errStoreRecord, "upload_failed", err)
		return
	}

	// The device reads its reporting interval back from the response.
	c.JSON(http.StatusOK, gin.H{
		"status":                "ok",
		"uploadIntervalSeconds": h.services.Settings.Get().UploadIntervalSeconds,
	})
}

// @Summary      Latest telemetry payload
// @Tags         telemetry
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/latest-data [get]
func (h *Handler) latestData(c *gin.Context) {
	rec, err := h.services.Telemetry.Latest(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadLatest, "latest_data_failed", err)
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No data available"})
		return
	}
	c.JSON(http.StatusOK, rec.Payload)
}

// @Summary      Telemetry history, ascending by receive time
// @Tags         telemetry
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, records"
// @Failure      500  {object}  map[string]string
// @Router       /api/history [get]
func (h *Handler) history(c *gin.Context) {
	records, err := h.services.Telemetry.History(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadHistory, "history_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(records),
		"records": records,
	})
}

func (h *Handler) deleteRecord(c *gin.Context) {
	id := c.Param("id")
	deleted, err := h.services.Telemetry.Delete(c.Request.Context(), id)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errDeleteRecord, "delete_record_failed", err, "id", id)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "id": id})
}

func (h *Handler) deleteAllRecords(c *gin.Context) {
	n, err := h.services.Telemetry.DeleteAll(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errDeleteRecords, "delete_all_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted_all", "count": n})
}
