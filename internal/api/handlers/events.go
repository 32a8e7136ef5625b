package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/internal/storage"
	"github.com/your-org/homewatch/pkg/dto"
)

type EventHandler struct {
	db    *storage.PostgresStore
	media *storage.MediaStore
}

func NewEventHandler(db *storage.PostgresStore, media *storage.MediaStore) *EventHandler {
	return &EventHandler{db: db, media: media}
}

func (h *EventHandler) List(c *gin.Context) {
	var f storage.EventFilter

	if idStr := c.Query("camera_id"); idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid camera id"})
			return
		}
		f.CameraID = &id
	}
	if fromStr := c.Query("from"); fromStr != "" {
		if t, err := time.Parse(time.RFC3339, fromStr); err == nil {
			f.From = &t
		}
	}
	if toStr := c.Query("to"); toStr != "" {
		if t, err := time.Parse(time.RFC3339, toStr); err == nil {
			f.To = &t
		}
	}
	if eidStr := c.Query("entity_id"); eidStr != "" {
		if id, err := uuid.Parse(eidStr); err == nil {
			f.EntityID = &id
		}
	}
	if modeStr := c.Query("mode"); modeStr != "" {
		mode := models.AnalysisMode(modeStr)
		f.Mode = &mode
	}
	if unknownStr := c.Query("unknown"); unknownStr != "" {
		f.Unknown = unknownStr == "true" || unknownStr == "1"
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	events, total, err := h.db.QueryEvents(c.Request.Context(), f, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.EventResponse, 0, len(events))
	for i := range events {
		resp = append(resp, toEventResponse(&events[i]))
	}
	c.JSON(http.StatusOK, dto.EventListResponse{Events: resp, Total: total})
}

func (h *EventHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	ev, err := h.db.GetEvent(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ev == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	c.JSON(http.StatusOK, toEventResponse(ev))
}

// Snapshot proxies the event snapshot image from MinIO.
func (h *EventHandler) Snapshot(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	ev, err := h.db.GetEvent(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ev == nil || ev.SnapshotKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
		return
	}

	data, err := h.media.GetObject(c.Request.Context(), ev.SnapshotKey)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
		return
	}

	c.Data(http.StatusOK, "image/jpeg", data)
}

func toEventResponse(ev *models.Event) dto.EventResponse {
	r := dto.EventResponse{
		ID:               ev.ID,
		CameraID:         ev.CameraID,
		Timestamp:        ev.Timestamp.Format(time.RFC3339),
		Description:      ev.Description,
		Confidence:       ev.Confidence,
		Objects:          ev.Objects,
		AnalysisMode:     string(ev.Mode),
		FrameCountUsed:   ev.FrameCountUsed,
		FallbackReason:   ev.FallbackReason,
		Provider:         ev.Provider,
		PromptTokens:     ev.PromptTokens,
		CompletionTokens: ev.CompletionTokens,
		EstimatedCost:    ev.EstimatedCost,
		IsEstimated:      ev.IsEstimated,
		MatchedEntityID:  ev.MatchedEntityID,
		MatchScore:       ev.MatchScore,
		Failed:           ev.Failed,
		CreatedAt:        ev.CreatedAt.Format(time.RFC3339),
	}
	if ev.SnapshotKey != "" {
		r.SnapshotURL = "/v1/events/" + ev.ID.String() + "/snapshot"
	}
	return r
}
