package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/internal/storage"
	"github.com/your-org/homewatch/pkg/dto"
)

// MatcherInvalidator is the matcher-cache slice the entity endpoints need.
type MatcherInvalidator interface {
	Invalidate()
}

type EntityHandler struct {
	db      *storage.PostgresStore
	matcher MatcherInvalidator
}

func NewEntityHandler(db *storage.PostgresStore, matcher MatcherInvalidator) *EntityHandler {
	return &EntityHandler{db: db, matcher: matcher}
}

func (h *EntityHandler) List(c *gin.Context) {
	entities, err := h.db.ListEntities(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp := make([]dto.EntityResponse, 0, len(entities))
	for i := range entities {
		resp = append(resp, toEntityResponse(&entities[i]))
	}
	c.JSON(http.StatusOK, dto.EntityListResponse{Entities: resp})
}

func (h *EntityHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entity id"})
		return
	}

	e, err := h.db.GetEntity(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if e == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "entity not found"})
		return
	}
	c.JSON(http.StatusOK, toEntityResponse(e))
}

func (h *EntityHandler) Rename(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entity id"})
		return
	}

	var req dto.RenameEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.db.RenameEntity(c.Request.Context(), id, req.Name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.matcher.Invalidate()
	c.JSON(http.StatusOK, gin.H{"status": "renamed"})
}

func (h *EntityHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entity id"})
		return
	}

	if err := h.db.DeleteEntity(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.matcher.Invalidate()
	c.Status(http.StatusNoContent)
}

func toEntityResponse(e *models.RecognizedEntity) dto.EntityResponse {
	return dto.EntityResponse{
		ID:              e.ID,
		Type:            string(e.Type),
		Name:            e.Name,
		FirstSeen:       e.FirstSeen.Format(time.RFC3339),
		LastSeen:        e.LastSeen.Format(time.RFC3339),
		OccurrenceCount: e.OccurrenceCount,
		CreatedAt:       e.CreatedAt.Format(time.RFC3339),
	}
}
