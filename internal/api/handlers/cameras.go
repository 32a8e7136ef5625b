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

// ZoneInvalidator is the filter-cache slice the zone endpoints need.
type ZoneInvalidator interface {
	Invalidate(cameraID uuid.UUID)
}

type CameraHandler struct {
	db     *storage.PostgresStore
	filter ZoneInvalidator
}

func NewCameraHandler(db *storage.PostgresStore, filter ZoneInvalidator) *CameraHandler {
	return &CameraHandler{db: db, filter: filter}
}

func (h *CameraHandler) Create(c *gin.Context) {
	var req dto.CreateCameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cam := &models.Camera{
		Name:         req.Name,
		Type:         models.CameraType(req.Type),
		AnalysisMode: models.AnalysisMode(req.AnalysisMode),
		Enabled:      true,
	}
	if cam.AnalysisMode == "" {
		if cam.Type.SupportsClips() {
			cam.AnalysisMode = models.ModeVideoNative
		} else {
			cam.AnalysisMode = models.ModeSingleFrame
		}
	}
	if req.Enabled != nil {
		cam.Enabled = *req.Enabled
	}

	if err := h.db.CreateCamera(c.Request.Context(), cam); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, toCameraResponse(cam))
}

func (h *CameraHandler) List(c *gin.Context) {
	cameras, err := h.db.ListCameras(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp := make([]dto.CameraResponse, 0, len(cameras))
	for i := range cameras {
		resp = append(resp, toCameraResponse(&cameras[i]))
	}
	c.JSON(http.StatusOK, gin.H{"cameras": resp})
}

func (h *CameraHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid camera id"})
		return
	}

	cam, err := h.db.GetCamera(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cam == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
		return
	}
	c.JSON(http.StatusOK, toCameraResponse(cam))
}

func (h *CameraHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid camera id"})
		return
	}

	var req dto.UpdateCameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cam, err := h.db.GetCamera(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cam == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
		return
	}

	if req.Name != "" {
		cam.Name = req.Name
	}
	if req.Type != "" {
		cam.Type = models.CameraType(req.Type)
	}
	if req.AnalysisMode != "" {
		cam.AnalysisMode = models.AnalysisMode(req.AnalysisMode)
	}
	if req.Enabled != nil {
		cam.Enabled = *req.Enabled
	}

	if err := h.db.UpdateCamera(c.Request.Context(), cam); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toCameraResponse(cam))
}

func (h *CameraHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid camera id"})
		return
	}
	if err := h.db.DeleteCamera(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.filter.Invalidate(id)
	c.Status(http.StatusNoContent)
}

func (h *CameraHandler) GetZones(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid camera id"})
		return
	}

	zones, version, err := h.db.CameraZones(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.ZonesResponse{
		CameraID:    id,
		Zones:       toZoneResponses(zones),
		ZoneVersion: version,
	})
}

// PutZones replaces a camera's zone list. Validation failures reject the
// whole write; a success bumps the zone version and drops the filter
// cache entry.
func (h *CameraHandler) PutZones(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid camera id"})
		return
	}

	var req dto.UpdateZonesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	zones := make([]models.DetectionZone, 0, len(req.Zones))
	for _, z := range req.Zones {
		zone := models.DetectionZone{
			ID:       z.ID,
			Name:     z.Name,
			Vertices: z.Vertices,
			Enabled:  true,
		}
		if zone.ID == "" {
			zone.ID = uuid.NewString()
		}
		if z.Enabled != nil {
			zone.Enabled = *z.Enabled
		}
		zones = append(zones, zone)
	}
	if err := models.ValidateZones(zones); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	version, err := h.db.UpdateCameraZones(c.Request.Context(), id, zones)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.filter.Invalidate(id)

	c.JSON(http.StatusOK, dto.ZonesResponse{
		CameraID:    id,
		Zones:       toZoneResponses(zones),
		ZoneVersion: version,
	})
}

func toCameraResponse(cam *models.Camera) dto.CameraResponse {
	return dto.CameraResponse{
		ID:           cam.ID,
		Name:         cam.Name,
		Type:         string(cam.Type),
		AnalysisMode: string(cam.AnalysisMode),
		Enabled:      cam.Enabled,
		Zones:        toZoneResponses(cam.Zones),
		ZoneVersion:  cam.ZoneVersion,
		CreatedAt:    cam.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    cam.UpdatedAt.Format(time.RFC3339),
	}
}

func toZoneResponses(zones []models.DetectionZone) []dto.ZoneResponse {
	resp := make([]dto.ZoneResponse, 0, len(zones))
	for _, z := range zones {
		resp = append(resp, dto.ZoneResponse{
			ID:       z.ID,
			Name:     z.Name,
			Vertices: z.Vertices,
			Enabled:  z.Enabled,
		})
	}
	return resp
}
