// Package ingest receives motion webhooks from cameras, stages their
// media in MinIO and hands triggers to the analysis workers over NATS.
package ingest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/internal/observability"
	"github.com/your-org/homewatch/internal/queue"
	"github.com/your-org/homewatch/internal/storage"
)

const (
	// clipFrameFPS matches the 500ms frame step the multi-frame sampler
	// assumes when reconstructing timestamps.
	clipFrameFPS   = 2
	clipFrameWidth = 640

	maxSnapshotSize = 10 << 20
	maxClipSize     = 64 << 20
)

// Receiver turns camera motion webhooks into queued MotionTriggers.
type Receiver struct {
	db       *storage.PostgresStore
	media    *storage.MediaStore
	producer *queue.Producer
}

func NewReceiver(db *storage.PostgresStore, media *storage.MediaStore, producer *queue.Producer) *Receiver {
	return &Receiver{db: db, media: media, producer: producer}
}

// HandleMotion accepts a multipart motion webhook: a required snapshot
// part, an optional clip part, and camera/motion metadata fields.
func (r *Receiver) HandleMotion(c *gin.Context) {
	cameraID, err := uuid.Parse(c.PostForm("camera_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid camera id"})
		return
	}

	cam, err := r.db.GetCamera(c.Request.Context(), cameraID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cam == nil || !cam.Enabled {
		c.JSON(http.StatusNotFound, gin.H{"error": "camera not found or disabled"})
		return
	}

	at := time.Now()
	if tsStr := c.PostForm("timestamp"); tsStr != "" {
		if ts, err := time.Parse(time.RFC3339, tsStr); err == nil {
			at = ts
		}
	}

	trigger := models.MotionTrigger{
		CameraID:    cameraID,
		TriggerID:   uuid.New(),
		Timestamp:   at,
		MotionPoint: parseMotionPoint(c),
	}
	if hints := c.PostForm("object_hints"); hints != "" {
		trigger.ObjectHints = strings.Split(hints, ",")
	}

	snapshot, err := readPart(c, "snapshot", maxSnapshotSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "snapshot part required: " + err.Error()})
		return
	}

	key, err := r.media.PutSnapshot(c.Request.Context(), cameraID, at, trigger.TriggerID, snapshot)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store snapshot: " + err.Error()})
		return
	}
	trigger.SnapshotKey = key

	// Clips only matter for clip-capable cameras; staging failures
	// degrade the trigger to snapshot-only rather than rejecting it.
	if cam.Type.SupportsClips() {
		if clip, err := readPart(c, "clip", maxClipSize); err == nil {
			if prefix, err := r.stageClip(c.Request.Context(), cameraID, at, trigger.TriggerID, clip); err != nil {
				slog.Warn("stage clip failed, trigger degrades to snapshot",
					"camera_id", cameraID, "error", err)
			} else {
				trigger.ClipKey = prefix
			}
		}
	}

	if err := r.producer.PublishMotion(c.Request.Context(), cameraID.String(), trigger); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "queue trigger: " + err.Error()})
		return
	}
	observability.MotionTriggers.WithLabelValues(cameraID.String()).Inc()

	c.JSON(http.StatusAccepted, gin.H{
		"trigger_id":   trigger.TriggerID,
		"snapshot_key": trigger.SnapshotKey,
		"clip_key":     trigger.ClipKey,
	})
}

// stageClip uploads the native clip and its extracted frames under one
// prefix and returns that prefix.
func (r *Receiver) stageClip(ctx context.Context, cameraID uuid.UUID, at time.Time, triggerID uuid.UUID, clip []byte) (string, error) {
	prefix := storage.ClipPrefix(cameraID, at, triggerID)

	if err := r.media.PutClip(ctx, prefix, clip); err != nil {
		return "", err
	}

	frames, err := ExtractClipFrames(ctx, clip, clipFrameFPS, clipFrameWidth)
	if err != nil {
		return "", err
	}
	for i, frame := range frames {
		if err := r.media.PutClipFrame(ctx, prefix, i, frame); err != nil {
			return "", err
		}
	}

	slog.Debug("clip staged", "prefix", prefix, "frames", len(frames))
	return prefix, nil
}

func parseMotionPoint(c *gin.Context) [2]float64 {
	// Default to the frame centre when the camera reports no location.
	point := [2]float64{0.5, 0.5}
	if x, err := strconv.ParseFloat(c.PostForm("motion_x"), 64); err == nil {
		point[0] = x
	}
	if y, err := strconv.ParseFloat(c.PostForm("motion_y"), 64); err == nil {
		point[1] = y
	}
	return point
}

func readPart(c *gin.Context, name string, limit int64) ([]byte, error) {
	fh, err := c.FormFile(name)
	if err != nil {
		return nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit))
}
