package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/homewatch/internal/api/handlers"
	"github.com/your-org/homewatch/internal/api/ws"
	"github.com/your-org/homewatch/internal/auth"
	"github.com/your-org/homewatch/internal/queue"
	"github.com/your-org/homewatch/internal/storage"
)

type RouterConfig struct {
	APIKey   string
	DB       *storage.PostgresStore
	Media    *storage.MediaStore
	Producer *queue.Producer
	Hub      *ws.Hub
	// Filter drops cached zones when a camera's zone list changes.
	Filter handlers.ZoneInvalidator
	// Matcher drops cached reference embeddings when entities change.
	Matcher handlers.MatcherInvalidator
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLog())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.Media, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.RequireKey(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Cameras & zones
	cameraH := handlers.NewCameraHandler(cfg.DB, cfg.Filter)
	v1.POST("/cameras", cameraH.Create)
	v1.GET("/cameras", cameraH.List)
	v1.GET("/cameras/:id", cameraH.Get)
	v1.PATCH("/cameras/:id", cameraH.Update)
	v1.DELETE("/cameras/:id", cameraH.Delete)
	v1.GET("/cameras/:id/zones", cameraH.GetZones)
	v1.PUT("/cameras/:id/zones", cameraH.PutZones)

	// Events
	eventH := handlers.NewEventHandler(cfg.DB, cfg.Media)
	v1.GET("/events", eventH.List)
	v1.GET("/events/:id", eventH.Get)
	v1.GET("/events/:id/snapshot", eventH.Snapshot)

	// Recognized entities
	entityH := handlers.NewEntityHandler(cfg.DB, cfg.Matcher)
	v1.GET("/entities", entityH.List)
	v1.GET("/entities/:id", entityH.Get)
	v1.PATCH("/entities/:id", entityH.Rename)
	v1.DELETE("/entities/:id", entityH.Delete)

	return r
}
