package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"roomchat/internal/chat"
	"roomchat/internal/handler"
	"roomchat/internal/hub"
	"roomchat/internal/metrics"
	"roomchat/internal/middleware"
	"roomchat/internal/socketio"
)

type Deps struct {
	Relay     *chat.Relay
	Hub       *hub.Hub
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	PublicDir string
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Recovery(deps.Logger))

	healthHandler := &handler.HealthHandler{}
	r.GET("/health", healthHandler.Check)
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	roomHandler := &handler.RoomHandler{Directory: deps.Relay.Directory()}
	v1 := r.Group("/v1")
	v1.GET("/rooms", roomHandler.List)
	v1.GET("/rooms/:room/users", roomHandler.Users)

	sio := socketio.NewServer(socketio.Deps{
		Relay:   deps.Relay,
		Hub:     deps.Hub,
		Logger:  deps.Logger,
		Metrics: deps.Metrics,
	})
	r.GET("/socket.io/", gin.WrapH(sio))

	if deps.PublicDir != "" {
		files := http.FileServer(gin.Dir(deps.PublicDir, false))
		r.NoRoute(func(c *gin.Context) {
			if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
				c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
				return
			}
			files.ServeHTTP(c.Writer, c.Request)
		})
	}

	return r
}
