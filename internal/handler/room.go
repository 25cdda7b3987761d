package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"roomchat/internal/store"
)

type RoomHandler struct {
	Directory *store.Directory
}

func (h *RoomHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.Directory.Rooms()})
}

func (h *RoomHandler) Users(c *gin.Context) {
	room := strings.TrimSpace(c.Param("room"))
	if room == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Room is required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room, "users": h.Directory.UsersInRoom(room)})
}
