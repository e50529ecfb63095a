package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ghostchat-server/internal/core"
)

// StatsHandlers exposes aggregate relay counters. Room ids are never listed.
type StatsHandlers struct {
	hub core.Hub
	log *zerolog.Logger
}

// NewStatsHandlers creates a new stats handlers instance.
func NewStatsHandlers(hub core.Hub, logger *zerolog.Logger) *StatsHandlers {
	return &StatsHandlers{
		hub: hub,
		log: logger,
	}
}

// StatsResponse represents relay counters in API responses.
type StatsResponse struct {
	Rooms     int `json:"rooms"`
	FullRooms int `json:"full_rooms"`
	Clients   int `json:"clients"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Stats reports active room and connection counts.
// GET /api/stats
func (h *StatsHandlers) Stats(c *gin.Context) {
	snap, err := h.hub.Snapshot(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to snapshot hub")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "relay unavailable"})
		return
	}

	resp := StatsResponse{Rooms: len(snap.Rooms), Clients: snap.Clients}
	for _, room := range snap.Rooms {
		if len(room.Members) >= core.MaxRoomMembers {
			resp.FullRooms++
		}
	}
	c.JSON(http.StatusOK, resp)
}

func healthHandler(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
