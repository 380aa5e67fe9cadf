package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from a different origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEventSocket streams domain events to a dashboard client. Each
// connection gets its own hub subscription; a slow client drops events rather
// than stalling the workflow.
func (s *Server) handleEventSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	events, cancel := s.hub.Subscribe()
	defer cancel()

	// Drain the reader so close frames are processed; cancel unblocks the
	// write loop by closing the event channel.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for evt := range events {
		if err := conn.WriteJSON(evt); err != nil {
			log.Debug().Err(err).Msg("websocket write failed, dropping subscriber")
			return
		}
	}
}
