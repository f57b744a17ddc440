package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	// eventWait is how long the broadcaster waits on a client whose
	// queue is full before dropping the event for it.
	eventWait = 250 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	// Remote displays are served from other origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEvents streams engine events to a websocket client. The first
// message is always the current playback snapshot.
func (s *Server) handleEvents(c *gin.Context) {
	if s.engine.Events == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event stream disabled"})
		return
	}

	var first PlaybackResponse
	err := s.onLoop(c.Request.Context(), func() error {
		first = newPlaybackResponse(s.engine.Player.Snapshot())
		return nil
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events := make(chan Event, 64)
	unsubscribe, err := s.engine.Events.SubscribeWithTimeout(events, eventWait)
	if err != nil {
		s.logger.Error("event subscribe failed", "error", err)
		return
	}
	defer unsubscribe()

	s.logger.Debug("websocket client connected", "remote", c.ClientIP())

	// The read side only exists to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)

		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := s.write(conn, Event{Type: "playback.snapshot", Playback: &first}); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			s.logger.Debug("websocket client disconnected", "remote", c.ClientIP())
			return
		case ev := <-events:
			if err := s.write(conn, ev); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) write(conn *websocket.Conn, ev Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(ev); err != nil {
		s.logger.Debug("websocket write failed", "error", err)
		return err
	}

	return nil
}
