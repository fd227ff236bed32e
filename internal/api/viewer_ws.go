package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samvera/stories/internal/logger"
	"github.com/samvera/stories/internal/playback"
)

const wsWriteTimeout = 5 * time.Second

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser origin checks belong to the reverse proxy in front of this
	// service
	CheckOrigin: func(*http.Request) bool { return true },
}

// Stream handles GET /api/viewers/:id/ws. It upgrades to a websocket and
// pushes a snapshot on every progress sample and state transition until the
// viewer closes or the client disconnects. Disconnecting only unsubscribes;
// it does not close the viewer session.
func (h *ViewerHandler) Stream(c *gin.Context) {
	viewer, ok := h.lookupViewer(c)
	if !ok {
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Msg("Failed to upgrade viewer stream connection")
		return
	}
	defer conn.Close()

	snapshots, unsubscribe := viewer.Subscribe()
	defer unsubscribe()

	// Initial state so the client can render before the first sample
	if err := writeSnapshot(conn, viewer.Snapshot()); err != nil {
		return
	}

	// Drain client frames so close/ping handling works; the feed is one-way
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case snap, open := <-snapshots:
			if !open {
				// Viewer closed; say goodbye cleanly
				_ = conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "viewer closed"),
					time.Now().Add(wsWriteTimeout),
				)
				return
			}
			if err := writeSnapshot(conn, snap); err != nil {
				return
			}
		case <-clientGone:
			return
		}
	}
}

// writeSnapshot sends one snapshot frame with a bounded write deadline
func writeSnapshot(conn *websocket.Conn, snap playback.Snapshot) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(snap)
}
