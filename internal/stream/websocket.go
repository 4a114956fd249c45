package stream

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/tracksight/internal/monitoring"
)

const writeTimeout = 10 * time.Second

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all
// origins because the dashboard may be served from a different host.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and streams frame updates for cameraID to
// the client until it disconnects or the subscription is closed.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, cameraID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response
		return
	}
	defer conn.Close()

	id, updates := h.Subscribe(cameraID)
	defer h.Unsubscribe(id)
	monitoring.Logf("[Hub] subscriber %s connected (camera=%q)", id, cameraID)
	defer monitoring.Logf("[Hub] subscriber %s disconnected", id)

	// Clients don't send data, but reading is how gorilla surfaces close
	// frames and dead connections.
	readerGone := make(chan struct{})
	go func() {
		defer close(readerGone)
		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-readerGone:
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(update); err != nil {
				return
			}
		}
	}
}
