package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"
)

// HandleWebSocket upgrades the connection and runs it as a hub client until
// the screen disconnects.
func HandleWebSocket(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			// Screens connect from anywhere on the household LAN.
			InsecureSkipVerify: true,
		})
		if err != nil {
			hub.logger.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
			return
		}

		client := NewClient(hub, conn)
		client.Run(r.Context())
	}
}
