package handlers

import (
	"net/http"

	"whatsapp-channel/internal/wsnotify"
)

// WebSocketHandler registra um cliente da UI do CRM no broadcast de
// mensagens ingeridas e recibos.
func WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := wsnotify.Upgrader().Upgrade(w, r, nil)
	if err != nil {
		return
	}
	wsnotify.Manager.AddClient(conn)
	defer func() {
		wsnotify.Manager.RemoveClient(conn)
		conn.Close()
	}()
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}
