package services

import (
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func (a *Api) WsUpgrade() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(ctx) {
			return ctx.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// Notifications registers the socket under the client id given in the path.
// Jobs submitted with that client id push their events here.
func (a *Api) Notifications() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {

		clientId := strings.TrimSpace(conn.Params("id"))
		if clientId == "" {
			_ = conn.WriteMessage(websocket.CloseMessage, []byte("missing clientId"))
			_ = conn.Close()
			return
		}

		client := NewWSClient(clientId, conn)
		a.hub.Add(client)
		a.logger.Debug("websocket connected", "clientId", clientId)

		go client.writeLoop()
		client.readPump(func() {
			a.hub.Remove(client)
			a.logger.Debug("websocket closed", "clientId", clientId)
		})
	})
}
