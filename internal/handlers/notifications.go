package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Windi-Fikriyansyah/healthmate_be/internal/realtime"
)

type NotificationHandler struct {
	Hub *realtime.Hub
	Log logrus.FieldLogger
}

// RequireUpgrade rejects plain HTTP requests and hands the session uid and
// role to the websocket handler.
func (h *NotificationHandler) RequireUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

func (h *NotificationHandler) Stream(c *websocket.Conn) {
	uid, _ := c.Locals("uid").(int)
	role, _ := c.Locals("role").(string)

	client := &realtime.Client{
		ID:   uuid.NewString(),
		UID:  uid,
		Role: role,
		Conn: realtime.NewWebSocketConn(c),
		Send: make(chan []byte, 256),
	}
	log := h.Log.WithFields(logrus.Fields{"uid": uid, "client_id": client.ID})

	h.Hub.RegisterClient(client)
	log.Info("notification stream opened")

	go func() {
		if err := client.Conn.WriteLoop(client.Send); err != nil {
			log.WithError(err).Debug("websocket write stopped")
		}
	}()

	if err := client.Conn.ReadLoop(); err != nil {
		log.WithError(err).Debug("websocket read stopped")
	}
	h.Hub.UnregisterClient(client)
	log.Info("notification stream closed")
}
