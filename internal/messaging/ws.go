package messaging

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/bazaar/internal/api"
	"github.com/sudo-init-do/bazaar/internal/apperr"
	"github.com/sudo-init-do/bazaar/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 8 << 10
	readBufferSize = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  readBufferSize,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type errorFrame struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writePump drains c.send into the socket and keeps the connection alive.
// It returns when the hub closes the queue or a write fails.
func writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case b, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func prepareRead(conn *websocket.Conn) {
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// ListingSocket joins the caller to a listing's thread. Every text frame
// {"message": "..."} is stored and broadcast like POST /messages.
func (h *Handler) ListingSocket(c echo.Context) error {
	acc, err := api.Caller(c)
	if err != nil {
		return err
	}
	listingID := c.Param("listing_id")
	ctx := c.Request().Context()
	if _, err := h.svc.listings.GetByID(ctx, listingID); err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	client := h.svc.hub.JoinListing(listingID, conn)
	go writePump(client)
	defer h.svc.hub.Leave(client)

	prepareRead(conn)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("ws listing %s read: %v", listingID, err)
			}
			return nil
		}
		var in inboundFrame
		if err := json.Unmarshal(data, &in); err != nil {
			h.svc.hub.Send(client, errorFrame{Error: "frames must be JSON objects with a message field", Code: apperr.CodeValidation})
			continue
		}
		if _, err := h.svc.Send(ctx, acc, SendInput{ListingID: listingID, Content: in.Message}); err != nil {
			frame := errorFrame{Error: "internal error", Code: apperr.CodeInternal}
			if ae, ok := apperr.As(err); ok && ae.Status < http.StatusInternalServerError {
				frame = errorFrame{Error: ae.Message, Code: ae.Code}
			} else {
				logger.Error("ws listing %s send: %v", listingID, err)
			}
			h.svc.hub.Send(client, frame)
		}
	}
}

// NotificationSocket streams the caller's personal channel.
func (h *Handler) NotificationSocket(c echo.Context) error {
	acc, err := api.Caller(c)
	if err != nil {
		return err
	}
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	client := h.svc.hub.JoinUser(acc.ID, conn)
	go writePump(client)
	defer h.svc.hub.Leave(client)

	// Inbound frames are ignored; reading keeps pongs and close frames flowing.
	prepareRead(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}
