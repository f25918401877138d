package echoapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/simonmuehling/educafric-app-sub019/core"
	"github.com/simonmuehling/educafric-app-sub019/core/notification"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsSendBuffer = 32
)

var upgrader = &websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type (
	// WSMessage is what the hub pushes to clients.
	WSMessage struct {
		Type string      `json:"type"`
		Data interface{} `json:"data"`
	}

	connection struct {
		userID string
		ws     *websocket.Conn
		// buffered channel of outbound messages
		send chan []byte
		hub  *Hub
	}

	delivery struct {
		userID  string
		message []byte
	}

	// Hub keeps the open websockets by user and pushes notifications to them.
	Hub struct {
		logger      core.Logger
		connections map[string]map[*connection]bool // by user ID
		register    chan *connection
		unregister  chan *connection
		deliver     chan delivery
		done        chan struct{}
		closeOnce   sync.Once
	}
)

var _ notification.Dispatcher = (*Hub)(nil)

// NewHub returns a running Hub, Close stops it.
func NewHub(logger core.Logger) *Hub {
	h := &Hub{
		logger:      logger,
		connections: make(map[string]map[*connection]bool),
		register:    make(chan *connection),
		unregister:  make(chan *connection),
		deliver:     make(chan delivery, 256),
		done:        make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			for _, conns := range h.connections {
				for c := range conns {
					close(c.send)
				}
			}
			h.connections = nil
			return
		case c := <-h.register:
			if h.connections[c.userID] == nil {
				h.connections[c.userID] = make(map[*connection]bool)
			}
			h.connections[c.userID][c] = true
		case c := <-h.unregister:
			h.remove(c)
		case d := <-h.deliver:
			for c := range h.connections[d.userID] {
				select {
				case c.send <- d.message:
				default: // slow reader
					h.remove(c)
				}
			}
		}
	}
}

func (h *Hub) remove(c *connection) {
	conns := h.connections[c.userID]
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	close(c.send)
	if len(conns) == 0 {
		delete(h.connections, c.userID)
	}
}

// Dispatch pushes each notification to the open websockets of its user.
func (h *Hub) Dispatch(ctx context.Context, notifs ...notification.Notification) error {
	for _, n := range notifs {
		msg, err := json.Marshal(WSMessage{Type: "notification", Data: n})
		if err != nil {
			return err
		}
		select {
		case h.deliver <- delivery{userID: n.UserID, message: msg}:
		case <-h.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Hub) serve(userID string, ws *websocket.Conn) {
	c := &connection{userID: userID, ws: ws, send: make(chan []byte, wsSendBuffer), hub: h}
	select {
	case h.register <- c:
	case <-h.done:
		_ = ws.Close()
		return
	}
	go c.writer()
	c.reader()
}

// reader only watches for the socket to close, clients do not send anything but pongs.
func (c *connection) reader() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.ws.Close()
	}()
	c.ws.SetReadLimit(512)
	_ = c.ws.SetReadDeadline(time.Now().Add(wsPongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn(fmt.Sprintf("websocket read error: %v", err))
			}
			return
		}
	}
}

func (c *connection) writer() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func registerWebsocketAPI(g *echo.Group, hub *Hub, logger core.Logger) {
	g.GET("/ws", func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		ws, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
		if err != nil {
			logger.Warn(fmt.Sprintf("upgrading websocket: %v", err))
			return nil // the upgrader already answered
		}
		hub.serve(claims.Subject, ws)
		return nil
	}, queryTokenAuth())
}
