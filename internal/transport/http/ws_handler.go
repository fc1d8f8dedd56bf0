package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"knowledgeflow/internal/accounts"
	"knowledgeflow/internal/app"
	"knowledgeflow/internal/domain"
	"knowledgeflow/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// WSHandler streams a learner's progress updates over a websocket.
type WSHandler struct {
	accounts *accounts.Service
	feeds    *app.ProgressFeeds
	log      *logger.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler accepts upgrades only from the allowed origins. Requests
// without an Origin header (non-browser clients) are accepted.
func NewWSHandler(accounts *accounts.Service, feeds *app.ProgressFeeds, allowedOrigins []string, log *logger.Logger) *WSHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &WSHandler{
		accounts: accounts,
		feeds:    feeds,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// ServeProgress upgrades the request and forwards feed events until either side goes away.
func (h *WSHandler) ServeProgress(c *gin.Context) {
	username := c.Param("username")
	ok, err := h.accounts.Exists(c.Request.Context(), username)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if !ok {
		writeError(c, h.log, domain.ErrUserNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "username", username, "error", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.feeds.Subscribe(c.Request.Context(), username)
	if err != nil {
		h.log.Error("progress subscribe failed", "username", username, "error", err)
		_ = conn.WriteJSON(errorMessage{Type: "error", Error: "internal server error"})
		return
	}
	defer cancel()

	// The reader only services control frames and notices the client leaving.
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

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case event, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				h.log.Debug("ws write error", "username", username, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
