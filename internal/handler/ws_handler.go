package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-chat/internal/audit"
	"github.com/weiawesome/wes-io-chat/internal/config"
	"github.com/weiawesome/wes-io-chat/internal/gate"
	"github.com/weiawesome/wes-io-chat/internal/hub"
	"github.com/weiawesome/wes-io-chat/internal/metrics"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/wire"
)

// Admission error codes.
const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeTokenExpired = "TOKEN_EXPIRED"
)

// WSHandler upgrades chat sockets and hands them to the hub.
type WSHandler struct {
	hub      *hub.Hub
	gate     gate.Resolver
	wsCfg    config.WebSocketConfig
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new websocket handler. An empty origin allowlist
// accepts every origin.
func NewWSHandler(h *hub.Hub, g gate.Resolver, wsCfg config.WebSocketConfig) *WSHandler {
	allowed := make(map[string]struct{}, len(wsCfg.AllowedOrigins))
	for _, o := range wsCfg.AllowedOrigins {
		allowed[o] = struct{}{}
	}

	return &WSHandler{
		hub:   h,
		gate:  g,
		wsCfg: wsCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if _, ok := allowed[origin]; ok {
					return true
				}
				_, wildcard := allowed["*"]
				return wildcard
			},
		},
	}
}

// RegisterRoutes registers the socket endpoint.
func (h *WSHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws", h.HandleWebSocket)
}

// HandleWebSocket resolves the caller's identity, upgrades the connection
// and admits it to presence. Sockets without a valid identity stay open but
// only receive an admission error.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID, gateErr := h.gate.Resolve(c.Request)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(h.hub, conn, userID, h.wsCfg)
	if err := h.hub.Attach(client); err != nil {
		conn.Close()
		return
	}

	go client.WritePump()

	if gateErr != nil {
		metrics.ConnectionsTotal.WithLabelValues("denied").Inc()
		audit.LogWithDetail(ctx, audit.ActionConnectDenied, "", gateErr.Error(), "socket not admitted")

		code := CodeUnauthorized
		if errors.Is(gateErr, jwt.ErrExpiredToken) {
			code = CodeTokenExpired
		}
		if err := client.Send(wire.AdmissionError{Code: code, Message: gateErr.Error()}); err != nil {
			l.Debug().Err(err).Msg("failed to send admission error")
		}
	} else if err := h.hub.Admit(client); err != nil {
		client.Close()
	}

	go client.ReadPump()
}
