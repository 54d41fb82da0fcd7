package handler

import (
	"net/http"
	"strconv"

	"uniparking/internal/notifications/service"
	"uniparking/internal/notifications/ws"
	apperrors "uniparking/pkg/errors"
	httputil "uniparking/pkg/http"
	"uniparking/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

type NotificationHandler struct {
	service  service.InboxService
	hub      *ws.Hub
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewNotificationHandler(service service.InboxService, hub *ws.Hub, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: log,
	}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, err := httputil.Actor(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	unreadOnly := false
	if raw := r.URL.Query().Get("unread"); raw != "" {
		unreadOnly, err = strconv.ParseBool(raw)
		if err != nil {
			httputil.WriteError(w, apperrors.InvalidInput("invalid unread parameter: "+raw))
			return
		}
	}

	items, total, err := h.service.List(r.Context(), actor, unreadOnly, limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WritePaginated(w, items, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := httputil.Actor(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	n, err := h.service.MarkRead(r.Context(), actor, ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := httputil.WriteSuccess(w, n); err != nil {
		h.log.Error("failed to write success response", "handler", "MarkRead", "operation", "WriteSuccess", "error", err)
	}
}

// Connect upgrades to a WebSocket that receives the caller's notifications.
// Browsers cannot set headers on the handshake, so the auth middleware also
// accepts the token as the access_token query parameter here.
func (h *NotificationHandler) Connect(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, err := httputil.Actor(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Warn("WebSocket upgrade failed", "user_id", actor.UserID, "error", err)
		return
	}

	client := ws.NewClient(h.hub, conn, actor.UserID)
	if !client.Register() {
		conn.Close()
		return
	}
	go client.WritePump()
	go client.ReadPump()
}

func (h *NotificationHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/notifications", h.List)
	router.POST("/api/v1/notifications/:id/read", h.MarkRead)
	router.GET("/ws", h.Connect)
}
