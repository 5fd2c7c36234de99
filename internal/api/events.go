// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

// Realtime security event feed.
//
// # Architecture
//
// Both endpoints are thin bridges between one [notify.Queue] and one client
// connection. The queue owns buffering and drop-oldest overflow; this layer
// only moves messages onto the wire and tears the queue down when the client
// goes away.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/thanhphan-dev/lifelink/internal/platform/apperr"
	"github.com/thanhphan-dev/lifelink/internal/platform/middleware"
	"github.com/thanhphan-dev/lifelink/internal/platform/respond"
	"github.com/thanhphan-dev/lifelink/internal/security/notify"
)

const (
	// eventsHeartbeatInterval keeps idle connections alive through proxies.
	eventsHeartbeatInterval = 30 * time.Second

	// eventsWriteTimeout bounds a single frame write; a client that cannot
	// drain within it is considered gone.
	eventsWriteTimeout = 10 * time.Second

	websocketPongTimeout = 60 * time.Second
)

// EventsHandler serves the realtime security notification feed.
type EventsHandler struct {
	notifications *notify.Manager
	logger        *slog.Logger
	upgrader      websocket.Upgrader
}

// NewEventsHandler creates the handler for the /events route group.
func NewEventsHandler(notifications *notify.Manager, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		notifications: notifications,
		logger:        logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers send the app origin; CORS policy is enforced by the
			// global middleware, so the upgrade itself accepts any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Routes mounts the event feed endpoints. All of them require authentication.
func (handler *EventsHandler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Group(func(protected chi.Router) {
		protected.Use(middleware.RequireAuth)
		protected.Get("/stream", handler.stream)
		protected.Get("/ws", handler.websocket)
	})

	return router
}

// stream handles GET /events/stream (Server-Sent Events).
//
// # Flow
//  1. Register a queue for the authenticated identity.
//  2. Relay queued messages as `data:` frames until the client disconnects.
//  3. Emit comment heartbeats so intermediaries keep the connection open.
func (handler *EventsHandler) stream(writer http.ResponseWriter, request *http.Request) {
	claims := middleware.GetUser(request.Context())

	flusher, ok := writer.(http.Flusher)
	if !ok {
		respond.Error(writer, request, apperr.Internal(nil))
		return
	}

	writer.Header().Set("Content-Type", "text/event-stream")
	writer.Header().Set("Cache-Control", "no-cache")
	writer.Header().Set("Connection", "keep-alive")
	writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The server's write timeout would cut the stream mid-flight; push the
	// deadline forward around every write instead. A single stream still ends
	// at the global request timeout — EventSource clients reconnect.
	controller := http.NewResponseController(writer)

	queue := handler.notifications.Connect(claims.UserID)
	defer handler.notifications.Disconnect(claims.UserID, queue)

	handler.logger.Info("event_stream_opened",
		slog.String("user_id", claims.UserID),
		slog.String("session_id", claims.SessionID))

	heartbeat := time.NewTicker(eventsHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-request.Context().Done():
			return

		case <-heartbeat.C:
			_ = controller.SetWriteDeadline(time.Now().Add(eventsWriteTimeout))
			if _, err := writer.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case message := <-queue.Receive():
			payload, err := json.Marshal(message)
			if err != nil {
				handler.logger.Error("event_stream_encode_failed", slog.Any("error", err))
				continue
			}
			_ = controller.SetWriteDeadline(time.Now().Add(eventsWriteTimeout))
			if _, err := writer.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// websocket handles GET /events/ws.
//
// # Flow
//  1. Upgrade, register a queue for the authenticated identity.
//  2. Writer loop: relay queue messages as JSON frames, ping on idle.
//  3. Reader loop (this goroutine): discard inbound frames, detect close.
func (handler *EventsHandler) websocket(writer http.ResponseWriter, request *http.Request) {
	claims := middleware.GetUser(request.Context())

	connection, err := handler.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		handler.logger.Warn("event_ws_upgrade_failed",
			slog.String("user_id", claims.UserID), slog.Any("error", err))
		return
	}
	defer connection.Close()

	queue := handler.notifications.Connect(claims.UserID)
	defer handler.notifications.Disconnect(claims.UserID, queue)

	handler.logger.Info("event_ws_opened",
		slog.String("user_id", claims.UserID),
		slog.String("session_id", claims.SessionID))

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ping := time.NewTicker(eventsHeartbeatInterval)
		defer ping.Stop()

		for {
			select {
			case <-request.Context().Done():
				return
			case <-stop:
				return

			case <-ping.C:
				connection.SetWriteDeadline(time.Now().Add(eventsWriteTimeout))
				if err := connection.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}

			case message := <-queue.Receive():
				connection.SetWriteDeadline(time.Now().Add(eventsWriteTimeout))
				if err := connection.WriteJSON(message); err != nil {
					return
				}
			}
		}
	}()

	// The feed is one-way; reads only service control frames and surface the
	// client closing the socket.
	connection.SetReadLimit(512)
	connection.SetReadDeadline(time.Now().Add(websocketPongTimeout))
	connection.SetPongHandler(func(string) error {
		connection.SetReadDeadline(time.Now().Add(websocketPongTimeout))
		return nil
	})
	for {
		if _, _, err := connection.ReadMessage(); err != nil {
			break
		}
	}

	close(stop)
	<-done
}
