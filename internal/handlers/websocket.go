package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"photogram-backend/internal/services"
	"photogram-backend/internal/session"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler runs the live client of a signed-in user. Each connection owns a
// store; every inbound message maps to one store operation or read flow.
type WebSocketHandler struct {
	hub           *services.ClientHub
	provider      *session.Provider
	feedService   *services.FeedService
	searchService *services.SearchService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *services.ClientHub,
	provider *session.Provider,
	feedService *services.FeedService,
	searchService *services.SearchService,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           hub,
		provider:      provider,
		feedService:   feedService,
		searchService: searchService,
	}
}

// HandleWebSocket handles WebSocket connections
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}

	userID, err := h.provider.ValidateSessionToken(token)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	ctx := r.Context()
	st := h.hub.NewStore()
	sess := session.New(h.provider)
	sess.OnSessionChange(st.SetSession)

	client := services.NewClient(userID, conn, st, sess)
	if _, err := sess.Restore(ctx, token); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to restore session")
		client.Send(services.WSMessage{Type: "error", Message: "Failed to restore session"})
		conn.Close()
		return
	}

	h.hub.Register(client)
	defer h.hub.Unregister(client)

	h.feedService.Refresh(ctx, st)
	if err := client.SendState(); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to send initial state")
		return
	}

	log.Info().Str("user_id", userID).Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			break
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to parse WebSocket message")
			h.sendError(client, "Invalid message format")
			continue
		}

		done, err := h.handleMessage(ctx, client, msg)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Str("type", msg.Type).Msg("Failed to handle message")
			break
		}
		if done {
			break
		}
	}
}

// handleMessage processes one inbound message. It reports whether the connection
// should close; errors are write failures on the connection.
func (h *WebSocketHandler) handleMessage(ctx context.Context, client *services.Client, msg services.WSMessage) (bool, error) {
	st := client.Store

	switch msg.Type {
	case "like_photo":
		st.LikePhoto(ctx, msg.PhotoID)
	case "add_comment":
		st.AddComment(ctx, msg.PhotoID, msg.Content)
	case "toggle_dark_mode":
		st.ToggleDarkMode()
	case "toggle_follow":
		st.ToggleFollow(ctx, msg.UserID)
	case "refresh_feed":
		h.feedService.Refresh(ctx, st)
	case "open_detail":
		detail, err := h.feedService.OpenDetail(ctx, st, msg.PhotoID)
		if err != nil {
			return false, h.sendError(client, userMessage(err, "Failed to open photo"))
		}
		return false, client.Send(services.WSMessage{Type: "detail", Data: detail})
	case "search":
		results, err := h.searchService.Search(ctx, msg.Query)
		if err != nil {
			return false, h.sendError(client, "Search failed")
		}
		return false, client.Send(services.WSMessage{Type: "search_results", Data: results})
	case "sign_out":
		client.Session.SignOut()
		return true, client.SendState()
	default:
		return false, h.sendError(client, "Unknown message type")
	}

	return false, client.SendState()
}

// sendError sends an error message to the client
func (h *WebSocketHandler) sendError(client *services.Client, message string) error {
	return client.Send(services.WSMessage{
		Type:    "error",
		Message: message,
	})
}
