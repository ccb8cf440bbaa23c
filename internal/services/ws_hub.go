package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"photogram-backend/internal/models"
	"photogram-backend/internal/session"
	"photogram-backend/internal/store"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	PhotoID string      `json:"photo_id,omitempty"`
	UserID  string      `json:"user_id,omitempty"`
	Content string      `json:"content,omitempty"`
	Query   string      `json:"query,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Conn is the part of a WebSocket connection the hub writes to
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// UserLoader reads the user behind a session
type UserLoader interface {
	LoadUser(ctx context.Context, userID string) (*models.User, error)
}

// Client is one live connection and the state it owns
type Client struct {
	UserID  string
	Store   *store.Store
	Session *session.Session

	writeMu sync.Mutex
	conn    Conn
}

// NewClient creates a client for a connection
func NewClient(userID string, conn Conn, st *store.Store, sess *session.Session) *Client {
	return &Client{
		UserID:  userID,
		Store:   st,
		Session: sess,
		conn:    conn,
	}
}

// Send writes a message to the connection
func (c *Client) Send(message WSMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendState pushes the client's current state
func (c *Client) SendState() error {
	return c.Send(WSMessage{Type: "state", Data: c.Store.Snapshot()})
}

// ClientHub manages live clients, one per user
type ClientHub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	newStore func() *store.Store
	users    UserLoader
}

// NewClientHub creates a new hub. newStore builds the store for every session.
func NewClientHub(newStore func() *store.Store, users UserLoader) *ClientHub {
	return &ClientHub{
		clients:  make(map[string]*Client),
		newStore: newStore,
		users:    users,
	}
}

// NewStore builds an empty store wired like every client store
func (h *ClientHub) NewStore() *store.Store {
	return h.newStore()
}

// Register registers a client, closing any older connection of the same user
func (h *ClientHub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, exists := h.clients[client.UserID]; exists && existing != client {
		existing.conn.Close()
	}
	h.clients[client.UserID] = client

	log.Info().Str("user_id", client.UserID).Msg("WebSocket client registered")
}

// Unregister removes a client if it is still the registered one for its user
func (h *ClientHub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, exists := h.clients[client.UserID]; exists && current == client {
		delete(h.clients, client.UserID)
		log.Info().Str("user_id", client.UserID).Msg("WebSocket client unregistered")
	}
	client.conn.Close()
}

// Client returns the live client of a user
func (h *ClientHub) Client(userID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[userID]
	return client, ok
}

// IsOnline checks if a user has a live client
func (h *ClientHub) IsOnline(userID string) bool {
	_, ok := h.Client(userID)
	return ok
}

// SendToUser sends a message to a user's live client
func (h *ClientHub) SendToUser(userID string, message WSMessage) error {
	client, ok := h.Client(userID)
	if !ok {
		return fmt.Errorf("user %s is not connected", userID)
	}
	if err := client.Send(message); err != nil {
		h.Unregister(client)
		return err
	}
	return nil
}

// StoreFor returns the store of the user's live client. Without one, it returns a
// fresh store signed in as the user, used for the duration of a request.
func (h *ClientHub) StoreFor(ctx context.Context, userID string) (*store.Store, error) {
	if client, ok := h.Client(userID); ok {
		return client.Store, nil
	}

	user, err := h.users.LoadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	st := h.newStore()
	st.SetSession(user)
	return st, nil
}

// PushState sends the state of a user's live client, if any
func (h *ClientHub) PushState(userID string) {
	client, ok := h.Client(userID)
	if !ok {
		return
	}
	if err := client.SendState(); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to push state")
		h.Unregister(client)
	}
}
