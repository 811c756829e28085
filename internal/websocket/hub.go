// Package websocket fans board events out to the websocket clients watching a
// project.
package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"teamboard/internal/models"
	"teamboard/pkg/logger"
)

const (
	broadcastBuffer = 256
	clientBuffer    = 32
	writeWait       = 10 * time.Second
)

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is one websocket subscribed to a single project on behalf of User.
type Client struct {
	Conn    Conn
	Project string
	User    string
	send    chan []byte
}

// writePump owns every write to the connection. It closes the connection
// when send is closed or a write fails.
func (c *Client) writePump() {
	defer c.Conn.Close()
	for msg := range c.send {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.ErrorLogger.Warn("Board write failed", zap.String("projectID", c.Project), zap.Error(err))
			return
		}
	}
}

type roomQuery struct {
	project string
	reply   chan int
}

// Hub owns the subscriber set. All state changes happen on the Run goroutine.
type Hub struct {
	rooms      map[string]map[*Client]bool
	broadcast  chan models.BoardEvent
	register   chan *Client
	unregister chan *Client
	query      chan roomQuery
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan models.BoardEvent, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		query:      make(chan roomQuery),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// closes every remaining connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, room := range h.rooms {
				for client := range room {
					close(client.send)
				}
			}
			h.rooms = make(map[string]map[*Client]bool)
			return
		case client := <-h.register:
			room, ok := h.rooms[client.Project]
			if !ok {
				room = make(map[*Client]bool)
				h.rooms[client.Project] = room
			}
			client.send = make(chan []byte, clientBuffer)
			room[client] = true
			go client.writePump()
		case client := <-h.unregister:
			h.remove(client)
		case q := <-h.query:
			q.reply <- len(h.rooms[q.project])
		case ev := <-h.broadcast:
			h.deliver(ev)
		}
	}
}

func (h *Hub) deliver(ev models.BoardEvent) {
	room := h.rooms[ev.Project]
	if len(room) == 0 {
		return
	}

	// event project membawa daftar user yang masih boleh membaca board
	if ev.Type == models.EventProjectUpdated || ev.Type == models.EventProjectDeleted {
		allowed := make(map[string]bool, len(ev.Readers))
		for _, id := range ev.Readers {
			allowed[id] = true
		}
		for client := range room {
			if !allowed[client.User] {
				logger.SecurityLogger.Info("Board subscriber revoked",
					zap.String("projectID", ev.Project), zap.String("userID", client.User))
				h.remove(client)
			}
		}
		if len(h.rooms[ev.Project]) == 0 {
			return
		}
	}

	msg, err := json.Marshal(ev)
	if err != nil {
		logger.ErrorLogger.Error("Error encoding board event", zap.Error(err))
		return
	}
	for client := range room {
		select {
		case client.send <- msg:
		default:
			// client terlalu lambat, putuskan agar room lain tidak ikut tertahan
			logger.ErrorLogger.Warn("Board subscriber too slow", zap.String("projectID", ev.Project), zap.String("userID", client.User))
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	room, ok := h.rooms[client.Project]
	if !ok || !room[client] {
		return
	}
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, client.Project)
	}
	close(client.send)
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Conn.Close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribers reports how many clients currently watch project. Run must be
// active.
func (h *Hub) Subscribers(project string) int {
	q := roomQuery{project: project, reply: make(chan int, 1)}
	select {
	case h.query <- q:
		return <-q.reply
	case <-h.done:
		return 0
	}
}

// Publish queues ev for the project's subscribers. It never blocks the
// caller; events are dropped when the queue is full.
func (h *Hub) Publish(ev models.BoardEvent) {
	select {
	case h.broadcast <- ev:
	default:
		logger.ErrorLogger.Error("Board event dropped", zap.String("type", ev.Type), zap.String("projectID", ev.Project))
	}
}
