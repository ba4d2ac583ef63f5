package hub

import (
	"errors"
	"sync"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/metrics"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/log"
)

var ErrHubStopped = errors.New("hub stopped")

// Hub owns the room broadcast sets. Each room is an independent set of
// clients; a broadcast is encoded once and fanned out to the set.
type Hub struct {
	clients    map[string]*Client            // clientID -> client
	rooms      map[string]map[string]*Client // chatID -> clientID -> client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *RoomMessage
	stop       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	metrics    *metrics.Metrics
}

type RoomMessage struct {
	ChatID  string
	Message []byte
	Exclude string // client ID to exclude
}

func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *RoomMessage, 256),
		stop:       make(chan struct{}),
		metrics:    m,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID()] = client
			h.mu.Unlock()
			h.metrics.ConnectionOpened()
			l := log.L()
			l.Debug().Str(log.FieldConnID, client.ID()).Str(log.FieldUserID, client.UserID()).Msg("client registered")

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

// Stop ends the event loop. Pending broadcasts are discarded.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.stop:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stop:
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client.ID()]
	if ok {
		for chatID, members := range h.rooms {
			delete(members, client.ID())
			if len(members) == 0 {
				delete(h.rooms, chatID)
			}
		}
		delete(h.clients, client.ID())
	}
	h.mu.Unlock()

	client.Close()
	if ok {
		h.metrics.ConnectionClosed()
		l := log.L()
		l.Debug().Str(log.FieldConnID, client.ID()).Msg("client unregistered")
	}
}

func (h *Hub) fanOut(msg *RoomMessage) {
	var slow []*Client

	h.mu.RLock()
	for clientID, client := range h.rooms[msg.ChatID] {
		if clientID == msg.Exclude {
			continue
		}
		if err := client.enqueue(msg.Message); errors.Is(err, ErrBufferFull) {
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.metrics.BroadcastDropped()
		l := log.L()
		l.Warn().Str(log.FieldConnID, client.ID()).Str(log.FieldChatID, msg.ChatID).Msg("dropping slow client")
		go h.Unregister(client)
	}
}

func (h *Hub) JoinRoom(client *Client, chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[chatID]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[chatID] = members
	}
	members[client.ID()] = client
	client.Session.JoinRoom(chatID)

	l := log.L()
	l.Info().Str(log.FieldConnID, client.ID()).Str(log.FieldChatID, chatID).Msg("client joined room")
}

// LeaveRoom reports whether the client was in the room.
func (h *Hub) LeaveRoom(client *Client, chatID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, was := h.rooms[chatID][client.ID()]
	if members, ok := h.rooms[chatID]; ok {
		delete(members, client.ID())
		if len(members) == 0 {
			delete(h.rooms, chatID)
		}
	}
	client.Session.LeaveRoom(chatID)

	if was {
		l := log.L()
		l.Info().Str(log.FieldConnID, client.ID()).Str(log.FieldChatID, chatID).Msg("client left room")
	}
	return was
}

func (h *Hub) InRoom(client *Client, chatID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[chatID][client.ID()]
	return ok
}

func (h *Hub) RoomSize(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[chatID])
}

// BroadcastToRoom encodes ev once and queues it for every client in the room.
func (h *Hub) BroadcastToRoom(chatID string, ev domain.Event, exclude string) error {
	data, err := domain.EncodeEvent(ev)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- &RoomMessage{ChatID: chatID, Message: data, Exclude: exclude}:
		return nil
	case <-h.stop:
		return ErrHubStopped
	}
}
