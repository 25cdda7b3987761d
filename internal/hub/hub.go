package hub

import (
	"errors"
	"sync"
)

var ErrUnknownConnection = errors.New("unknown connection")

// Writer delivers encoded events to one live transport connection.
type Writer interface {
	Emit(event string, payload any) error
	Close() error
}

// Hub maps connection IDs to their writers and is the outbound sink of the
// relay.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]Writer
}

func New() *Hub {
	return &Hub{connections: make(map[string]Writer)}
}

func (h *Hub) Register(connectionID string, w Writer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[connectionID] = w
}

func (h *Hub) Unregister(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, connectionID)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Emit sends to a single connection. A connection whose write fails is
// closed and dropped; its transport loop then reports the disconnect.
func (h *Hub) Emit(connectionID, event string, payload any) error {
	h.mu.RLock()
	w, ok := h.connections[connectionID]
	h.mu.RUnlock()
	if !ok {
		return ErrUnknownConnection
	}

	if err := w.Emit(event, payload); err != nil {
		_ = w.Close()
		h.Unregister(connectionID)
		return err
	}
	return nil
}
