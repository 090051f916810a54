package importer

import (
	"sync"

	"go-deskmigrate/internal/features/job"

	"github.com/gofiber/contrib/websocket"
)

// Hub fans job progress snapshots out to websocket subscribers. One
// subscriber set per job id.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*websocket.Conn]bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*websocket.Conn]bool)}
}

func (h *Hub) Subscribe(jobID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[*websocket.Conn]bool)
	}
	h.subs[jobID][conn] = true
}

func (h *Hub) Unsubscribe(jobID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[jobID], conn)
	if len(h.subs[jobID]) == 0 {
		delete(h.subs, jobID)
	}
}

// Publish sends the job snapshot to every subscriber. Dead connections
// are dropped on write failure.
func (h *Hub) Publish(jobID string, j *job.ImportJob) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.subs[jobID] {
		if err := conn.WriteJSON(j); err != nil {
			conn.Close()
			delete(h.subs[jobID], conn)
		}
	}
}
