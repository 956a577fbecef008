package websocket

import (
	"sync"

	"github.com/gorilla/websocket"

	"annotator/internal/logger"
)

// AllImages subscribes a viewer to updates of every image.
const AllImages int64 = 0

type subscription struct {
	conn    *websocket.Conn
	imageID int64
}

type message struct {
	data    []byte
	imageID int64
}

// HubService fans detection updates out to connected viewers. Each viewer
// watches one image (or AllImages).
type HubService struct {
	clients    map[*websocket.Conn]int64
	broadcast  chan message
	register   chan subscription
	unregister chan *websocket.Conn
	done       chan struct{}
	stopOnce   sync.Once
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]int64),
		broadcast:  make(chan message, 16),
		register:   make(chan subscription),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes hub events until Stop is called.
func (h *HubService) Run() {
	for {
		select {
		case sub := <-h.register:
			h.mutex.Lock()
			h.clients[sub.conn] = sub.imageID
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("👀 Viewer connected to image %d. Total: %d", sub.imageID, total)

		case conn := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", total)

		case msg := <-h.broadcast:
			h.mutex.Lock()
			for conn, imageID := range h.clients {
				if imageID != AllImages && imageID != msg.imageID {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
					h.logger.Error("Error sending message: %v", err)
					delete(h.clients, conn)
					conn.Close()
				}
			}
			h.mutex.Unlock()

		case <-h.done:
			h.mutex.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// Stop ends Run and closes every viewer connection.
func (h *HubService) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register subscribes conn to updates of imageID.
func (h *HubService) Register(conn *websocket.Conn, imageID int64) {
	select {
	case h.register <- subscription{conn: conn, imageID: imageID}:
	case <-h.done:
		conn.Close()
	}
}

func (h *HubService) Unregister(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Broadcast sends data to every viewer of imageID.
func (h *HubService) Broadcast(data []byte, imageID int64) {
	select {
	case h.broadcast <- message{data: data, imageID: imageID}:
	case <-h.done:
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
