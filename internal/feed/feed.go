// Package feed pushes delivery and escalation outcomes to connected
// owners over websockets.
package feed

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"capsule-service/internal/logging"
)

const maxConnectionsPerUser = 10

// Manager tracks websocket connections per user.
type Manager struct {
	connections map[uuid.UUID]map[*websocket.Conn]bool
	mutex       sync.Mutex
	logger      *logging.Logger
}

func NewManager(logger *logging.Logger) *Manager {
	return &Manager{
		connections: make(map[uuid.UUID]map[*websocket.Conn]bool),
		logger:      logger,
	}
}

func (m *Manager) AddConnection(userID uuid.UUID, conn *websocket.Conn) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, exists := m.connections[userID]; !exists {
		m.connections[userID] = make(map[*websocket.Conn]bool)
	}
	if len(m.connections[userID]) >= maxConnectionsPerUser {
		m.logger.Warnf("Max feed connections reached for user %s", userID)
		return
	}
	m.connections[userID][conn] = true
	m.logger.Debugf("Added feed connection for user %s (total: %d)", userID, len(m.connections[userID]))
}

func (m *Manager) RemoveConnection(userID uuid.UUID, conn *websocket.Conn) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if conns, exists := m.connections[userID]; exists {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(m.connections, userID)
		}
	}
}

// NotifyUser sends a message to all of a user's connections. Dead
// connections are dropped on write failure.
func (m *Manager) NotifyUser(userID uuid.UUID, message string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	conns, exists := m.connections[userID]
	if !exists {
		return
	}
	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
			m.logger.Errorf("Failed to push feed message to user %s: %v", userID, err)
			delete(conns, conn)
		}
	}
	if len(conns) == 0 {
		delete(m.connections, userID)
	}
}
