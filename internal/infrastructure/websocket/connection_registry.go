package websocket

import (
	"sync"

	"paynotify-system/internal/domain"
	"paynotify-system/pkg/logger"
)

// ConnectionRegistry tracks at most one live push connection per seller. It
// is created once at startup and shared by every connection lifecycle; all
// methods are safe for concurrent callers. No method performs network I/O
// while holding the lock.
type ConnectionRegistry struct {
	connections map[string]domain.SellerConnection // sellerID -> connection
	mutex       sync.RWMutex
	log         logger.Logger
}

func NewConnectionRegistry(log logger.Logger) *ConnectionRegistry {
	return &ConnectionRegistry{
		connections: make(map[string]domain.SellerConnection),
		log:         log,
	}
}

// Register installs or replaces the connection for a seller. A replaced
// handle is not closed here; the lifecycle that owns it closes it when its
// read loop ends, which keeps disconnect and reconnect events from stepping
// on each other.
func (cr *ConnectionRegistry) Register(sellerID string, conn domain.SellerConnection) {
	cr.mutex.Lock()
	_, replaced := cr.connections[sellerID]
	cr.connections[sellerID] = conn
	cr.mutex.Unlock()

	cr.log.Info("Connection registered", "seller_id", sellerID, "replaced", replaced)
}

func (cr *ConnectionRegistry) Unregister(sellerID string) {
	cr.mutex.Lock()
	_, exists := cr.connections[sellerID]
	delete(cr.connections, sellerID)
	cr.mutex.Unlock()

	if exists {
		cr.log.Info("Connection unregistered", "seller_id", sellerID)
	}
}

// UnregisterIfSame removes the entry only if it still holds conn. The
// identity check and the delete happen under one lock, so a lifecycle
// finishing late cannot evict the connection a reconnect installed in the
// meantime.
func (cr *ConnectionRegistry) UnregisterIfSame(sellerID string, conn domain.SellerConnection) {
	cr.mutex.Lock()
	current, exists := cr.connections[sellerID]
	if !exists || current != conn {
		cr.mutex.Unlock()
		return
	}
	delete(cr.connections, sellerID)
	cr.mutex.Unlock()

	cr.log.Info("Connection unregistered", "seller_id", sellerID)
}

// ConnectionsFor returns the open connections among the given sellers. Dead
// entries found along the way are dropped from the registry.
func (cr *ConnectionRegistry) ConnectionsFor(sellerIDs []string) []domain.SellerConnection {
	var open []domain.SellerConnection
	var dead []string

	cr.mutex.RLock()
	for _, sellerID := range sellerIDs {
		conn, exists := cr.connections[sellerID]
		if !exists {
			continue
		}
		if conn.IsOpen() {
			open = append(open, conn)
		} else {
			dead = append(dead, sellerID)
		}
	}
	cr.mutex.RUnlock()

	if len(dead) > 0 {
		cr.mutex.Lock()
		for _, sellerID := range dead {
			if conn, exists := cr.connections[sellerID]; exists && !conn.IsOpen() {
				delete(cr.connections, sellerID)
			}
		}
		cr.mutex.Unlock()

		cr.log.Info("Pruned dead connections during lookup", "count", len(dead))
	}

	return open
}

func (cr *ConnectionRegistry) IsConnected(sellerID string) bool {
	cr.mutex.RLock()
	defer cr.mutex.RUnlock()

	conn, exists := cr.connections[sellerID]
	return exists && conn.IsOpen()
}

// PruneClosed drops every closed connection and reports how many went. The
// sweep job calls this periodically.
func (cr *ConnectionRegistry) PruneClosed() int {
	cr.mutex.Lock()
	defer cr.mutex.Unlock()

	pruned := 0
	for sellerID, conn := range cr.connections {
		if !conn.IsOpen() {
			delete(cr.connections, sellerID)
			pruned++
		}
	}
	return pruned
}

// Size reports the number of registered connections, open or not.
func (cr *ConnectionRegistry) Size() int {
	cr.mutex.RLock()
	defer cr.mutex.RUnlock()
	return len(cr.connections)
}
