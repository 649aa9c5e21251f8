package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
)

// SellerConn wraps one upgraded websocket for a seller. Writes are
// serialized; gorilla allows only one concurrent writer.
type SellerConn struct {
	conn            *websocket.Conn
	sellerID        string
	administratorID string

	writeMutex sync.Mutex
	stateMutex sync.RWMutex
	closed     bool
}

func NewSellerConn(conn *websocket.Conn, sellerID, administratorID string) *SellerConn {
	return &SellerConn{
		conn:            conn,
		sellerID:        sellerID,
		administratorID: administratorID,
	}
}

func (sc *SellerConn) Send(message []byte) error {
	sc.writeMutex.Lock()
	defer sc.writeMutex.Unlock()

	err := sc.conn.WriteMessage(websocket.TextMessage, message)
	if err != nil {
		sc.markClosed()
	}
	return err
}

func (sc *SellerConn) Close() error {
	sc.markClosed()
	return sc.conn.Close()
}

func (sc *SellerConn) IsOpen() bool {
	sc.stateMutex.RLock()
	defer sc.stateMutex.RUnlock()
	return !sc.closed
}

func (sc *SellerConn) SellerID() string {
	return sc.sellerID
}

func (sc *SellerConn) AdministratorID() string {
	return sc.administratorID
}

func (sc *SellerConn) markClosed() {
	sc.stateMutex.Lock()
	sc.closed = true
	sc.stateMutex.Unlock()
}
