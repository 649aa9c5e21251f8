package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"paynotify-system/internal/domain"
	"paynotify-system/internal/services"
	"paynotify-system/pkg/logger"
	"paynotify-system/pkg/metrics"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

type WebSocketHandler struct {
	coordinator *services.ClaimCoordinator
	verifier    domain.TokenVerifier
	registry    domain.ConnectionRegistry
	log         logger.Logger
}

func NewWebSocketHandler(coordinator *services.ClaimCoordinator, verifier domain.TokenVerifier,
	registry domain.ConnectionRegistry, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		coordinator: coordinator,
		verifier:    verifier,
		registry:    registry,
		log:         log,
	}
}

// HandleConnection runs the connect handshake. A connection that fails
// identity checks is closed without ever being registered.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sellerID := vars["sellerID"]

	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token required", http.StatusUnauthorized)
		return
	}

	identity, err := h.verifier.Verify(token)
	if err != nil {
		h.log.Warn("Rejected connection - invalid token", "seller_id", sellerID, "error", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	if identity.SubjectID != sellerID {
		h.log.Warn("Rejected connection - token subject mismatch",
			"seller_id", sellerID, "subject", identity.SubjectID)
		http.Error(w, "token subject mismatch", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	sellerConn := NewSellerConn(conn, sellerID, identity.AdministratorID)
	h.registry.Register(sellerID, sellerConn)
	metrics.SellerConnections.Inc()

	go h.handleMessages(sellerConn)
}

func (h *WebSocketHandler) handleMessages(conn *SellerConn) {
	defer func() {
		// A reconnect may already have replaced this entry; the registry
		// only drops it if it is still ours.
		h.registry.UnregisterIfSame(conn.SellerID(), conn)
		conn.Close()
		metrics.SellerConnections.Dec()
	}()

	for {
		_, data, err := conn.conn.ReadMessage()
		if err != nil {
			h.log.Info("Connection closed", "seller_id", conn.SellerID(), "error", err)
			return
		}

		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(conn, "invalid message")
			continue
		}

		switch msg.Type {
		case "claim":
			h.handleClaim(conn, msg)
		case "reject":
			h.handleReject(conn, msg)
		case "ping":
			h.send(conn, map[string]string{"type": "pong"})
		default:
			h.sendError(conn, "unknown message type")
		}
	}
}

type controlMessage struct {
	Type      string `json:"type"`
	PaymentID string `json:"payment_id"`
	Reason    string `json:"reason"`
}

func (h *WebSocketHandler) handleClaim(conn *SellerConn, msg controlMessage) {
	if msg.PaymentID == "" {
		h.sendError(conn, "payment_id required")
		return
	}

	payment, err := h.coordinator.Claim(context.Background(), msg.PaymentID, conn.SellerID())
	h.respondResolution(conn, payment, err)
}

func (h *WebSocketHandler) handleReject(conn *SellerConn, msg controlMessage) {
	if msg.PaymentID == "" {
		h.sendError(conn, "payment_id required")
		return
	}

	payment, err := h.coordinator.Reject(context.Background(), msg.PaymentID, conn.SellerID(), msg.Reason)
	h.respondResolution(conn, payment, err)
}

func (h *WebSocketHandler) respondResolution(conn *SellerConn, payment *domain.PaymentNotification, err error) {
	switch {
	case err == nil:
		h.send(conn, map[string]interface{}{
			"type":    "resolution_result",
			"payment": payment,
		})
	case domain.IsConflict(err):
		h.send(conn, map[string]string{
			"type":   "resolution_result",
			"error":  "already_resolved",
			"detail": err.Error(),
		})
	case domain.IsNotFound(err):
		h.sendError(conn, err.Error())
	default:
		h.log.Error("Failed to resolve payment", "seller_id", conn.SellerID(), "error", err)
		h.sendError(conn, "internal error")
	}
}

func (h *WebSocketHandler) send(conn *SellerConn, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("Failed to marshal message", "error", err)
		return
	}
	if err := conn.Send(data); err != nil {
		h.log.Error("Failed to send message", "seller_id", conn.SellerID(), "error", err)
	}
}

func (h *WebSocketHandler) sendError(conn *SellerConn, message string) {
	h.send(conn, map[string]string{"type": "error", "message": message})
}
