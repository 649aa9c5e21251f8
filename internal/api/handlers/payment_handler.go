package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"paynotify-system/internal/api/middleware"
	"paynotify-system/internal/domain"
	"paynotify-system/internal/services"
	"paynotify-system/pkg/logger"
)

type PaymentHandler struct {
	ingestion   *services.IngestionService
	coordinator *services.ClaimCoordinator
	log         logger.Logger
}

type ProcessNotificationRequest struct {
	AdministratorID   string `json:"administrator_id"`
	RawPayload        string `json:"raw_payload"`
	DeviceKeyMaterial string `json:"device_key_material"`
	DeviceKeyID       string `json:"device_key_id"`
	ObservedAt        int64  `json:"observed_at"`
	DedupHash         string `json:"dedup_hash"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

func NewPaymentHandler(ingestion *services.IngestionService, coordinator *services.ClaimCoordinator,
	log logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		ingestion:   ingestion,
		coordinator: coordinator,
		log:         log,
	}
}

func (h *PaymentHandler) ProcessNotification(c echo.Context) error {
	var req ProcessNotificationRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if req.AdministratorID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "administrator_id required"})
	}
	if req.DedupHash == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "dedup_hash required"})
	}

	identity := middleware.IdentityFrom(c)
	if identity == nil || identity.SubjectID != req.AdministratorID {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "token subject mismatch"})
	}

	payment, err := h.ingestion.Process(c.Request().Context(), &services.InboundNotification{
		AdministratorID:   req.AdministratorID,
		RawPayload:        []byte(req.RawPayload),
		DeviceKeyMaterial: req.DeviceKeyMaterial,
		DeviceKeyID:       req.DeviceKeyID,
		ObservedAt:        req.ObservedAt,
		DedupHash:         req.DedupHash,
	})
	if err != nil {
		return h.mapError(c, err)
	}

	return c.JSON(http.StatusCreated, payment)
}

func (h *PaymentHandler) ClaimPayment(c echo.Context) error {
	paymentID := c.Param("id")
	identity := middleware.IdentityFrom(c)
	if identity == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authentication required"})
	}

	payment, err := h.coordinator.Claim(c.Request().Context(), paymentID, identity.SubjectID)
	if err != nil {
		return h.mapError(c, err)
	}

	return c.JSON(http.StatusOK, payment)
}

func (h *PaymentHandler) RejectPayment(c echo.Context) error {
	paymentID := c.Param("id")
	identity := middleware.IdentityFrom(c)
	if identity == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authentication required"})
	}

	var req RejectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	payment, err := h.coordinator.Reject(c.Request().Context(), paymentID, identity.SubjectID, req.Reason)
	if err != nil {
		return h.mapError(c, err)
	}

	return c.JSON(http.StatusOK, payment)
}

// mapError keeps the taxonomy visible to callers: a race loss is a routine
// 409, not a failure, and decode errors carry their kind and missing field.
func (h *PaymentHandler) mapError(c echo.Context, err error) error {
	var decodeErr *domain.DecodeError
	if errors.As(err, &decodeErr) {
		body := map[string]string{"error": string(decodeErr.Kind)}
		if decodeErr.Field != "" {
			body["field"] = decodeErr.Field
		}
		return c.JSON(http.StatusUnprocessableEntity, body)
	}

	var conflictErr *domain.ConflictError
	if errors.As(err, &conflictErr) {
		return c.JSON(http.StatusConflict, map[string]string{
			"error":      "ALREADY_RESOLVED",
			"payment_id": conflictErr.PaymentID,
		})
	}

	var notFoundErr *domain.NotFoundError
	if errors.As(err, &notFoundErr) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": string(notFoundErr.Kind),
			"id":    notFoundErr.ID,
		})
	}

	h.log.Error("Request failed", "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
