package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/oakline/internal/middleware"
	"github.com/example/oakline/internal/models"
	"github.com/example/oakline/internal/services"
)

// PaymentHandler manages payment endpoints.
type PaymentHandler struct {
	db       *gorm.DB
	payments *services.PaymentService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(db *gorm.DB, payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{db: db, payments: payments}
}

// InitializePayment opens a checkout session for one of the user's orders
// and returns the gateway redirect URL.
func (h *PaymentHandler) InitializePayment(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	checkoutURL, err := h.payments.InitializePayment(c.Context(), orderID, userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"checkout_url": checkoutURL,
		},
	})
}

// VerifyPayment asks the gateway about a transaction reference and
// reconciles the local order.
func (h *PaymentHandler) VerifyPayment(c *fiber.Ctx) error {
	txRef := strings.TrimSpace(c.Query("tx_ref"))
	if txRef == "" {
		return fiber.NewError(fiber.StatusBadRequest, "tx_ref is required")
	}

	outcome, err := h.payments.VerifyPayment(c.Context(), txRef)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": outcome})
}

type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		OrderID   string `json:"order_id"`
		TxRef     string `json:"tx_ref"`
		Status    string `json:"status"`
		PaymentID string `json:"id"`
	} `json:"data"`
}

// HandleCallback processes the gateway webhook. The signature middleware
// in front of this route is the trust boundary.
func (h *PaymentHandler) HandleCallback(c *fiber.Ctx) error {
	var payload webhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if payload.Data.TxRef == "" {
		return fiber.NewError(fiber.StatusBadRequest, "tx_ref is required")
	}

	orderRef := payload.Data.OrderID
	if orderRef == "" {
		orderRef = services.OrderIDFromTransactionRef(payload.Data.TxRef)
	}

	orderID, err := uuid.Parse(orderRef)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "cannot determine order id")
	}

	outcome, err := h.payments.HandleCallback(c.Context(),
		orderID, payload.Data.TxRef, payload.Data.Status, payload.Data.PaymentID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"status": outcome.Status}})
}

// GetPaymentStatus returns the payment state of one of the user's orders.
func (h *PaymentHandler) GetPaymentStatus(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	query := h.db.Model(&models.Order{})
	if middleware.GetCurrentUserRole(c) != models.RoleAdmin {
		query = query.Where("user_id = ?", userID)
	}

	var order models.Order
	if err := query.First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"order_id":        order.ID,
			"payment_status":  order.PaymentStatus,
			"payment_method":  order.PaymentMethod,
			"transaction_ref": order.TransactionRef,
		},
	})
}

// RefundPayment marks a paid order refunded. Admin only.
func (h *PaymentHandler) RefundPayment(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	order, err := h.payments.RefundPayment(c.Context(), orderID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}
