package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/oakline/internal/middleware"
	"github.com/example/oakline/internal/models"
	"github.com/example/oakline/internal/services"
	"github.com/example/oakline/internal/utils"
)

// InvoiceHandler manages invoice endpoints.
type InvoiceHandler struct {
	db       *gorm.DB
	invoices *services.InvoiceService
}

// NewInvoiceHandler constructs InvoiceHandler.
func NewInvoiceHandler(db *gorm.DB, invoices *services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{db: db, invoices: invoices}
}

// GenerateInvoice creates (or returns the existing) invoice for an order.
// Admin only.
func (h *InvoiceHandler) GenerateInvoice(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	invoice, err := h.invoices.GenerateInvoice(c.Context(), orderID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": invoice})
}

// GetInvoiceByOrder returns the invoice for one of the user's orders.
func (h *InvoiceHandler) GetInvoiceByOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	if middleware.GetCurrentUserRole(c) != models.RoleAdmin {
		var count int64
		if err := h.db.Model(&models.Order{}).
			Where("id = ? AND user_id = ?", orderID, userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
	}

	invoice, err := h.invoices.GetByOrder(c.Context(), orderID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": invoice})
}

// RenderInvoiceDocument re-renders the invoice document. Admin only.
func (h *InvoiceHandler) RenderInvoiceDocument(c *fiber.Ctx) error {
	invoiceID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	invoice, err := h.invoices.RenderDocument(c.Context(), invoiceID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": invoice})
}

// ListInvoices returns paginated invoices. Admin only.
func (h *InvoiceHandler) ListInvoices(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Invoice{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var invoices []models.Invoice
	if err := query.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&invoices).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    invoices,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetInvoice returns a single invoice by its id. Admin only.
func (h *InvoiceHandler) GetInvoice(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var invoice models.Invoice
	if err := h.db.Preload("Order").First(&invoice, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "invoice not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": invoice})
}
