package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/oakline/internal/middleware"
	"github.com/example/oakline/internal/models"
	"github.com/example/oakline/internal/services"
	"github.com/example/oakline/internal/utils"
)

// OrderHandler manages order endpoints.
type OrderHandler struct {
	db       *gorm.DB
	orders   *services.OrderService
	telegram *services.TelegramService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(db *gorm.DB, orders *services.OrderService, telegram *services.TelegramService) *OrderHandler {
	return &OrderHandler{db: db, orders: orders, telegram: telegram}
}

type orderItemRequest struct {
	ProductID            string `json:"product_id"`
	Quantity             int    `json:"quantity"`
	InstallationRequired bool   `json:"installation_required"`
}

type createOrderRequest struct {
	Items               []orderItemRequest `json:"items"`
	PaymentMethod       string             `json:"payment_method"`
	DeliveryFee         *float64           `json:"delivery_fee"`
	DeliveryAddressID   string             `json:"delivery_address_id"`
	DeliveryAddressLine string             `json:"delivery_address_line"`
	DeliveryApartment   string             `json:"delivery_apartment"`
	DeliveryCity        string             `json:"delivery_city"`
	DeliveryDistrict    string             `json:"delivery_district"`
	Notes               string             `json:"notes"`
}

// CreateOrder allows authenticated users to place an order from their cart.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	input := services.CreateOrderInput{
		PaymentMethod:       req.PaymentMethod,
		DeliveryFee:         req.DeliveryFee,
		DeliveryAddressLine: req.DeliveryAddressLine,
		DeliveryApartment:   req.DeliveryApartment,
		DeliveryCity:        req.DeliveryCity,
		DeliveryDistrict:    req.DeliveryDistrict,
		Notes:               req.Notes,
	}

	if req.DeliveryAddressID != "" {
		id, err := uuid.Parse(req.DeliveryAddressID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid delivery_address_id")
		}
		input.DeliveryAddressID = &id
	}

	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid product_id")
		}
		input.Items = append(input.Items, services.OrderItemInput{
			ProductID:            productID,
			Quantity:             item.Quantity,
			InstallationRequired: item.InstallationRequired,
		})
	}

	order, err := h.orders.CreateOrder(c.Context(), userID, input)
	if err != nil {
		return err
	}

	if h.telegram != nil {
		go h.notifyNewOrder(*order, userID)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    order,
	})
}

func (h *OrderHandler) notifyNewOrder(order models.Order, userID uuid.UUID) {
	notification := services.OrderNotification{
		OrderID:       order.ID.String(),
		TotalAmount:   order.TotalAmount,
		Currency:      order.Currency,
		PaymentMethod: order.PaymentMethod,
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err == nil {
		notification.CustomerName = user.FirstName + " " + user.LastName
		notification.CustomerEmail = user.Email
	}

	for _, item := range order.Items {
		notification.Items = append(notification.Items, services.OrderItemNotification{
			Name:     item.ProductName,
			Quantity: item.Quantity,
			Price:    item.UnitPrice,
			Currency: order.Currency,
		})
	}

	if err := h.telegram.NotifyNewOrder(notification); err != nil {
		log.Printf("[Order] Telegram notification failed for order %s: %v", order.ID, err)
	}
}

// ListOrders returns orders for the authenticated user.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Order{}).Where("user_id = ?", userID)

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order("placed_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetOrder returns a single order. Customers only see their own orders;
// admins see any.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	query := h.db.Preload("Items")
	if middleware.GetCurrentUserRole(c) != models.RoleAdmin {
		query = query.Where("user_id = ?", userID)
	}

	var order models.Order
	if err := query.First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// TrackOrder returns the shipment timeline for one of the user's orders.
func (h *OrderHandler) TrackOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	if middleware.GetCurrentUserRole(c) != models.RoleAdmin {
		var count int64
		if err := h.db.Model(&models.Order{}).
			Where("id = ? AND user_id = ?", id, userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
	}

	timeline, err := h.orders.TrackOrder(c.Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": timeline})
}

// ListAllOrders returns every order. Admin only.
func (h *OrderHandler) ListAllOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if paymentStatus := c.Query("payment_status"); paymentStatus != "" {
		query = query.Where("payment_status = ?", paymentStatus)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").Preload("User").
		Order("placed_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus changes an order's fulfilment status. Admin only.
func (h *OrderHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req updateOrderStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.orders.UpdateOrderStatus(c.Context(), id, req.Status)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}
