package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/oakline/internal/apperr"
	"github.com/example/oakline/internal/config"
	"github.com/example/oakline/internal/models"
	"github.com/example/oakline/internal/utils"
)

// OrderService creates orders from cart snapshots and manages their
// fulfilment status.
type OrderService struct {
	db  *gorm.DB
	cfg *config.Config
}

// NewOrderService constructs OrderService.
func NewOrderService(db *gorm.DB, cfg *config.Config) *OrderService {
	return &OrderService{db: db, cfg: cfg}
}

// OrderItemInput names a product and quantity from the customer's cart.
type OrderItemInput struct {
	ProductID            uuid.UUID
	Quantity             int
	InstallationRequired bool
}

// CreateOrderInput carries everything needed to place an order.
type CreateOrderInput struct {
	Items               []OrderItemInput
	PaymentMethod       string
	DeliveryFee         *float64
	DeliveryAddressID   *uuid.UUID
	DeliveryAddressLine string
	DeliveryApartment   string
	DeliveryCity        string
	DeliveryDistrict    string
	Notes               string
}

// CreateOrder validates stock, computes totals from current product prices
// and persists the order header, its line items and the cart cleanup in
// one transaction. Stock is only checked here; the decrement happens when
// payment is confirmed.
func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*models.Order, error) {
	if len(input.Items) == 0 {
		return nil, apperr.Validation("cart is empty")
	}
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, apperr.Validation("item quantity must be positive")
		}
	}

	order := models.Order{
		UserID:        userID,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		PaymentMethod: input.PaymentMethod,
		Currency:      s.cfg.Currency,
		Notes:         input.Notes,
		PlacedAt:      time.Now(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if input.DeliveryAddressID != nil {
			var address models.UserAddress
			if err := tx.First(&address, "id = ? AND user_id = ?", *input.DeliveryAddressID, userID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound("delivery address not found")
				}
				return err
			}
			order.DeliveryAddressID = &address.ID
			order.DeliveryAddressLine = address.AddressLine
			order.DeliveryApartment = address.Apartment
			order.DeliveryCity = address.City
			order.DeliveryDistrict = address.District
		} else {
			order.DeliveryAddressLine = input.DeliveryAddressLine
			order.DeliveryApartment = input.DeliveryApartment
			order.DeliveryCity = input.DeliveryCity
			order.DeliveryDistrict = input.DeliveryDistrict
		}

		var subtotal, installationTotal float64
		productIDs := make([]uuid.UUID, 0, len(input.Items))

		for _, item := range input.Items {
			var product models.Product
			if err := tx.First(&product, "id = ?", item.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound(fmt.Sprintf("product %s not found", item.ProductID))
				}
				return err
			}

			if product.StockQuantity < item.Quantity {
				return apperr.Conflict(fmt.Sprintf(
					"insufficient stock for %q: %d available, %d requested",
					product.Name, product.StockQuantity, item.Quantity))
			}

			line := models.OrderLineItem{
				ProductID:            product.ID,
				ProductName:          product.Name,
				Quantity:             item.Quantity,
				UnitPrice:            product.Price,
				TotalPrice:           utils.Round2(product.Price * float64(item.Quantity)),
				InstallationRequired: item.InstallationRequired && product.InstallationAvailable,
			}
			if line.InstallationRequired {
				line.InstallationFee = product.InstallationFee
				installationTotal += product.InstallationFee
			}

			subtotal += line.TotalPrice
			order.Items = append(order.Items, line)
			productIDs = append(productIDs, product.ID)
		}

		order.Subtotal = utils.Round2(subtotal)
		order.Tax = utils.Round2(subtotal * s.cfg.TaxRate)
		order.DeliveryFee = s.cfg.DefaultDeliveryFee
		if input.DeliveryFee != nil {
			order.DeliveryFee = *input.DeliveryFee
		}
		order.InstallationFee = utils.Round2(installationTotal)
		order.TotalAmount = utils.Round2(order.Subtotal + order.Tax + order.DeliveryFee + order.InstallationFee)

		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		// The ordered products leave the stored cart together with the order.
		if err := tx.Where("user_id = ? AND product_id IN ?", userID, productIDs).
			Delete(&models.CartItem{}).Error; err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &order, nil
}

// UpdateOrderStatus sets a new fulfilment status. Any known status may
// follow any other; only unknown values are rejected.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status string) (*models.Order, error) {
	if !models.IsValidOrderStatus(status) {
		return nil, apperr.Validation(fmt.Sprintf("invalid order status %q", status))
	}

	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order not found")
		}
		return nil, err
	}

	updates := map[string]any{"status": status}
	if status == models.OrderStatusDelivered && order.DeliveredAt == nil {
		now := time.Now()
		updates["delivered_at"] = &now
		order.DeliveredAt = &now
	}

	if err := s.db.WithContext(ctx).Model(&order).Updates(updates).Error; err != nil {
		return nil, err
	}

	order.Status = status
	return &order, nil
}

// TimelineStep is one milestone in an order's shipment timeline.
type TimelineStep struct {
	Label     string     `json:"label"`
	Completed bool       `json:"completed"`
	Estimated bool       `json:"estimated"`
	Time      *time.Time `json:"time,omitempty"`
}

// OrderTimeline is a read-only shipment projection derived from the order
// status. Nothing here is persisted.
type OrderTimeline struct {
	OrderID   uuid.UUID      `json:"order_id"`
	Status    string         `json:"status"`
	Cancelled bool           `json:"cancelled"`
	Steps     []TimelineStep `json:"steps"`
}

// Heuristic offsets from order placement used for not-yet-reached
// milestones.
const (
	processingOffset = 24 * time.Hour
	shippedOffset    = 3 * 24 * time.Hour
	deliveredOffset  = 7 * 24 * time.Hour
)

var statusRank = map[string]int{
	models.OrderStatusPending:    0,
	models.OrderStatusConfirmed:  1,
	models.OrderStatusProcessing: 2,
	models.OrderStatusShipped:    3,
	models.OrderStatusDelivered:  4,
}

// TrackOrder derives the shipment timeline for an order.
func (s *OrderService) TrackOrder(ctx context.Context, orderID uuid.UUID) (*OrderTimeline, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order not found")
		}
		return nil, err
	}

	timeline := &OrderTimeline{
		OrderID:   order.ID,
		Status:    order.Status,
		Cancelled: order.Status == models.OrderStatusCancelled,
	}

	rank := statusRank[order.Status]
	placed := order.CreatedAt

	step := func(label string, reachedAt time.Time, reached bool) TimelineStep {
		t := reachedAt
		return TimelineStep{Label: label, Completed: reached, Estimated: !reached, Time: &t}
	}

	timeline.Steps = append(timeline.Steps,
		step("placed", placed, true),
		step("processing", placed.Add(processingOffset), !timeline.Cancelled && rank >= statusRank[models.OrderStatusProcessing]),
		step("shipped", placed.Add(shippedOffset), !timeline.Cancelled && rank >= statusRank[models.OrderStatusShipped]),
	)

	delivered := step("delivered", placed.Add(deliveredOffset), false)
	if order.Status == models.OrderStatusDelivered {
		delivered.Completed = true
		delivered.Estimated = false
		if order.DeliveredAt != nil {
			delivered.Time = order.DeliveredAt
		}
	}
	timeline.Steps = append(timeline.Steps, delivered)

	return timeline, nil
}
