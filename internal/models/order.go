package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Order statuses. Any status may follow any other, there is no ordering
// constraint between them.
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// OrderStatuses lists every valid order status.
var OrderStatuses = []string{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// IsValidOrderStatus reports whether s is one of the known order statuses.
func IsValidOrderStatus(s string) bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Payment statuses. Transitions between them are constrained, see
// services.NextPaymentStatus.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// Order represents a customer's purchase intent. The order owns its line
// items; once an invoice exists it is linked via InvoiceID.
type Order struct {
	BaseModel
	UserID              uuid.UUID      `gorm:"type:uuid;index" json:"user_id"`
	User                *User          `json:"user,omitempty"`
	Status              string         `gorm:"default:pending" json:"status"`
	PaymentStatus       string         `gorm:"default:pending" json:"payment_status"`
	PaymentMethod       string         `json:"payment_method"`
	TransactionRef      *string        `gorm:"uniqueIndex" json:"transaction_ref"`
	GatewayPaymentID    string         `json:"gateway_payment_id"`
	Subtotal            float64        `json:"subtotal"`
	Tax                 float64        `json:"tax"`
	DeliveryFee         float64        `json:"delivery_fee"`
	InstallationFee     float64        `json:"installation_fee"`
	TotalAmount         float64        `json:"total_amount"`
	Currency            string         `json:"currency"`
	DeliveryAddressID   *uuid.UUID     `gorm:"type:uuid" json:"delivery_address_id"`
	DeliveryAddressLine string         `json:"delivery_address_line"`
	DeliveryApartment   string         `json:"delivery_apartment"`
	DeliveryCity        string         `json:"delivery_city"`
	DeliveryDistrict    string         `json:"delivery_district"`
	Notes               string         `json:"notes"`
	InvoiceID           *uuid.UUID     `gorm:"type:uuid" json:"invoice_id"`
	PlacedAt            time.Time      `json:"placed_at"`
	DeliveredAt         *time.Time     `json:"delivered_at"`
	Items               []OrderLineItem `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

// OrderLineItem is one product line within an order. UnitPrice is a
// snapshot of the product price at order time and never changes afterwards.
type OrderLineItem struct {
	BaseModel
	OrderID              uuid.UUID `gorm:"type:uuid;index" json:"order_id"`
	ProductID            uuid.UUID `gorm:"type:uuid;index" json:"product_id"`
	ProductName          string    `json:"product_name"`
	Quantity             int       `json:"quantity"`
	UnitPrice            float64   `json:"unit_price"`
	TotalPrice           float64   `json:"total_price"`
	InstallationRequired bool      `json:"installation_required"`
	InstallationFee      float64   `json:"installation_fee"`
}
