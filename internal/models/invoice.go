package models

import (
	"time"

	"github.com/google/uuid"
)

// Invoice statuses.
const (
	InvoiceStatusPending   = "pending"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusOverdue   = "overdue"
	InvoiceStatusCancelled = "cancelled"
)

// Invoice document states. An invoice record exists independently of its
// rendered document; rendering is best-effort and retryable.
const (
	DocumentStatusPending = "pending"
	DocumentStatusReady   = "ready"
	DocumentStatusFailed  = "failed"
)

// Invoice is the financial record derived from an order. At most one
// invoice exists per order; Amount is a snapshot of the order total at
// creation time and does not track later order mutations.
type Invoice struct {
	BaseModel
	OrderID        uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"order_id"`
	Order          *Order    `json:"order,omitempty"`
	InvoiceNumber  string    `gorm:"uniqueIndex" json:"invoice_number"`
	Amount         float64   `json:"amount"`
	Currency       string    `json:"currency"`
	Status         string    `gorm:"default:pending" json:"status"`
	DueDate        time.Time `json:"due_date"`
	Notes          string    `json:"notes"`
	DocumentURL    string    `json:"document_url"`
	DocumentStatus string    `gorm:"default:pending" json:"document_status"`
}
