package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/oakline/internal/apperr"
	"github.com/example/oakline/internal/models"
)

// invoiceDuePeriod is how long after creation an invoice falls due.
const invoiceDuePeriod = 14 * 24 * time.Hour

// InvoiceService synthesizes invoice records from orders and renders their
// documents.
type InvoiceService struct {
	db       *gorm.DB
	renderer InvoiceRenderer
}

// NewInvoiceService constructs InvoiceService. renderer may be nil, in
// which case documents are never produced and invoices stay in the pending
// document state.
func NewInvoiceService(db *gorm.DB, renderer InvoiceRenderer) *InvoiceService {
	return &InvoiceService{db: db, renderer: renderer}
}

// GenerateInvoice creates the invoice for an order, or returns the
// existing one unchanged. The record is created transactionally; document
// rendering happens after commit and is best-effort.
func (s *InvoiceService) GenerateInvoice(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error) {
	var invoice *models.Invoice
	var created bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("order not found")
			}
			return err
		}

		var err error
		invoice, created, err = s.CreateRecordTx(tx, &order)
		return err
	})
	if err != nil {
		return nil, err
	}

	// An existing invoice comes back unchanged; only a fresh record gets
	// its document rendered here. Re-rendering goes through RenderDocument.
	if created {
		s.renderBestEffort(ctx, invoice)
	}

	return invoice, nil
}

// CreateRecordTx creates the invoice record for order inside an existing
// transaction, linking order.invoice_id. If an invoice already exists it
// is returned unchanged with created=false. The unique constraint on
// invoices.order_id is the final arbiter under concurrent creation.
func (s *InvoiceService) CreateRecordTx(tx *gorm.DB, order *models.Order) (*models.Invoice, bool, error) {
	var existing models.Invoice
	err := tx.First(&existing, "order_id = ?", order.ID).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	status := models.InvoiceStatusPending
	if order.PaymentStatus == models.PaymentStatusPaid {
		status = models.InvoiceStatusPaid
	}

	invoice := models.Invoice{
		OrderID:        order.ID,
		InvoiceNumber:  generateInvoiceNumber(),
		Amount:         order.TotalAmount,
		Currency:       order.Currency,
		Status:         status,
		DueDate:        time.Now().Add(invoiceDuePeriod),
		DocumentStatus: models.DocumentStatusPending,
	}

	if err := tx.Create(&invoice).Error; err != nil {
		// A racing creation may have landed first; the order_id constraint
		// rejected ours, so hand back the winner.
		if reloadErr := tx.First(&existing, "order_id = ?", order.ID).Error; reloadErr == nil {
			return &existing, false, nil
		}
		return nil, false, err
	}

	if err := tx.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("invoice_id", invoice.ID).Error; err != nil {
		return nil, false, err
	}

	return &invoice, true, nil
}

// RenderDocument renders (or re-renders) the invoice document and stores
// its location. Callable any number of times; failures leave the record in
// the failed document state and can be retried.
func (s *InvoiceService) RenderDocument(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := s.db.WithContext(ctx).First(&invoice, "id = ?", invoiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("invoice not found")
		}
		return nil, err
	}

	if err := s.render(ctx, &invoice); err != nil {
		return nil, err
	}

	return &invoice, nil
}

// GetByOrder returns the invoice belonging to an order.
func (s *InvoiceService) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := s.db.WithContext(ctx).First(&invoice, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("invoice not found")
		}
		return nil, err
	}
	return &invoice, nil
}

func (s *InvoiceService) render(ctx context.Context, invoice *models.Invoice) error {
	if s.renderer == nil {
		return apperr.External("invoice renderer not configured")
	}

	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", invoice.OrderID).Error; err != nil {
		return err
	}

	location, err := s.renderer.Render(invoice, &order)
	if err != nil {
		_ = s.db.WithContext(ctx).Model(invoice).
			Update("document_status", models.DocumentStatusFailed).Error
		invoice.DocumentStatus = models.DocumentStatusFailed
		return apperr.External("invoice document rendering failed").WithDetail(err.Error())
	}

	if err := s.db.WithContext(ctx).Model(invoice).Updates(map[string]any{
		"document_url":    location,
		"document_status": models.DocumentStatusReady,
	}).Error; err != nil {
		return err
	}

	invoice.DocumentURL = location
	invoice.DocumentStatus = models.DocumentStatusReady
	return nil
}

func (s *InvoiceService) renderBestEffort(ctx context.Context, invoice *models.Invoice) {
	if err := s.render(ctx, invoice); err != nil {
		log.Printf("[Invoice] document rendering failed for %s: %v", invoice.InvoiceNumber, err)
	}
}

// generateInvoiceNumber produces a date-stamped, human-readable number.
// The uniqueness constraint on invoices.invoice_number backstops the
// negligible collision probability of the random suffix.
func generateInvoiceNumber() string {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		n = big.NewInt(time.Now().UnixNano() % 10000)
	}
	return fmt.Sprintf("INV-%s-%04d", time.Now().Format("20060102"), n.Int64())
}
