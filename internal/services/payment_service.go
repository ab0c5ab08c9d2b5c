package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/oakline/internal/apperr"
	"github.com/example/oakline/internal/config"
	"github.com/example/oakline/internal/models"
)

// PaymentService coordinates the external gateway with local order state.
// The success side effects (stock decrement, invoice creation) run exactly
// once per order no matter how many times verify or the webhook callback
// report the same outcome.
type PaymentService struct {
	db       *gorm.DB
	cfg      *config.Config
	gateway  PaymentGateway
	invoices *InvoiceService
	telegram *TelegramService
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(db *gorm.DB, cfg *config.Config, gateway PaymentGateway, invoices *InvoiceService, telegram *TelegramService) *PaymentService {
	return &PaymentService{db: db, cfg: cfg, gateway: gateway, invoices: invoices, telegram: telegram}
}

// VerifyOutcome reports the result of a verification or callback.
type VerifyOutcome struct {
	Status        string        `json:"status"`
	GatewayStatus string        `json:"gateway_status"`
	OrderFound    bool          `json:"order_found"`
	Order         *models.Order `json:"order,omitempty"`
}

// InitializePayment opens a gateway checkout session for the order and
// returns the URL the customer should be redirected to. A fresh
// transaction reference replaces any prior unresolved one.
func (s *PaymentService) InitializePayment(ctx context.Context, orderID, userID uuid.UUID) (string, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ? AND user_id = ?", orderID, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperr.NotFound("order not found")
		}
		return "", err
	}

	if order.PaymentStatus == models.PaymentStatusPaid {
		return "", apperr.Conflict("order is already paid")
	}

	updates := map[string]any{}
	if order.PaymentStatus == models.PaymentStatusFailed {
		next, err := NextPaymentStatus(order.PaymentStatus, PaymentEventRetry)
		if err != nil {
			return "", err
		}
		updates["payment_status"] = next
		order.PaymentStatus = next
	}

	txRef, err := GenerateTransactionRef(order.ID)
	if err != nil {
		return "", apperr.Internal("failed to generate transaction reference")
	}
	updates["transaction_ref"] = txRef
	updates["payment_method"] = "card"

	if err := s.db.WithContext(ctx).Model(&order).Updates(updates).Error; err != nil {
		return "", err
	}
	order.TransactionRef = &txRef

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return "", err
	}

	result, err := s.gateway.InitializePayment(ctx, GatewayInitRequest{
		TxRef:         txRef,
		Amount:        order.TotalAmount,
		Currency:      order.Currency,
		CustomerName:  user.FirstName + " " + user.LastName,
		CustomerEmail: user.Email,
		RedirectURL:   s.cfg.PaymentReturnURL,
	})
	if err != nil {
		// The order stays pending and the reference stays usable for a
		// retried initialize. The raw gateway payload travels in the
		// operator detail only.
		return "", apperr.External("payment gateway initialize failed").WithDetail(err.Error())
	}

	return result.CheckoutURL, nil
}

// VerifyPayment asks the gateway about a transaction reference and
// reconciles local order state with the answer. Safe to call repeatedly
// for the same reference.
func (s *PaymentService) VerifyPayment(ctx context.Context, txRef string) (*VerifyOutcome, error) {
	result, err := s.gateway.VerifyPayment(ctx, txRef)
	if err != nil {
		return nil, apperr.External("payment gateway verify failed").WithDetail(err.Error())
	}

	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "transaction_ref = ?", txRef).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Gateway verification succeeded but local tracking was lost;
			// report distinctly instead of failing the whole call.
			return &VerifyOutcome{
				Status:        mapGatewayStatus(result.Status),
				GatewayStatus: result.Status,
				OrderFound:    false,
			}, nil
		}
		return nil, err
	}

	return s.reconcile(ctx, &order, result.Status, result.PaymentID)
}

// HandleCallback processes the gateway webhook for an order. Trust comes
// from the signature middleware in front of the route; here the stored
// transaction reference must still match the one reported.
func (s *PaymentService) HandleCallback(ctx context.Context, orderID uuid.UUID, txRef, gatewayStatus, gatewayPaymentID string) (*VerifyOutcome, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order not found")
		}
		return nil, err
	}

	if order.TransactionRef == nil || *order.TransactionRef != txRef {
		return nil, apperr.Conflict("transaction reference mismatch")
	}

	return s.reconcile(ctx, &order, gatewayStatus, gatewayPaymentID)
}

// RefundPayment marks a paid order refunded. Exposed to admins only.
func (s *PaymentService) RefundPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order not found")
		}
		return nil, err
	}

	next, err := NextPaymentStatus(order.PaymentStatus, PaymentEventRefund)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&order).
		Where("payment_status = ?", models.PaymentStatusPaid).
		Update("payment_status", next).Error; err != nil {
		return nil, err
	}

	order.PaymentStatus = next
	return &order, nil
}

// reconcile maps a gateway status onto local state. Both confirmation
// paths (verify and callback) end up here.
func (s *PaymentService) reconcile(ctx context.Context, order *models.Order, gatewayStatus, gatewayPaymentID string) (*VerifyOutcome, error) {
	outcome := &VerifyOutcome{
		GatewayStatus: gatewayStatus,
		OrderFound:    true,
	}

	switch mapGatewayStatus(gatewayStatus) {
	case models.PaymentStatusPaid:
		if err := s.applySuccess(ctx, order, gatewayPaymentID); err != nil {
			return nil, err
		}
		outcome.Status = models.PaymentStatusPaid
	case models.PaymentStatusPending:
		outcome.Status = models.PaymentStatusPending
	default:
		if err := s.markFailed(ctx, order); err != nil {
			return nil, err
		}
		outcome.Status = models.PaymentStatusFailed
	}

	outcome.Order = order
	return outcome, nil
}

// applySuccess flips the order to paid and runs the success side effects.
// The conditional update is the idempotency guard: only the caller that
// actually performs the pending->paid flip decrements stock and creates
// the invoice, all inside the same transaction. A concurrent verify or
// callback that lost the race finds zero affected rows and skips.
func (s *PaymentService) applySuccess(ctx context.Context, order *models.Order, gatewayPaymentID string) error {
	next, err := NextPaymentStatus(models.PaymentStatusPending, PaymentEventGatewaySuccess)
	if err != nil {
		return err
	}

	var invoice *models.Invoice
	var won bool

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND payment_status = ?", order.ID, models.PaymentStatusPending).
			Updates(map[string]any{
				"payment_status":     next,
				"status":             models.OrderStatusConfirmed,
				"gateway_payment_id": gatewayPaymentID,
			})
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			// Someone else already applied this success (or the payment is
			// in a state that cannot become paid). Reload to report the
			// truth, apply nothing.
			return tx.First(order, "id = ?", order.ID).Error
		}
		won = true

		var items []models.OrderLineItem
		if err := tx.Find(&items, "order_id = ?", order.ID).Error; err != nil {
			return err
		}

		for _, item := range items {
			if err := decrementStock(tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		if err := tx.First(order, "id = ?", order.ID).Error; err != nil {
			return err
		}

		inv, _, err := s.invoices.CreateRecordTx(tx, order)
		if err != nil {
			return err
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return err
	}

	if !won {
		return nil
	}

	if invoice != nil && invoice.DocumentStatus != models.DocumentStatusReady {
		s.invoices.renderBestEffort(ctx, invoice)
	}

	if s.telegram != nil {
		go func(o models.Order) {
			if err := s.telegram.NotifyPaymentSuccess(PaymentSuccessNotification{
				OrderID:  o.ID.String(),
				Amount:   o.TotalAmount,
				Currency: o.Currency,
			}); err != nil {
				log.Printf("[Payment] Telegram payment success notification failed: %v", err)
			}
		}(*order)
	}

	return nil
}

// markFailed records a gateway failure. Already-paid and already-failed
// orders are left untouched.
func (s *PaymentService) markFailed(ctx context.Context, order *models.Order) error {
	if order.PaymentStatus != models.PaymentStatusPending {
		return nil
	}

	next, err := NextPaymentStatus(order.PaymentStatus, PaymentEventGatewayFailure)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", order.ID, models.PaymentStatusPending).
		Update("payment_status", next)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		order.PaymentStatus = next
	}
	return nil
}

// decrementStock applies a row-level conditional decrement so two
// concurrent payments can never drive stock negative. A shortfall clamps
// to zero; hitting zero flips the in-stock flag.
func decrementStock(tx *gorm.DB, productID uuid.UUID, quantity int) error {
	res := tx.Model(&models.Product{}).
		Where("id = ? AND stock_quantity >= ?", productID, quantity).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		if err := tx.Model(&models.Product{}).
			Where("id = ?", productID).
			Update("stock_quantity", 0).Error; err != nil {
			return err
		}
	}

	return tx.Model(&models.Product{}).
		Where("id = ? AND stock_quantity <= 0", productID).
		Update("in_stock", false).Error
}

// mapGatewayStatus translates a gateway transaction status to the local
// payment status it implies.
func mapGatewayStatus(gatewayStatus string) string {
	switch gatewayStatus {
	case GatewayStatusSuccessful:
		return models.PaymentStatusPaid
	case GatewayStatusPending:
		return models.PaymentStatusPending
	default:
		return models.PaymentStatusFailed
	}
}

// GenerateTransactionRef builds a fresh gateway correlation reference for
// an order.
func GenerateTransactionRef(orderID uuid.UUID) (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("ORDER-%s-%s", orderID, hex.EncodeToString(buf)), nil
}

// OrderIDFromTransactionRef extracts the order id embedded in a reference
// of the form ORDER-{orderID}-{suffix}. Returns "" when the reference does
// not carry one.
func OrderIDFromTransactionRef(txRef string) string {
	trimmed, ok := strings.CutPrefix(txRef, "ORDER-")
	if !ok {
		return ""
	}
	idx := strings.LastIndex(trimmed, "-")
	if idx <= 0 {
		return ""
	}
	return trimmed[:idx]
}
