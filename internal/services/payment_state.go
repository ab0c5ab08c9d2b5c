package services

import (
	"fmt"

	"github.com/example/oakline/internal/apperr"
	"github.com/example/oakline/internal/models"
)

// PaymentEvent is something that happens to a payment attempt.
type PaymentEvent string

const (
	PaymentEventGatewaySuccess PaymentEvent = "gateway_success"
	PaymentEventGatewayFailure PaymentEvent = "gateway_failure"
	PaymentEventRetry          PaymentEvent = "retry"
	PaymentEventRefund         PaymentEvent = "refund"
)

// paymentTransitions is the single source of truth for payment status
// changes. Initialize, verify and the webhook callback all consult it so
// the two confirmation paths cannot diverge.
var paymentTransitions = map[string]map[PaymentEvent]string{
	models.PaymentStatusPending: {
		PaymentEventGatewaySuccess: models.PaymentStatusPaid,
		PaymentEventGatewayFailure: models.PaymentStatusFailed,
	},
	models.PaymentStatusFailed: {
		PaymentEventRetry: models.PaymentStatusPending,
	},
	models.PaymentStatusPaid: {
		PaymentEventRefund: models.PaymentStatusRefunded,
	},
}

// NextPaymentStatus returns the status that results from applying event to
// current, or a conflict error when the transition is not permitted.
func NextPaymentStatus(current string, event PaymentEvent) (string, error) {
	if events, ok := paymentTransitions[current]; ok {
		if next, ok := events[event]; ok {
			return next, nil
		}
	}
	return "", apperr.Conflict(fmt.Sprintf("invalid payment transition: %s event on %s payment", event, current))
}
