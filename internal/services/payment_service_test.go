package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/oakline/internal/apperr"
	"github.com/example/oakline/internal/config"
	"github.com/example/oakline/internal/models"
)

type stubGateway struct {
	initErr      error
	verifyStatus string
	verifyErr    error
	initCalls    int
	verifyCalls  int
	lastInit     GatewayInitRequest
}

func (g *stubGateway) InitializePayment(ctx context.Context, req GatewayInitRequest) (*GatewayInitResult, error) {
	g.initCalls++
	g.lastInit = req
	if g.initErr != nil {
		return nil, g.initErr
	}
	return &GatewayInitResult{CheckoutURL: "https://checkout.flutterwave.test/session"}, nil
}

func (g *stubGateway) VerifyPayment(ctx context.Context, txRef string) (*GatewayVerifyResult, error) {
	g.verifyCalls++
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	status := g.verifyStatus
	if status == "" {
		status = GatewayStatusSuccessful
	}
	return &GatewayVerifyResult{Status: status, PaymentID: "881234", TxRef: txRef}, nil
}

type paymentEnv struct {
	db      *gorm.DB
	cfg     *config.Config
	gateway *stubGateway
	svc     *PaymentService
}

func newPaymentEnv(t *testing.T) *paymentEnv {
	t.Helper()

	db := newTestDB(t)
	cfg := newTestConfig()
	gateway := &stubGateway{}
	invoices := NewInvoiceService(db, nil)
	return &paymentEnv{
		db:      db,
		cfg:     cfg,
		gateway: gateway,
		svc:     NewPaymentService(db, cfg, gateway, invoices, nil),
	}
}

var txRefPattern = regexp.MustCompile(`^ORDER-[0-9a-f-]{36}-[0-9a-f]{8}$`)

func TestInitializePaymentOpensCheckout(t *testing.T) {
	env := newPaymentEnv(t)
	user := seedUser(t, env.db)
	product := seedProduct(t, env.db, "Oak Dining Table", 100, 5)
	order := placeOrder(t, env.db, env.cfg, user.ID, OrderItemInput{ProductID: product.ID, Quantity: 2})

	url, err := env.svc.InitializePayment(context.Background(), order.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.flutterwave.test/session", url)
	assert.Equal(t, 1, env.gateway.initCalls)

	persisted := reloadOrder(t, env.db, order.ID)
	require.NotNil(t, persisted.TransactionRef)
	assert.Regexp(t, txRefPattern, *persisted.TransactionRef)
	assert.Equal(t, "card", persisted.PaymentMethod)

	assert.Equal(t, *persisted.TransactionRef, env.gateway.lastInit.TxRef)
	assert.InDelta(t, persisted.TotalAmount, env.gateway.lastInit.Amount, 0.001)
	assert.Equal(t, user.Email, env.gateway.lastInit.CustomerEmail)
}

func TestInitializePaymentAlreadyPaid(t *testing.T) {
	env := newPaymentEnv(t)
	user := seedUser(t, env.db)
	product := seedProduct(t, env.db, "Oak Chair", 90, 5)
	order := placeOrder(t, env.db, env.cfg, user.ID, OrderItemInput{ProductID: product.ID, Quantity: 1})

	ref := "ORDER-" + order.ID.String() + "-deadbeef"
	require.NoError(t, env.db.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]any{
		"payment_status":  models.PaymentStatusPaid,
		"transaction_ref": ref,
	}).Error)

	_, err := env.svc.InitializePayment(context.Background(), order.ID, user.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrConflict))
	assert.Zero(t, env.gateway.initCalls)

	persisted := reloadOrder(t, env.db, order.ID)
	require.NotNil(t, persisted.TransactionRef)
	assert.Equal(t, ref, *persisted.TransactionRef)
}

func TestInitializePaymentRetryAfterFailure(t *testing.T) {
	env := newPaymentEnv(t)
	user := seedUser(t, env.db)
	product := seedProduct(t, env.db, "Oak Chair", 90, 5)
	order := placeOrder(t, env.db, env.cfg, user.ID, OrderItemInput{ProductID: product.ID, Quantity: 1})

	require.NoError(t, env.db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("payment_status", models.PaymentStatusFailed).Error)

	_, err := env.svc.InitializePayment(context.Background(), order.ID, user.ID)
	require.NoError(t, err)

	persisted := reloadOrder(t, env.db, order.ID)
	assert.Equal(t, models.PaymentStatusPending, persisted.PaymentStatus)
	require.NotNil(t, persisted.TransactionRef)
	assert.Regexp(t, txRefPattern, *persisted.TransactionRef)
}

func TestInitializePaymentGatewayFailureKeepsOrderPayable(t *testing.T) {
	env := newPaymentEnv(t)
	env.gateway.initErr = errors.New("503 from provider")
	user := seedUser(t, env.db)
	product := seedProduct(t, env.db, "Oak Chair", 90, 5)
	order := placeOrder(t, env.db, env.cfg, user.ID, OrderItemInput{ProductID: product.ID, Quantity: 1})

	_, err := env.svc.InitializePayment(context.Background(), order.ID, user.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrExternal))

	persisted := reloadOrder(t, env.db, order.ID)
	assert.Equal(t, models.PaymentStatusPending, persisted.PaymentStatus)
	assert.NotNil(t, persisted.TransactionRef)
}

func TestInitializePaymentForeignOrder(t *testing.T) {
	env := newPaymentEnv(t)
	owner := seedUser(t, env.db)
	stranger := seedUser(t, env.db)
	product := seedProduct(t, env.db, "Oak Chair", 90, 5)
	order := placeOrder(t, env.db, env.cfg, owner.ID, OrderItemInput{ProductID: product.ID, Quantity: 1})

	_, err := env.svc.InitializePayment(context.Background(), order.ID, stranger.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrNotFound))
}

func TestVerifyPaymentSuccessAppliesSideEffects(t *testing.T) {
	env := newPaymentEnv(t)
	user := seedUser(t, env.db)
	product := seedProduct(t, env.db, "Oak Dining Table", 100, 5)
	order := placeOrder(t, env.db, env.cfg, user.ID, OrderItemInput{ProductID: product.ID, Quantity: 2})

	_, err := env.svc.InitializePayment(context.Background(), order.ID, user.ID)
	require.NoError(t, err)
	ref := *reloadOrder(t, env.db, order.ID).TransactionRef

	outcome, err := env.svc.VerifyPayment(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, outcome.OrderFound)
	assert.Equal(t, models.PaymentStatusPaid, outcome.Status)

	persisted := reloadOrder(t, env.db, order.ID)
	assert.Equal(t, models.PaymentStatusPaid, persisted.PaymentStatus)
	assert.Equal(t, models.OrderStatusConfirmed, persisted.Status)
	assert.Equal(t, "881234", persisted.GatewayPaymentID)

	assert.Equal(t, 3, reloadProduct(t, env.db, product.ID).StockQuantity)

	var invoice models.Invoice
	require.NoError(t, env.db.First(&invoice, "order_id = ?", order.ID).Error)
	assert.InDelta(t, 230.0, invoice.Amount, 0.001)
	assert.Equal(t, models.InvoiceStatusPaid, invoice.Status)
	assert.Regexp(t, `^INV-\d{8}-\d{4}$`, invoice.InvoiceNumber)
	assert.WithinDuration(t, time.Now().Add(14*24*time.Hour), invoice.DueDate, time.Minute)

	require.NotNil(t, persisted.InvoiceID)
	assert.Equal(t, invoice.ID, *persisted.InvoiceID)
}

func TestRepeatedConfirmationsApplyOnce(t *testing.T) {
	env := newPaymentEnv(t)
	user := seedUser(t, env.db)
	product := seedProduct(t, env.db, "Oak Dining Table", 100, 10)
	order := placeOrder(t, env.db, env.cfg, user.ID, OrderItemInput{ProductID: product.ID, Quantity: 2})

	_, err := env.svc.InitializePayment(context.Background(), order.ID, user.ID)
	require.NoError(t, err)
	ref := *reloadOrder(t, env.db, order.ID).TransactionRef

	// The same success arrives three times: two verifies and a webhook.
	_, err = env.svc.VerifyPayment(context.Background(), ref)
	require.NoError(t, err)
	_, err = env.svc.VerifyPayment(context.Background(), ref)
	require.NoError(t, err)
	outcome, err := env.svc.HandleCallback(context.Background(), order.ID, ref, GatewayStatusSuccessful, "881234")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, outcome.Status)

	assert.Equal(t, 8, reloadProduct(t, env.db, product.ID).StockQuantity)

	var invoiceCount int64
	require.NoError(t, env.db.Model(&models.Invoice{}).Where("order_id = ?", order.ID).Count(&invoiceCount).Error)
	assert.EqualValues(t, 1, invoiceCount)
}

func TestVerifyPaymentFailureMarksFailed(t *testing.T) {
	env := newPaymentEnv(t)
	env.gateway.verifyStatus = "failed"
	user := seedUser(t, env.db)
	product := seedProduct(t, env.db, "Oak Chair", 90, 5)
	order := placeOrder(t, env.db, env.cfg, user.ID, OrderItemInput{ProductID: product.ID, Quantity: 1})

	_, err := env.svc.InitializePayment(context.Background(), order.ID, user.ID)
	require.NoError(t, err)
	ref := *reloadOrder(t, env.db, order.ID).TransactionRef

	outcome, err := env.svc.VerifyPayment(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, outcome.Status)

	persisted := reloadOrder(t, env.db, order.ID)
	assert.Equal(t, models.PaymentStatusFailed, persisted.PaymentStatus)
	assert.Equal(t, models.OrderStatusPending, persisted.Status)
	assert.Equal(t, 5, reloadProduct(t, env.db, product.ID).StockQuantity)

	var invoiceCount int64
	require.NoError(t, env.db.Model(&models.Invoice{}).Count(&invoiceCount).Error)
	assert.Zero(t, invoiceCount)
}

func TestVerifyPaymentPendingLeavesOrderUntouched(t *testing.T) {
	env := newPaymentEnv(t)
	env.gateway.verifyStatus = GatewayStatusPending
	user := seedUser(t, env.db)
	product := seedProduct(t, env.db, "Oak Chair", 90, 5)
	order := placeOrder(t, env.db, env.cfg, user.ID, OrderItemInput{ProductID: product.ID, Quantity: 1})

	_, err := env.svc.InitializePayment(context.Background(), order.ID, user.ID)
	require.NoError(t, err)
	ref := *reloadOrder(t, env.db, order.ID).TransactionRef

	outcome, err := env.svc.VerifyPayment(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, outcome.Status)
	assert.Equal(t, models.PaymentStatusPending, reloadOrder(t, env.db, order.ID).PaymentStatus)
}

func TestVerifyPaymentUnknownReference(t *testing.T) {
	env := newPaymentEnv(t)

	outcome, err := env.svc.VerifyPayment(context.Background(), "ORDER-"+uuid.NewString()+"-deadbeef")
	require.NoError(t, err)
	assert.False(t, outcome.OrderFound)
	assert.Equal(t, models.PaymentStatusPaid, outcome.Status)
	assert.Nil(t, outcome.Order)
}

func TestFailureReportAfterPaidIsIgnored(t *testing.T) {
	env := newPaymentEnv(t)
	user := seedUser(t, env.db)
	product := seedProduct(t, env.db, "Oak Chair", 90, 5)
	order := placeOrder(t, env.db, env.cfg, user.ID, OrderItemInput{ProductID: product.ID, Quantity: 1})

	_, err := env.svc.InitializePayment(context.Background(), order.ID, user.ID)
	require.NoError(t, err)
	ref := *reloadOrder(t, env.db, order.ID).TransactionRef

	_, err = env.svc.VerifyPayment(context.Background(), ref)
	require.NoError(t, err)

	// A stale failure callback for the now-paid order changes nothing.
	_, err = env.svc.HandleCallback(context.Background(), order.ID, ref, "failed", "")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, reloadOrder(t, env.db, order.ID).PaymentStatus)
}

func TestHandleCallbackReferenceMismatch(t *testing.T) {
	env := newPaymentEnv(t)
	user := seedUser(t, env.db)
	product := seedProduct(t, env.db, "Oak Chair", 90, 5)
	order := placeOrder(t, env.db, env.cfg, user.ID, OrderItemInput{ProductID: product.ID, Quantity: 1})

	_, err := env.svc.InitializePayment(context.Background(), order.ID, user.ID)
	require.NoError(t, err)

	_, err = env.svc.HandleCallback(context.Background(), order.ID, "ORDER-"+order.ID.String()+"-forged00", GatewayStatusSuccessful, "1")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrConflict))
	assert.Equal(t, models.PaymentStatusPending, reloadOrder(t, env.db, order.ID).PaymentStatus)
}

func TestConfirmationDepletesAndFlagsStock(t *testing.T) {
	env := newPaymentEnv(t)
	user := seedUser(t, env.db)
	product := seedProduct(t, env.db, "Oak King Bed", 800, 2)
	order := placeOrder(t, env.db, env.cfg, user.ID, OrderItemInput{ProductID: product.ID, Quantity: 2})

	_, err := env.svc.InitializePayment(context.Background(), order.ID, user.ID)
	require.NoError(t, err)
	ref := *reloadOrder(t, env.db, order.ID).TransactionRef

	_, err = env.svc.VerifyPayment(context.Background(), ref)
	require.NoError(t, err)

	persisted := reloadProduct(t, env.db, product.ID)
	assert.Zero(t, persisted.StockQuantity)
	assert.False(t, persisted.InStock)
}

func TestConfirmationClampsOversoldStockToZero(t *testing.T) {
	env := newPaymentEnv(t)
	user := seedUser(t, env.db)
	product := seedProduct(t, env.db, "Oak King Bed", 800, 5)
	order := placeOrder(t, env.db, env.cfg, user.ID, OrderItemInput{ProductID: product.ID, Quantity: 3})

	_, err := env.svc.InitializePayment(context.Background(), order.ID, user.ID)
	require.NoError(t, err)
	ref := *reloadOrder(t, env.db, order.ID).TransactionRef

	// Stock drained between order placement and payment confirmation.
	require.NoError(t, env.db.Model(&models.Product{}).Where("id = ?", product.ID).
		Update("stock_quantity", 1).Error)

	_, err = env.svc.VerifyPayment(context.Background(), ref)
	require.NoError(t, err)

	persisted := reloadProduct(t, env.db, product.ID)
	assert.Zero(t, persisted.StockQuantity)
	assert.False(t, persisted.InStock)
	assert.Equal(t, models.PaymentStatusPaid, reloadOrder(t, env.db, order.ID).PaymentStatus)
}

func TestRefundPayment(t *testing.T) {
	env := newPaymentEnv(t)
	user := seedUser(t, env.db)
	product := seedProduct(t, env.db, "Oak Chair", 90, 5)
	order := placeOrder(t, env.db, env.cfg, user.ID, OrderItemInput{ProductID: product.ID, Quantity: 1})

	_, err := env.svc.RefundPayment(context.Background(), order.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrConflict))

	require.NoError(t, env.db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("payment_status", models.PaymentStatusPaid).Error)

	refunded, err := env.svc.RefundPayment(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, refunded.PaymentStatus)
	assert.Equal(t, models.PaymentStatusRefunded, reloadOrder(t, env.db, order.ID).PaymentStatus)
}

func TestTransactionRefRoundTrip(t *testing.T) {
	orderID := uuid.New()

	ref, err := GenerateTransactionRef(orderID)
	require.NoError(t, err)
	assert.Regexp(t, txRefPattern, ref)
	assert.Equal(t, orderID.String(), OrderIDFromTransactionRef(ref))

	assert.Empty(t, OrderIDFromTransactionRef("PAY-123"))
	assert.Empty(t, OrderIDFromTransactionRef("ORDER-"))
	assert.Empty(t, OrderIDFromTransactionRef("ORDER-nodash"))
}
