package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/oakline/internal/config"
	"github.com/example/oakline/internal/database"
	"github.com/example/oakline/internal/models"
	"github.com/example/oakline/internal/services"
)

func newOrderTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{Currency: "USD", TaxRate: 0.10}
	handler := NewOrderHandler(db, services.NewOrderService(db, cfg), nil)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Put("/admin/orders/:id/status", handler.UpdateOrderStatus)
	return app, db
}

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, body io.Reader) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.NewDecoder(body).Decode(&env))
	return env
}

func putStatus(t *testing.T, app *fiber.App, orderID, status string) (int, envelope) {
	t.Helper()

	payload, err := json.Marshal(fiber.Map{"status": status})
	require.NoError(t, err)

	req := httptest.NewRequest("PUT", "/admin/orders/"+orderID+"/status", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	return resp.StatusCode, decodeEnvelope(t, resp.Body)
}

func TestUpdateOrderStatusEndpoint(t *testing.T) {
	app, db := newOrderTestApp(t)

	order := models.Order{Status: models.OrderStatusPending, PaymentStatus: models.PaymentStatusPending}
	require.NoError(t, db.Create(&order).Error)

	status, env := putStatus(t, app, order.ID.String(), models.OrderStatusShipped)
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)

	var updated models.Order
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, models.OrderStatusShipped, updated.Status)
}

func TestUpdateOrderStatusEndpointRejectsUnknownValue(t *testing.T) {
	app, db := newOrderTestApp(t)

	order := models.Order{Status: models.OrderStatusPending, PaymentStatus: models.PaymentStatusPending}
	require.NoError(t, db.Create(&order).Error)

	status, env := putStatus(t, app, order.ID.String(), "teleported")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "invalid order status")

	var persisted models.Order
	require.NoError(t, db.First(&persisted, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusPending, persisted.Status)
}

func TestUpdateOrderStatusEndpointNotFound(t *testing.T) {
	app, _ := newOrderTestApp(t)

	status, env := putStatus(t, app, uuid.NewString(), models.OrderStatusShipped)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.False(t, env.Success)
}

func TestUpdateOrderStatusEndpointBadID(t *testing.T) {
	app, _ := newOrderTestApp(t)

	status, env := putStatus(t, app, "not-a-uuid", models.OrderStatusShipped)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.False(t, env.Success)
}
