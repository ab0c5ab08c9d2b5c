package services

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/oakline/internal/config"
	"github.com/example/oakline/internal/database"
	"github.com/example/oakline/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
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
	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Currency:           "USD",
		TaxRate:            0.10,
		DefaultDeliveryFee: 0,
		PaymentReturnURL:   "http://localhost:3000/payment/complete",
	}
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	user := models.User{
		FirstName: "Amina",
		LastName:  "Karimova",
		Email:     uuid.NewString() + "@example.com",
		Role:      models.RoleCustomer,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price float64, stock int) *models.Product {
	t.Helper()

	product := models.Product{
		Slug:          uuid.NewString(),
		Name:          name,
		Price:         price,
		Currency:      "USD",
		StockQuantity: stock,
		InStock:       stock > 0,
		Material:      "oak",
	}
	require.NoError(t, db.Create(&product).Error)
	return &product
}

// placeOrder runs the real order creation path so payment and invoice
// tests operate on orders shaped exactly like production ones.
func placeOrder(t *testing.T, db *gorm.DB, cfg *config.Config, userID uuid.UUID, items ...OrderItemInput) *models.Order {
	t.Helper()

	deliveryFee := 10.0
	order, err := NewOrderService(db, cfg).CreateOrder(context.Background(), userID, CreateOrderInput{
		Items:               items,
		PaymentMethod:       "card",
		DeliveryFee:         &deliveryFee,
		DeliveryAddressLine: "12 Chilonzor Street",
		DeliveryCity:        "Tashkent",
	})
	require.NoError(t, err)
	return order
}

func reloadOrder(t *testing.T, db *gorm.DB, id uuid.UUID) *models.Order {
	t.Helper()

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", id).Error)
	return &order
}

func reloadProduct(t *testing.T, db *gorm.DB, id uuid.UUID) *models.Product {
	t.Helper()

	var product models.Product
	require.NoError(t, db.First(&product, "id = ?", id).Error)
	return &product
}
