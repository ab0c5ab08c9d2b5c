package routes

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/oakline/internal/config"
	"github.com/example/oakline/internal/handlers"
	"github.com/example/oakline/internal/middleware"
	"github.com/example/oakline/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	telegramService := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)

	var renderer services.InvoiceRenderer
	if r, err := services.NewHTMLInvoiceRenderer(cfg.DocumentDir); err != nil {
		log.Printf("invoice renderer unavailable: %v", err)
	} else {
		renderer = r
	}
	invoiceService := services.NewInvoiceService(db, renderer)

	gateway := services.NewFlutterwaveClient(cfg.FlutterwaveBaseURL, cfg.FlutterwaveSecret)
	orderService := services.NewOrderService(db, cfg)
	paymentService := services.NewPaymentService(db, cfg, gateway, invoiceService, telegramService)

	authHandler := handlers.NewAuthHandler(db, cfg)
	catalogHandler := handlers.NewCatalogHandler(db)
	productHandler := handlers.NewProductHandler(db)
	cartHandler := handlers.NewCartHandler(db)
	orderHandler := handlers.NewOrderHandler(db, orderService, telegramService)
	paymentHandler := handlers.NewPaymentHandler(db, paymentService)
	invoiceHandler := handlers.NewInvoiceHandler(db, invoiceService)
	profileHandler := handlers.NewProfileHandler(db)
	adminHandler := handlers.NewAdminHandler(db)

	app.Static("/documents", cfg.DocumentDir)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	// Public catalog
	categories := api.Group("/categories")
	categories.Get("/", catalogHandler.ListCategories)
	categories.Get("/:id", catalogHandler.GetCategory)

	products := api.Group("/products")
	products.Get("/", productHandler.ListProducts)
	products.Get("/:id", productHandler.GetProduct)

	// Payment verification and webhook are reachable without a user token:
	// verification happens on the return redirect, the webhook trusts its
	// signature header only.
	payments := api.Group("/payments")
	payments.Get("/verify", paymentHandler.VerifyPayment)
	payments.Post("/callback", middleware.WebhookAuthMiddleware(cfg.WebhookSecret), paymentHandler.HandleCallback)

	// Authenticated routes
	protected := api.Group("", middleware.AuthMiddleware(cfg))

	protected.Get("/profile", profileHandler.GetProfile)
	protected.Put("/profile", profileHandler.UpdateProfile)
	protected.Get("/profile/addresses", profileHandler.ListAddresses)
	protected.Post("/profile/addresses", profileHandler.CreateAddress)
	protected.Put("/profile/addresses/:id", profileHandler.UpdateAddress)
	protected.Delete("/profile/addresses/:id", profileHandler.DeleteAddress)

	protected.Get("/cart", cartHandler.ListCart)
	protected.Post("/cart", cartHandler.AddToCart)
	protected.Put("/cart/:id", cartHandler.UpdateCartItem)
	protected.Delete("/cart/:id", cartHandler.RemoveCartItem)

	protected.Post("/orders", orderHandler.CreateOrder)
	protected.Get("/orders", orderHandler.ListOrders)
	protected.Get("/orders/:id", orderHandler.GetOrder)
	protected.Get("/orders/:id/track", orderHandler.TrackOrder)
	protected.Post("/orders/:id/pay", paymentHandler.InitializePayment)
	protected.Get("/orders/:id/payment", paymentHandler.GetPaymentStatus)
	protected.Get("/orders/:id/invoice", invoiceHandler.GetInvoiceByOrder)

	// Admin routes
	admin := api.Group("/admin", middleware.AuthMiddleware(cfg), middleware.AdminOnly())

	admin.Get("/stats", adminHandler.DashboardStats)

	admin.Post("/categories", catalogHandler.CreateCategory)
	admin.Put("/categories/:id", catalogHandler.UpdateCategory)
	admin.Delete("/categories/:id", catalogHandler.DeleteCategory)

	admin.Post("/products", productHandler.CreateProduct)
	admin.Put("/products/:id", productHandler.UpdateProduct)
	admin.Delete("/products/:id", productHandler.DeleteProduct)

	admin.Get("/orders", orderHandler.ListAllOrders)
	admin.Put("/orders/:id/status", orderHandler.UpdateOrderStatus)
	admin.Post("/orders/:id/refund", paymentHandler.RefundPayment)

	admin.Get("/invoices", invoiceHandler.ListInvoices)
	admin.Get("/invoices/:id", invoiceHandler.GetInvoice)
	admin.Post("/orders/:id/invoice", invoiceHandler.GenerateInvoice)
	admin.Post("/invoices/:id/render", invoiceHandler.RenderInvoiceDocument)
}
