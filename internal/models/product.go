package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Product struct {
	BaseModel
	Slug                  string         `gorm:"uniqueIndex" json:"slug"`
	Name                  string         `json:"name"`
	ShortDescription      string         `json:"short_description"`
	LongDescription       string         `json:"long_description"`
	Price                 float64        `json:"price"`
	Currency              string         `json:"currency"`
	StockQuantity         int            `json:"stock_quantity"`
	InStock               bool           `json:"in_stock"`
	Material              string         `json:"material"`
	Color                 string         `json:"color"`
	WidthCM               float64        `json:"width_cm"`
	DepthCM               float64        `json:"depth_cm"`
	HeightCM              float64        `json:"height_cm"`
	WeightKG              float64        `json:"weight_kg"`
	AssemblyRequired      bool           `json:"assembly_required"`
	InstallationAvailable bool           `json:"installation_available"`
	InstallationFee       float64        `json:"installation_fee"`
	WarrantyMonths        int            `json:"warranty_months"`
	HeroImage             string         `json:"hero_image"`
	GalleryImages         pq.StringArray `gorm:"type:text[]" json:"gallery_images"`
	CategoryID            *uuid.UUID     `gorm:"type:uuid" json:"category_id"`
	Category              *Category      `json:"category,omitempty"`
	RatingAverage         float64        `json:"rating_average"`
	RatingCount           int            `json:"rating_count"`
}

// CartItem is one stored-cart row for a user. Rows matching a new order's
// products are removed inside the order-creation transaction.
type CartItem struct {
	BaseModel
	UserID               uuid.UUID `gorm:"type:uuid;index:idx_cart_user_product,unique" json:"user_id"`
	ProductID            uuid.UUID `gorm:"type:uuid;index:idx_cart_user_product,unique" json:"product_id"`
	Product              *Product  `json:"product,omitempty"`
	Quantity             int       `json:"quantity"`
	InstallationRequired bool      `json:"installation_required"`
}
