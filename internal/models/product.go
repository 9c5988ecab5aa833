package models

import "time"

// Product represents a product record in the catalog.
type Product struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	BarCode   string    `json:"barCode" gorm:"type:varchar(255);not null"`
	Price     float64   `json:"price" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the table name for Product.
func (Product) TableName() string {
	return "products"
}

// Product field names as they appear on the wire.
const (
	FieldID        = "id"
	FieldBarCode   = "barCode"
	FieldPrice     = "price"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// ProductColumns maps product field names to their database columns.
var ProductColumns = map[string]string{
	FieldID:        "id",
	FieldBarCode:   "bar_code",
	FieldPrice:     "price",
	FieldCreatedAt: "created_at",
	FieldUpdatedAt: "updated_at",
}
