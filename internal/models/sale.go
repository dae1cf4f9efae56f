// internal/models/sale.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Sale is a single offer for a photo card. Several sales may reference the
// same photo card; the cheapest available one (earliest renewal on ties) is
// the listing buyers see. A sale is created available, becomes sold exactly
// once, and is never deleted or reopened.
type Sale struct {
	BaseModel
	PhotoCardID int64      `json:"photo_card_id" gorm:"not null;index"`
	Price       int64      `json:"price" gorm:"not null"`
	Fee         int64      `json:"fee" gorm:"not null"`
	State       SaleState  `json:"state" gorm:"type:varchar(10);not null;index"`
	BuyerID     *uuid.UUID `json:"buyer_id" gorm:"type:uuid;index"`
	SellerID    uuid.UUID  `json:"seller_id" gorm:"type:uuid;not null;index"`
	SoldAt      *time.Time `json:"sold_at"`

	// Relationships
	Buyer  *User `json:"buyer,omitempty" gorm:"foreignKey:BuyerID"`
	Seller User  `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
}

// CalculateFee returns the platform fee for the sale's price. The fee is
// fixed at 20% of the price, rounded down. It is computed once when the sale
// is first saved and never recomputed, even if the price changes afterwards.
func (s *Sale) CalculateFee() int64 {
	return s.Price * 20 / 100
}

// TotalPrice is what the buyer pays. Derived, never stored.
func (s *Sale) TotalPrice() int64 {
	return s.Price + s.Fee
}
