// internal/services/sale_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/photocard-backend/internal/models"
	"github.com/javajoker/photocard-backend/internal/utils"
)

// User-visible purchase and lookup failures. Handlers map these to 4xx
// responses; anything else is an infrastructure error.
var (
	ErrSaleNotFound      = errors.New("sale not found")
	ErrSaleAlreadySold   = errors.New("sale already sold")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserSuspended     = errors.New("user account is not active")
)

// RecentSoldLimit bounds the trade history returned with a sale detail.
const RecentSoldLimit = 5

type SaleService struct {
	db *gorm.DB
}

type CreateSaleRequest struct {
	PhotoCardID int64 `json:"photo_card_id" validate:"required,min=1"`
	Price       int64 `json:"price" validate:"required,min=1"`
	// Optional; computed as 20% of the price when left zero.
	Fee int64 `json:"fee,omitempty" validate:"min=0"`
}

type SaleListItem struct {
	ID          uuid.UUID `json:"id"`
	PhotoCardID int64     `json:"photo_card_id"`
	Price       int64     `json:"price"`
}

type SoldSaleDetail struct {
	ID          uuid.UUID  `json:"id"`
	PhotoCardID int64      `json:"photo_card_id"`
	Price       int64      `json:"price"`
	Fee         int64      `json:"fee"`
	TotalPrice  int64      `json:"total_price"`
	BuyerID     *uuid.UUID `json:"buyer_id"`
	SellerID    uuid.UUID  `json:"seller_id"`
	CreatedAt   time.Time  `json:"created_at"`
	SoldAt      *time.Time `json:"sold_at"`
}

type SaleDetailResponse struct {
	ID          uuid.UUID        `json:"id"`
	PhotoCardID int64            `json:"photo_card_id"`
	Price       int64            `json:"price"`
	Fee         int64            `json:"fee"`
	TotalPrice  int64            `json:"total_price"`
	SoldSales   []SoldSaleDetail `json:"sold_sales"`
}

type PurchaseResult struct {
	Sale  *models.Sale `json:"sale"`
	Buyer *models.User `json:"buyer"`
}

func NewSaleService(db *gorm.DB) *SaleService {
	return &SaleService{db: db}
}

// CreateSale registers a new available sale for the seller. The state is
// always forced to available and the fee is computed and frozen here when the
// request leaves it unset.
func (s *SaleService) CreateSale(sellerID uuid.UUID, req *CreateSaleRequest) (*models.Sale, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var seller models.User
	if err := s.db.First(&seller, "id = ?", sellerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if seller.Status != models.UserStatusActive {
		return nil, ErrUserSuspended
	}

	now := time.Now()
	sale := &models.Sale{
		BaseModel: models.BaseModel{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		PhotoCardID: req.PhotoCardID,
		Price:       req.Price,
		Fee:         req.Fee,
		State:       models.SaleStateAvailable,
		SellerID:    sellerID,
	}

	if sale.Fee == 0 {
		sale.Fee = sale.CalculateFee()
	}

	if err := s.db.Create(sale).Error; err != nil {
		return nil, fmt.Errorf("failed to create sale: %w", err)
	}

	return sale, nil
}

// ResolveActive picks the canonical active sale for a photo card: the
// cheapest available one, ties broken by the earliest renewal.
func (s *SaleService) ResolveActive(photoCardID int64) (*models.Sale, error) {
	var sale models.Sale
	err := s.db.
		Where("photo_card_id = ? AND state = ?", photoCardID, models.SaleStateAvailable).
		Order("price ASC, updated_at ASC").
		First(&sale).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &sale, nil
}

// ListActive returns one sale per distinct photo card: the resolved active
// sale, even when duplicates are listed. The correlated subquery keeps only
// rows that are the (price, updated_at) minimum of their card's partition.
func (s *SaleService) ListActive(params utils.PaginationParams) ([]models.Sale, int64, error) {
	canonical := s.db.Table("sales AS candidate").
		Select("candidate.id").
		Where("candidate.photo_card_id = sales.photo_card_id").
		Where("candidate.state = ?", models.SaleStateAvailable).
		Order("candidate.price ASC, candidate.updated_at ASC").
		Limit(1)

	query := s.db.Model(&models.Sale{}).Where("id IN (?)", canonical)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count sales: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "price", "photo_card_id"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var sales []models.Sale
	if err := query.Find(&sales).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch sales: %w", err)
	}

	return sales, total, nil
}

// RecentSold returns up to limit sold sales for the card, newest first.
func (s *SaleService) RecentSold(photoCardID int64, limit int) ([]models.Sale, error) {
	var sales []models.Sale
	err := s.db.
		Where("photo_card_id = ? AND state = ?", photoCardID, models.SaleStateSold).
		Order("sold_at DESC").
		Limit(limit).
		Find(&sales).Error

	if err != nil {
		return nil, fmt.Errorf("failed to fetch sold sales: %w", err)
	}

	return sales, nil
}

// GetSaleDetail resolves the active sale for a photo card and attaches its
// recent trade history.
func (s *SaleService) GetSaleDetail(photoCardID int64) (*SaleDetailResponse, error) {
	sale, err := s.ResolveActive(photoCardID)
	if err != nil {
		return nil, err
	}

	soldSales, err := s.RecentSold(photoCardID, RecentSoldLimit)
	if err != nil {
		return nil, err
	}

	detail := &SaleDetailResponse{
		ID:          sale.ID,
		PhotoCardID: sale.PhotoCardID,
		Price:       sale.Price,
		Fee:         sale.Fee,
		TotalPrice:  sale.TotalPrice(),
		SoldSales:   make([]SoldSaleDetail, 0, len(soldSales)),
	}

	for _, sold := range soldSales {
		detail.SoldSales = append(detail.SoldSales, SoldSaleDetail{
			ID:          sold.ID,
			PhotoCardID: sold.PhotoCardID,
			Price:       sold.Price,
			Fee:         sold.Fee,
			TotalPrice:  sold.TotalPrice(),
			BuyerID:     sold.BuyerID,
			SellerID:    sold.SellerID,
			CreatedAt:   sold.CreatedAt,
			SoldAt:      sold.SoldAt,
		})
	}

	return detail, nil
}

// Purchase converts an available sale into a sold one owned by the buyer and
// debits the buyer's balance, as a single transaction. Validation happens
// before any write; the balance and state writes commit or roll back
// together, so a concurrent purchase of the same sale can only lose by
// observing state = sold after the winner commits.
func (s *SaleService) Purchase(saleID uuid.UUID, buyerID uuid.UUID) (*PurchaseResult, error) {
	var sale models.Sale
	var buyer models.User

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Lock the sale row for the duration of the transaction. SQLite
		// (used in tests) has no row locks and serializes writers instead.
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		if err := q.First(&sale, "id = ?", saleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSaleNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}

		if sale.State != models.SaleStateAvailable {
			return ErrSaleAlreadySold
		}

		if err := tx.First(&buyer, "id = ?", buyerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}

		if buyer.Status != models.UserStatusActive {
			return ErrUserSuspended
		}

		total := sale.TotalPrice()
		if buyer.Cash < total {
			return ErrInsufficientFunds
		}

		now := time.Now()

		buyer.Cash -= total
		buyer.UpdatedAt = now
		if err := tx.Model(&models.User{}).Where("id = ?", buyer.ID).
			Updates(map[string]interface{}{
				"cash":       buyer.Cash,
				"updated_at": now,
			}).Error; err != nil {
			return fmt.Errorf("failed to debit buyer: %w", err)
		}

		sale.State = models.SaleStateSold
		sale.BuyerID = &buyer.ID
		sale.SoldAt = &now
		sale.UpdatedAt = now
		if err := tx.Model(&models.Sale{}).Where("id = ?", sale.ID).
			Updates(map[string]interface{}{
				"state":      models.SaleStateSold,
				"buyer_id":   buyer.ID,
				"sold_at":    now,
				"updated_at": now,
			}).Error; err != nil {
			return fmt.Errorf("failed to update sale: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return &PurchaseResult{Sale: &sale, Buyer: &buyer}, nil
}

// GetUserPurchases lists the sales the user has bought, newest first.
func (s *SaleService) GetUserPurchases(userID uuid.UUID, params utils.PaginationParams) ([]models.Sale, int64, error) {
	query := s.db.Model(&models.Sale{}).
		Where("buyer_id = ? AND state = ?", userID, models.SaleStateSold)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count purchases: %w", err)
	}

	allowedSortFields := []string{"sold_at", "price", "created_at"}
	if params.Sort == "created_at" {
		params.Sort = "sold_at"
	}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var sales []models.Sale
	if err := query.Find(&sales).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch purchases: %w", err)
	}

	return sales, total, nil
}

// GetUserSales lists the sales the user has listed, in any state.
func (s *SaleService) GetUserSales(userID uuid.UUID, params utils.PaginationParams) ([]models.Sale, int64, error) {
	query := s.db.Model(&models.Sale{}).Where("seller_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count sales: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "price", "state"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var sales []models.Sale
	if err := query.Find(&sales).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch sales: %w", err)
	}

	return sales, total, nil
}
