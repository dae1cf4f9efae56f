// internal/services/sale_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/javajoker/photocard-backend/internal/models"
	"github.com/javajoker/photocard-backend/internal/utils"
)

type SaleServiceTestSuite struct {
	suite.Suite
	db     *gorm.DB
	svc    *SaleService
	seller *models.User
	buyer  *models.User
}

func (s *SaleServiceTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	s.Require().NoError(db.AutoMigrate(&models.User{}, &models.Sale{}))

	s.db = db
	s.svc = NewSaleService(db)
	s.seller = s.createUser("seller1", "seller1@example.com", 10000)
	s.buyer = s.createUser("buyer1", "buyer1@example.com", 10000)
}

func (s *SaleServiceTestSuite) createUser(username, email string, cash int64) *models.User {
	now := time.Now()
	user := &models.User{
		BaseModel: models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Username:  username,
		Email:     email,
		Cash:      cash,
		Status:    models.UserStatusActive,
	}
	s.Require().NoError(user.SetPassword("TestPass123!"))
	s.Require().NoError(s.db.Create(user).Error)
	return user
}

func (s *SaleServiceTestSuite) createSale(cardID, price, fee int64, state models.SaleState, updatedAt time.Time) *models.Sale {
	sale := &models.Sale{
		BaseModel: models.BaseModel{
			ID:        uuid.New(),
			CreatedAt: updatedAt,
			UpdatedAt: updatedAt,
		},
		PhotoCardID: cardID,
		Price:       price,
		Fee:         fee,
		State:       state,
		SellerID:    s.seller.ID,
	}
	if state == models.SaleStateSold {
		soldAt := updatedAt
		sale.SoldAt = &soldAt
		sale.BuyerID = &s.buyer.ID
	}
	s.Require().NoError(s.db.Create(sale).Error)
	return sale
}

func (s *SaleServiceTestSuite) reloadSale(id uuid.UUID) *models.Sale {
	var sale models.Sale
	s.Require().NoError(s.db.First(&sale, "id = ?", id).Error)
	return &sale
}

func (s *SaleServiceTestSuite) reloadUser(id uuid.UUID) *models.User {
	var user models.User
	s.Require().NoError(s.db.First(&user, "id = ?", id).Error)
	return &user
}

func (s *SaleServiceTestSuite) TestCreateSaleComputesFee() {
	sale, err := s.svc.CreateSale(s.seller.ID, &CreateSaleRequest{
		PhotoCardID: 42,
		Price:       1000,
	})
	s.Require().NoError(err)

	s.Equal(int64(200), sale.Fee)
	s.Equal(models.SaleStateAvailable, sale.State)
	s.Equal(s.seller.ID, sale.SellerID)
	s.Nil(sale.BuyerID)
	s.Nil(sale.SoldAt)
}

func (s *SaleServiceTestSuite) TestCreateSaleFeeRoundsDown() {
	sale, err := s.svc.CreateSale(s.seller.ID, &CreateSaleRequest{
		PhotoCardID: 42,
		Price:       999,
	})
	s.Require().NoError(err)

	s.Equal(int64(199), sale.Fee)
}

func (s *SaleServiceTestSuite) TestCreateSaleKeepsExplicitFee() {
	sale, err := s.svc.CreateSale(s.seller.ID, &CreateSaleRequest{
		PhotoCardID: 42,
		Price:       1000,
		Fee:         50,
	})
	s.Require().NoError(err)

	s.Equal(int64(50), sale.Fee)
}

func (s *SaleServiceTestSuite) TestFeeFrozenAfterPriceChange() {
	sale, err := s.svc.CreateSale(s.seller.ID, &CreateSaleRequest{
		PhotoCardID: 42,
		Price:       1000,
	})
	s.Require().NoError(err)
	s.Equal(int64(200), sale.Fee)

	// A later price mutation must not touch the frozen fee.
	s.Require().NoError(s.db.Model(&models.Sale{}).Where("id = ?", sale.ID).
		Update("price", int64(5000)).Error)

	reloaded := s.reloadSale(sale.ID)
	s.Equal(int64(5000), reloaded.Price)
	s.Equal(int64(200), reloaded.Fee)
}

func (s *SaleServiceTestSuite) TestCreateSaleRejectsInvalidPrice() {
	_, err := s.svc.CreateSale(s.seller.ID, &CreateSaleRequest{
		PhotoCardID: 42,
		Price:       0,
	})
	s.Error(err)
}

func (s *SaleServiceTestSuite) TestResolveActivePicksCheapestEarliest() {
	base := time.Now().Add(-time.Hour)
	s.createSale(7, 500, 100, models.SaleStateAvailable, base)
	expected := s.createSale(7, 300, 60, models.SaleStateAvailable, base.Add(10*time.Minute))
	s.createSale(7, 300, 60, models.SaleStateAvailable, base.Add(20*time.Minute))

	sale, err := s.svc.ResolveActive(7)
	s.Require().NoError(err)

	s.Equal(expected.ID, sale.ID)
	s.Equal(int64(300), sale.Price)
}

func (s *SaleServiceTestSuite) TestResolveActiveIgnoresSold() {
	now := time.Now()
	s.createSale(7, 100, 20, models.SaleStateSold, now)

	_, err := s.svc.ResolveActive(7)
	s.ErrorIs(err, ErrSaleNotFound)
}

func (s *SaleServiceTestSuite) TestResolveActiveNotFound() {
	_, err := s.svc.ResolveActive(9999)
	s.ErrorIs(err, ErrSaleNotFound)
}

func (s *SaleServiceTestSuite) TestListActiveOneSalePerCard() {
	base := time.Now().Add(-time.Hour)
	cheap := s.createSale(1, 300, 60, models.SaleStateAvailable, base)
	s.createSale(1, 500, 100, models.SaleStateAvailable, base.Add(time.Minute))
	other := s.createSale(2, 800, 160, models.SaleStateAvailable, base)
	s.createSale(3, 100, 20, models.SaleStateSold, base)

	sales, total, err := s.svc.ListActive(utils.PaginationParams{Page: 1, Limit: 20, Sort: "price", Order: "asc"})
	s.Require().NoError(err)

	s.Equal(int64(2), total)
	s.Require().Len(sales, 2)
	s.Equal(cheap.ID, sales[0].ID)
	s.Equal(other.ID, sales[1].ID)
}

func (s *SaleServiceTestSuite) TestRecentSoldOrderAndLimit() {
	base := time.Now().Add(-24 * time.Hour)
	for i := 0; i < 7; i++ {
		s.createSale(9, 100+int64(i), 20, models.SaleStateSold, base.Add(time.Duration(i)*time.Hour))
	}
	s.createSale(9, 50, 10, models.SaleStateAvailable, time.Now())

	sales, err := s.svc.RecentSold(9, RecentSoldLimit)
	s.Require().NoError(err)

	s.Require().Len(sales, 5)
	for i, sale := range sales {
		s.Equal(models.SaleStateSold, sale.State)
		s.Require().NotNil(sale.SoldAt)
		if i > 0 {
			s.True(sales[i-1].SoldAt.After(*sale.SoldAt))
		}
	}
}

func (s *SaleServiceTestSuite) TestGetSaleDetail() {
	base := time.Now().Add(-time.Hour)
	active := s.createSale(11, 1000, 200, models.SaleStateAvailable, base)
	s.createSale(11, 900, 180, models.SaleStateSold, base.Add(time.Minute))

	detail, err := s.svc.GetSaleDetail(11)
	s.Require().NoError(err)

	s.Equal(active.ID, detail.ID)
	s.Equal(int64(11), detail.PhotoCardID)
	s.Equal(int64(1200), detail.TotalPrice)
	s.Require().Len(detail.SoldSales, 1)
	s.Equal(int64(1080), detail.SoldSales[0].TotalPrice)
}

func (s *SaleServiceTestSuite) TestGetSaleDetailNotFound() {
	_, err := s.svc.GetSaleDetail(12345)
	s.ErrorIs(err, ErrSaleNotFound)
}

func (s *SaleServiceTestSuite) TestPurchaseSuccess() {
	sale := s.createSale(5, 1000, 200, models.SaleStateAvailable, time.Now())
	s.Require().NoError(s.db.Model(s.buyer).Update("cash", int64(1200)).Error)

	result, err := s.svc.Purchase(sale.ID, s.buyer.ID)
	s.Require().NoError(err)

	s.Equal(int64(0), result.Buyer.Cash)
	s.Equal(models.SaleStateSold, result.Sale.State)
	s.Require().NotNil(result.Sale.BuyerID)
	s.Equal(s.buyer.ID, *result.Sale.BuyerID)
	s.NotNil(result.Sale.SoldAt)

	// Verify both writes were persisted
	s.Equal(int64(0), s.reloadUser(s.buyer.ID).Cash)
	reloaded := s.reloadSale(sale.ID)
	s.Equal(models.SaleStateSold, reloaded.State)
	s.NotNil(reloaded.SoldAt)
}

func (s *SaleServiceTestSuite) TestPurchaseInsufficientFunds() {
	sale := s.createSale(5, 1000, 200, models.SaleStateAvailable, time.Now())
	s.Require().NoError(s.db.Model(s.buyer).Update("cash", int64(1199)).Error)

	_, err := s.svc.Purchase(sale.ID, s.buyer.ID)
	s.ErrorIs(err, ErrInsufficientFunds)

	// Nothing was mutated
	s.Equal(int64(1199), s.reloadUser(s.buyer.ID).Cash)
	reloaded := s.reloadSale(sale.ID)
	s.Equal(models.SaleStateAvailable, reloaded.State)
	s.Nil(reloaded.BuyerID)
	s.Nil(reloaded.SoldAt)
}

func (s *SaleServiceTestSuite) TestPurchaseAlreadySold() {
	sale := s.createSale(5, 1000, 200, models.SaleStateAvailable, time.Now())
	second := s.createUser("buyer2", "buyer2@example.com", 10000)

	_, err := s.svc.Purchase(sale.ID, s.buyer.ID)
	s.Require().NoError(err)

	_, err = s.svc.Purchase(sale.ID, second.ID)
	s.ErrorIs(err, ErrSaleAlreadySold)

	// The first buyer was debited exactly once; the loser was not touched
	s.Equal(int64(10000-1200), s.reloadUser(s.buyer.ID).Cash)
	s.Equal(int64(10000), s.reloadUser(second.ID).Cash)
}

func (s *SaleServiceTestSuite) TestPurchaseNotFound() {
	_, err := s.svc.Purchase(uuid.New(), s.buyer.ID)
	s.ErrorIs(err, ErrSaleNotFound)

	s.Equal(int64(10000), s.reloadUser(s.buyer.ID).Cash)
}

func (s *SaleServiceTestSuite) TestPurchaseSuspendedBuyer() {
	sale := s.createSale(5, 100, 20, models.SaleStateAvailable, time.Now())
	s.Require().NoError(s.db.Model(s.buyer).Update("status", models.UserStatusSuspended).Error)

	_, err := s.svc.Purchase(sale.ID, s.buyer.ID)
	s.ErrorIs(err, ErrUserSuspended)
}

func (s *SaleServiceTestSuite) TestGetUserPurchasesAndSales() {
	sale := s.createSale(5, 1000, 200, models.SaleStateAvailable, time.Now())
	_, err := s.svc.Purchase(sale.ID, s.buyer.ID)
	s.Require().NoError(err)

	purchases, total, err := s.svc.GetUserPurchases(s.buyer.ID, utils.PaginationParams{Page: 1, Limit: 20, Sort: "sold_at", Order: "desc"})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Require().Len(purchases, 1)
	s.Equal(sale.ID, purchases[0].ID)

	listed, total, err := s.svc.GetUserSales(s.seller.ID, utils.PaginationParams{Page: 1, Limit: 20, Sort: "created_at", Order: "desc"})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Require().Len(listed, 1)
	s.Equal(models.SaleStateSold, listed[0].State)
}

func TestSaleServiceSuite(t *testing.T) {
	suite.Run(t, new(SaleServiceTestSuite))
}
