// internal/handlers/sale_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/javajoker/photocard-backend/internal/config"
	"github.com/javajoker/photocard-backend/internal/models"
	"github.com/javajoker/photocard-backend/internal/services"
	"github.com/javajoker/photocard-backend/internal/utils"
)

type SaleHandlerTestSuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine
	seller *models.User
	buyer  *models.User
	// the user requests are authenticated as
	actingUser *models.User
}

func (s *SaleHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	s.Require().NoError(db.AutoMigrate(&models.User{}, &models.Sale{}))

	s.db = db
	s.seller = s.createUser("seller1", "seller1@example.com", 10000)
	s.buyer = s.createUser("buyer1", "buyer1@example.com", 10000)
	s.actingUser = s.buyer

	saleService := services.NewSaleService(db)
	storageService, err := services.NewStorageService(&config.Config{})
	s.Require().NoError(err)
	handler := NewSaleHandler(saleService, storageService)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("user_id", s.actingUser.ID.String())
		c.Set("lang", "en")
		c.Next()
	})

	sales := router.Group("/v1/sales")
	{
		sales.GET("", handler.GetSales)
		sales.POST("", handler.CreateSale)
		sales.GET("/:photo_card_id", handler.GetSaleDetail)
		sales.PATCH("/purchase/:id", handler.PurchaseSale)
	}

	s.router = router
}

func (s *SaleHandlerTestSuite) createUser(username, email string, cash int64) *models.User {
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

func (s *SaleHandlerTestSuite) createSale(cardID, price, fee int64, state models.SaleState) *models.Sale {
	now := time.Now()
	sale := &models.Sale{
		BaseModel:   models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		PhotoCardID: cardID,
		Price:       price,
		Fee:         fee,
		State:       state,
		SellerID:    s.seller.ID,
	}
	s.Require().NoError(s.db.Create(sale).Error)
	return sale
}

func (s *SaleHandlerTestSuite) request(method, path string, body interface{}) (*httptest.ResponseRecorder, utils.APIResponse) {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp utils.APIResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func (s *SaleHandlerTestSuite) TestListSales() {
	s.createSale(1, 300, 60, models.SaleStateAvailable)
	s.createSale(1, 500, 100, models.SaleStateAvailable)
	s.createSale(2, 800, 160, models.SaleStateAvailable)

	w, resp := s.request(http.MethodGet, "/v1/sales?sort=price&order=asc", nil)

	s.Equal(http.StatusOK, w.Code)
	s.True(resp.Success)

	items, ok := resp.Data.([]interface{})
	s.Require().True(ok)
	s.Len(items, 2)
	s.Equal("2", w.Header().Get("X-Total-Count"))
}

func (s *SaleHandlerTestSuite) TestCreateSale() {
	s.actingUser = s.seller
	w, resp := s.request(http.MethodPost, "/v1/sales", gin.H{
		"photo_card_id": 42,
		"price":         1000,
	})

	s.Equal(http.StatusCreated, w.Code)
	s.True(resp.Success)

	var sale models.Sale
	s.Require().NoError(s.db.First(&sale, "photo_card_id = ?", 42).Error)
	s.Equal(int64(200), sale.Fee)
	s.Equal(models.SaleStateAvailable, sale.State)
}

func (s *SaleHandlerTestSuite) TestCreateSaleValidation() {
	s.actingUser = s.seller
	w, resp := s.request(http.MethodPost, "/v1/sales", gin.H{
		"photo_card_id": 42,
		"price":         -5,
	})

	s.Equal(http.StatusBadRequest, w.Code)
	s.False(resp.Success)
}

func (s *SaleHandlerTestSuite) TestGetSaleDetail() {
	s.createSale(7, 1000, 200, models.SaleStateAvailable)

	w, resp := s.request(http.MethodGet, "/v1/sales/7", nil)

	s.Equal(http.StatusOK, w.Code)
	s.True(resp.Success)

	data, ok := resp.Data.(map[string]interface{})
	s.Require().True(ok)
	s.Equal(float64(1200), data["total_price"])
}

func (s *SaleHandlerTestSuite) TestGetSaleDetailNotFound() {
	w, resp := s.request(http.MethodGet, "/v1/sales/9999", nil)

	s.Equal(http.StatusNotFound, w.Code)
	s.False(resp.Success)
}

func (s *SaleHandlerTestSuite) TestGetSaleDetailBadID() {
	w, _ := s.request(http.MethodGet, "/v1/sales/not-a-number", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *SaleHandlerTestSuite) TestPurchaseSale() {
	sale := s.createSale(7, 1000, 200, models.SaleStateAvailable)

	w, resp := s.request(http.MethodPatch, fmt.Sprintf("/v1/sales/purchase/%s", sale.ID), nil)

	s.Equal(http.StatusOK, w.Code)
	s.True(resp.Success)

	data, ok := resp.Data.(map[string]interface{})
	s.Require().True(ok)
	s.Equal(float64(10000-1200), data["cash"])

	var reloaded models.Sale
	s.Require().NoError(s.db.First(&reloaded, "id = ?", sale.ID).Error)
	s.Equal(models.SaleStateSold, reloaded.State)
}

func (s *SaleHandlerTestSuite) TestPurchaseSaleInsufficientFunds() {
	sale := s.createSale(7, 1000, 200, models.SaleStateAvailable)
	s.Require().NoError(s.db.Model(s.buyer).Update("cash", int64(1199)).Error)

	w, resp := s.request(http.MethodPatch, fmt.Sprintf("/v1/sales/purchase/%s", sale.ID), nil)

	s.Equal(http.StatusBadRequest, w.Code)
	s.False(resp.Success)
}

func (s *SaleHandlerTestSuite) TestPurchaseSaleAlreadySold() {
	sale := s.createSale(7, 1000, 200, models.SaleStateAvailable)

	w, _ := s.request(http.MethodPatch, fmt.Sprintf("/v1/sales/purchase/%s", sale.ID), nil)
	s.Equal(http.StatusOK, w.Code)

	other := s.createUser("buyer2", "buyer2@example.com", 10000)
	s.actingUser = other

	w, resp := s.request(http.MethodPatch, fmt.Sprintf("/v1/sales/purchase/%s", sale.ID), nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.False(resp.Success)
}

func (s *SaleHandlerTestSuite) TestPurchaseSaleNotFound() {
	w, resp := s.request(http.MethodPatch, fmt.Sprintf("/v1/sales/purchase/%s", uuid.New()), nil)

	s.Equal(http.StatusNotFound, w.Code)
	s.False(resp.Success)
}

func (s *SaleHandlerTestSuite) TestPurchaseSaleBadID() {
	w, _ := s.request(http.MethodPatch, "/v1/sales/purchase/not-a-uuid", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func TestSaleHandlerSuite(t *testing.T) {
	suite.Run(t, new(SaleHandlerTestSuite))
}
