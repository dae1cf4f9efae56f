// internal/handlers/sale.go
package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/photocard-backend/internal/i18n"
	"github.com/javajoker/photocard-backend/internal/services"
	"github.com/javajoker/photocard-backend/internal/utils"
)

type SaleHandler struct {
	saleService    *services.SaleService
	storageService *services.StorageService
}

func NewSaleHandler(saleService *services.SaleService, storageService *services.StorageService) *SaleHandler {
	return &SaleHandler{
		saleService:    saleService,
		storageService: storageService,
	}
}

// GET /sales
func (h *SaleHandler) GetSales(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	sales, total, err := h.saleService.ListActive(params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	items := make([]services.SaleListItem, 0, len(sales))
	for _, sale := range sales {
		items = append(items, services.SaleListItem{
			ID:          sale.ID,
			PhotoCardID: sale.PhotoCardID,
			Price:       sale.Price,
		})
	}

	result := utils.CreatePaginationResult(items, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /sales
func (h *SaleHandler) CreateSale(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	sellerID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	sale, err := h.saleService.CreateSale(sellerID, &req)
	if err != nil {
		if errors.Is(err, services.ErrUserSuspended) {
			utils.ForbiddenResponse(c, i18n.T(lang, i18n.KeyUserSuspended))
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeySaleCreated),
		"sale":    sale,
	})
}

// GET /sales/:photo_card_id
func (h *SaleHandler) GetSaleDetail(c *gin.Context) {
	photoCardID, err := strconv.ParseInt(c.Param("photo_card_id"), 10, 64)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid photo card ID", nil)
		return
	}

	detail, err := h.saleService.GetSaleDetail(photoCardID)
	if err != nil {
		if errors.Is(err, services.ErrSaleNotFound) {
			utils.NotFoundResponse(c, "sale")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, detail)
}

// PATCH /sales/purchase/:id
func (h *SaleHandler) PurchaseSale(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	buyerID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	saleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid sale ID", nil)
		return
	}

	result, err := h.saleService.Purchase(saleID, buyerID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSaleNotFound):
			utils.NotFoundResponse(c, "sale")
		case errors.Is(err, services.ErrSaleAlreadySold):
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeySaleAlreadySold), nil)
		case errors.Is(err, services.ErrInsufficientFunds):
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeySaleInsufficientFunds), nil)
		case errors.Is(err, services.ErrUserNotFound):
			utils.NotFoundResponse(c, "user")
		case errors.Is(err, services.ErrUserSuspended):
			utils.ForbiddenResponse(c, i18n.T(lang, i18n.KeyUserSuspended))
		default:
			utils.InternalErrorResponse(c, err.Error())
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeySalePurchased),
		"sale":    result.Sale,
		"cash":    result.Buyer.Cash,
	})
}

// POST /sales/upload-image
func (h *SaleHandler) UploadCardImage(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	if _, ok := currentUserID(c); !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileUploadFailed), err.Error())
		return
	}
	defer file.Close()

	if err := h.storageService.ValidateImage(file); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileInvalidType), nil)
		return
	}

	options := h.storageService.GetDefaultUploadOptions("card_images")
	uploadResult, err := h.storageService.UploadFile(file, header, options)
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileUploadFailed), err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyFileUploadSuccess),
		"upload":  uploadResult,
	})
}

// currentUserID pulls the authenticated user out of the gin context. The
// acting user is always passed explicitly to the services; no service reads
// request state.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, false
	}

	return userID, true
}
