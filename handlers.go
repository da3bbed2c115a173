package main

import (
	"errors"
	"net/http"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/stockledger_backend/config"
	"bitbucket.org/mmdatafocus/stockledger_backend/models"
	"bitbucket.org/mmdatafocus/stockledger_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type newEntryRequest struct {
	ClientName     string          `json:"clientName" binding:"required"`
	DocumentNumber string          `json:"documentNumber" binding:"required"`
	Date           string          `json:"date" binding:"required"` // YYYY-MM-DD
	Note           string          `json:"note"`
	Product        string          `json:"product" binding:"required"`
	Quantity       int             `json:"quantity" binding:"required,gte=1"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
}

type provisionRequest struct {
	ProductName     string `json:"productName" binding:"required"`
	InitialQuantity int    `json:"initialQuantity" binding:"gte=0"`
}

type documentSearchRequest struct {
	DocumentNumber string `json:"documentNumber" binding:"required"`
}

func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			fields := make(map[string]string, len(ve))
			for _, fe := range ve {
				fields[fe.Field()] = fe.Tag()
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "невалидни данни", "fields": fields})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "невалидна заявка"})
		return false
	}
	return true
}

// respondLedgerError maps the store/transaction taxonomy onto HTTP statuses
// with localized messages. Partial-failure errors carry their own
// reconciliation instructions in Error().
func respondLedgerError(c *gin.Context, err error) {
	var lagErr *models.LedgerLagError
	var colErr *models.ColumnInsertError
	var invErr *models.InventoryWriteError

	switch {
	case errors.As(err, &lagErr):
		c.JSON(http.StatusInternalServerError, gin.H{
			"outcome": models.EntryOutcomeInventoryOnly,
			"error":   lagErr.Error(),
		})
	case errors.As(err, &colErr):
		c.JSON(http.StatusInternalServerError, gin.H{
			"outcome": models.ProvisionOutcomeInventoryOnly,
			"error":   colErr.Error(),
		})
	case errors.As(err, &invErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": invErr.Error()})
	case errors.Is(err, models.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInsufficientStock),
		errors.Is(err, models.ErrDuplicateProduct):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrMissingSentinel),
		errors.Is(err, models.ErrEmptyProductRegion):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "структурата на '" + models.TableSales + "' е невалидна: " + err.Error(),
		})
	case errors.Is(err, models.ErrTableNotFound),
		errors.Is(err, models.ErrAccessDenied),
		errors.Is(err, models.ErrTableMalformed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrExtractionDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "AI функцията е деактивирана поради липсващ API ключ",
		})
	default:
		config.LogErrorCtx(c.Request.Context(), config.GetLogger(), "handlers.go", "respondLedgerError", c.FullPath(), nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "вътрешна грешка"})
	}
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if !bindJSON(c, &req) {
			return
		}
		adminUser := os.Getenv("ADMIN_USERNAME")
		if adminUser == "" {
			adminUser = "admin"
		}
		adminHash := os.Getenv("ADMIN_PASSWORD_HASH")
		if req.Username != adminUser || adminHash == "" ||
			utils.ComparePassword(adminHash, req.Password) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "грешно име или парола"})
			return
		}
		token, err := utils.JwtGenerate(req.Username, "operator")
		if err != nil {
			config.LogErrorCtx(c.Request.Context(), config.GetLogger(), "handlers.go", "loginHandler", "JwtGenerate", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "вътрешна грешка"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

func newEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req newEntryRequest
		if !bindJSON(c, &req) {
			return
		}
		if req.UnitPrice.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "цената не може да е отрицателна"})
			return
		}
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "невалидна дата, очаква се YYYY-MM-DD"})
			return
		}

		result, err := models.RecordEntry(c.Request.Context(), getLedgerStore(), &models.EntryInput{
			ClientName:     req.ClientName,
			DocumentNumber: req.DocumentNumber,
			Date:           date,
			Note:           req.Note,
			Product:        req.Product,
			Quantity:       req.Quantity,
			UnitPrice:      req.UnitPrice,
		})
		if err != nil {
			respondLedgerError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"outcome":     result.Outcome,
			"newQuantity": result.NewQuantity,
			"lineTotal":   result.LineTotal.StringFixed(2),
			"insertedRow": result.InsertedRow,
		})
	}
}

func listProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := models.ListProducts(c.Request.Context(), getLedgerStore())
		if err != nil {
			respondLedgerError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"products": products})
	}
}

func provisionProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req provisionRequest
		if !bindJSON(c, &req) {
			return
		}
		result, err := models.ProvisionProduct(c.Request.Context(), getLedgerStore(), req.ProductName, req.InitialQuantity)
		if err != nil {
			respondLedgerError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"outcome": result.Outcome,
			"product": result.Product,
		})
	}
}

func productSalesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := models.QueryProduct(c.Request.Context(), getLedgerStore(), c.Param("name"))
		if err != nil {
			respondLedgerError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func documentSearchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req documentSearchRequest
		if !bindJSON(c, &req) {
			return
		}
		items, err := models.SearchDocuments(c.Request.Context(), getLedgerStore(), req.DocumentNumber)
		if err != nil {
			respondLedgerError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"documentNumber": req.DocumentNumber,
			"documents":      items,
		})
	}
}
