// internal/handlers/customer/customer_handler.go
package customer

import (
	"net/http"
	"time"

	"collectsync-service/internal/domain/customer"
	"collectsync-service/internal/pkg/response"
	"collectsync-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CustomerHandler struct {
	store  *store.Store
	logger *zap.Logger
}

func NewCustomerHandler(localStore *store.Store, logger *zap.Logger) *CustomerHandler {
	return &CustomerHandler{store: localStore, logger: logger}
}

func (h *CustomerHandler) List(c *gin.Context) {
	docs := h.store.Get(store.CollectionCustomers)
	records := make([]customer.Record, 0, len(docs))
	for _, doc := range docs {
		var rec customer.Record
		if err := doc.Decode(&rec); err != nil {
			h.logger.Warn("skipping undecodable customer",
				zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	response.Success(c, http.StatusOK, "customers", records)
}

type upsertRequest struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone"`
	City    string `json:"city"`
	Zone    string `json:"zone"`
	Balance string `json:"balance"`
}

func (h *CustomerHandler) Create(c *gin.Context) {
	var req upsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "name is required", err)
		return
	}

	balance := decimal.Zero
	if req.Balance != "" {
		var err error
		if balance, err = decimal.NewFromString(req.Balance); err != nil {
			response.ValidationError(c, "balance is not a number", err)
			return
		}
	}

	now := time.Now().UTC()
	rec := customer.Record{
		ID:        ulid.Make().String(),
		Name:      req.Name,
		Phone:     req.Phone,
		City:      req.City,
		Zone:      req.Zone,
		Balance:   balance,
		Status:    customer.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	doc, err := store.NewDocument(rec.ID, rec)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to encode customer", err)
		return
	}
	if err := h.store.Put(store.CollectionCustomers, doc); err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to create customer", err)
		return
	}
	response.Success(c, http.StatusCreated, "customer created", rec)
}
