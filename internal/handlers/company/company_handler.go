// internal/handlers/company/company_handler.go
package company

import (
	"net/http"
	"time"

	"collectsync-service/internal/domain/company"
	"collectsync-service/internal/goal"
	"collectsync-service/internal/pkg/response"
	"collectsync-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type CompanyHandler struct {
	store *store.Store
	goals *goal.Service
}

func NewCompanyHandler(localStore *store.Store, goals *goal.Service) *CompanyHandler {
	return &CompanyHandler{store: localStore, goals: goals}
}

func (h *CompanyHandler) GetProfile(c *gin.Context) {
	doc, ok := h.store.GetDocument(store.CollectionSettings, company.ProfileID)
	if !ok {
		response.NotFound(c, "company profile not set")
		return
	}
	var profile company.Profile
	if err := doc.Decode(&profile); err != nil {
		response.Error(c, http.StatusInternalServerError, "corrupt company profile", err)
		return
	}
	response.Success(c, http.StatusOK, "company profile", profile)
}

// SetProfile replaces the singleton profile; the change fans out to every
// subscribed device through the settings collection.
func (h *CompanyHandler) SetProfile(c *gin.Context) {
	var profile company.Profile
	if err := c.ShouldBindJSON(&profile); err != nil {
		response.ValidationError(c, "invalid company profile", err)
		return
	}
	profile.ID = company.ProfileID
	profile.UpdatedAt = time.Now().UTC()

	doc, err := store.NewDocument(profile.ID, profile)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to encode profile", err)
		return
	}
	if err := h.store.Put(store.CollectionSettings, doc); err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to save profile", err)
		return
	}
	response.Success(c, http.StatusOK, "company profile updated", profile)
}

func (h *CompanyHandler) GetProgress(c *gin.Context) {
	period := company.GoalPeriod(c.Param("period"))
	if !period.Valid() {
		response.ValidationError(c, "unknown goal period", nil)
		return
	}
	progress, ok := h.goals.Progress(period)
	if !ok {
		response.NotFound(c, "no goal set for period")
		return
	}
	response.Success(c, http.StatusOK, "goal progress", progress)
}

type targetRequest struct {
	Target string `json:"target" binding:"required"`
}

func (h *CompanyHandler) SetTarget(c *gin.Context) {
	period := company.GoalPeriod(c.Param("period"))
	if !period.Valid() {
		response.ValidationError(c, "unknown goal period", nil)
		return
	}

	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "target is required", err)
		return
	}
	target, err := decimal.NewFromString(req.Target)
	if err != nil {
		response.ValidationError(c, "target is not a number", err)
		return
	}

	if err := h.goals.SetTarget(c.Request.Context(), period, target); err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to set goal", err)
		return
	}
	response.Success(c, http.StatusOK, "goal target set", nil)
}

func (h *CompanyHandler) CashInHand(c *gin.Context) {
	response.Success(c, http.StatusOK, "cash in hand", gin.H{
		"amount": h.goals.CashInHand(),
	})
}
