// internal/handlers/entry/entry_handler.go
package entry

import (
	"net/http"
	"time"

	"collectsync-service/internal/domain/ledger"
	"collectsync-service/internal/domain/staff"
	"collectsync-service/internal/middleware"
	"collectsync-service/internal/pkg/response"
	"collectsync-service/internal/pkg/xerrors"
	"collectsync-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EntryHandler records collections and expenses. Writes land in the local
// store first, so data entry keeps working offline; the sync engine pushes
// them upstream when the network allows.
type EntryHandler struct {
	store  *store.Store
	logger *zap.Logger
}

func NewEntryHandler(localStore *store.Store, logger *zap.Logger) *EntryHandler {
	return &EntryHandler{store: localStore, logger: logger}
}

type createRequest struct {
	Amount      string `json:"amount" binding:"required"`
	Counterpart string `json:"counterpart" binding:"required"`
	Mode        string `json:"mode" binding:"required"`
	Remarks     string `json:"remarks"`
}

func (h *EntryHandler) CreateCollection(c *gin.Context) {
	h.create(c, store.CollectionEntries)
}

func (h *EntryHandler) CreateExpense(c *gin.Context) {
	h.create(c, store.CollectionExpenses)
}

func (h *EntryHandler) create(c *gin.Context, collection string) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "amount, counterpart and mode are required", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ValidationError(c, "amount is not a number", err)
		return
	}

	staffName := h.actorName(c)
	entry := ledger.Entry{
		ID:           ulid.Make().String(),
		At:           time.Now().UTC(),
		Amount:       amount,
		Counterpart:  req.Counterpart,
		Mode:         ledger.PaymentMode(req.Mode),
		Staff:        staffName,
		Verification: ledger.VerificationPending,
		Remarks:      req.Remarks,
	}
	if err := entry.Validate(); err != nil {
		response.ValidationError(c, "invalid entry", err)
		return
	}

	doc, err := store.NewDocument(entry.ID, entry)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to encode entry", err)
		return
	}
	if err := h.store.Put(collection, doc); err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to record entry", err)
		return
	}
	response.Success(c, http.StatusCreated, "entry recorded", entry)
}

func (h *EntryHandler) ListCollections(c *gin.Context) {
	h.list(c, store.CollectionEntries)
}

func (h *EntryHandler) ListExpenses(c *gin.Context) {
	h.list(c, store.CollectionExpenses)
}

func (h *EntryHandler) list(c *gin.Context, collection string) {
	docs := h.store.Get(collection)
	entries := make([]ledger.Entry, 0, len(docs))
	for _, doc := range docs {
		var e ledger.Entry
		if err := doc.Decode(&e); err != nil {
			h.logger.Warn("skipping undecodable entry",
				zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}
	response.Success(c, http.StatusOK, "entries", entries)
}

type verificationRequest struct {
	Status ledger.Verification `json:"status" binding:"required"`
}

// SetVerification toggles the one mutable field on an entry. Admin only.
func (h *EntryHandler) SetVerification(c *gin.Context) {
	var req verificationRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Status.Valid() {
		response.ValidationError(c, "a valid verification status is required", err)
		return
	}

	id := c.Param("id")
	doc, ok := h.store.GetDocument(store.CollectionEntries, id)
	if !ok {
		response.NotFound(c, "entry not found")
		return
	}

	var entry ledger.Entry
	if err := doc.Decode(&entry); err != nil {
		response.Error(c, http.StatusInternalServerError, "corrupt entry", err)
		return
	}
	entry.Verification = req.Status

	next, err := store.NewDocument(id, entry)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to encode entry", err)
		return
	}
	if err := h.store.Put(store.CollectionEntries, next); err != nil {
		if xerrors.Is(err, xerrors.ErrImmutableField) {
			response.Error(c, http.StatusConflict, "entry fields are write-once", err)
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to update entry", err)
		return
	}
	response.Success(c, http.StatusOK, "verification updated", nil)
}

// actorName resolves the authenticated staff id to a display name for the
// entry's staff attribution.
func (h *EntryHandler) actorName(c *gin.Context) string {
	staffID, ok := middleware.GetStaffID(c)
	if !ok {
		return ""
	}
	doc, ok := h.store.GetDocument(store.CollectionStaff, staffID)
	if !ok {
		return staffID
	}
	var account staff.Account
	if err := doc.Decode(&account); err != nil {
		return staffID
	}
	return account.Name
}
