// internal/handlers/roster/roster_handler.go
package roster

import (
	"net/http"
	"time"

	"collectsync-service/internal/auth"
	"collectsync-service/internal/domain/staff"
	"collectsync-service/internal/pkg/response"
	"collectsync-service/internal/presence"
	"collectsync-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// RosterHandler serves the staff roster for the admin console: account
// management plus lastSeen-derived online state.
type RosterHandler struct {
	store             *store.Store
	heartbeatInterval time.Duration
	logger            *zap.Logger
}

func NewRosterHandler(localStore *store.Store, heartbeatInterval time.Duration, logger *zap.Logger) *RosterHandler {
	return &RosterHandler{store: localStore, heartbeatInterval: heartbeatInterval, logger: logger}
}

type rosterEntry struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Role     staff.Role   `json:"role"`
	Status   staff.Status `json:"status"`
	LastSeen *time.Time   `json:"last_seen,omitempty"`
	Online   bool         `json:"online"`
}

func (h *RosterHandler) List(c *gin.Context) {
	docs := h.store.Get(store.CollectionStaff)
	now := time.Now().UTC()

	entries := make([]rosterEntry, 0, len(docs))
	for _, doc := range docs {
		var account staff.Account
		if err := doc.Decode(&account); err != nil {
			h.logger.Warn("skipping undecodable staff record",
				zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		entries = append(entries, rosterEntry{
			ID:       account.ID,
			Name:     account.Name,
			Role:     account.Role,
			Status:   account.Status,
			LastSeen: account.LastSeen,
			Online:   presence.Online(account.LastSeen, now, h.heartbeatInterval),
		})
	}
	response.Success(c, http.StatusOK, "staff roster", entries)
}

type createRequest struct {
	Name string     `json:"name" binding:"required"`
	Role staff.Role `json:"role" binding:"required"`
	PIN  string     `json:"pin" binding:"required"`
}

func (h *RosterHandler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "name, role and pin are required", err)
		return
	}
	if !req.Role.Valid() {
		response.ValidationError(c, "unknown role", nil)
		return
	}
	hash, err := auth.HashPIN(req.PIN)
	if err != nil {
		response.ValidationError(c, "pin must be 4 digits", err)
		return
	}

	now := time.Now().UTC()
	account := staff.Account{
		ID:        ulid.Make().String(),
		Name:      req.Name,
		Role:      req.Role,
		PINHash:   hash,
		Status:    staff.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.putAccount(account); err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to create staff account", err)
		return
	}
	response.Success(c, http.StatusCreated, "staff account created", account.ID)
}

type statusRequest struct {
	Status staff.Status `json:"status" binding:"required"`
}

// SetStatus flips an account between active and inactive. Deactivation
// propagates through sync to the device, whose session validator logs it out.
func (h *RosterHandler) SetStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "status is required", err)
		return
	}
	if req.Status != staff.StatusActive && req.Status != staff.StatusInactive {
		response.ValidationError(c, "unknown status", nil)
		return
	}

	h.update(c, func(account *staff.Account) {
		account.Status = req.Status
	})
}

type roleRequest struct {
	Role staff.Role `json:"role" binding:"required"`
}

func (h *RosterHandler) SetRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Role.Valid() {
		response.ValidationError(c, "a valid role is required", err)
		return
	}
	h.update(c, func(account *staff.Account) {
		account.Role = req.Role
	})
}

type pinRequest struct {
	PIN string `json:"pin" binding:"required"`
}

func (h *RosterHandler) SetPIN(c *gin.Context) {
	var req pinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "pin is required", err)
		return
	}
	hash, err := auth.HashPIN(req.PIN)
	if err != nil {
		response.ValidationError(c, "pin must be 4 digits", err)
		return
	}
	h.update(c, func(account *staff.Account) {
		account.PINHash = hash
	})
}

func (h *RosterHandler) update(c *gin.Context, mutate func(*staff.Account)) {
	id := c.Param("id")
	doc, ok := h.store.GetDocument(store.CollectionStaff, id)
	if !ok {
		response.NotFound(c, "staff account not found")
		return
	}

	var account staff.Account
	if err := doc.Decode(&account); err != nil {
		response.Error(c, http.StatusInternalServerError, "corrupt staff record", err)
		return
	}
	mutate(&account)
	account.UpdatedAt = time.Now().UTC()

	if err := h.putAccount(account); err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to update staff account", err)
		return
	}
	response.Success(c, http.StatusOK, "staff account updated", nil)
}

func (h *RosterHandler) putAccount(account staff.Account) error {
	doc, err := store.NewDocument(account.ID, account)
	if err != nil {
		return err
	}
	return h.store.Put(store.CollectionStaff, doc)
}
