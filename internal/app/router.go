// internal/app/router.go
package app

import (
	"collectsync-service/internal/domain/staff"
	authHandler "collectsync-service/internal/handlers/auth"
	companyHandler "collectsync-service/internal/handlers/company"
	customerHandler "collectsync-service/internal/handlers/customer"
	entryHandler "collectsync-service/internal/handlers/entry"
	notifyHandler "collectsync-service/internal/handlers/notification"
	rosterHandler "collectsync-service/internal/handlers/roster"
	streamHandler "collectsync-service/internal/handlers/stream"
	syncHandler "collectsync-service/internal/handlers/syncstatus"
	"collectsync-service/internal/middleware"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	AuthHandler     *authHandler.AuthHandler
	RosterHandler   *rosterHandler.RosterHandler
	EntryHandler    *entryHandler.EntryHandler
	CustomerHandler *customerHandler.CustomerHandler
	NotifHandler    *notifyHandler.NotificationHandler
	CompanyHandler  *companyHandler.CompanyHandler
	SyncHandler     *syncHandler.SyncHandler
	StreamHandler   *streamHandler.StreamHandler
	AuthMiddleware  *middleware.AuthMiddleware
	Touch           gin.HandlerFunc
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	// Authenticates via ?token= inside the handler; browsers cannot set
	// headers on websocket upgrades.
	r.GET("/ws", h.StreamHandler.Serve)

	// ==================== Public Auth Routes ====================
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/login", h.AuthHandler.Login)
		authPublic.POST("/otp/verify", h.AuthHandler.VerifyOTP)
	}

	// ==================== Authenticated Routes ====================
	authed := api.Group("")
	authed.Use(h.AuthMiddleware.Auth(), h.Touch)
	{
		authed.POST("/auth/logout", h.AuthHandler.Logout)

		// Sync status
		authed.GET("/sync/status", h.SyncHandler.Status)

		// Ledger entries
		authed.GET("/collections", h.EntryHandler.ListCollections)
		authed.POST("/collections", h.EntryHandler.CreateCollection)
		authed.GET("/expenses", h.EntryHandler.ListExpenses)
		authed.POST("/expenses", h.EntryHandler.CreateExpense)

		// Customers
		authed.GET("/customers", h.CustomerHandler.List)

		// Staff roster
		authed.GET("/roster", h.RosterHandler.List)

		// Notifications
		authed.GET("/notifications", h.NotifHandler.List)
		authed.PUT("/notifications/:id/read", h.NotifHandler.MarkRead)
		authed.PUT("/notifications/read-all", h.NotifHandler.MarkAllRead)

		// Company profile and goals
		authed.GET("/company/profile", h.CompanyHandler.GetProfile)
		authed.GET("/company/goals/:period", h.CompanyHandler.GetProgress)
		authed.GET("/company/cash-in-hand", h.CompanyHandler.CashInHand)
	}

	// ==================== Admin Routes ====================
	admin := api.Group("")
	admin.Use(h.AuthMiddleware.Auth(), h.Touch,
		h.AuthMiddleware.RequireRole(staff.RoleAdminDelegate))
	{
		// Roster management
		admin.POST("/roster", h.RosterHandler.Create)
		admin.PUT("/roster/:id/status", h.RosterHandler.SetStatus)
		admin.PUT("/roster/:id/role", h.RosterHandler.SetRole)
		admin.PUT("/roster/:id/pin", h.RosterHandler.SetPIN)

		// Entry verification
		admin.PUT("/collections/:id/verification", h.EntryHandler.SetVerification)

		// Customers
		admin.POST("/customers", h.CustomerHandler.Create)

		// Broadcasts
		admin.POST("/notifications/broadcast", h.NotifHandler.Broadcast)

		// Company profile and goals
		admin.PUT("/company/profile", h.CompanyHandler.SetProfile)
		admin.PUT("/company/goals/:period", h.CompanyHandler.SetTarget)
	}
}
