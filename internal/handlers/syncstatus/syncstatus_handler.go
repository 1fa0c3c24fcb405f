// internal/handlers/syncstatus/syncstatus_handler.go
package syncstatus

import (
	"net/http"

	"collectsync-service/internal/pkg/response"
	"collectsync-service/internal/store"
	"collectsync-service/internal/syncengine"

	"github.com/gin-gonic/gin"
)

// SyncHandler exposes the connectivity banner state and mirror sizes.
type SyncHandler struct {
	engine *syncengine.Engine
	store  *store.Store
}

func NewSyncHandler(engine *syncengine.Engine, localStore *store.Store) *SyncHandler {
	return &SyncHandler{engine: engine, store: localStore}
}

func (h *SyncHandler) Status(c *gin.Context) {
	sizes := make(map[string]int)
	for _, collection := range store.Tracked() {
		sizes[collection] = len(h.store.Get(collection))
	}

	response.Success(c, http.StatusOK, "sync status", gin.H{
		"online":         h.engine.Online(),
		"pending_writes": h.engine.Pending(),
		"collections":    sizes,
	})
}
