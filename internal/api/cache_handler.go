package api

import (
	"context"
	"net/http"
	"time"

	"exchangeflow/internal/domain"
	"exchangeflow/pkg/logger"
)

// Reloader rebuilds the object cache from the store.
type Reloader interface {
	Reload(ctx context.Context) error
}

type CacheHandler struct {
	cache  Reloader
	guard  *Guard
	logger logger.Logger
}

func NewCacheHandler(cache Reloader, guard *Guard, logger logger.Logger) *CacheHandler {
	return &CacheHandler{
		cache:  cache,
		guard:  guard,
		logger: logger,
	}
}

func (h *CacheHandler) Reload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := h.cache.Reload(r.Context()); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "reloaded",
		"duration":  time.Since(start).String(),
		"timestamp": time.Now(),
	})
}

func (h *CacheHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/cache/reload", h.guard.Require(domain.RoleStaff)(h.Reload))
}
