package api

import (
	"net/http"
	"time"

	"exchangeflow/internal/domain"
	"exchangeflow/pkg/logger"
)

type AuthHandler struct {
	service domain.AuthService
	guard   *Guard
	logger  logger.Logger
}

type loginRequest struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	UserID    string      `json:"user_id"`
	Role      domain.Role `json:"role"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func NewAuthHandler(service domain.AuthService, guard *Guard, logger logger.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		guard:   guard,
		logger:  logger,
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	sess, err := h.service.Login(r.Context(), req.ID, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     sess.Token,
		UserID:    sess.UserID,
		Role:      sess.Role,
		ExpiresAt: sess.ExpiresAt,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), bearerToken(r)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Unlock(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux) {
	staff := h.guard.Require(domain.RoleStaff)

	mux.HandleFunc("POST /api/login", h.Login)
	mux.HandleFunc("POST /api/logout", h.guard.Require()(h.Logout))
	mux.HandleFunc("POST /api/users/{id}/unlock", staff(h.Unlock))
}
