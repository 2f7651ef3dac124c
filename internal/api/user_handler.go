package api

import (
	"net/http"

	"exchangeflow/internal/domain"
	"exchangeflow/pkg/logger"
)

type UserHandler struct {
	service domain.UserService
	guard   *Guard
	logger  logger.Logger
}

func NewUserHandler(service domain.UserService, guard *Guard, logger logger.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		guard:   guard,
		logger:  logger,
	}
}

// CreateUser is open for student self registration. Staff and auditor
// accounts need a staff session, except for the very first staff account.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var input domain.UserInput
	if err := decode(r, &input); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var actor *domain.User
	if input.Role != domain.RoleStudent {
		var err error
		if actor, err = h.guard.Actor(r); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}

	user, err := h.service.SignUp(r.Context(), input, actor)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, UserFromContext(r.Context()))
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var input domain.ProfileInput
	if err := decode(r, &input); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), UserFromContext(r.Context()).ID, input)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context(), domain.Role(r.URL.Query().Get("role")))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) RegisterRoutes(mux *http.ServeMux) {
	anyone := h.guard.Require()
	staff := h.guard.Require(domain.RoleStaff, domain.RoleAuditor)

	mux.HandleFunc("POST /api/users", h.CreateUser)
	mux.HandleFunc("GET /api/users", staff(h.ListUsers))
	mux.HandleFunc("GET /api/users/me", anyone(h.Me))
	mux.HandleFunc("PUT /api/users/me", anyone(h.UpdateMe))
}
