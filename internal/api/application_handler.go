package api

import (
	"net/http"

	"exchangeflow/internal/domain"
	"exchangeflow/pkg/logger"
)

type ApplicationHandler struct {
	service domain.ApplicationService
	guard   *Guard
	logger  logger.Logger
}

type createApplicationRequest struct {
	ProgramID int64 `json:"program_id"`
	OfferID   int64 `json:"offer_id"`
}

type statusRequest struct {
	Status domain.ApplicationStatus `json:"status"`
}

func NewApplicationHandler(service domain.ApplicationService, guard *Guard, logger logger.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		service: service,
		guard:   guard,
		logger:  logger,
	}
}

// CreateApplication files an application for the logged in student.
func (h *ApplicationHandler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	var req createApplicationRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	app, err := h.service.CreateApplication(r.Context(), req.ProgramID, UserFromContext(r.Context()).ID, req.OfferID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

// ListApplications takes filter and value query parameters. Students only
// ever see their own applications.
func (h *ApplicationHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	filter := domain.ApplicationFilter{
		Kind:  domain.ApplicationFilterKind(r.URL.Query().Get("filter")),
		Value: r.URL.Query().Get("value"),
	}

	user := UserFromContext(r.Context())
	if user.IsStudent() {
		filter = domain.ApplicationFilter{Kind: domain.FilterByStudent, Value: user.ID}
	}

	apps, err := h.service.ListApplications(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (h *ApplicationHandler) GetApplication(w http.ResponseWriter, r *http.Request) {
	app, ok := h.visibleApplication(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (h *ApplicationHandler) AddInteraction(w http.ResponseWriter, r *http.Request) {
	app, ok := h.visibleApplication(w, r)
	if !ok {
		return
	}

	var input domain.InteractionInput
	if err := decode(r, &input); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	input.AuthorID = UserFromContext(r.Context()).ID

	app, err := h.service.AddInteraction(r.Context(), app.ID, input)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (h *ApplicationHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req statusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	app, err := h.service.SetApplicationStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (h *ApplicationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.service.AcceptAndRejectRest(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// visibleApplication loads the application in the path, hiding other
// students' applications from a student caller.
func (h *ApplicationHandler) visibleApplication(w http.ResponseWriter, r *http.Request) (*domain.Application, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}

	app, err := h.service.GetApplication(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}

	user := UserFromContext(r.Context())
	if user.IsStudent() && app.StudentID != user.ID {
		writeError(w, r, h.logger, domain.NewError(domain.ErrNotFound, "application %d not found", id))
		return nil, false
	}
	return app, true
}

func (h *ApplicationHandler) RegisterRoutes(mux *http.ServeMux) {
	anyone := h.guard.Require()
	student := h.guard.Require(domain.RoleStudent)
	staff := h.guard.Require(domain.RoleStaff)

	mux.HandleFunc("GET /api/applications", anyone(h.ListApplications))
	mux.HandleFunc("POST /api/applications", student(h.CreateApplication))
	mux.HandleFunc("GET /api/applications/{id}", anyone(h.GetApplication))
	mux.HandleFunc("POST /api/applications/{id}/interactions", anyone(h.AddInteraction))
	mux.HandleFunc("PUT /api/applications/{id}/status", staff(h.SetStatus))
	mux.HandleFunc("POST /api/applications/{id}/accept", staff(h.Accept))
}
