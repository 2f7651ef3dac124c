package api

import (
	"net/http"
	"time"

	"exchangeflow/internal/domain"
	"exchangeflow/pkg/logger"
)

type ProgramHandler struct {
	service domain.ProgramService
	guard   *Guard
	logger  logger.Logger
}

type createProgramRequest struct {
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

func NewProgramHandler(service domain.ProgramService, guard *Guard, logger logger.Logger) *ProgramHandler {
	return &ProgramHandler{
		service: service,
		guard:   guard,
		logger:  logger,
	}
}

func (h *ProgramHandler) CreateProgram(w http.ResponseWriter, r *http.Request) {
	var req createProgramRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	program, err := h.service.CreateProgram(r.Context(), req.Name, req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, program)
}

func (h *ProgramHandler) ListPrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := h.service.ListPrograms(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, programs)
}

func (h *ProgramHandler) ActiveProgram(w http.ResponseWriter, r *http.Request) {
	program, err := h.service.ActiveProgram(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, program)
}

func (h *ProgramHandler) GetProgram(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	program, err := h.service.GetProgram(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, program)
}

func (h *ProgramHandler) FinalizeProgram(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.service.FinalizeProgram(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProgramHandler) DeleteProgram(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	confirmed := r.URL.Query().Get("confirm") == "true"
	if err := h.service.DeleteProgram(r.Context(), id, confirmed); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProgramHandler) RegisterRoutes(mux *http.ServeMux) {
	anyone := h.guard.Require()
	staff := h.guard.Require(domain.RoleStaff)

	mux.HandleFunc("GET /api/programs", anyone(h.ListPrograms))
	mux.HandleFunc("GET /api/programs/active", anyone(h.ActiveProgram))
	mux.HandleFunc("GET /api/programs/{id}", anyone(h.GetProgram))
	mux.HandleFunc("POST /api/programs", staff(h.CreateProgram))
	mux.HandleFunc("POST /api/programs/{id}/finalize", staff(h.FinalizeProgram))
	mux.HandleFunc("DELETE /api/programs/{id}", staff(h.DeleteProgram))
}
