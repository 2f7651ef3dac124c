package api

import (
	"net/http"
	"strconv"

	"exchangeflow/internal/domain"
	"exchangeflow/pkg/logger"
)

type OfferHandler struct {
	service domain.OfferService
	guard   *Guard
	logger  logger.Logger
}

func NewOfferHandler(service domain.OfferService, guard *Guard, logger logger.Logger) *OfferHandler {
	return &OfferHandler{
		service: service,
		guard:   guard,
		logger:  logger,
	}
}

func (h *OfferHandler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var input domain.OfferInput
	if err := decode(r, &input); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	offer, err := h.service.CreateOffer(r.Context(), input)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, offer)
}

func (h *OfferHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	var programID int64
	if v := r.URL.Query().Get("program_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, r, h.logger, domain.NewError(domain.ErrInvalidInput, "invalid program_id %q", v))
			return
		}
		programID = id
	}

	offers, err := h.service.ListOffers(r.Context(), programID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, offers)
}

func (h *OfferHandler) GetOffer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	offer, err := h.service.GetOffer(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

func (h *OfferHandler) DeleteOffer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.service.DeleteOffer(r.Context(), id, UserFromContext(r.Context()).ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OfferHandler) RegisterRoutes(mux *http.ServeMux) {
	anyone := h.guard.Require()
	staff := h.guard.Require(domain.RoleStaff)

	mux.HandleFunc("GET /api/offers", anyone(h.ListOffers))
	mux.HandleFunc("GET /api/offers/{id}", anyone(h.GetOffer))
	mux.HandleFunc("POST /api/offers", staff(h.CreateOffer))
	mux.HandleFunc("DELETE /api/offers/{id}", staff(h.DeleteOffer))
}
