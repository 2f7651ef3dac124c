package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"exchangeflow/internal/domain"
	"exchangeflow/pkg/logger"
)

// statusFor maps an error kind onto the HTTP status shown to the client.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateApplication),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrAlreadyActive),
		errors.Is(err, domain.ErrProgramNotActive),
		errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConfirmationRequired):
		return http.StatusPreconditionRequired
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAccountLocked):
		return http.StatusLocked
	}
	return http.StatusInternalServerError
}

// writeError answers with the single message the user should see. Store
// failures are logged in full and reported generically.
func writeError(w http.ResponseWriter, r *http.Request, log logger.Logger, err error) {
	status := statusFor(err)

	message := err.Error()
	var domainErr *domain.Error
	var cascadeErr *domain.CascadeError
	switch {
	case errors.As(err, &cascadeErr):
	case errors.As(err, &domainErr):
		message = domainErr.Message
	case status == http.StatusInternalServerError:
		message = "the operation could not be stored, please try again later"
	}

	if status >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "Request failed", map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
			"error":  err.Error(),
		})
	} else {
		log.WarnContext(r.Context(), "Request rejected", map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": status,
			"error":  err.Error(),
		})
	}

	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.NewError(domain.ErrInvalidInput, "invalid request body: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, domain.NewError(domain.ErrInvalidInput, "invalid %s %q", name, r.PathValue(name))
	}
	return id, nil
}
