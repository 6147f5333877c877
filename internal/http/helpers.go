package http

import (
	"errors"
	"fmt"
	"net/http"

	"transactions/internal/core"
	"transactions/internal/log"
	"transactions/internal/services"
)

// validationMessage is the client-facing text for a rejected parameter.
func (s *Server) validationMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidMonth):
		return "Invalid month: use 1-12 or a month name"
	case errors.Is(err, core.ErrInvalidPage):
		return "Invalid page: must be a positive integer"
	case errors.Is(err, core.ErrInvalidPerPage):
		return fmt.Sprintf("Invalid perPage: must be an integer between 1 and %d", s.pages.MaxPerPage)
	case errors.Is(err, core.ErrInvalidSearch):
		return fmt.Sprintf("Invalid search: at most %d characters", maxSearchLength)
	}
	return "Invalid request"
}

// writeServiceError maps a service failure to 400 or 500. Store details
// stay in the log.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if services.IsValidation(err) {
		BadRequestError(s.validationMessage(err)).Write(w)
		return
	}
	s.events.LogError(r.Context(), "Request failed", err, op, log.NewFields().WithRequestID(requestID(r)))
	InternalServerError("Failed to fetch transactions").Write(w)
}
