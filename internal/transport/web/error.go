package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/avstrong/reservations/internal/booking"
)

var (
	ErrPanic        = errors.New("panic")
	ErrMissingActor = errors.New("X-User-ID header is missing")
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.l.LogErrorf("Could not encode response: %v", err.Error())
	}
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "bad_request"})
}

// writeError maps the booking error kinds onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error, action string) {
	if nf := booking.IsNotFoundError(err); nf != nil {
		s.writeJSON(w, http.StatusNotFound, errorBody{Error: nf.Error(), Kind: "not_found"})

		return
	}

	if re := booking.IsRuleError(err); re != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: re.Error(), Kind: "business_rule"})

		return
	}

	if ce := booking.IsConflictError(err); ce != nil {
		s.writeJSON(w, http.StatusConflict, errorBody{Error: ce.Error(), Kind: "conflict"})

		return
	}

	s.l.LogErrorf("Could not %s: %v", action, err.Error())
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
