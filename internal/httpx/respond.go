package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-order-to-cash/internal/authz"
	"github.com/ariefcatur/go-order-to-cash/internal/errs"
)

// HeaderRole carries the caller's role. Authentication happens upstream.
const HeaderRole = "X-Actor-Role"

func roleOf(r *http.Request) authz.Role {
	return authz.ParseRole(r.Header.Get(HeaderRole))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   *errs.Error `json:"error"`
	Message string      `json:"message"`
}

func statusFor(k errs.Kind) int {
	switch k {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindUnauthorized:
		return http.StatusForbidden
	case errs.KindInvalidInput, errs.KindInvalidQuantity, errs.KindInvalidAmount, errs.KindEmptyQuotation:
		return http.StatusUnprocessableEntity
	case errs.KindAlreadyExists, errs.KindInsufficientStock, errs.KindInvalidTransition,
		errs.KindInvalidRelease, errs.KindCreditExceeded:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	var e *errs.Error
	if !errors.As(err, &e) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	writeJSON(w, statusFor(e.Kind), errorBody{Error: e, Message: e.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
		return false
	}
	return true
}
