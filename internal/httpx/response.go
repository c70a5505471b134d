// Package httpx holds the JSON response helpers used by every handler.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/ayush/skillswap/internal/errs"
)

// Error codes returned in the "code" field.
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeRateLimited       = "RATE_LIMITED"
	CodeInternal          = "INTERNAL_ERROR"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteErr sends {"error": message, "code": code}.
func WriteErr(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, map[string]string{"error": message, "code": code})
}

// WriteError maps a service error to its HTTP status. Unknown errors are
// logged and reported as a generic server error.
func WriteError(w http.ResponseWriter, log zerolog.Logger, err error) {
	status, code := Classify(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
		WriteErr(w, status, code, "server error")
		return
	}
	WriteErr(w, status, code, err.Error())
}

// Classify returns the HTTP status and error code for err.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrSelfRequest):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, errs.ErrUnauthorized), errors.Is(err, errs.ErrInvalidCredentials):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, errs.ErrNotFound), errors.Is(err, errs.ErrUserNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, errs.ErrConflict), errors.Is(err, errs.ErrUserExists):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, errs.ErrInvalidTransition):
		return http.StatusConflict, CodeInvalidTransition
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// DecodeJSON decodes the request body into dst and runs struct validation.
// Failures wrap errs.ErrValidation.
func DecodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body", errs.ErrValidation)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", errs.ErrValidation, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	return nil
}
