package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/denizrest/selforder/internal/domain"
)

// Every response uses the {status, data, message, code} envelope the
// browser code expects.
type envelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func respondSuccess(w http.ResponseWriter, status int, data interface{}) []byte {
	return respond(w, status, envelope{Status: "success", Data: data})
}

func respondMessage(w http.ResponseWriter, status int, message string) []byte {
	return respond(w, status, envelope{Status: "success", Message: message})
}

func respondError(w http.ResponseWriter, err error, message string) {
	respond(w, httpStatus(err), envelope{Status: "error", Message: message, Code: domain.Code(err)})
}

func respond(w http.ResponseWriter, status int, env envelope) []byte {
	data, _ := json.Marshal(env)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	return data
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrActiveOrderExists),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrWindowClosed),
		errors.Is(err, domain.ErrSerializationFailure):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrNoTableSelected),
		errors.Is(err, domain.ErrCardInvalid):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPINInvalid):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
