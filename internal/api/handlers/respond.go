package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/rohits-web03/passkeyd/internal/api/services"
	"github.com/rohits-web03/passkeyd/internal/utils"
	"go.uber.org/zap"
)

const maxBodyBytes = 8 << 20 // 8 MB

// decode reads a JSON body into dst, rejecting unknown fields and trailing data.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil || dec.More() {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Invalid input",
		})
		return false
	}
	return true
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func invalidInput(w http.ResponseWriter) {
	utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
		Success: false,
		Message: "Invalid input",
	})
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	utils.JSONResponse(w, http.StatusUnauthorized, utils.Payload{
		Success: false,
		Message: message,
	})
}

// writeError maps service errors onto status codes. Unauthorized is always
// generic; unexpected errors are logged and hidden.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{Message: detail(err, services.ErrValidation)})
	case errors.Is(err, services.ErrUnauthorized):
		unauthorized(w, "Unauthorized")
	case errors.Is(err, services.ErrNotFound):
		utils.JSONResponse(w, http.StatusNotFound, utils.Payload{Message: detail(err, services.ErrNotFound)})
	case errors.Is(err, services.ErrConflict):
		utils.JSONResponse(w, http.StatusConflict, utils.Payload{Message: detail(err, services.ErrConflict)})
	default:
		log.Error("request failed", zap.Error(err))
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{Message: "Internal server error"})
	}
}

// detail drops the "<sentinel>: " prefix services put in front of their messages.
func detail(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}
