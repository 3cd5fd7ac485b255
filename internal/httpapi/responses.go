package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"formlink/internal/domain"
)

// Every response carries a status discriminator: "success" on 2xx, "fail" on
// 4xx, "error" on 5xx.
type failResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteFail(w http.ResponseWriter, status int, message string) {
	kind := "fail"
	if status >= 500 {
		kind = "error"
	}
	WriteJSON(w, status, failResponse{Status: kind, Message: message})
}

func WriteDomainError(w http.ResponseWriter, err error) {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		WriteFail(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, domain.ErrValidation):
		WriteFail(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, domain.ErrEmailTaken):
		WriteFail(w, http.StatusBadRequest, "email already in use")
	case errors.Is(err, domain.ErrResetTokenInvalid):
		WriteFail(w, http.StatusBadRequest, "token is invalid or has expired")
	case errors.Is(err, domain.ErrInvalidCredentials):
		WriteFail(w, http.StatusUnauthorized, "incorrect email or password")
	case errors.Is(err, domain.ErrInvalidToken):
		WriteFail(w, http.StatusUnauthorized, "invalid or expired token, please log in again")
	case errors.Is(err, domain.ErrPasswordChanged):
		WriteFail(w, http.StatusUnauthorized, "user recently changed password, please log in again")
	case errors.Is(err, domain.ErrUnauthorized):
		WriteFail(w, http.StatusUnauthorized, "you are not logged in, please log in to get access")
	case errors.Is(err, domain.ErrForbidden):
		WriteFail(w, http.StatusForbidden, "you do not have permission to perform this action")
	case errors.Is(err, domain.ErrNotFound):
		WriteFail(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrEmailDelivery):
		WriteFail(w, http.StatusInternalServerError, "there was an error sending the email, try again later")
	default:
		WriteFail(w, http.StatusInternalServerError, "internal server error")
	}
}
