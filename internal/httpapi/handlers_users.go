package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"formlink/internal/domain"
)

type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

type sessionResponse struct {
	Status string `json:"status"`
	Token  string `json:"token"`
	Data   struct {
		User userResponse `json:"user"`
	} `json:"data"`
}

func writeSession(w http.ResponseWriter, status int, u domain.User, token string) {
	resp := sessionResponse{Status: "success", Token: token}
	resp.Data.User = toUserResponse(u)
	WriteJSON(w, status, resp)
}

type signupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (a *api) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteFail(w, http.StatusBadRequest, "invalid json")
		return
	}

	u, token, err := a.accounts.Signup(r.Context(), req.Name, req.Email, req.Password, req.PasswordConfirm)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	writeSession(w, http.StatusCreated, u, token)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteFail(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Email == "" || req.Password == "" {
		WriteFail(w, http.StatusBadRequest, "please provide email and password")
		return
	}

	now := time.Now()
	if !a.loginLimiter.Allow("login:ip:"+clientIP(r), now) || !a.loginLimiter.Allow("login:email:"+req.Email, now) {
		WriteFail(w, http.StatusTooManyRequests, "too many attempts, please try again later")
		return
	}

	u, token, err := a.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	writeSession(w, http.StatusOK, u, token)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (a *api) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteFail(w, http.StatusBadRequest, "invalid json")
		return
	}

	now := time.Now()
	if !a.loginLimiter.Allow("forgot:ip:"+clientIP(r), now) || !a.loginLimiter.Allow("forgot:email:"+req.Email, now) {
		WriteFail(w, http.StatusTooManyRequests, "too many attempts, please try again later")
		return
	}

	err := a.accounts.ForgotPassword(r.Context(), req.Email, func(rawToken string) string {
		return a.absoluteURL(r, "/v1/users/resetpassword/"+url.PathEscape(rawToken))
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			WriteFail(w, http.StatusNotFound, "there is no user with this email address")
			return
		}
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "token sent to email"})
}

type resetPasswordRequest struct {
	NewPassword        string `json:"newPassword"`
	NewPasswordConfirm string `json:"newPasswordConfirm"`
}

type tokenResponse struct {
	Status string `json:"status"`
	Token  string `json:"token"`
}

func (a *api) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteFail(w, http.StatusBadRequest, "invalid json")
		return
	}

	token, err := a.accounts.ResetPassword(r.Context(), r.PathValue("token"), req.NewPassword, req.NewPasswordConfirm)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, tokenResponse{Status: "success", Token: token})
}

type changePasswordRequest struct {
	CurrentPassword    string `json:"currentPassword"`
	NewPassword        string `json:"newPassword"`
	NewPasswordConfirm string `json:"newPasswordConfirm"`
}

func (a *api) handleChangePassword(w http.ResponseWriter, r *http.Request, u domain.User) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteFail(w, http.StatusBadRequest, "invalid json")
		return
	}

	token, err := a.accounts.ChangePassword(r.Context(), u.ID, req.CurrentPassword, req.NewPassword, req.NewPasswordConfirm)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			WriteFail(w, http.StatusUnauthorized, "your current password is wrong")
			return
		}
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, tokenResponse{Status: "success", Token: token})
}

// updateMeRequest declares the password fields only to reject them outright;
// everything else outside {name, email} is dropped by the decoder.
type updateMeRequest struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
}

func (a *api) handleUpdateMe(w http.ResponseWriter, r *http.Request, u domain.User) {
	var req updateMeRequest
	if err := decodeJSONAllowUnknownFields(w, r, &req); err != nil {
		WriteFail(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Password != nil || req.PasswordConfirm != nil {
		WriteFail(w, http.StatusBadRequest, "this route is not for password updates, please use /changepassword")
		return
	}

	updated, err := a.accounts.UpdateMe(r.Context(), u.ID, domain.ProfileUpdate{Name: req.Name, Email: req.Email})
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		Data   struct {
			User userResponse `json:"user"`
		} `json:"data"`
	}{Status: "success", Data: struct {
		User userResponse `json:"user"`
	}{User: toUserResponse(updated)}})
}

func (a *api) handleDeleteMe(w http.ResponseWriter, r *http.Request, u domain.User) {
	if err := a.accounts.DeleteMe(r.Context(), u.ID); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := a.accounts.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, struct {
		Status string       `json:"status"`
		Data   userResponse `json:"data"`
	}{Status: "success", Data: toUserResponse(u)})
}

func (a *api) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.accounts.ListUsers(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}

	WriteJSON(w, http.StatusOK, struct {
		Status  string `json:"status"`
		Results int    `json:"results"`
		Data    struct {
			Users []userResponse `json:"users"`
		} `json:"data"`
	}{Status: "success", Results: len(out), Data: struct {
		Users []userResponse `json:"users"`
	}{Users: out}})
}

func (a *api) handleDeleteUser(w http.ResponseWriter, r *http.Request, _ domain.User) {
	deleted, err := a.accounts.DeleteUser(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			WriteFail(w, http.StatusNotFound, "user not found")
			return
		}
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, struct {
		Status  string       `json:"status"`
		Message string       `json:"message"`
		Data    userResponse `json:"data"`
	}{Status: "success", Message: "user deleted successfully", Data: toUserResponse(deleted)})
}

func (a *api) absoluteURL(r *http.Request, path string) string {
	if a.publicURL != nil {
		u := *a.publicURL
		u.Path = path
		return u.String()
	}
	scheme := "http"
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, path)
}
