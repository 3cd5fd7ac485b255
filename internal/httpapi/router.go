package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"formlink/internal/domain"
	"formlink/internal/service"
)

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing func(context.Context) error

	Accounts  *service.AccountService
	Links     *service.LinkService
	PublicURL *url.URL
}

type api struct {
	logger     *slog.Logger
	isProd     bool
	dbPing     func(context.Context) error
	accounts   *service.AccountService
	links      *service.LinkService
	publicURL  *url.URL
	httpClient *http.Client

	apiLimiter   *rateLimiter
	loginLimiter *rateLimiter
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &api{
		logger:     logger,
		isProd:     opts.IsProd,
		dbPing:     opts.DBPing,
		accounts:   opts.Accounts,
		links:      opts.Links,
		publicURL:  opts.PublicURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},

		apiLimiter:   newRateLimiter(time.Hour, 1000),
		loginLimiter: newRateLimiter(5*time.Minute, 10),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", a.handleHealthz)

	mux.HandleFunc("POST /v1/users/signup", a.handleSignup)
	mux.HandleFunc("POST /v1/users/login", a.handleLogin)
	mux.HandleFunc("POST /v1/users/forgotpassword", a.handleForgotPassword)
	mux.HandleFunc("POST /v1/users/resetpassword/{token}", a.handleResetPassword)
	mux.HandleFunc("POST /v1/users/changepassword", a.requireAuth(a.handleChangePassword))
	mux.HandleFunc("PATCH /v1/users/updateMe", a.requireAuth(a.handleUpdateMe))
	mux.HandleFunc("DELETE /v1/users/deleteMe", a.requireAuth(a.handleDeleteMe))
	mux.HandleFunc("GET /v1/users", a.handleListUsers)
	mux.HandleFunc("GET /v1/users/{id}", a.handleGetUser)
	mux.HandleFunc("DELETE /v1/users/{id}", a.requireAuth(restrictTo(a.handleDeleteUser, domain.RoleAdmin)))

	mux.HandleFunc("POST /links/create", a.requireAuth(a.handleCreateLink))
	mux.HandleFunc("POST /links/{id}/response", a.handleSubmitResponse)
	mux.HandleFunc("GET /links/getLinks", a.requireAuth(a.handleListLinks))

	mux.HandleFunc("GET /fetch/randomdata", a.requireAuth(a.handleRandomData))

	var handler http.Handler = mux
	handler = a.limitRequests(handler)
	handler = RequestLogger(logger)(handler)
	handler = Recoverer(logger, opts.IsProd)(handler)
	handler = RequestID()(handler)
	return handler
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			WriteFail(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
