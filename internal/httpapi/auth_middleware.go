package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"formlink/internal/domain"
)

// authedHandler is a handler that requires an authenticated identity. The
// identity is a parameter rather than a context lookup, so a role gate or
// protected handler cannot exist without it.
type authedHandler func(http.ResponseWriter, *http.Request, domain.User)

// requireAuth walks the token pipeline: Bearer header, signature/expiry, user
// lookup, password-epoch check. One user lookup per request, no mutation.
func (a *api) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			WriteFail(w, http.StatusUnauthorized, "you are not logged in, please log in to get access")
			return
		}

		u, err := a.accounts.Authenticate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				WriteFail(w, http.StatusUnauthorized, "the user belonging to this token no longer exists")
			default:
				WriteDomainError(w, err)
			}
			return
		}

		next(w, r, u)
	}
}

// restrictTo gates an authenticated handler to the given roles. It composes
// only over authedHandler, so it can never run before requireAuth.
func restrictTo(next authedHandler, roles ...domain.Role) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, u domain.User) {
		for _, role := range roles {
			if u.Role == role {
				next(w, r, u)
				return
			}
		}
		WriteFail(w, http.StatusForbidden, "you do not have permission to perform this action")
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}
