package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"formlink/internal/auth"
	"formlink/internal/domain"
)

const minPasswordLength = 8

// passwordChangedSkew backdates passwordChangedAt so a session token issued in
// the same second as the change still passes the epoch check.
const passwordChangedSkew = time.Second

type UsersStore interface {
	CreateUser(ctx context.Context, name, email, passwordHash string, role domain.Role) (domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByIDWithPassword(ctx context.Context, id string) (domain.UserWithPassword, error)
	GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error)
	GetUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateProfile(ctx context.Context, userID string, upd domain.ProfileUpdate) (domain.User, error)
	SetPassword(ctx context.Context, userID, passwordHash string, changedAt time.Time) error
	SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, userID string) error
	SetStatus(ctx context.Context, userID string, status domain.AccountStatus) error
	DeleteUser(ctx context.Context, id string) (domain.User, error)
}

type ResetMailer interface {
	SendPasswordReset(ctx context.Context, toEmail, resetURL string) error
}

// AccountService orchestrates the account lifecycle: signup, login,
// forgot/reset/change password, profile update, deactivation, admin deletion,
// and session-token authentication for the middleware.
type AccountService struct {
	Users    UsersStore
	Tokens   *auth.TokenService
	Mailer   ResetMailer
	ResetTTL time.Duration
	Now      func() time.Time
}

func (s *AccountService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AccountService) resetTTL() time.Duration {
	if s.ResetTTL > 0 {
		return s.ResetTTL
	}
	return auth.ResetTokenTTL
}

func (s *AccountService) Signup(ctx context.Context, name, email, password, passwordConfirm string) (domain.User, string, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)

	fields := map[string]string{}
	if name == "" {
		fields["name"] = "required"
	}
	if !validEmail(email) {
		fields["email"] = "must be a valid email"
	}
	if len(password) < minPasswordLength {
		fields["password"] = fmt.Sprintf("must be at least %d characters", minPasswordLength)
	}
	if password != passwordConfirm {
		fields["passwordConfirm"] = "passwords are not the same"
	}
	if len(fields) > 0 {
		return domain.User{}, "", domain.NewValidationError(fields)
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", err
	}

	u, err := s.Users.CreateUser(ctx, name, email, passwordHash, domain.RoleUser)
	if err != nil {
		return domain.User{}, "", err
	}

	token, err := s.Tokens.Issue(u.ID)
	if err != nil {
		return domain.User{}, "", err
	}
	return u, token, nil
}

// Login never reveals whether the email or the password was wrong. A
// deactivated account is reactivated as a side effect of a successful login.
func (s *AccountService) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return domain.User{}, "", domain.NewValidationError(map[string]string{"email": "required", "password": "required"})
	}

	u, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, "", domain.ErrInvalidCredentials
		}
		return domain.User{}, "", err
	}
	if !auth.VerifyPassword(u.PasswordHash, password) {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}

	if u.Status == domain.AccountDeactivated {
		if err := s.Users.SetStatus(ctx, u.ID, domain.AccountActive); err != nil {
			return domain.User{}, "", err
		}
		u.Status = domain.AccountActive
	}

	token, err := s.Tokens.Issue(u.ID)
	if err != nil {
		return domain.User{}, "", err
	}
	return u.User, token, nil
}

// Authenticate backs the auth middleware: verify the token, load the user
// (deactivated accounts included), and reject tokens issued before the last
// password change. Exactly one user lookup, no mutation.
func (s *AccountService) Authenticate(ctx context.Context, token string) (domain.User, error) {
	claims, err := s.Tokens.Verify(token)
	if err != nil {
		return domain.User{}, domain.ErrInvalidToken
	}

	u, err := s.Users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}

	if u.ChangedPasswordAfter(claims.IssuedAt) {
		return domain.User{}, domain.ErrPasswordChanged
	}
	return u, nil
}

// ForgotPassword persists only the hashed form of the reset token. If the
// email cannot be delivered the stored hash and expiry are rolled back so no
// valid token the user never saw stays behind.
func (s *AccountService) ForgotPassword(ctx context.Context, email string, resetURL func(rawToken string) string) error {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return domain.NewValidationError(map[string]string{"email": "must be a valid email"})
	}

	u, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	raw, tokenHash, err := auth.NewResetToken()
	if err != nil {
		return err
	}
	if err := s.Users.SetResetToken(ctx, u.ID, tokenHash, s.now().Add(s.resetTTL())); err != nil {
		return err
	}

	if err := s.Mailer.SendPasswordReset(ctx, u.Email, resetURL(raw)); err != nil {
		if clearErr := s.Users.ClearResetToken(ctx, u.ID); clearErr != nil {
			return fmt.Errorf("clear reset token after send failure: %w", clearErr)
		}
		return fmt.Errorf("%w: %w", domain.ErrEmailDelivery, err)
	}
	return nil
}

func (s *AccountService) ResetPassword(ctx context.Context, rawToken, newPassword, newPasswordConfirm string) (string, error) {
	if err := validateNewPassword(newPassword, newPasswordConfirm); err != nil {
		return "", err
	}

	tokenHash := auth.HashResetToken(rawToken)
	u, err := s.Users.GetUserByResetToken(ctx, tokenHash, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrResetTokenInvalid
		}
		return "", err
	}

	if err := s.setPassword(ctx, u.ID, newPassword); err != nil {
		return "", err
	}
	return s.Tokens.Issue(u.ID)
}

func (s *AccountService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword, newPasswordConfirm string) (string, error) {
	if err := validateNewPassword(newPassword, newPasswordConfirm); err != nil {
		return "", err
	}

	u, err := s.Users.GetUserByIDWithPassword(ctx, userID)
	if err != nil {
		return "", err
	}
	if !auth.VerifyPassword(u.PasswordHash, currentPassword) {
		return "", domain.ErrInvalidCredentials
	}

	if err := s.setPassword(ctx, u.ID, newPassword); err != nil {
		return "", err
	}
	return s.Tokens.Issue(u.ID)
}

// setPassword re-hashes and records the change epoch. The store clears any
// outstanding reset token in the same update.
func (s *AccountService) setPassword(ctx context.Context, userID, newPassword string) error {
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.Users.SetPassword(ctx, userID, hash, s.now().Add(-passwordChangedSkew))
}

// UpdateMe applies the fixed {name, email} projection. Anything else never
// reaches the store; the handler has already rejected password fields.
func (s *AccountService) UpdateMe(ctx context.Context, userID string, upd domain.ProfileUpdate) (domain.User, error) {
	fields := map[string]string{}
	if upd.Name != nil {
		*upd.Name = strings.TrimSpace(*upd.Name)
		if *upd.Name == "" {
			fields["name"] = "required"
		}
	}
	if upd.Email != nil {
		*upd.Email = normalizeEmail(*upd.Email)
		if !validEmail(*upd.Email) {
			fields["email"] = "must be a valid email"
		}
	}
	if len(fields) > 0 {
		return domain.User{}, domain.NewValidationError(fields)
	}
	return s.Users.UpdateProfile(ctx, userID, upd)
}

func (s *AccountService) DeleteMe(ctx context.Context, userID string) error {
	return s.Users.SetStatus(ctx, userID, domain.AccountDeactivated)
}

// DeleteUser hard-deletes the record. Role enforcement happens upstream in
// the role gate.
func (s *AccountService) DeleteUser(ctx context.Context, targetID string) (domain.User, error) {
	return s.Users.DeleteUser(ctx, targetID)
}

func (s *AccountService) GetUser(ctx context.Context, id string) (domain.User, error) {
	return s.Users.GetUserByID(ctx, id)
}

func (s *AccountService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.Users.ListUsers(ctx)
}

func validateNewPassword(newPassword, newPasswordConfirm string) error {
	fields := map[string]string{}
	if len(newPassword) < minPasswordLength {
		fields["newPassword"] = fmt.Sprintf("must be at least %d characters", minPasswordLength)
	}
	if newPassword != newPasswordConfirm {
		fields["newPasswordConfirm"] = "passwords are not the same"
	}
	if len(fields) > 0 {
		return domain.NewValidationError(fields)
	}
	return nil
}

func normalizeEmail(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

func validEmail(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
