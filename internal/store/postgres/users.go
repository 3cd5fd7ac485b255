package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"formlink/internal/domain"
)

// userColumns is the default projection: the password hash and reset-token
// fields are never part of it.
const userColumns = "id, name, email, role, status, password_changed_at, created_at, updated_at"

type UsersStore struct {
	pool *pgxpool.Pool
}

func NewUsersStore(pool *pgxpool.Pool) *UsersStore {
	return &UsersStore{pool: pool}
}

func (s *UsersStore) CreateUser(ctx context.Context, name, email, passwordHash string, role domain.Role) (domain.User, error) {
	const q = `
		INSERT INTO users (name, email, role, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, q, name, email, string(role), passwordHash))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if noRows(err) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByIDWithPassword(ctx context.Context, id string) (domain.UserWithPassword, error) {
	const q = `SELECT ` + userColumns + `, password_hash FROM users WHERE id = $1`

	u, err := scanUserWithPassword(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if noRows(err) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		}
		return domain.UserWithPassword{}, fmt.Errorf("get user by id with password: %w", err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error) {
	const q = `SELECT ` + userColumns + `, password_hash FROM users WHERE email = $1`

	u, err := scanUserWithPassword(s.pool.QueryRow(ctx, q, email))
	if err != nil {
		if noRows(err) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		}
		return domain.UserWithPassword{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (domain.User, error) {
	const q = `
		SELECT ` + userColumns + `
		FROM users
		WHERE password_reset_token = $1 AND password_reset_expires > $2
	`

	u, err := scanUser(s.pool.QueryRow(ctx, q, tokenHash, now))
	if err != nil {
		if noRows(err) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by reset token: %w", err)
	}
	return u, nil
}

func (s *UsersStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users ORDER BY created_at`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *UsersStore) UpdateProfile(ctx context.Context, userID string, upd domain.ProfileUpdate) (domain.User, error) {
	const q = `
		UPDATE users
		SET name = COALESCE($2, name),
		    email = COALESCE($3, email),
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, q, userID, upd.Name, upd.Email))
	if err != nil {
		if noRows(err) {
			return domain.User{}, domain.ErrNotFound
		}
		if isUniqueViolation(err) {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

// SetPassword records the new hash and change epoch and clears any outstanding
// reset token in the same statement, so the pair can never survive a password
// change.
func (s *UsersStore) SetPassword(ctx context.Context, userID, passwordHash string, changedAt time.Time) error {
	const q = `
		UPDATE users
		SET password_hash = $2,
		    password_changed_at = $3,
		    password_reset_token = NULL,
		    password_reset_expires = NULL,
		    updated_at = now()
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, q, userID, passwordHash, changedAt)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *UsersStore) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	const q = `
		UPDATE users
		SET password_reset_token = $2,
		    password_reset_expires = $3,
		    updated_at = now()
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, q, userID, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *UsersStore) ClearResetToken(ctx context.Context, userID string) error {
	const q = `
		UPDATE users
		SET password_reset_token = NULL,
		    password_reset_expires = NULL,
		    updated_at = now()
		WHERE id = $1
	`

	if _, err := s.pool.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("clear reset token: %w", err)
	}
	return nil
}

func (s *UsersStore) SetStatus(ctx context.Context, userID string, status domain.AccountStatus) error {
	const q = `UPDATE users SET status = $2, updated_at = now() WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, userID, string(status))
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *UsersStore) DeleteUser(ctx context.Context, id string) (domain.User, error) {
	const q = `DELETE FROM users WHERE id = $1 RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if noRows(err) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("delete user: %w", err)
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u         domain.User
		idUUID    pgtype.UUID
		role      string
		status    string
		changedTS pgtype.Timestamptz
	)
	err := row.Scan(&idUUID, &u.Name, &u.Email, &role, &status, &changedTS, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, err
	}
	u.ID = uuidString(idUUID)
	u.Role = domain.Role(role)
	u.Status = domain.AccountStatus(status)
	u.PasswordChangedAt = timestamptzPtr(changedTS)
	return u, nil
}

func scanUserWithPassword(row rowScanner) (domain.UserWithPassword, error) {
	var (
		u         domain.UserWithPassword
		idUUID    pgtype.UUID
		role      string
		status    string
		changedTS pgtype.Timestamptz
	)
	err := row.Scan(&idUUID, &u.Name, &u.Email, &role, &status, &changedTS, &u.CreatedAt, &u.UpdatedAt, &u.PasswordHash)
	if err != nil {
		return domain.UserWithPassword{}, err
	}
	u.ID = uuidString(idUUID)
	u.Role = domain.Role(role)
	u.Status = domain.AccountStatus(status)
	u.PasswordChangedAt = timestamptzPtr(changedTS)
	return u, nil
}

func uuidString(v pgtype.UUID) string {
	if !v.Valid {
		return ""
	}
	b := v.Bytes
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

func timestamptzPtr(v pgtype.Timestamptz) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
