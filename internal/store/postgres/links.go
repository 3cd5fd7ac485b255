package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"formlink/internal/domain"
)

type LinksStore struct {
	pool *pgxpool.Pool
}

func NewLinksStore(pool *pgxpool.Pool) *LinksStore {
	return &LinksStore{pool: pool}
}

func (s *LinksStore) CreateLink(ctx context.Context, id, ownerID string, createdAt time.Time) (domain.Link, error) {
	const q = `
		INSERT INTO links (id, owner_id, created_at)
		VALUES ($1, $2, $3)
		RETURNING id, owner_id, created_at
	`

	var (
		l         domain.Link
		idUUID    pgtype.UUID
		ownerUUID pgtype.UUID
	)
	err := s.pool.QueryRow(ctx, q, id, ownerID, createdAt).Scan(&idUUID, &ownerUUID, &l.CreatedAt)
	if err != nil {
		return domain.Link{}, fmt.Errorf("create link: %w", err)
	}
	l.ID = uuidString(idUUID)
	l.OwnerID = uuidString(ownerUUID)
	return l, nil
}

func (s *LinksStore) AddResponse(ctx context.Context, linkID, text string, createdAt time.Time) error {
	const q = `
		INSERT INTO link_responses (link_id, body, created_at)
		SELECT id, $2, $3 FROM links WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, q, linkID, text, createdAt)
	if err != nil {
		return fmt.Errorf("add response: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListLinksByOwner returns the owner's links, each with its responses in
// submission order and the owner record populated.
func (s *LinksStore) ListLinksByOwner(ctx context.Context, ownerID string) ([]domain.Link, error) {
	const linksQ = `
		SELECT l.id, l.owner_id, l.created_at,
		       u.id, u.name, u.email, u.role, u.status, u.password_changed_at, u.created_at, u.updated_at
		FROM links l
		JOIN users u ON u.id = l.owner_id
		WHERE l.owner_id = $1
		ORDER BY l.created_at
	`

	rows, err := s.pool.Query(ctx, linksQ, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	var links []domain.Link
	index := map[string]int{}
	for rows.Next() {
		var (
			l         domain.Link
			idUUID    pgtype.UUID
			ownerUUID pgtype.UUID
			owner     domain.User
			oidUUID   pgtype.UUID
			role      string
			status    string
			changedTS pgtype.Timestamptz
		)
		err := rows.Scan(
			&idUUID, &ownerUUID, &l.CreatedAt,
			&oidUUID, &owner.Name, &owner.Email, &role, &status, &changedTS, &owner.CreatedAt, &owner.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("list links: %w", err)
		}
		l.ID = uuidString(idUUID)
		l.OwnerID = uuidString(ownerUUID)
		owner.ID = uuidString(oidUUID)
		owner.Role = domain.Role(role)
		owner.Status = domain.AccountStatus(status)
		owner.PasswordChangedAt = timestamptzPtr(changedTS)
		l.Owner = &owner
		index[l.ID] = len(links)
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	if len(links) == 0 {
		return nil, nil
	}

	const responsesQ = `
		SELECT r.id, r.link_id, r.body, r.created_at
		FROM link_responses r
		JOIN links l ON l.id = r.link_id
		WHERE l.owner_id = $1
		ORDER BY r.id
	`

	respRows, err := s.pool.Query(ctx, responsesQ, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list link responses: %w", err)
	}
	defer respRows.Close()

	for respRows.Next() {
		var (
			r        domain.LinkResponse
			linkUUID pgtype.UUID
		)
		if err := respRows.Scan(&r.ID, &linkUUID, &r.Text, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("list link responses: %w", err)
		}
		if i, ok := index[uuidString(linkUUID)]; ok {
			links[i].Responses = append(links[i].Responses, r)
		}
	}
	if err := respRows.Err(); err != nil {
		return nil, fmt.Errorf("list link responses: %w", err)
	}

	return links, nil
}
