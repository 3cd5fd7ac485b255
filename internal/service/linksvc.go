package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"formlink/internal/domain"
)

type LinksStore interface {
	CreateLink(ctx context.Context, id, ownerID string, createdAt time.Time) (domain.Link, error)
	AddResponse(ctx context.Context, linkID, text string, createdAt time.Time) error
	ListLinksByOwner(ctx context.Context, ownerID string) ([]domain.Link, error)
}

// LinkService manages shareable form links and their anonymous responses.
type LinkService struct {
	Links LinksStore
	Now   func() time.Time
	NewID func() string
}

func (s *LinkService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *LinkService) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *LinkService) CreateLink(ctx context.Context, ownerID string) (domain.Link, error) {
	return s.Links.CreateLink(ctx, s.newID(), ownerID, s.now())
}

// SubmitResponse records an anonymous free-text answer against a link.
func (s *LinkService) SubmitResponse(ctx context.Context, linkID, text string) error {
	if strings.TrimSpace(text) == "" {
		return domain.NewValidationError(map[string]string{"text": "required"})
	}
	if _, err := uuid.Parse(linkID); err != nil {
		return domain.ErrNotFound
	}
	return s.Links.AddResponse(ctx, linkID, text, s.now())
}

// ListLinks returns the caller's links with responses and owner populated.
func (s *LinkService) ListLinks(ctx context.Context, ownerID string) ([]domain.Link, error) {
	return s.Links.ListLinksByOwner(ctx, ownerID)
}
