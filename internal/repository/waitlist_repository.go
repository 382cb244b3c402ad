package repository

import (
	"context"
	"fmt"

	"github.com/kkkkikiki/checkout/internal/apperr"
	"github.com/kkkkikiki/checkout/internal/model"
)

// WaitlistRepository handles waitlist data operations
type WaitlistRepository struct{}

// NewWaitlistRepository creates a new waitlist repository
func NewWaitlistRepository() *WaitlistRepository {
	return &WaitlistRepository{}
}

// AddEntry inserts a waitlist signup; emails are unique case-insensitively
func (r *WaitlistRepository) AddEntry(ctx context.Context, db DBExecutor, e *model.WaitlistEntry) error {
	query := `
		INSERT INTO waitlist (id, full_name, email, phone, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := db.ExecContext(ctx, query, e.ID, e.FullName, e.Email, e.Phone, e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.ErrWaitlistConflict
		}
		return fmt.Errorf("failed to add waitlist entry: %w", err)
	}

	return nil
}

// ListEntries retrieves the waitlist in signup order
func (r *WaitlistRepository) ListEntries(ctx context.Context, db DBExecutor) ([]*model.WaitlistEntry, error) {
	query := `
		SELECT id, full_name, email, phone, created_at
		FROM waitlist
		ORDER BY created_at ASC
	`

	var entries []*model.WaitlistEntry
	if err := db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("failed to list waitlist: %w", err)
	}

	return entries, nil
}
