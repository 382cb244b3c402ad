package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kkkkikiki/checkout/internal/apperr"
	"github.com/kkkkikiki/checkout/internal/model"
)

const leadColumns = `id, reference, full_name, email, phone, package, amount, coupon_code,
		status, created_at, paid_at`

// LeadRepository handles lead data operations
type LeadRepository struct{}

// NewLeadRepository creates a new lead repository
func NewLeadRepository() *LeadRepository {
	return &LeadRepository{}
}

// CreateLead inserts a new lead
func (r *LeadRepository) CreateLead(ctx context.Context, db DBExecutor, l *model.Lead) error {
	query := `
		INSERT INTO leads (` + leadColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := db.ExecContext(ctx, query,
		l.ID, l.Reference, l.FullName, l.Email, l.Phone, l.Package, l.Amount, l.CouponCode,
		l.Status, l.CreatedAt, l.PaidAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("lead %s: %w", l.Reference, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create lead: %w", err)
	}

	return nil
}

// GetLead retrieves a lead by payment reference
func (r *LeadRepository) GetLead(ctx context.Context, db DBExecutor, reference string) (*model.Lead, error) {
	return r.getLead(ctx, db, `SELECT `+leadColumns+` FROM leads WHERE reference = $1`, reference)
}

// LockLead retrieves a lead and holds a row lock until the transaction ends
func (r *LeadRepository) LockLead(ctx context.Context, db DBExecutor, reference string) (*model.Lead, error) {
	return r.getLead(ctx, db, `SELECT `+leadColumns+` FROM leads WHERE reference = $1 FOR UPDATE`, reference)
}

func (r *LeadRepository) getLead(ctx context.Context, db DBExecutor, query, reference string) (*model.Lead, error) {
	var lead model.Lead
	if err := db.GetContext(ctx, &lead, query, reference); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrLeadNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return &lead, nil
}

// ListLeads retrieves all leads, newest first
func (r *LeadRepository) ListLeads(ctx context.Context, db DBExecutor) ([]*model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads ORDER BY created_at DESC`

	var leads []*model.Lead
	if err := db.SelectContext(ctx, &leads, query); err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}

	return leads, nil
}

// MarkLead moves a pending lead to a terminal status
func (r *LeadRepository) MarkLead(ctx context.Context, db DBExecutor, reference string, status model.LeadStatus, paidAt *time.Time) error {
	query := `
		UPDATE leads
		SET status = $1, paid_at = COALESCE($2, paid_at)
		WHERE reference = $3 AND status = 'pending'
	`

	result, err := db.ExecContext(ctx, query, status, paidAt, reference)
	if err != nil {
		return fmt.Errorf("failed to update lead status: %w", err)
	}

	return requireRow(result, apperr.ErrInvalidTransition)
}
