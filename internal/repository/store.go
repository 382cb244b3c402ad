package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kkkkikiki/checkout/internal/apperr"
	"github.com/kkkkikiki/checkout/internal/model"
)

// Store implements the checkout stores on PostgreSQL. Read-modify-write
// operations run inside a transaction holding a row lock.
type Store struct {
	postgres     *sqlx.DB
	couponRepo   *CouponRepository
	leadRepo     *LeadRepository
	waitlistRepo *WaitlistRepository
}

// NewStore creates a PostgreSQL-backed store
func NewStore(postgres *sqlx.DB) *Store {
	return &Store{
		postgres:     postgres,
		couponRepo:   NewCouponRepository(),
		leadRepo:     NewLeadRepository(),
		waitlistRepo: NewWaitlistRepository(),
	}
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.postgres.PingContext(ctx)
}

func (s *Store) GetCoupon(ctx context.Context, code string) (*model.Coupon, error) {
	return s.couponRepo.GetCoupon(ctx, s.postgres, code)
}

func (s *Store) ListCoupons(ctx context.Context) ([]*model.Coupon, error) {
	return s.couponRepo.ListCoupons(ctx, s.postgres)
}

func (s *Store) CreateCoupon(ctx context.Context, c *model.Coupon) error {
	return s.couponRepo.CreateCoupon(ctx, s.postgres, c)
}

func (s *Store) UpdateCoupon(ctx context.Context, c *model.Coupon) error {
	return s.couponRepo.UpdateCoupon(ctx, s.postgres, c)
}

// IncrementCouponUsage records one redemption by email under a row lock
func (s *Store) IncrementCouponUsage(ctx context.Context, code, email string) (*model.Coupon, error) {
	tx, err := s.postgres.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	coupon, err := s.couponRepo.LockCoupon(ctx, tx, code)
	if err != nil {
		return nil, err
	}

	coupon.RecordUse(email)
	if err := s.couponRepo.SaveUsage(ctx, tx, coupon); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return coupon, nil
}

func (s *Store) CreateLead(ctx context.Context, l *model.Lead) error {
	return s.leadRepo.CreateLead(ctx, s.postgres, l)
}

func (s *Store) GetLead(ctx context.Context, reference string) (*model.Lead, error) {
	return s.leadRepo.GetLead(ctx, s.postgres, reference)
}

func (s *Store) ListLeads(ctx context.Context) ([]*model.Lead, error) {
	return s.leadRepo.ListLeads(ctx, s.postgres)
}

// TransitionLead moves a pending lead to status. When the lead is already
// terminal it is returned unchanged with changed=false.
func (s *Store) TransitionLead(ctx context.Context, reference string, status model.LeadStatus, paidAt *time.Time) (*model.Lead, bool, error) {
	tx, err := s.postgres.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	lead, err := s.leadRepo.LockLead(ctx, tx, reference)
	if err != nil {
		return nil, false, err
	}
	if lead.Status.IsTerminal() {
		return lead, false, nil
	}

	if err := s.leadRepo.MarkLead(ctx, tx, reference, status, paidAt); err != nil {
		if errors.Is(err, apperr.ErrInvalidTransition) {
			return lead, false, nil
		}
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	lead.Status = status
	if paidAt != nil {
		lead.PaidAt = paidAt
	}
	return lead, true, nil
}

func (s *Store) AddWaitlistEntry(ctx context.Context, e *model.WaitlistEntry) error {
	return s.waitlistRepo.AddEntry(ctx, s.postgres, e)
}

func (s *Store) ListWaitlist(ctx context.Context) ([]*model.WaitlistEntry, error) {
	return s.waitlistRepo.ListEntries(ctx, s.postgres)
}
