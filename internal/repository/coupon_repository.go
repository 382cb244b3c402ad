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

const couponColumns = `code, type, value, max_uses, current_uses, expires_at, active,
		applies_to, description, used_by, created_at`

// CouponRepository handles coupon data operations
type CouponRepository struct{}

// NewCouponRepository creates a new coupon repository
func NewCouponRepository() *CouponRepository {
	return &CouponRepository{}
}

// CreateCoupon inserts a coupon with zero uses
func (r *CouponRepository) CreateCoupon(ctx context.Context, db DBExecutor, c *model.Coupon) error {
	query := `
		INSERT INTO coupons (code, type, value, max_uses, current_uses, expires_at, active,
			applies_to, description, used_by, created_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $7, $8, '{}', $9)
	`

	c.CreatedAt = time.Now()
	c.CurrentUses = 0
	c.UsedBy = nil

	_, err := db.ExecContext(ctx, query,
		c.Code, c.Type, c.Value, c.MaxUses, c.ExpiresAt, c.Active, c.AppliesTo, c.Description, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("coupon %s: %w", c.Code, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create coupon: %w", err)
	}

	return nil
}

// GetCoupon retrieves a coupon by code, case-insensitively
func (r *CouponRepository) GetCoupon(ctx context.Context, db DBExecutor, code string) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE LOWER(code) = LOWER($1)`

	var coupon model.Coupon
	if err := db.GetContext(ctx, &coupon, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}

	return &coupon, nil
}

// LockCoupon retrieves a coupon and holds a row lock until the transaction ends
func (r *CouponRepository) LockCoupon(ctx context.Context, db DBExecutor, code string) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE LOWER(code) = LOWER($1) FOR UPDATE`

	var coupon model.Coupon
	if err := db.GetContext(ctx, &coupon, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to lock coupon: %w", err)
	}

	return &coupon, nil
}

// ListCoupons retrieves all coupons ordered by creation time
func (r *CouponRepository) ListCoupons(ctx context.Context, db DBExecutor) ([]*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at ASC`

	var coupons []*model.Coupon
	if err := db.SelectContext(ctx, &coupons, query); err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}

	return coupons, nil
}

// UpdateCoupon overwrites the administrative fields of a coupon
func (r *CouponRepository) UpdateCoupon(ctx context.Context, db DBExecutor, c *model.Coupon) error {
	query := `
		UPDATE coupons
		SET type = $1, value = $2, max_uses = $3, expires_at = $4, active = $5,
			applies_to = $6, description = $7
		WHERE LOWER(code) = LOWER($8)
	`

	result, err := db.ExecContext(ctx, query,
		c.Type, c.Value, c.MaxUses, c.ExpiresAt, c.Active, c.AppliesTo, c.Description, c.Code)
	if err != nil {
		return fmt.Errorf("failed to update coupon: %w", err)
	}

	return requireRow(result, apperr.ErrCouponNotFound)
}

// SaveUsage persists the usage counter and redeemer list
func (r *CouponRepository) SaveUsage(ctx context.Context, db DBExecutor, c *model.Coupon) error {
	query := `
		UPDATE coupons
		SET current_uses = $1, used_by = $2
		WHERE code = $3
	`

	result, err := db.ExecContext(ctx, query, c.CurrentUses, c.UsedBy, c.Code)
	if err != nil {
		return fmt.Errorf("failed to save coupon usage: %w", err)
	}

	return requireRow(result, apperr.ErrCouponNotFound)
}

// requireRow maps zero affected rows onto notFound
func requireRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}
