package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kkkkikiki/checkout/internal/apperr"
	"github.com/kkkkikiki/checkout/internal/metrics"
	"github.com/kkkkikiki/checkout/internal/model"
)

// Rejection messages, one per validation gate.
const (
	MsgCouponInvalid      = "Invalid coupon code"
	MsgCouponInactive     = "This coupon is no longer active"
	MsgCouponExpired      = "This coupon has expired"
	MsgCouponExhausted    = "This coupon has reached its usage limit"
	MsgCouponPlanMismatch = "This coupon is not valid for the selected package"
	MsgCouponAlreadyUsed  = "You have already used this coupon"
	MsgCouponApplied      = "Coupon applied successfully!"
	MsgCouponFieldsNeeded = "Coupon code and plan ID are required"
	MsgInvalidPlan        = "Invalid plan"
)

// ValidationResult is the outcome of Validate. Discount carries the coupon's
// raw value (percentage points or naira), not a computed amount; use
// CalculateDiscount for the monetary discount.
type ValidationResult struct {
	Valid    bool          `json:"valid"`
	Message  string        `json:"message"`
	Reason   string        `json:"-"`
	Coupon   *model.Coupon `json:"coupon,omitempty"`
	Discount float64       `json:"discount,omitempty"`
}

// DiscountBreakdown is a priced coupon application in naira.
type DiscountBreakdown struct {
	OriginalPrice int64 `json:"originalPrice"`
	Discount      int64 `json:"discount"`
	FinalPrice    int64 `json:"finalPrice"`
}

// Quote is a successful coupon application against a catalog plan.
type Quote struct {
	Code          string           `json:"code"`
	Type          model.CouponType `json:"type"`
	Value         float64          `json:"value"`
	OriginalPrice int64            `json:"originalPrice"`
	Discount      int64            `json:"discount"`
	FinalPrice    int64            `json:"finalPrice"`
	Description   string           `json:"description"`
}

// CouponService validates and prices coupons
type CouponService struct {
	store  CouponStore
	now    func() time.Time
	logger *zap.Logger
}

// NewCouponService creates a new CouponService instance
func NewCouponService(store CouponStore, logger *zap.Logger) *CouponService {
	return &CouponService{
		store:  store,
		now:    time.Now,
		logger: logger.Named("coupon"),
	}
}

// Validate runs the gate checks in order and stops at the first failure.
// An error is returned only when the store itself fails.
func (s *CouponService) Validate(ctx context.Context, code, planID, email string) (*ValidationResult, error) {
	start := time.Now()
	reason := "error"
	defer func() {
		metrics.RecordValidateCoupon(reason, time.Since(start).Seconds())
	}()

	reject := func(r, msg string) (*ValidationResult, error) {
		reason = r
		return &ValidationResult{Valid: false, Message: msg, Reason: r}, nil
	}

	coupon, err := s.store.GetCoupon(ctx, strings.TrimSpace(code))
	if err != nil {
		if apperr.IsNotFound(err) {
			return reject("not_found", MsgCouponInvalid)
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}

	switch {
	case !coupon.Active:
		return reject("inactive", MsgCouponInactive)
	case s.now().After(coupon.ExpiresAt):
		return reject("expired", MsgCouponExpired)
	case coupon.CurrentUses >= coupon.MaxUses:
		return reject("exhausted", MsgCouponExhausted)
	case !coupon.AppliesToPlan(planID):
		return reject("plan_mismatch", MsgCouponPlanMismatch)
	case email != "" && coupon.UsedByEmail(email):
		return reject("already_used", MsgCouponAlreadyUsed)
	}

	reason = "valid"
	return &ValidationResult{
		Valid:    true,
		Message:  MsgCouponApplied,
		Reason:   reason,
		Coupon:   coupon,
		Discount: coupon.Value,
	}, nil
}

// Quote validates code for planID and prices it against the plan catalog.
// Gate failures come back as a ValidationError carrying the gate message.
func (s *CouponService) Quote(ctx context.Context, code, planID, email string) (*Quote, error) {
	if strings.TrimSpace(code) == "" || planID == "" {
		return nil, apperr.Invalid("", MsgCouponFieldsNeeded)
	}

	res, err := s.Validate(ctx, code, planID, email)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return nil, apperr.Invalid("code", res.Message)
	}

	plan, ok := model.LookupPlan(planID)
	if !ok {
		return nil, apperr.Invalid("planId", MsgInvalidPlan)
	}

	d := CalculateDiscount(plan.Price, res.Coupon)
	return &Quote{
		Code:          res.Coupon.Code,
		Type:          res.Coupon.Type,
		Value:         res.Coupon.Value,
		OriginalPrice: d.OriginalPrice,
		Discount:      d.Discount,
		FinalPrice:    d.FinalPrice,
		Description:   res.Coupon.Description,
	}, nil
}

// GetCoupon returns the coupon stored under code.
func (s *CouponService) GetCoupon(ctx context.Context, code string) (*model.Coupon, error) {
	return s.store.GetCoupon(ctx, strings.TrimSpace(code))
}

// IncrementUsage records a redemption. It is not gated by Validate; callers
// invoke it only after a settled payment, so usage may pass MaxUses.
func (s *CouponService) IncrementUsage(ctx context.Context, code, email string) error {
	c, err := s.store.IncrementCouponUsage(ctx, strings.TrimSpace(code), email)
	if err != nil {
		return fmt.Errorf("failed to increment coupon usage: %w", err)
	}
	s.logger.Info("coupon usage incremented",
		zap.String("code", c.Code),
		zap.Int("current_uses", c.CurrentUses),
	)
	return nil
}

var hundred = decimal.NewFromInt(100)

// CalculateDiscount prices coupon against originalPrice. Percentage discounts
// round half-up to whole naira. The discount is clamped to [0, originalPrice].
func CalculateDiscount(originalPrice int64, coupon *model.Coupon) DiscountBreakdown {
	price := decimal.NewFromInt(originalPrice)
	value := decimal.NewFromFloat(coupon.Value)

	var discount decimal.Decimal
	switch coupon.Type {
	case model.CouponTypePercentage:
		discount = price.Mul(value).Div(hundred).Round(0)
	case model.CouponTypeFixed:
		discount = value.Round(0)
	}

	if discount.GreaterThan(price) {
		discount = price
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	d := discount.IntPart()
	return DiscountBreakdown{
		OriginalPrice: originalPrice,
		Discount:      d,
		FinalPrice:    originalPrice - d,
	}
}
