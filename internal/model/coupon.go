package model

import (
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/kkkkikiki/checkout/internal/apperr"
)

// CouponType is either a percentage off or a fixed amount off.
type CouponType string

const (
	CouponTypePercentage CouponType = "percentage"
	CouponTypeFixed      CouponType = "fixed"
)

// Coupon represents a discount code in the database
type Coupon struct {
	Code        string         `db:"code" json:"code" yaml:"code"`
	Type        CouponType     `db:"type" json:"type" yaml:"type"`
	Value       float64        `db:"value" json:"value" yaml:"value"` // percentage points or naira
	MaxUses     int            `db:"max_uses" json:"maxUses" yaml:"maxUses"`
	CurrentUses int            `db:"current_uses" json:"currentUses" yaml:"currentUses"`
	ExpiresAt   time.Time      `db:"expires_at" json:"expiresAt" yaml:"expiresAt"`
	Active      bool           `db:"active" json:"active" yaml:"active"`
	AppliesTo   pq.StringArray `db:"applies_to" json:"appliesTo" yaml:"appliesTo"`
	Description string         `db:"description" json:"description" yaml:"description"`
	UsedBy      pq.StringArray `db:"used_by" json:"usedBy" yaml:"usedBy"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt,omitempty" yaml:"-"`
}

// AppliesToPlan reports whether the coupon is scoped to planID.
func (c *Coupon) AppliesToPlan(planID string) bool {
	for _, p := range c.AppliesTo {
		if p == planID {
			return true
		}
	}
	return false
}

// UsedByEmail reports whether the normalized email already redeemed the coupon.
func (c *Coupon) UsedByEmail(email string) bool {
	email = NormalizeEmail(email)
	for _, e := range c.UsedBy {
		if e == email {
			return true
		}
	}
	return false
}

// RecordUse increments the usage counter and adds email to UsedBy once.
func (c *Coupon) RecordUse(email string) {
	c.CurrentUses++
	email = NormalizeEmail(email)
	if email != "" && !c.UsedByEmail(email) {
		c.UsedBy = append(c.UsedBy, email)
	}
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SameCode compares coupon codes case-insensitively.
func SameCode(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Validate checks the fields an operator supplies when adding a coupon.
func (c *Coupon) Validate() error {
	switch {
	case strings.TrimSpace(c.Code) == "":
		return apperr.Invalid("code", "coupon code is required")
	case c.Type != CouponTypePercentage && c.Type != CouponTypeFixed:
		return apperr.Invalid("type", "coupon type must be percentage or fixed")
	case c.Value <= 0:
		return apperr.Invalid("value", "coupon value must be positive")
	case c.Type == CouponTypePercentage && c.Value > 100:
		return apperr.Invalid("value", "percentage cannot exceed 100")
	case c.MaxUses < 0:
		return apperr.Invalid("maxUses", "maxUses cannot be negative")
	case c.ExpiresAt.IsZero():
		return apperr.Invalid("expiresAt", "expiry date is required")
	case len(c.AppliesTo) == 0:
		return apperr.Invalid("appliesTo", "coupon must apply to at least one plan")
	}
	for _, p := range c.AppliesTo {
		if _, ok := LookupPlan(p); !ok {
			return apperr.Invalid("appliesTo", "unknown plan "+p)
		}
	}
	return nil
}
