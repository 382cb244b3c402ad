// Package service holds the checkout business logic: coupon validation and
// pricing, the payment lifecycle, and waitlist capture.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kkkkikiki/checkout/internal/model"
	"github.com/kkkkikiki/checkout/internal/notify"
	"github.com/kkkkikiki/checkout/internal/paystack"
)

// CouponStore reads coupons and records redemptions.
type CouponStore interface {
	GetCoupon(ctx context.Context, code string) (*model.Coupon, error)
	IncrementCouponUsage(ctx context.Context, code, email string) (*model.Coupon, error)
}

// LeadStore persists purchase attempts. TransitionLead moves a pending lead
// to status and reports whether it did; terminal leads are left untouched.
type LeadStore interface {
	CreateLead(ctx context.Context, lead *model.Lead) error
	GetLead(ctx context.Context, reference string) (*model.Lead, error)
	ListLeads(ctx context.Context) ([]*model.Lead, error)
	TransitionLead(ctx context.Context, reference string, status model.LeadStatus, paidAt *time.Time) (*model.Lead, bool, error)
}

// WaitlistStore persists waitlist signups.
type WaitlistStore interface {
	AddWaitlistEntry(ctx context.Context, entry *model.WaitlistEntry) error
	ListWaitlist(ctx context.Context) ([]*model.WaitlistEntry, error)
}

// Store is everything the checkout needs from its primary storage. Both the
// Postgres repository and the flat-file store implement it.
type Store interface {
	CouponStore
	LeadStore
	WaitlistStore
	ListCoupons(ctx context.Context) ([]*model.Coupon, error)
	CreateCoupon(ctx context.Context, c *model.Coupon) error
	UpdateCoupon(ctx context.Context, c *model.Coupon) error
	Ping(ctx context.Context) error
}

// Gateway is the payment provider.
type Gateway interface {
	Configured() bool
	Initialize(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResponse, error)
	Verify(ctx context.Context, reference string) (*paystack.Verification, error)
	ValidSignature(body []byte, signature string) (bool, error)
}

// Notifier renders and sends the checkout emails.
type Notifier interface {
	SendPurchaseConfirmation(ctx context.Context, p notify.Purchase) (string, error)
	SendAdminPurchaseAlert(ctx context.Context, p notify.Purchase) (string, error)
	SendWaitlistConfirmation(ctx context.Context, e *model.WaitlistEntry) (string, error)
}

// Dispatcher runs a send in the background without reporting back.
type Dispatcher interface {
	Go(kind string, send func(ctx context.Context) (string, error), fields ...zap.Field)
}

// Mirror receives best-effort copies of leads and waitlist entries.
type Mirror interface {
	MirrorLead(ctx context.Context, lead *model.Lead) error
	MirrorWaitlistEntry(ctx context.Context, entry *model.WaitlistEntry) error
}
