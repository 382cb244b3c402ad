package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kkkkikiki/checkout/internal/apperr"
	"github.com/kkkkikiki/checkout/internal/metrics"
	"github.com/kkkkikiki/checkout/internal/model"
	"github.com/kkkkikiki/checkout/internal/notify"
	"github.com/kkkkikiki/checkout/internal/paystack"
)

const (
	MsgPaymentFieldsNeeded = "Email, full name, and amount are required"
	MsgReferenceNeeded     = "Payment reference is required"
)

// usageRecordTimeout bounds the coupon increment after a settled payment.
const usageRecordTimeout = 10 * time.Second

// InitializeInput is a checkout form submission. Amount and the pricing
// fields are in naira.
type InitializeInput struct {
	Email         string
	Amount        int64
	FullName      string
	Phone         string
	Package       string
	CouponCode    string
	OriginalPrice *int64
	Discount      *int64
	FinalPrice    *int64
}

// InitializeResult carries the gateway's checkout handle.
type InitializeResult struct {
	Reference        string
	AuthorizationURL string
	Raw              json.RawMessage
}

// VerifyResult is the outcome of Verify. Raw is the gateway payload as received.
type VerifyResult struct {
	Lead         *model.Lead
	Transitioned bool
	Verification *paystack.Verification
	Raw          json.RawMessage
}

// LeadListing is every lead with status counts.
type LeadListing struct {
	Leads []*model.Lead
	model.LeadCounts
}

// PaymentService drives a lead from initialization through verification
type PaymentService struct {
	leads      LeadStore
	coupons    *CouponService
	gateway    Gateway
	notifier   Notifier
	dispatcher Dispatcher
	mirror     Mirror
	appURL     string

	now          func() time.Time
	newReference func() (string, error)
	logger       *zap.Logger
}

// PaymentDeps groups the collaborators of a PaymentService.
type PaymentDeps struct {
	Leads      LeadStore
	Coupons    *CouponService
	Gateway    Gateway
	Notifier   Notifier
	Dispatcher Dispatcher
	Mirror     Mirror
	AppURL     string
	Logger     *zap.Logger
}

// NewPaymentService creates a new PaymentService instance
func NewPaymentService(deps PaymentDeps) *PaymentService {
	return &PaymentService{
		leads:        deps.Leads,
		coupons:      deps.Coupons,
		gateway:      deps.Gateway,
		notifier:     deps.Notifier,
		dispatcher:   deps.Dispatcher,
		mirror:       deps.Mirror,
		appURL:       strings.TrimRight(deps.AppURL, "/"),
		now:          time.Now,
		newReference: NewReference,
		logger:       deps.Logger.Named("payment"),
	}
}

// NewReference returns "ECOM" followed by the upper-case hex of a UUIDv7.
// The time-ordered prefix and random tail make collisions negligible.
func NewReference() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate reference: %w", err)
	}
	return "ECOM" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")), nil
}

// Initialize records a pending lead and opens a gateway transaction for it.
// A gateway failure leaves the lead pending; verification or an audit
// reconciles it later.
func (s *PaymentService) Initialize(ctx context.Context, in InitializeInput) (*InitializeResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if in.Email == "" || in.FullName == "" || in.Amount <= 0 {
		return nil, apperr.Invalid("", MsgPaymentFieldsNeeded)
	}
	if !s.gateway.Configured() {
		s.logger.Error("payment gateway secret key is not set")
		return nil, &apperr.ConfigurationError{Key: "PAYSTACK_SECRET_KEY"}
	}

	reference, err := s.newReference()
	if err != nil {
		return nil, err
	}

	lead := &model.Lead{
		ID:         reference,
		Reference:  reference,
		FullName:   in.FullName,
		Email:      in.Email,
		Phone:      strings.TrimSpace(in.Phone),
		Package:    in.Package,
		Amount:     in.Amount,
		CouponCode: strings.TrimSpace(in.CouponCode),
		Status:     model.LeadStatusPending,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.leads.CreateLead(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to save lead: %w", err)
	}
	s.mirrorLead(ctx, lead)

	res, err := s.gateway.Initialize(ctx, paystack.InitializeRequest{
		Email:       lead.Email,
		Amount:      lead.Amount,
		Reference:   reference,
		CallbackURL: s.appURL + "/payment/success?reference=" + reference,
		Channels:    paystack.DefaultChannels,
		Metadata: paystack.Metadata{
			FullName:      lead.FullName,
			Phone:         lead.Phone,
			Package:       lead.Package,
			CouponCode:    lead.CouponCode,
			OriginalPrice: in.OriginalPrice,
			Discount:      in.Discount,
			FinalPrice:    in.FinalPrice,
		},
	})
	if err != nil {
		s.logger.Warn("gateway initialize failed, lead left pending",
			zap.String("reference", reference), zap.Error(err))
		return nil, err
	}

	s.logger.Info("payment initialized",
		zap.String("reference", reference),
		zap.String("package", lead.Package),
		zap.Int64("amount", lead.Amount),
	)
	return &InitializeResult{
		Reference:        reference,
		AuthorizationURL: res.Data.AuthorizationURL,
		Raw:              res.Raw,
	}, nil
}

// Verify settles the lead behind reference against the gateway. Only the
// call that moves the lead out of pending fires the side effects; repeated
// calls on a terminal lead return the gateway payload and change nothing.
func (s *PaymentService) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, apperr.Invalid("reference", MsgReferenceNeeded)
	}

	lead, err := s.leads.GetLead(ctx, reference)
	if err != nil {
		return nil, err
	}

	v, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		if apperr.IsExternal(err) {
			s.transition(ctx, lead, model.LeadStatusFailed, nil)
		}
		return nil, err
	}

	res := &VerifyResult{Lead: lead, Verification: v, Raw: v.Raw}
	if !v.Status || !v.Data.Succeeded() {
		res.Lead, res.Transitioned = s.transition(ctx, lead, model.LeadStatusFailed, nil)
		return res, nil
	}

	paidAt := s.now().UTC()
	res.Lead, res.Transitioned = s.transition(ctx, lead, model.LeadStatusPaid, &paidAt)
	if res.Transitioned {
		s.afterPayment(ctx, res.Lead, v.Data.Metadata.CouponCode)
	}
	return res, nil
}

// HandleWebhook verifies the signature of a gateway event and settles the
// referenced lead on charge.success. Unknown references are ignored.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	ok, err := s.gateway.ValidSignature(body, signature)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("invalid webhook signature: %w", apperr.ErrUnauthorized)
	}

	var event struct {
		Event string `json:"event"`
		Data  struct {
			Reference string `json:"reference"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return apperr.Invalid("body", "Invalid webhook payload")
	}
	if event.Event != "charge.success" {
		s.logger.Debug("ignoring webhook event", zap.String("event", event.Event))
		return nil
	}

	if _, err := s.Verify(ctx, event.Data.Reference); err != nil {
		if apperr.IsNotFound(err) {
			s.logger.Warn("webhook for unknown reference", zap.String("reference", event.Data.Reference))
			return nil
		}
		return err
	}
	return nil
}

// ListLeads returns every lead, newest first, with status counts.
func (s *PaymentService) ListLeads(ctx context.Context) (*LeadListing, error) {
	leads, err := s.leads.ListLeads(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	return &LeadListing{Leads: leads, LeadCounts: model.CountLeads(leads)}, nil
}

// transition applies status and reports whether this call changed the lead.
// Store failures are logged; the caller still gets the gateway outcome.
func (s *PaymentService) transition(ctx context.Context, lead *model.Lead, status model.LeadStatus, paidAt *time.Time) (*model.Lead, bool) {
	updated, changed, err := s.leads.TransitionLead(ctx, lead.Reference, status, paidAt)
	if err != nil {
		s.logger.Error("failed to update lead status",
			zap.String("reference", lead.Reference),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return lead, false
	}
	if !changed {
		s.logger.Info("lead already settled",
			zap.String("reference", lead.Reference),
			zap.String("status", string(updated.Status)),
		)
		return updated, false
	}

	metrics.RecordPaymentTransition(string(status))
	s.mirrorLead(ctx, updated)
	return updated, true
}

// afterPayment runs the best-effort side effects of a settled payment. The
// lead is already durably paid when this runs.
func (s *PaymentService) afterPayment(ctx context.Context, lead *model.Lead, couponCode string) {
	if couponCode == "" {
		couponCode = lead.CouponCode
	}
	if couponCode != "" {
		// Detached from the request: the lead is already paid and no later
		// call will retry the increment.
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), usageRecordTimeout)
		err := s.coupons.IncrementUsage(uctx, couponCode, lead.Email)
		cancel()
		if err != nil {
			s.logger.Error("failed to record coupon usage",
				zap.String("reference", lead.Reference),
				zap.String("code", couponCode),
				zap.Error(err),
			)
		}
	}

	p := notify.PurchaseFromLead(lead)
	ref := zap.String("reference", lead.Reference)
	s.dispatcher.Go("purchase_confirmation", func(ctx context.Context) (string, error) {
		return s.notifier.SendPurchaseConfirmation(ctx, p)
	}, ref)
	s.dispatcher.Go("admin_purchase_alert", func(ctx context.Context) (string, error) {
		return s.notifier.SendAdminPurchaseAlert(ctx, p)
	}, ref)
}

func (s *PaymentService) mirrorLead(ctx context.Context, lead *model.Lead) {
	if err := s.mirror.MirrorLead(ctx, lead); err != nil {
		s.logger.Warn("failed to mirror lead", zap.String("reference", lead.Reference), zap.Error(err))
	}
}
