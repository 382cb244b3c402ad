package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kkkkikiki/checkout/internal/filestore"
	"github.com/kkkkikiki/checkout/internal/mirror"
	"github.com/kkkkikiki/checkout/internal/model"
	"github.com/kkkkikiki/checkout/internal/notify"
	"github.com/kkkkikiki/checkout/internal/paystack"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeGateway struct {
	mu          sync.Mutex
	configured  bool
	initReqs    []paystack.InitializeRequest
	verifyCalls int
	initErr     error
	verify      func(reference string) (*paystack.Verification, error)
}

func (g *fakeGateway) Configured() bool { return g.configured }

func (g *fakeGateway) Initialize(_ context.Context, req paystack.InitializeRequest) (*paystack.InitializeResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initReqs = append(g.initReqs, req)
	if g.initErr != nil {
		return nil, g.initErr
	}
	return &paystack.InitializeResponse{
		Status: true,
		Data:   paystack.Authorization{AuthorizationURL: "https://checkout.example/" + req.Reference, Reference: req.Reference},
		Raw:    json.RawMessage(`{"status":true}`),
	}, nil
}

func (g *fakeGateway) Verify(_ context.Context, reference string) (*paystack.Verification, error) {
	g.mu.Lock()
	g.verifyCalls++
	g.mu.Unlock()
	return g.verify(reference)
}

func (g *fakeGateway) ValidSignature(body []byte, signature string) (bool, error) {
	return paystack.Sign("whsec", body) == signature, nil
}

func verifiedAs(status, couponCode string) func(string) (*paystack.Verification, error) {
	return func(reference string) (*paystack.Verification, error) {
		return &paystack.Verification{
			Status: true,
			Data: paystack.Transaction{
				Reference: reference,
				Status:    status,
				Metadata:  paystack.Metadata{CouponCode: couponCode},
			},
			Raw: json.RawMessage(`{"status":true,"data":{"status":"` + status + `"}}`),
		}, nil
	}
}

type recordingNotifier struct {
	mu           sync.Mutex
	confirmation []notify.Purchase
	admin        []notify.Purchase
	waitlist     []*model.WaitlistEntry
}

func (n *recordingNotifier) SendPurchaseConfirmation(_ context.Context, p notify.Purchase) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmation = append(n.confirmation, p)
	return "c", nil
}

func (n *recordingNotifier) SendAdminPurchaseAlert(_ context.Context, p notify.Purchase) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.admin = append(n.admin, p)
	return "a", nil
}

func (n *recordingNotifier) SendWaitlistConfirmation(_ context.Context, e *model.WaitlistEntry) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.waitlist = append(n.waitlist, e)
	return "w", nil
}

type harness struct {
	store      *filestore.Store
	gateway    *fakeGateway
	notifier   *recordingNotifier
	dispatcher *notify.Dispatcher
	coupons    *CouponService
	payments   *PaymentService
	waitlist   *WaitlistService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("filestore.New: %v", err)
	}

	h := &harness{
		store:      store,
		gateway:    &fakeGateway{configured: true, verify: verifiedAs(paystack.StatusSuccess, "")},
		notifier:   &recordingNotifier{},
		dispatcher: notify.NewDispatcher(time.Second, zap.NewNop()),
	}
	h.coupons = NewCouponService(store, zap.NewNop())
	h.coupons.now = func() time.Time { return fixedNow }

	h.payments = NewPaymentService(PaymentDeps{
		Leads:      store,
		Coupons:    h.coupons,
		Gateway:    h.gateway,
		Notifier:   h.notifier,
		Dispatcher: h.dispatcher,
		Mirror:     mirror.Nop{},
		AppURL:     "https://shop.example.com/",
		Logger:     zap.NewNop(),
	})
	h.payments.now = func() time.Time { return fixedNow }

	h.waitlist = NewWaitlistService(store, h.notifier, h.dispatcher, mirror.Nop{}, zap.NewNop())
	return h
}

// drain waits for queued notifications.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.dispatcher.Wait(ctx); err != nil {
		t.Fatalf("dispatcher did not drain: %v", err)
	}
}

func launch50() *model.Coupon {
	return &model.Coupon{
		Code:        "LAUNCH50",
		Type:        model.CouponTypePercentage,
		Value:       50,
		MaxUses:     100,
		ExpiresAt:   fixedNow.Add(30 * 24 * time.Hour),
		Active:      true,
		AppliesTo:   []string{"template"},
		Description: "Launch week",
	}
}

func (h *harness) seedCoupon(t *testing.T, c *model.Coupon, uses int, usedBy ...string) {
	t.Helper()
	ctx := context.Background()
	if err := h.store.CreateCoupon(ctx, c); err != nil {
		t.Fatalf("CreateCoupon: %v", err)
	}
	for i := 0; i < uses; i++ {
		email := ""
		if i < len(usedBy) {
			email = usedBy[i]
		}
		if _, err := h.store.IncrementCouponUsage(ctx, c.Code, email); err != nil {
			t.Fatalf("IncrementCouponUsage: %v", err)
		}
	}
}
