package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kkkkikiki/checkout/internal/config"
	"github.com/kkkkikiki/checkout/internal/filestore"
	"github.com/kkkkikiki/checkout/internal/mirror"
	"github.com/kkkkikiki/checkout/internal/model"
	"github.com/kkkkikiki/checkout/internal/notify"
	"github.com/kkkkikiki/checkout/internal/paystack"
	"github.com/kkkkikiki/checkout/internal/referral"
	"github.com/kkkkikiki/checkout/internal/service"
)

const adminKey = "s3cret"

type mailbox struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (m *mailbox) Send(_ context.Context, msg notify.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return "id", nil
}

func (m *mailbox) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type testServer struct {
	url        string
	store      *filestore.Store
	mail       *mailbox
	dispatcher *notify.Dispatcher
	gateway    *httptest.Server
	gatewayHit map[string]int
	mu         sync.Mutex
}

// fakePaystack answers initialize with a checkout URL and verify with success.
func (ts *testServer) fakePaystack(w http.ResponseWriter, r *http.Request) {
	ts.mu.Lock()
	ts.gatewayHit[r.URL.Path]++
	ts.mu.Unlock()

	switch {
	case r.URL.Path == "/transaction/initialize":
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		ref := body["reference"].(string)
		w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/` + ref + `","access_code":"ac","reference":"` + ref + `"}}`))
	case strings.HasPrefix(r.URL.Path, "/transaction/verify/"):
		ref := strings.TrimPrefix(r.URL.Path, "/transaction/verify/")
		w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"reference":"` + ref + `","status":"success","amount":6000000,"metadata":{"couponCode":"LAUNCH50"}}}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestServer(t *testing.T, limiter *IPRateLimiter) *testServer {
	t.Helper()
	logger := zap.NewNop()

	store, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("filestore.New: %v", err)
	}
	ts := &testServer{store: store, mail: &mailbox{}, gatewayHit: map[string]int{}}
	ts.gateway = httptest.NewServer(http.HandlerFunc(ts.fakePaystack))
	t.Cleanup(ts.gateway.Close)

	gateway := paystack.NewClient(config.PaystackConfig{SecretKey: "sk_test", BaseURL: ts.gateway.URL, Timeout: time.Second}, logger)
	notifier := notify.NewNotifier(ts.mail, "admin@example.com", 0.2, logger)
	ts.dispatcher = notify.NewDispatcher(time.Second, logger)

	coupons := service.NewCouponService(store, logger)
	payments := service.NewPaymentService(service.PaymentDeps{
		Leads: store, Coupons: coupons, Gateway: gateway, Notifier: notifier,
		Dispatcher: ts.dispatcher, Mirror: mirror.Nop{}, AppURL: "https://shop.example.com", Logger: logger,
	})
	waitlist := service.NewWaitlistService(store, notifier, ts.dispatcher, mirror.Nop{}, logger)

	h := NewHandler(Deps{
		Coupons: coupons, Payments: payments, Waitlist: waitlist,
		Referrals: referral.NewLedger(referral.Options{AppURL: "https://shop.example.com"}),
		AdminKey:  adminKey, Limiter: limiter, Logger: logger,
	})
	r := NewRouter(logger)
	h.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	ts.url = srv.URL
	return ts
}

func (ts *testServer) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := ts.dispatcher.Wait(ctx); err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
}

func (ts *testServer) seedCoupon(t *testing.T, c *model.Coupon) {
	t.Helper()
	if err := ts.store.CreateCoupon(context.Background(), c); err != nil {
		t.Fatalf("CreateCoupon: %v", err)
	}
}

func do(t *testing.T, method, url, body string, headers ...string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func launch50() *model.Coupon {
	return &model.Coupon{
		Code: "LAUNCH50", Type: model.CouponTypePercentage, Value: 50, MaxUses: 100,
		ExpiresAt: time.Now().Add(24 * time.Hour), Active: true, AppliesTo: []string{"template"},
		Description: "Launch week",
	}
}
