package httpapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/kkkkikiki/checkout/internal/model"
	"github.com/kkkkikiki/checkout/internal/paystack"
)

func TestValidateCouponEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seedCoupon(t, launch50())

	exhausted := launch50()
	exhausted.Code = "SOLDOUT"
	exhausted.MaxUses = 0
	ts.seedCoupon(t, exhausted)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"applies", `{"code":"launch50","planId":"template"}`, 200, "Coupon applied successfully!"},
		{"missing plan", `{"code":"LAUNCH50"}`, 400, "Coupon code and plan ID are required"},
		{"unknown code", `{"code":"NOPE","planId":"template"}`, 400, "Invalid coupon code"},
		{"usage limit", `{"code":"SOLDOUT","planId":"template"}`, 400, "This coupon has reached its usage limit"},
		{"wrong plan", `{"code":"LAUNCH50","planId":"template-setup"}`, 400, "This coupon is not valid for the selected package"},
		{"bad json", `{`, 400, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, http.MethodPost, ts.url+"/coupons/validate", tt.body)
			if status != tt.wantStatus || body["message"] != tt.wantMsg {
				t.Fatalf("got %d %v", status, body)
			}
			if status == http.StatusOK {
				data := body["data"].(map[string]any)
				if data["originalPrice"].(float64) != 120000 || data["discount"].(float64) != 60000 || data["finalPrice"].(float64) != 60000 {
					t.Errorf("unexpected pricing: %v", data)
				}
			}
		})
	}
}

func TestPaymentLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seedCoupon(t, launch50())

	status, body := do(t, http.MethodPost, ts.url+"/payments/initialize",
		`{"email":"ada@example.com","amount":60000,"metadata":{"fullName":"Ada","phone":"0800","planName":"Template","couponCode":"LAUNCH50","originalPrice":120000,"discount":60000,"finalPrice":60000}}`)
	if status != http.StatusOK || body["status"] != true {
		t.Fatalf("initialize: %d %v", status, body)
	}
	ref := body["data"].(map[string]any)["reference"].(string)

	lead, err := ts.store.GetLead(context.Background(), ref)
	if err != nil || lead.Status != model.LeadStatusPending || lead.Package != "Template" {
		t.Fatalf("pending lead: %+v %v", lead, err)
	}

	status, body = do(t, http.MethodGet, ts.url+"/payments/verify?reference="+ref, "")
	if status != http.StatusOK || body["data"].(map[string]any)["status"] != "success" {
		t.Fatalf("verify: %d %v", status, body)
	}
	ts.drain(t)

	lead, _ = ts.store.GetLead(context.Background(), ref)
	if lead.Status != model.LeadStatusPaid || lead.PaidAt == nil {
		t.Errorf("lead not paid: %+v", lead)
	}
	if ts.mail.count() != 2 {
		t.Errorf("emails sent: got %d, want 2", ts.mail.count())
	}
	c, _ := ts.store.GetCoupon(context.Background(), "LAUNCH50")
	if c.CurrentUses != 1 {
		t.Errorf("coupon uses: got %d", c.CurrentUses)
	}

	// Re-verifying is idempotent.
	do(t, http.MethodGet, ts.url+"/payments/verify?reference="+ref, "")
	ts.drain(t)
	if ts.mail.count() != 2 {
		t.Errorf("re-verification sent more email: %d", ts.mail.count())
	}
}

func TestPaymentErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"initialize missing name", http.MethodPost, "/payments/initialize", `{"email":"a@b.co","amount":100}`, 400, "Email, full name, and amount are required"},
		{"verify missing reference", http.MethodGet, "/payments/verify", "", 400, "Payment reference is required"},
		{"verify unknown reference", http.MethodGet, "/payments/verify?reference=NOPE", "", 404, "Payment reference not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, tt.method, ts.url+tt.path, tt.body)
			if status != tt.wantStatus || body["message"] != tt.wantMsg {
				t.Errorf("got %d %v", status, body)
			}
		})
	}
	if ts.gatewayHit["/transaction/verify/NOPE"] != 0 {
		t.Error("gateway called for unknown reference")
	}
}

func TestPaymentWebhook(t *testing.T) {
	ts := newTestServer(t, nil)
	status, body := do(t, http.MethodPost, ts.url+"/payments/initialize",
		`{"email":"ada@example.com","amount":1000,"metadata":{"fullName":"Ada"}}`)
	if status != http.StatusOK {
		t.Fatalf("initialize: %d %v", status, body)
	}
	ref := body["data"].(map[string]any)["reference"].(string)

	event := `{"event":"charge.success","data":{"reference":"` + ref + `"}}`
	if status, _ := do(t, http.MethodPost, ts.url+"/payments/webhook", event, "x-paystack-signature", "forged"); status != http.StatusUnauthorized {
		t.Errorf("forged signature: got %d", status)
	}

	sig := paystack.Sign("sk_test", []byte(event))
	if status, _ := do(t, http.MethodPost, ts.url+"/payments/webhook", event, "x-paystack-signature", sig); status != http.StatusOK {
		t.Fatalf("webhook: got %d", status)
	}
	ts.drain(t)

	lead, _ := ts.store.GetLead(context.Background(), ref)
	if lead.Status != model.LeadStatusPaid {
		t.Errorf("lead status: %s", lead.Status)
	}
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name       string
		path       string
		auth       string
		wantStatus int
	}{
		{"leads without token", "/leads", "", 401},
		{"leads with wrong token", "/leads", "Bearer nope", 401},
		{"leads with token", "/leads", "Bearer " + adminKey, 200},
		{"waitlist with token", "/waitlist", "Bearer " + adminKey, 200},
		{"waitlist without token", "/waitlist", "", 401},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, http.MethodGet, ts.url+tt.path, "", "Authorization", tt.auth)
			if status != tt.wantStatus {
				t.Errorf("got %d %v", status, body)
			}
			if status == http.StatusOK && body["total"].(float64) != 0 {
				t.Errorf("unexpected body %v", body)
			}
		})
	}
}

func TestRequireAdminUnconfigured(t *testing.T) {
	h := RequireAdmin("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without an admin key")
	}))
	rec := newRecorder(h, http.MethodGet, "/leads", "Bearer ")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("got %d", rec.Code)
	}
}

func TestWaitlistEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	status, body := do(t, http.MethodPost, ts.url+"/waitlist", `{"fullName":"Ada","email":"Ada@Example.com","phone":"0800"}`)
	if status != http.StatusOK || body["message"] != "Successfully joined the waitlist!" {
		t.Fatalf("join: %d %v", status, body)
	}
	ts.drain(t)
	if ts.mail.count() != 1 {
		t.Errorf("confirmation emails: %d", ts.mail.count())
	}

	status, body = do(t, http.MethodPost, ts.url+"/waitlist", `{"fullName":"Ada","email":"ada@example.com","phone":"0800"}`)
	if status != http.StatusConflict || body["message"] != "This email is already on the waitlist" {
		t.Errorf("duplicate: %d %v", status, body)
	}

	status, body = do(t, http.MethodPost, ts.url+"/waitlist", `{"fullName":"Bob","email":"bob@","phone":"0800"}`)
	if status != http.StatusBadRequest || body["message"] != "Invalid email address" {
		t.Errorf("bad email: %d %v", status, body)
	}

	_, body = do(t, http.MethodGet, ts.url+"/waitlist", "", "Authorization", "Bearer "+adminKey)
	if body["total"].(float64) != 1 {
		t.Errorf("listing: %v", body)
	}
}

func TestReferralEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	status, body := do(t, http.MethodGet, ts.url+"/referrals?userId=ada", "")
	if status != http.StatusOK || body["referralLink"] == "" {
		t.Fatalf("link: %d %v", status, body)
	}

	if status, _ := do(t, http.MethodPost, ts.url+"/referrals", `{"userId":"ada"}`); status != http.StatusBadRequest {
		t.Errorf("missing amount: got %d", status)
	}

	status, body = do(t, http.MethodPost, ts.url+"/referrals", `{"userId":"ada","amount":120000}`)
	if status != http.StatusOK {
		t.Fatalf("track: %d %v", status, body)
	}
	sale := body["earnings"].(map[string]any)["sale"].(map[string]any)
	if sale["commissionEarned"] != "24000" {
		t.Errorf("commission: %v", sale["commissionEarned"])
	}

	status, _ = do(t, http.MethodPost, ts.url+"/referrals/sales/"+sale["id"].(string)+"/paid", "", "Authorization", "Bearer "+adminKey)
	if status != http.StatusOK {
		t.Errorf("mark paid: %d", status)
	}
	if status, _ := do(t, http.MethodPost, ts.url+"/referrals/sales/nope/paid", "", "Authorization", "Bearer "+adminKey); status != http.StatusNotFound {
		t.Errorf("unknown sale: %d", status)
	}

	status, body = do(t, http.MethodGet, ts.url+"/referrals/ada/stats", "")
	if status != http.StatusOK || body["totalPaidCommission"] != "24000" || body["pendingCommission"] != "0" {
		t.Errorf("stats: %d %v", status, body)
	}

	if status, _ := do(t, http.MethodPost, ts.url+"/referrals/clicks", `{"referralCode":"NOPE-1"}`); status != http.StatusNotFound {
		t.Errorf("unknown code: %d", status)
	}
	status, body = do(t, http.MethodGet, ts.url+"/referrals/ada/events", "")
	if status != http.StatusOK || len(body["events"].([]any)) != 1 {
		t.Errorf("events: %d %v", status, body)
	}
}

func TestReferralPayoutRequiresAdmin(t *testing.T) {
	ts := newTestServer(t, nil)

	_, body := do(t, http.MethodPost, ts.url+"/referrals", `{"userId":"ada","amount":120000}`)
	saleID := body["earnings"].(map[string]any)["sale"].(map[string]any)["id"].(string)

	tests := []struct {
		name       string
		path       string
		body       string
		auth       string
		wantStatus int
	}{
		{"custom rate without token", "/referrals", `{"userId":"mallory","amount":120000,"commissionRate":5}`, "", 401},
		{"mark paid without token", "/referrals", `{"userId":"mallory","amount":120000,"markPaid":true}`, "", 401},
		{"negative rate without token", "/referrals", `{"userId":"mallory","amount":120000,"commissionRate":-1}`, "", 401},
		{"pay sale without token", "/referrals/sales/" + saleID + "/paid", "", "", 401},
		{"pay sale with wrong token", "/referrals/sales/" + saleID + "/paid", "", "Bearer nope", 401},
		{"rate above one with token", "/referrals", `{"userId":"ada","amount":100,"commissionRate":5}`, "Bearer " + adminKey, 400},
		{"negative rate with token", "/referrals", `{"userId":"ada","amount":100,"commissionRate":-1}`, "Bearer " + adminKey, 400},
		{"custom rate with token", "/referrals", `{"userId":"ada","amount":100,"commissionRate":0.5,"markPaid":true}`, "Bearer " + adminKey, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, http.MethodPost, ts.url+tt.path, tt.body, "Authorization", tt.auth)
			if status != tt.wantStatus {
				t.Errorf("got %d %v", status, body)
			}
		})
	}

	_, stats := do(t, http.MethodGet, ts.url+"/referrals/mallory/stats", "")
	if stats["totalCommission"] != "0" || stats["totalReferrals"].(float64) != 0 {
		t.Errorf("rejected requests changed the ledger: %v", stats)
	}
	_, stats = do(t, http.MethodGet, ts.url+"/referrals/ada/stats", "")
	if stats["totalPaidCommission"] != "50" || stats["pendingCommission"] != "24000" {
		t.Errorf("ada stats: %v", stats)
	}
}

func TestRateLimitedRoutes(t *testing.T) {
	ts := newTestServer(t, NewIPRateLimiter(0.001, 2))

	for i, want := range []int{400, 400, 429} {
		status, _ := do(t, http.MethodPost, ts.url+"/coupons/validate", `{}`)
		if status != want {
			t.Errorf("request %d: got %d, want %d", i, status, want)
		}
	}
	// Reads stay unlimited.
	if status, _ := do(t, http.MethodGet, ts.url+"/referrals?userId=x", ""); status != http.StatusOK {
		t.Errorf("unlimited route: got %d", status)
	}
}
