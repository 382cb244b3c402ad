package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/kkkkikiki/checkout/internal/apperr"
	"github.com/kkkkikiki/checkout/internal/referral"
)

// GetReferralLink handles GET /referrals?userId=.
func (h *Handler) GetReferralLink(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		Error(w, http.StatusBadRequest, "User ID is required")
		return
	}
	p := h.referrals.GetProfile(userID)
	JSON(w, http.StatusOK, map[string]string{"referralLink": p.ReferralLink})
}

// TrackReferral handles POST /referrals.
func (h *Handler) TrackReferral(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID         string           `json:"userId"`
		Amount         decimal.Decimal  `json:"amount"`
		CommissionRate *decimal.Decimal `json:"commissionRate"`
		CustomerEmail  string           `json:"customerEmail"`
		MarkPaid       bool             `json:"markPaid"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.UserID == "" || req.Amount.IsZero() {
		Error(w, http.StatusBadRequest, "User ID and amount are required")
		return
	}
	// Public callers record sales at the default rate; overrides are admin-only.
	if req.CommissionRate != nil || req.MarkPaid {
		if status, msg := checkAdmin(h.adminKey, r); status != 0 {
			Error(w, status, msg)
			return
		}
		if req.CommissionRate != nil && (req.CommissionRate.IsNegative() || req.CommissionRate.GreaterThan(decimal.NewFromInt(1))) {
			Error(w, http.StatusBadRequest, "Commission rate must be between 0 and 1")
			return
		}
	}

	profile, sale := h.referrals.TrackEarnings(referral.TrackInput{
		UserID:        req.UserID,
		Amount:        req.Amount,
		Rate:          req.CommissionRate,
		CustomerEmail: req.CustomerEmail,
		MarkPaid:      req.MarkPaid,
	})
	JSON(w, http.StatusOK, map[string]any{
		"earnings": map[string]any{"profile": profile, "sale": sale},
	})
}

// MarkReferralSalePaid handles POST /referrals/sales/{id}/paid. Admin only.
func (h *Handler) MarkReferralSalePaid(w http.ResponseWriter, r *http.Request) {
	sale, err := h.referrals.MarkSaleAsPaid(chi.URLParam(r, "id"))
	if err != nil {
		if apperr.IsNotFound(err) {
			Error(w, http.StatusNotFound, "Referral sale not found")
			return
		}
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"sale": sale})
}

// LogReferralClick handles POST /referrals/clicks.
func (h *Handler) LogReferralClick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReferralCode string `json:"referralCode"`
		LandingPage  string `json:"landingPage"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.ReferralCode == "" {
		Error(w, http.StatusBadRequest, "Referral code is required")
		return
	}

	click, ok := h.referrals.LogClick(referral.ClickInput{
		ReferralCode: req.ReferralCode,
		LandingPage:  req.LandingPage,
		UserAgent:    r.UserAgent(),
		IPAddress:    clientIP(r),
	})
	if !ok {
		Error(w, http.StatusNotFound, "Unknown referral code")
		return
	}
	JSON(w, http.StatusCreated, map[string]any{"click": click})
}

// ReferralStats handles GET /referrals/{userId}/stats.
func (h *Handler) ReferralStats(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.referrals.Stats(chi.URLParam(r, "userId")))
}

// ReferralEvents handles GET /referrals/{userId}/events.
func (h *Handler) ReferralEvents(w http.ResponseWriter, r *http.Request) {
	events := h.referrals.ListEvents(chi.URLParam(r, "userId"))
	if events == nil {
		events = []referral.Event{}
	}
	JSON(w, http.StatusOK, map[string]any{"events": events})
}
