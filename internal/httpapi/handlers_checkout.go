package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/kkkkikiki/checkout/internal/apperr"
	"github.com/kkkkikiki/checkout/internal/service"
)

// ValidateCoupon handles POST /coupons/validate.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code   string `json:"code"`
		PlanID string `json:"planId"`
		Email  string `json:"email"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	quote, err := h.coupons.Quote(r.Context(), req.Code, req.PlanID, req.Email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"status":  true,
		"message": service.MsgCouponApplied,
		"data":    quote,
	})
}

type paymentMetadata struct {
	FullName      string `json:"fullName"`
	Phone         string `json:"phone"`
	PlanName      string `json:"planName"`
	Package       string `json:"package"`
	CouponCode    string `json:"couponCode"`
	OriginalPrice *int64 `json:"originalPrice"`
	Discount      *int64 `json:"discount"`
	FinalPrice    *int64 `json:"finalPrice"`
}

// InitializePayment handles POST /payments/initialize. Amount is in naira.
func (h *Handler) InitializePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string          `json:"email"`
		Amount   decimal.Decimal `json:"amount"`
		Metadata paymentMetadata `json:"metadata"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	pkg := req.Metadata.PlanName
	if pkg == "" {
		pkg = req.Metadata.Package
	}
	res, err := h.payments.Initialize(r.Context(), service.InitializeInput{
		Email:         req.Email,
		Amount:        req.Amount.Round(0).IntPart(),
		FullName:      req.Metadata.FullName,
		Phone:         req.Metadata.Phone,
		Package:       pkg,
		CouponCode:    req.Metadata.CouponCode,
		OriginalPrice: req.Metadata.OriginalPrice,
		Discount:      req.Metadata.Discount,
		FinalPrice:    req.Metadata.FinalPrice,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	Raw(w, http.StatusOK, res.Raw)
}

// VerifyPayment handles GET /payments/verify?reference=.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	res, err := h.payments.Verify(r.Context(), r.URL.Query().Get("reference"))
	if err != nil {
		if apperr.IsNotFound(err) {
			Error(w, http.StatusNotFound, "Payment reference not found")
			return
		}
		h.fail(w, r, err)
		return
	}
	Raw(w, http.StatusOK, res.Raw)
}

// PaymentWebhook handles POST /payments/webhook.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.payments.HandleWebhook(r.Context(), body, r.Header.Get("x-paystack-signature")); err != nil {
		if errors.Is(err, apperr.ErrUnauthorized) {
			Error(w, http.StatusUnauthorized, "Invalid signature")
			return
		}
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"status": true})
}

// ListLeads handles GET /leads.
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	listing, err := h.payments.ListLeads(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"status":  true,
		"data":    listing.Leads,
		"total":   listing.Total,
		"paid":    listing.Paid,
		"pending": listing.Pending,
		"failed":  listing.Failed,
	})
}

// JoinWaitlist handles POST /waitlist.
func (h *Handler) JoinWaitlist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	entry, err := h.waitlist.Join(r.Context(), req.FullName, req.Email, req.Phone)
	if err != nil {
		if errors.Is(err, apperr.ErrWaitlistConflict) {
			Error(w, http.StatusConflict, service.MsgWaitlistDuplicate)
			return
		}
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"status":  true,
		"message": service.MsgWaitlistJoined,
		"data":    map[string]string{"id": entry.ID},
	})
}

// ListWaitlist handles GET /waitlist.
func (h *Handler) ListWaitlist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.waitlist.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"status": true,
		"data":   entries,
		"total":  len(entries),
	})
}
