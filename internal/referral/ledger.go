// Package referral tracks affiliate referral codes, clicks and commission.
//
// A Ledger is an in-memory store owned by whoever constructs it. Every
// mutation keeps TotalCommission == PendingCommission + FulfilledCommission
// on the affected profile; decimal arithmetic makes that equality exact.
package referral

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kkkkikiki/checkout/internal/apperr"
)

// SaleStatus is the payout state of a referral sale.
type SaleStatus string

const (
	SaleStatusPending SaleStatus = "pending"
	SaleStatusPaid    SaleStatus = "paid"
)

// Profile aggregates a referrer's activity. All amounts are naira.
type Profile struct {
	ID                  string          `json:"id"`
	UserID              string          `json:"userId"`
	ReferralCode        string          `json:"referralCode"`
	ReferralLink        string          `json:"referralLink"`
	TotalSales          decimal.Decimal `json:"totalSales"`
	TotalCommission     decimal.Decimal `json:"totalCommission"`
	PendingCommission   decimal.Decimal `json:"pendingCommission"`
	FulfilledCommission decimal.Decimal `json:"fulfilledCommission"`
	TotalReferrals      int             `json:"totalReferrals"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// Reconciled reports whether the commission split adds up.
func (p *Profile) Reconciled() bool {
	return p.TotalCommission.Equal(p.PendingCommission.Add(p.FulfilledCommission))
}

// Sale is one referred purchase and the commission it earned.
type Sale struct {
	ID               string          `json:"id"`
	ReferrerUserID   string          `json:"referrerUserId"`
	Amount           decimal.Decimal `json:"amount"`
	CommissionEarned decimal.Decimal `json:"commissionEarned"`
	Status           SaleStatus      `json:"status"`
	CustomerEmail    string          `json:"customerEmail,omitempty"`
	PaidAt           *time.Time      `json:"paidAt,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// Click is a visit through a referral link.
type Click struct {
	ID             string    `json:"id"`
	ReferrerUserID string    `json:"referrerUserId"`
	ReferralCode   string    `json:"referralCode"`
	LandingPage    string    `json:"landingPage"`
	UserAgent      string    `json:"userAgent,omitempty"`
	IPAddress      string    `json:"ipAddress,omitempty"`
	CapturedAt     time.Time `json:"capturedAt"`
}

// Event is either a sale or a click.
type Event struct {
	Type  string `json:"type"` // sale or click
	Sale  *Sale  `json:"sale,omitempty"`
	Click *Click `json:"click,omitempty"`
}

// Stats summarizes a referrer for the dashboard.
type Stats struct {
	TotalSales          decimal.Decimal `json:"totalSales"`
	TotalCommission     decimal.Decimal `json:"totalCommission"`
	TotalPaidCommission decimal.Decimal `json:"totalPaidCommission"`
	PendingCommission   decimal.Decimal `json:"pendingCommission"`
	TotalReferrals      int             `json:"totalReferrals"`
	RecentSales         []Sale          `json:"recentSales"`
}

// TrackInput describes a referred sale. A nil Rate uses the ledger default.
type TrackInput struct {
	UserID        string
	Amount        decimal.Decimal
	Rate          *decimal.Decimal
	CustomerEmail string
	MarkPaid      bool
}

// ClickInput describes a referral link visit.
type ClickInput struct {
	ReferralCode string
	LandingPage  string
	UserAgent    string
	IPAddress    string
}

// Options configure a Ledger. Zero values fall back to sensible defaults.
type Options struct {
	AppURL      string
	DefaultRate decimal.Decimal
	Now         func() time.Time
	NewID       func() string
}

const recentSalesLimit = 5

// Ledger is a concurrency-safe in-memory referral store.
type Ledger struct {
	mu          sync.Mutex
	appURL      string
	defaultRate decimal.Decimal
	now         func() time.Time
	newID       func() string

	profiles map[string]*Profile // by user id
	codes    map[string]string   // referral code -> user id
	sales    map[string]*Sale
	order    []string // sale ids, oldest first
	events   []Event  // oldest first
}

// NewLedger creates an empty Ledger.
func NewLedger(opts Options) *Ledger {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	if opts.DefaultRate.IsZero() {
		opts.DefaultRate = decimal.RequireFromString("0.2")
	}
	l := &Ledger{
		appURL:      opts.AppURL,
		defaultRate: opts.DefaultRate,
		now:         opts.Now,
		newID:       opts.NewID,
	}
	l.reset()
	return l
}

// GetProfile returns the profile for userID, creating it on first use.
func (l *Ledger) GetProfile(userID string) Profile {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.profile(userID)
}

// TrackEarnings records a referred sale and credits its commission.
func (l *Ledger) TrackEarnings(in TrackInput) (Profile, Sale) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rate := l.defaultRate
	if in.Rate != nil {
		rate = *in.Rate
	}
	commission := Commission(in.Amount, rate)
	now := l.now()

	sale := &Sale{
		ID:               l.newID(),
		ReferrerUserID:   in.UserID,
		Amount:           in.Amount,
		CommissionEarned: commission,
		Status:           SaleStatusPending,
		CustomerEmail:    in.CustomerEmail,
		CreatedAt:        now,
	}
	if in.MarkPaid {
		sale.Status = SaleStatusPaid
		sale.PaidAt = &now
	}
	l.sales[sale.ID] = sale
	l.order = append(l.order, sale.ID)
	l.events = append(l.events, Event{Type: "sale", Sale: sale})

	p := l.profile(in.UserID)
	p.TotalSales = p.TotalSales.Add(in.Amount).Round(2)
	p.TotalCommission = p.TotalCommission.Add(commission)
	if in.MarkPaid {
		p.FulfilledCommission = p.FulfilledCommission.Add(commission)
	} else {
		p.PendingCommission = p.PendingCommission.Add(commission)
	}
	p.TotalReferrals++
	p.UpdatedAt = now

	return *p, copySale(sale)
}

// MarkSaleAsPaid moves a pending sale's commission to fulfilled. Paying an
// already paid sale is a no-op that returns the sale unchanged.
func (l *Ledger) MarkSaleAsPaid(saleID string) (Sale, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sale, ok := l.sales[saleID]
	if !ok {
		return Sale{}, apperr.ErrSaleNotFound
	}
	if sale.Status == SaleStatusPaid {
		return copySale(sale), nil
	}

	now := l.now()
	sale.Status = SaleStatusPaid
	sale.PaidAt = &now

	p := l.profile(sale.ReferrerUserID)
	p.PendingCommission = p.PendingCommission.Sub(sale.CommissionEarned)
	p.FulfilledCommission = p.FulfilledCommission.Add(sale.CommissionEarned)
	p.UpdatedAt = now

	return copySale(sale), nil
}

// LogClick records a visit through code. It returns false for unknown codes.
func (l *Ledger) LogClick(in ClickInput) (Click, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	userID, ok := l.codes[in.ReferralCode]
	if !ok {
		return Click{}, false
	}

	now := l.now()
	click := &Click{
		ID:             l.newID(),
		ReferrerUserID: userID,
		ReferralCode:   in.ReferralCode,
		LandingPage:    in.LandingPage,
		UserAgent:      in.UserAgent,
		IPAddress:      in.IPAddress,
		CapturedAt:     now,
	}
	l.events = append(l.events, Event{Type: "click", Click: click})

	p := l.profile(userID)
	p.TotalReferrals++
	p.UpdatedAt = now

	return *click, true
}

// ResolveByCode returns the profile owning code.
func (l *Ledger) ResolveByCode(code string) (Profile, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	userID, ok := l.codes[code]
	if !ok {
		return Profile{}, false
	}
	return *l.profile(userID), true
}

// Stats returns the aggregates for userID and its five most recent sales.
func (l *Ledger) Stats(userID string) Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.profile(userID)
	recent := make([]Sale, 0, recentSalesLimit)
	for i := len(l.order) - 1; i >= 0; i-- {
		if s := l.sales[l.order[i]]; s.ReferrerUserID == userID {
			recent = append(recent, copySale(s))
		}
	}
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].CreatedAt.After(recent[j].CreatedAt) })
	if len(recent) > recentSalesLimit {
		recent = recent[:recentSalesLimit]
	}

	return Stats{
		TotalSales:          p.TotalSales,
		TotalCommission:     p.TotalCommission,
		TotalPaidCommission: p.FulfilledCommission,
		PendingCommission:   p.PendingCommission,
		TotalReferrals:      p.TotalReferrals,
		RecentSales:         recent,
	}
}

// ListEvents returns userID's sales and clicks, newest first.
func (l *Ledger) ListEvents(userID string) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Event
	for i := len(l.events) - 1; i >= 0; i-- {
		e := l.events[i]
		switch {
		case e.Sale != nil && e.Sale.ReferrerUserID == userID:
			s := copySale(e.Sale)
			out = append(out, Event{Type: e.Type, Sale: &s})
		case e.Click != nil && e.Click.ReferrerUserID == userID:
			c := *e.Click
			out = append(out, Event{Type: e.Type, Click: &c})
		}
	}
	return out
}

// Reset drops every profile, sale and event.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reset()
}

func (l *Ledger) reset() {
	l.profiles = make(map[string]*Profile)
	l.codes = make(map[string]string)
	l.sales = make(map[string]*Sale)
	l.order = nil
	l.events = nil
}

// profile must be called with l.mu held.
func (l *Ledger) profile(userID string) *Profile {
	if p, ok := l.profiles[userID]; ok {
		return p
	}

	code := l.generateCode(userID)
	for {
		if _, taken := l.codes[code]; !taken {
			break
		}
		code = l.generateCode(userID)
	}

	now := l.now()
	p := &Profile{
		ID:           l.newID(),
		UserID:       userID,
		ReferralCode: code,
		ReferralLink: l.appURL + "?ref=" + code,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	l.profiles[userID] = p
	l.codes[code] = userID
	return p
}

// generateCode is the first four characters of userID plus the first UUID
// segment, upper-cased, e.g. "ADA1-9F8E7D6C".
func (l *Ledger) generateCode(userID string) string {
	prefix := []rune(userID)
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	segment, _, _ := strings.Cut(uuid.NewString(), "-")
	return strings.ToUpper(string(prefix)) + "-" + strings.ToUpper(segment)
}

// Commission is amount × rate rounded to two decimals. Negative amounts or
// rates earn nothing.
func Commission(amount, rate decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() || rate.IsNegative() {
		return decimal.Zero
	}
	return amount.Mul(rate).Round(2)
}

func copySale(s *Sale) Sale {
	out := *s
	if s.PaidAt != nil {
		t := *s.PaidAt
		out.PaidAt = &t
	}
	return out
}
