package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kkkkikiki/checkout/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(
	template.New("").Funcs(template.FuncMap{"naira": FormatNaira}).ParseFS(templateFS, "templates/*.html"),
)

// Purchase describes a settled payment for customer and admin email.
type Purchase struct {
	FullName  string
	Email     string
	Package   string
	Amount    int64
	Reference string
}

// PurchaseFromLead builds a Purchase from a paid lead.
func PurchaseFromLead(l *model.Lead) Purchase {
	return Purchase{
		FullName:  l.FullName,
		Email:     l.Email,
		Package:   l.Package,
		Amount:    l.Amount,
		Reference: l.Reference,
	}
}

// Notifier renders the checkout emails and hands them to a Mailer.
type Notifier struct {
	mailer         Mailer
	adminEmail     string
	commissionRate float64
	now            func() time.Time
	logger         *zap.Logger
}

// NewNotifier creates a Notifier. adminEmail may be empty, in which case
// admin alerts are skipped.
func NewNotifier(mailer Mailer, adminEmail string, commissionRate float64, logger *zap.Logger) *Notifier {
	return &Notifier{
		mailer:         mailer,
		adminEmail:     adminEmail,
		commissionRate: commissionRate,
		now:            time.Now,
		logger:         logger.Named("notify"),
	}
}

// SendPurchaseConfirmation emails the customer a receipt.
func (n *Notifier) SendPurchaseConfirmation(ctx context.Context, p Purchase) (string, error) {
	html, err := render("purchase_confirmation.html", struct {
		Purchase
		Setup bool
	}{p, model.IsSetupPackage(p.Package)})
	if err != nil {
		return "", err
	}
	return n.mailer.Send(ctx, Message{
		To:      p.Email,
		Subject: "Payment Confirmed - " + p.Package,
		HTML:    html,
	})
}

// SendAdminPurchaseAlert emails the administrator about a new purchase.
func (n *Notifier) SendAdminPurchaseAlert(ctx context.Context, p Purchase) (string, error) {
	if n.adminEmail == "" {
		n.logger.Warn("admin email not configured, skipping purchase alert", zap.String("reference", p.Reference))
		return "", nil
	}
	html, err := render("admin_purchase_alert.html", struct {
		Purchase
		Setup bool
		Time  time.Time
	}{p, model.IsSetupPackage(p.Package), n.now()})
	if err != nil {
		return "", err
	}
	return n.mailer.Send(ctx, Message{
		To:      n.adminEmail,
		Subject: fmt.Sprintf("New Purchase: %s - ₦%s", p.Package, FormatNaira(p.Amount)),
		HTML:    html,
	})
}

// SendWaitlistConfirmation welcomes a new waitlist signup.
func (n *Notifier) SendWaitlistConfirmation(ctx context.Context, e *model.WaitlistEntry) (string, error) {
	html, err := render("waitlist_confirmation.html", struct {
		FullName          string
		CommissionPercent string
	}{e.FullName, decimal.NewFromFloat(n.commissionRate).Shift(2).String()})
	if err != nil {
		return "", err
	}
	return n.mailer.Send(ctx, Message{
		To:      e.Email,
		Subject: "You're on the Waitlist!",
		HTML:    html,
	})
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("notify: render %s: %w", name, err)
	}
	return buf.String(), nil
}

// FormatNaira groups an amount in thousands, e.g. 120000 becomes "120,000".
func FormatNaira(amount int64) string {
	s := strconv.FormatInt(amount, 10)
	neg := false
	if amount < 0 {
		neg = true
		s = s[1:]
	}
	var out []byte
	for i := 0; i < len(s); i++ {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
