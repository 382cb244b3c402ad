package model

import (
	"time"
)

// LeadStatus is the payment state of a lead.
type LeadStatus string

const (
	LeadStatusPending LeadStatus = "pending"
	LeadStatusPaid    LeadStatus = "paid"
	LeadStatusFailed  LeadStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s LeadStatus) IsTerminal() bool {
	return s == LeadStatusPaid || s == LeadStatusFailed
}

// Lead represents one purchase attempt, keyed by its payment reference
type Lead struct {
	ID         string     `db:"id" json:"id" bson:"id"`
	Reference  string     `db:"reference" json:"reference" bson:"reference"`
	FullName   string     `db:"full_name" json:"fullName" bson:"fullName"`
	Email      string     `db:"email" json:"email" bson:"email"`
	Phone      string     `db:"phone" json:"phone" bson:"phone"`
	Package    string     `db:"package" json:"package" bson:"package"`
	Amount     int64      `db:"amount" json:"amount" bson:"amount"` // naira, not kobo
	CouponCode string     `db:"coupon_code" json:"couponCode,omitempty" bson:"couponCode,omitempty"`
	Status     LeadStatus `db:"status" json:"status" bson:"status"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt" bson:"createdAt"`
	PaidAt     *time.Time `db:"paid_at" json:"paidAt,omitempty" bson:"paidAt,omitempty"`
}

// LeadCounts summarizes leads by status.
type LeadCounts struct {
	Total   int `json:"total"`
	Paid    int `json:"paid"`
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
}

// CountLeads tallies leads by status.
func CountLeads(leads []*Lead) LeadCounts {
	c := LeadCounts{Total: len(leads)}
	for _, l := range leads {
		switch l.Status {
		case LeadStatusPaid:
			c.Paid++
		case LeadStatusPending:
			c.Pending++
		case LeadStatusFailed:
			c.Failed++
		}
	}
	return c
}
