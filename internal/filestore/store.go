package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kkkkikiki/checkout/internal/apperr"
	"github.com/kkkkikiki/checkout/internal/model"
)

// Store keeps coupons, leads and the waitlist in three JSON files under dir.
type Store struct {
	dir      string
	coupons  *Collection[model.Coupon]
	leads    *Collection[model.Lead]
	waitlist *Collection[model.WaitlistEntry]
}

// New opens (or creates) coupons.json, leads.json and waitlist.json in dir.
func New(dir string) (*Store, error) {
	coupons, err := NewCollection[model.Coupon](filepath.Join(dir, "coupons.json"))
	if err != nil {
		return nil, err
	}
	leads, err := NewCollection[model.Lead](filepath.Join(dir, "leads.json"))
	if err != nil {
		return nil, err
	}
	waitlist, err := NewCollection[model.WaitlistEntry](filepath.Join(dir, "waitlist.json"))
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir, coupons: coupons, leads: leads, waitlist: waitlist}, nil
}

// Ping checks that the data directory is still reachable.
func (s *Store) Ping(_ context.Context) error {
	if _, err := os.Stat(s.dir); err != nil {
		return fmt.Errorf("filestore: data dir unavailable: %w", err)
	}
	return nil
}

// ==================== Coupons ====================

func (s *Store) GetCoupon(_ context.Context, code string) (*model.Coupon, error) {
	c, ok, err := s.coupons.Get(func(c model.Coupon) bool { return model.SameCode(c.Code, code) })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrCouponNotFound
	}
	return &c, nil
}

func (s *Store) ListCoupons(_ context.Context) ([]*model.Coupon, error) {
	items, err := s.coupons.List()
	if err != nil {
		return nil, err
	}
	return pointers(items), nil
}

func (s *Store) CreateCoupon(_ context.Context, c *model.Coupon) error {
	return s.coupons.Mutate(func(items []model.Coupon) ([]model.Coupon, error) {
		for _, existing := range items {
			if model.SameCode(existing.Code, c.Code) {
				return nil, fmt.Errorf("coupon %s: %w", c.Code, apperr.ErrAlreadyExists)
			}
		}
		c.CurrentUses = 0
		c.UsedBy = []string{}
		c.CreatedAt = time.Now()
		return append(items, *c), nil
	})
}

func (s *Store) UpdateCoupon(_ context.Context, c *model.Coupon) error {
	n, err := s.coupons.UpdateWhere(
		func(existing model.Coupon) bool { return model.SameCode(existing.Code, c.Code) },
		func(existing *model.Coupon) error {
			existing.Type = c.Type
			existing.Value = c.Value
			existing.MaxUses = c.MaxUses
			existing.ExpiresAt = c.ExpiresAt
			existing.Active = c.Active
			existing.AppliesTo = c.AppliesTo
			existing.Description = c.Description
			return nil
		},
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrCouponNotFound
	}
	return nil
}

// IncrementCouponUsage records one redemption by email.
func (s *Store) IncrementCouponUsage(_ context.Context, code, email string) (*model.Coupon, error) {
	var updated model.Coupon
	n, err := s.coupons.UpdateWhere(
		func(c model.Coupon) bool { return model.SameCode(c.Code, code) },
		func(c *model.Coupon) error {
			c.RecordUse(email)
			updated = *c
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, apperr.ErrCouponNotFound
	}
	return &updated, nil
}

// ==================== Leads ====================

func (s *Store) CreateLead(_ context.Context, l *model.Lead) error {
	return s.leads.Mutate(func(items []model.Lead) ([]model.Lead, error) {
		for _, existing := range items {
			if existing.Reference == l.Reference {
				return nil, fmt.Errorf("lead %s: %w", l.Reference, apperr.ErrAlreadyExists)
			}
		}
		return append(items, *l), nil
	})
}

func (s *Store) GetLead(_ context.Context, reference string) (*model.Lead, error) {
	l, ok, err := s.leads.Get(func(l model.Lead) bool { return l.Reference == reference })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrLeadNotFound
	}
	return &l, nil
}

// ListLeads returns leads newest first.
func (s *Store) ListLeads(_ context.Context) ([]*model.Lead, error) {
	items, err := s.leads.List()
	if err != nil {
		return nil, err
	}
	leads := pointers(items)
	sort.SliceStable(leads, func(i, j int) bool { return leads[i].CreatedAt.After(leads[j].CreatedAt) })
	return leads, nil
}

// TransitionLead moves a pending lead to status. Terminal leads are returned
// unchanged with changed=false.
func (s *Store) TransitionLead(_ context.Context, reference string, status model.LeadStatus, paidAt *time.Time) (*model.Lead, bool, error) {
	var (
		lead    model.Lead
		found   bool
		changed bool
	)
	err := s.leads.Mutate(func(items []model.Lead) ([]model.Lead, error) {
		for i := range items {
			if items[i].Reference != reference {
				continue
			}
			found = true
			if items[i].Status.IsTerminal() {
				lead = items[i]
				return nil, nil
			}
			items[i].Status = status
			if paidAt != nil {
				items[i].PaidAt = paidAt
			}
			lead = items[i]
			changed = true
			return items, nil
		}
		return nil, nil
	})
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, apperr.ErrLeadNotFound
	}
	return &lead, changed, nil
}

// ==================== Waitlist ====================

func (s *Store) AddWaitlistEntry(_ context.Context, e *model.WaitlistEntry) error {
	return s.waitlist.Mutate(func(items []model.WaitlistEntry) ([]model.WaitlistEntry, error) {
		for _, existing := range items {
			if model.NormalizeEmail(existing.Email) == model.NormalizeEmail(e.Email) {
				return nil, apperr.ErrWaitlistConflict
			}
		}
		return append(items, *e), nil
	})
}

func (s *Store) ListWaitlist(_ context.Context) ([]*model.WaitlistEntry, error) {
	items, err := s.waitlist.List()
	if err != nil {
		return nil, err
	}
	return pointers(items), nil
}

func pointers[T any](items []T) []*T {
	out := make([]*T, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out
}
