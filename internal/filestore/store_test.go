package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kkkkikiki/checkout/internal/apperr"
	"github.com/kkkkikiki/checkout/internal/model"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewCreatesEmptyCollections(t *testing.T) {
	dir := t.TempDir()
	if _, err := New(dir); err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, name := range []string{"coupons.json", "leads.json", "waitlist.json"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(data) != "[]" {
			t.Errorf("%s: got %q, want []", name, data)
		}
	}
}

func TestCouponCreateGetIsCaseInsensitive(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	err := s.CreateCoupon(ctx, &model.Coupon{
		Code: "LAUNCH50", Type: model.CouponTypePercentage, Value: 50, MaxUses: 100,
		CurrentUses: 7, ExpiresAt: time.Now().Add(time.Hour), Active: true, AppliesTo: []string{"template"},
	})
	if err != nil {
		t.Fatalf("CreateCoupon: %v", err)
	}

	c, err := s.GetCoupon(ctx, "launch50")
	if err != nil {
		t.Fatalf("GetCoupon: %v", err)
	}
	if c.CurrentUses != 0 {
		t.Errorf("new coupons start unused, got %d", c.CurrentUses)
	}

	err = s.CreateCoupon(ctx, &model.Coupon{Code: "Launch50", Type: model.CouponTypeFixed})
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	if _, err := s.GetCoupon(ctx, "missing"); !errors.Is(err, apperr.ErrCouponNotFound) {
		t.Errorf("expected ErrCouponNotFound, got %v", err)
	}
}

func TestIncrementCouponUsageConcurrent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if err := s.CreateCoupon(ctx, &model.Coupon{Code: "RUSH", Type: model.CouponTypeFixed, Value: 1000, MaxUses: 1000}); err != nil {
		t.Fatalf("CreateCoupon: %v", err)
	}

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.IncrementCouponUsage(ctx, "rush", "same@example.com"); err != nil {
				t.Errorf("IncrementCouponUsage: %v", err)
			}
		}()
	}
	wg.Wait()

	c, err := s.GetCoupon(ctx, "RUSH")
	if err != nil {
		t.Fatalf("GetCoupon: %v", err)
	}
	if c.CurrentUses != n {
		t.Errorf("lost increments: got %d, want %d", c.CurrentUses, n)
	}
	if len(c.UsedBy) != 1 {
		t.Errorf("UsedBy must hold the email once, got %v", c.UsedBy)
	}
}

func TestTransitionLead(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	lead := &model.Lead{ID: "R1", Reference: "R1", Email: "ada@example.com", Status: model.LeadStatusPending, CreatedAt: time.Now()}
	if err := s.CreateLead(ctx, lead); err != nil {
		t.Fatalf("CreateLead: %v", err)
	}

	paidAt := time.Now().UTC().Truncate(time.Second)
	got, changed, err := s.TransitionLead(ctx, "R1", model.LeadStatusPaid, &paidAt)
	if err != nil || !changed {
		t.Fatalf("first transition: changed=%v err=%v", changed, err)
	}
	if got.Status != model.LeadStatusPaid || got.PaidAt == nil || !got.PaidAt.Equal(paidAt) {
		t.Errorf("unexpected lead: %+v", got)
	}

	got, changed, err = s.TransitionLead(ctx, "R1", model.LeadStatusFailed, nil)
	if err != nil {
		t.Fatalf("second transition: %v", err)
	}
	if changed || got.Status != model.LeadStatusPaid {
		t.Errorf("terminal status overwritten: changed=%v status=%s", changed, got.Status)
	}

	if _, _, err := s.TransitionLead(ctx, "nope", model.LeadStatusPaid, nil); !errors.Is(err, apperr.ErrLeadNotFound) {
		t.Errorf("expected ErrLeadNotFound, got %v", err)
	}
}

func TestListLeadsNewestFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Now()
	for i, ref := range []string{"A", "B", "C"} {
		l := &model.Lead{ID: ref, Reference: ref, Status: model.LeadStatusPending, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.CreateLead(ctx, l); err != nil {
			t.Fatalf("CreateLead: %v", err)
		}
	}

	leads, err := s.ListLeads(ctx)
	if err != nil {
		t.Fatalf("ListLeads: %v", err)
	}
	if len(leads) != 3 || leads[0].Reference != "C" || leads[2].Reference != "A" {
		t.Errorf("unexpected order: %v %v %v", leads[0].Reference, leads[1].Reference, leads[2].Reference)
	}
}

func TestWaitlistRejectsDuplicateEmail(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.AddWaitlistEntry(ctx, &model.WaitlistEntry{ID: "1", Email: "ada@example.com"}); err != nil {
		t.Fatalf("AddWaitlistEntry: %v", err)
	}
	err := s.AddWaitlistEntry(ctx, &model.WaitlistEntry{ID: "2", Email: "ADA@example.com"})
	if !errors.Is(err, apperr.ErrWaitlistConflict) {
		t.Fatalf("expected ErrWaitlistConflict, got %v", err)
	}

	entries, err := s.ListWaitlist(ctx)
	if err != nil || len(entries) != 1 {
		t.Fatalf("ListWaitlist: %d entries, err=%v", len(entries), err)
	}
}

func TestUpdateWhereSkipsWriteWhenNothingMatches(t *testing.T) {
	c, err := NewCollection[model.Lead](filepath.Join(t.TempDir(), "leads.json"))
	if err != nil {
		t.Fatalf("NewCollection: %v", err)
	}
	n, err := c.UpdateWhere(func(model.Lead) bool { return false }, func(*model.Lead) error { return nil })
	if err != nil || n != 0 {
		t.Fatalf("UpdateWhere: n=%d err=%v", n, err)
	}
}
