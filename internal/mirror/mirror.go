// Package mirror copies leads and waitlist entries into a secondary document
// store. Mirror writes are best-effort: callers log failures and move on.
package mirror

import (
	"context"

	"github.com/kkkkikiki/checkout/internal/model"
)

// Mirror receives a copy of every lead and waitlist write.
type Mirror interface {
	MirrorLead(ctx context.Context, lead *model.Lead) error
	MirrorWaitlistEntry(ctx context.Context, entry *model.WaitlistEntry) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Nop discards everything. It is used when no MongoDB URI is configured.
type Nop struct{}

var _ Mirror = Nop{}

func (Nop) MirrorLead(context.Context, *model.Lead) error                   { return nil }
func (Nop) MirrorWaitlistEntry(context.Context, *model.WaitlistEntry) error { return nil }
func (Nop) Ping(context.Context) error                                      { return nil }
func (Nop) Close(context.Context) error                                     { return nil }
