package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kkkkikiki/checkout/internal/apperr"
	"github.com/kkkkikiki/checkout/internal/model"
)

const (
	MsgWaitlistFieldsNeeded = "Full name, email, and phone number are required"
	MsgInvalidEmail         = "Invalid email address"
	MsgWaitlistDuplicate    = "This email is already on the waitlist"
	MsgWaitlistJoined       = "Successfully joined the waitlist!"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// WaitlistService captures affiliate waitlist signups
type WaitlistService struct {
	store      WaitlistStore
	notifier   Notifier
	dispatcher Dispatcher
	mirror     Mirror
	now        func() time.Time
	logger     *zap.Logger
}

// NewWaitlistService creates a new WaitlistService instance
func NewWaitlistService(store WaitlistStore, notifier Notifier, dispatcher Dispatcher, mirror Mirror, logger *zap.Logger) *WaitlistService {
	return &WaitlistService{
		store:      store,
		notifier:   notifier,
		dispatcher: dispatcher,
		mirror:     mirror,
		now:        time.Now,
		logger:     logger.Named("waitlist"),
	}
}

// Join adds a signup and queues its confirmation email.
func (s *WaitlistService) Join(ctx context.Context, fullName, email, phone string) (*model.WaitlistEntry, error) {
	fullName, phone = strings.TrimSpace(fullName), strings.TrimSpace(phone)
	email = model.NormalizeEmail(email)
	if fullName == "" || email == "" || phone == "" {
		return nil, apperr.Invalid("", MsgWaitlistFieldsNeeded)
	}
	if !emailPattern.MatchString(email) {
		return nil, apperr.Invalid("email", MsgInvalidEmail)
	}

	entry := &model.WaitlistEntry{
		ID:        "WL_" + uuid.NewString(),
		FullName:  fullName,
		Email:     email,
		Phone:     phone,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.AddWaitlistEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to add waitlist entry: %w", err)
	}

	if err := s.mirror.MirrorWaitlistEntry(ctx, entry); err != nil {
		s.logger.Warn("failed to mirror waitlist entry", zap.String("id", entry.ID), zap.Error(err))
	}

	s.dispatcher.Go("waitlist_confirmation", func(ctx context.Context) (string, error) {
		return s.notifier.SendWaitlistConfirmation(ctx, entry)
	}, zap.String("waitlist_id", entry.ID))

	return entry, nil
}

// List returns every waitlist entry.
func (s *WaitlistService) List(ctx context.Context) ([]*model.WaitlistEntry, error) {
	entries, err := s.store.ListWaitlist(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list waitlist: %w", err)
	}
	return entries, nil
}
