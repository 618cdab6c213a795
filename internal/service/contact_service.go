package service

import (
	"context"
	"strings"
	"time"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/model"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/supabase"
)

const (
	rpcAddContactMessage = "add_contact_message"
	rpcAddSubscriber     = "add_subscriber"

	contactTimeLayout = "2006-01-02T15:04"
)

// ContactService submits contact-form messages and newsletter subscribers
// through stored procedures. Success is a 204 with nil data.
type ContactService struct {
	db  *supabase.Client
	now func() time.Time
}

func NewContactService(db *supabase.Client) *ContactService {
	return &ContactService{db: db, now: time.Now}
}

// WithClock replaces the time source used to stamp submissions.
func (s *ContactService) WithClock(now func() time.Time) *ContactService {
	s.now = now
	return s
}

// AddContactMessage submits msg, stamping its dateTime when empty.
func (s *ContactService) AddContactMessage(ctx context.Context, msg model.ContactMessage) (*model.Envelope[any], error) {
	if msg.DateTime == "" {
		msg.DateTime = s.now().UTC().Format(contactTimeLayout)
	}
	msg.Email = strings.TrimSpace(msg.Email)
	return supabase.RPC[any](ctx, s.db, rpcAddContactMessage, model.AddContactMessageRequest{NewMessage: msg})
}

// AddSubscriber submits sub, stamping subscribedAt when empty.
func (s *ContactService) AddSubscriber(ctx context.Context, sub model.Subscriber) (*model.Envelope[any], error) {
	if sub.SubscribedAt == "" {
		sub.SubscribedAt = s.now().UTC().Format(time.RFC3339)
	}
	if sub.SubscriptionTypes == nil {
		sub.SubscriptionTypes = []string{}
	}
	sub.Email = strings.TrimSpace(sub.Email)
	return supabase.RPC[any](ctx, s.db, rpcAddSubscriber, model.AddSubscriberRequest{NewSubscriber: sub})
}
