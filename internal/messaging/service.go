package messaging

import (
	"context"
	"strings"

	"github.com/sudo-init-do/bazaar/internal/apperr"
	"github.com/sudo-init-do/bazaar/internal/identity"
	"github.com/sudo-init-do/bazaar/internal/logger"
	"github.com/sudo-init-do/bazaar/internal/marketplace"
)

const maxContent = 5000

// Listings is the slice of the listing store messaging needs.
type Listings interface {
	GetByID(ctx context.Context, id string) (marketplace.Listing, error)
}

// Notifier hears about every stored message. Failures are logged only.
type Notifier interface {
	MessageCreated(ctx context.Context, m Message) error
}

type Service struct {
	store    Store
	listings Listings
	hub      *Hub
	notifier Notifier
}

func NewService(store Store, listings Listings, hub *Hub, notifier Notifier) *Service {
	return &Service{store: store, listings: listings, hub: hub, notifier: notifier}
}

// Send stores the message and broadcasts it to the listing group, then
// notifies the recipient.
func (s *Service) Send(ctx context.Context, sender identity.Account, in SendInput) (Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return Message{}, apperr.Validation("message must not be empty", nil)
	}
	if len([]rune(content)) > maxContent {
		return Message{}, apperr.Validation("message is too long", nil)
	}

	listing, err := s.listings.GetByID(ctx, in.ListingID)
	if err != nil {
		return Message{}, err
	}
	var parent *Message
	if in.ParentID != nil && *in.ParentID != "" {
		p, err := s.store.Get(ctx, *in.ParentID)
		if err != nil {
			return Message{}, err
		}
		if p.ListingID != listing.ID {
			return Message{}, apperr.Validation("parent message belongs to another listing", nil)
		}
		parent = &p
	}

	recipient, err := recipientFor(listing, sender.ID, in.RecipientID, parent)
	if err != nil {
		return Message{}, err
	}

	m := Message{
		ListingID:   listing.ID,
		SenderID:    sender.ID,
		RecipientID: recipient,
		Content:     content,
	}
	if parent != nil {
		m.ParentID = &parent.ID
	}

	err = s.hub.Sequence(listing.ID, func() error {
		if err := s.store.Create(ctx, &m); err != nil {
			return err
		}
		s.hub.BroadcastListing(listing.ID, OutboundFrame{
			ID:        m.ID,
			Message:   m.Content,
			Sender:    displayName(sender),
			ListingID: m.ListingID,
			Timestamp: m.CreatedAt,
		})
		return nil
	})
	if err != nil {
		return Message{}, err
	}

	s.hub.PushToUser(m.RecipientID, userFrame{Type: "message_new", Data: m})
	if s.notifier != nil {
		if err := s.notifier.MessageCreated(ctx, m); err != nil {
			logger.Warn("message %s notification failed: %v", m.ID, err)
		}
	}
	return m, nil
}

// recipientFor applies the routing policy: a message from anyone but the
// owner goes to the owner; the owner must name the recipient or reply to a
// message. Nobody messages themselves.
func recipientFor(listing marketplace.Listing, senderID string, explicit *string, parent *Message) (string, error) {
	var recipient string
	switch {
	case senderID != listing.OwnerID:
		if explicit != nil && *explicit != "" && *explicit != listing.OwnerID {
			return "", apperr.Validation("messages on a listing go to its owner", nil)
		}
		recipient = listing.OwnerID
	case explicit != nil && *explicit != "":
		recipient = *explicit
	case parent != nil && parent.SenderID != senderID:
		recipient = parent.SenderID
	case parent != nil:
		recipient = parent.RecipientID
	default:
		return "", apperr.Validation("recipient_id or parent_id is required when writing on your own listing", nil)
	}
	if recipient == "" || recipient == senderID {
		return "", apperr.Validation("you cannot message yourself", nil)
	}
	return recipient, nil
}

func displayName(acc identity.Account) string {
	if acc.Email != "" {
		return acc.Email
	}
	return acc.ID
}

func (s *Service) ListForListing(ctx context.Context, listingID string, limit, offset int) ([]Message, error) {
	if _, err := s.listings.GetByID(ctx, listingID); err != nil {
		return nil, err
	}
	return s.store.ListForListing(ctx, listingID, limit, offset)
}

func (s *Service) ListForAccount(ctx context.Context, acc identity.Account, limit, offset int) ([]Message, error) {
	return s.store.ListForAccount(ctx, acc.ID, limit, offset)
}

// MarkRead lets the recipient acknowledge a message; the sender hears about it.
func (s *Service) MarkRead(ctx context.Context, acc identity.Account, messageID string) (Message, error) {
	m, err := s.store.MarkRead(ctx, messageID, acc.ID)
	if err != nil {
		return Message{}, err
	}
	s.hub.PushToUser(m.SenderID, userFrame{Type: "message_read", Data: m})
	return m, nil
}

func (s *Service) UnreadCount(ctx context.Context, acc identity.Account) (int64, error) {
	return s.store.UnreadCount(ctx, acc.ID)
}
