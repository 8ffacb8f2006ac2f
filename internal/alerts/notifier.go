package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sudo-init-do/bazaar/internal/messaging"
	"github.com/sudo-init-do/bazaar/internal/orders"
)

// EmailLookup resolves an account's email. "" means unknown.
type EmailLookup interface {
	Email(ctx context.Context, accountID string) (string, error)
}

// Pusher delivers a frame to every live socket of a user.
type Pusher interface {
	PushToUser(userID string, frame any)
}

// PushFrame is what websocket clients on /ws/notifications receive.
type PushFrame struct {
	Type         string       `json:"type"`
	Notification Notification `json:"notification"`
}

// Notifier fans lifecycle events out to email, the in-app feed and live
// sockets. Every channel is attempted; failures are joined and returned.
type Notifier struct {
	queue    *Queue
	store    Store
	accounts EmailLookup
	pusher   Pusher
	appURL   string
}

func NewNotifier(queue *Queue, store Store, accounts EmailLookup, pusher Pusher, appURL string) *Notifier {
	return &Notifier{
		queue:    queue,
		store:    store,
		accounts: accounts,
		pusher:   pusher,
		appURL:   strings.TrimRight(appURL, "/"),
	}
}

func (n *Notifier) inApp(ctx context.Context, userID, kind, title, body, reference string) error {
	item := Notification{UserID: userID, Type: kind, Title: title, Body: body}
	if reference != "" {
		item.Reference = &reference
	}
	if err := n.store.Create(ctx, &item); err != nil {
		return err
	}
	if n.pusher != nil {
		n.pusher.PushToUser(userID, PushFrame{Type: "notification", Notification: item})
	}
	return nil
}

func (n *Notifier) emailOf(ctx context.Context, accountID string) (string, error) {
	email, err := n.accounts.Email(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("lookup email for %s: %w", accountID, err)
	}
	return email, nil
}

func (n *Notifier) orderLink(o orders.Order) string {
	return fmt.Sprintf("%s/orders/%s", n.appURL, o.ID)
}

func orderPayload(o orders.Order, to, subject, body string) OrderEmailPayload {
	return OrderEmailPayload{
		OrderID:  o.ID,
		BuyerID:  o.BuyerID,
		SellerID: o.SellerID,
		Total:    o.TotalPrice.StringFixed(2),
		Envelope: EmailEnvelope{To: to, Subject: subject, Body: body},
		SentAt:   time.Now(),
	}
}

// OrderCreated confirms the order to the buyer and tells the seller.
func (n *Notifier) OrderCreated(ctx context.Context, o orders.Order) error {
	var errs []error
	email, err := n.emailOf(ctx, o.BuyerID)
	if err != nil {
		errs = append(errs, err)
	} else if email != "" {
		errs = append(errs, n.queue.EnqueueOrderCreated(ctx, orderPayload(o, email, "Order received", n.createdBody(o))))
	}
	errs = append(errs, n.inApp(ctx, o.SellerID, KindOrderCreated, "New order",
		fmt.Sprintf("Someone ordered %q.", o.ListingTitle), o.ID))
	return errors.Join(errs...)
}

func (n *Notifier) createdBody(o orders.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your order for %q is placed. Total %s %s.\n", o.ListingTitle, o.TotalPrice.StringFixed(2), strings.ToUpper(o.Currency))
	if o.PaymentMethodName != "" {
		fmt.Fprintf(&b, "Payment method: %s\n", o.PaymentMethodName)
	}
	if addr := formatAddress(o.AddressDetails); addr != "" {
		b.WriteString("Delivery address:\n")
		b.WriteString(addr)
	}
	fmt.Fprintf(&b, "\nComplete payment here: %s", n.orderLink(o))
	return b.String()
}

// formatAddress renders the free-form address object one field per line,
// keys sorted. Anything that is not a non-empty object renders as "".
func formatAddress(raw json.RawMessage) string {
	var fields map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &fields) != nil || len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		if fields[k] == nil {
			continue
		}
		fmt.Fprintf(&b, "  %s: %v\n", k, fields[k])
	}
	return b.String()
}

// OrderPaid emails the buyer once per order and notifies both parties.
func (n *Notifier) OrderPaid(ctx context.Context, o orders.Order) error {
	var errs []error
	email, err := n.emailOf(ctx, o.BuyerID)
	if err != nil {
		errs = append(errs, err)
	} else if email != "" {
		body := fmt.Sprintf("We received your payment of %s %s for %q.\n\nOrder details: %s",
			o.TotalPrice.StringFixed(2), strings.ToUpper(o.Currency), o.ListingTitle, n.orderLink(o))
		errs = append(errs, n.queue.EnqueuePaymentReceived(ctx, orderPayload(o, email, "Payment received", body)))
	}
	errs = append(errs,
		n.inApp(ctx, o.BuyerID, KindOrderPaid, "Payment received",
			fmt.Sprintf("Your payment for %q went through.", o.ListingTitle), o.ID),
		n.inApp(ctx, o.SellerID, KindOrderPaid, "Order paid",
			fmt.Sprintf("%q was paid for.", o.ListingTitle), o.ID),
	)
	return errors.Join(errs...)
}

// OrderCanceled tells the party that did not cancel. With no actor the
// provider declined the payment and the buyer is told.
func (n *Notifier) OrderCanceled(ctx context.Context, o orders.Order, actorID string) error {
	recipient, reason := o.SellerID, "The buyer cancelled"
	switch actorID {
	case o.SellerID:
		recipient, reason = o.BuyerID, "The seller cancelled"
	case "":
		recipient, reason = o.BuyerID, "Payment failed, so we cancelled"
	}

	var errs []error
	email, err := n.emailOf(ctx, recipient)
	if err != nil {
		errs = append(errs, err)
	} else if email != "" {
		body := fmt.Sprintf("%s the order for %q.\n\n%s", reason, o.ListingTitle, n.orderLink(o))
		errs = append(errs, n.queue.EnqueueOrderCancelled(ctx, orderPayload(o, email, "Order cancelled", body)))
	}
	errs = append(errs, n.inApp(ctx, recipient, KindOrderCancelled, "Order cancelled",
		fmt.Sprintf("%s the order for %q.", reason, o.ListingTitle), o.ID))
	return errors.Join(errs...)
}

// MessageCreated tells the recipient about a new message.
func (n *Notifier) MessageCreated(ctx context.Context, m messaging.Message) error {
	var errs []error
	email, err := n.emailOf(ctx, m.RecipientID)
	if err != nil {
		errs = append(errs, err)
	} else if email != "" {
		link := fmt.Sprintf("%s/postings/%s", n.appURL, m.ListingID)
		errs = append(errs, n.queue.EnqueueMessageNew(ctx, MessageNewPayload{
			MessageID: m.ID,
			ListingID: m.ListingID,
			SenderID:  m.SenderID,
			Recipient: m.RecipientID,
			Envelope: EmailEnvelope{
				To:      email,
				Subject: "You have a new message",
				Body:    fmt.Sprintf("%s\n\nReply here: %s", preview(m.Content), link),
			},
			SentAt: time.Now(),
		}))
	}
	errs = append(errs, n.inApp(ctx, m.RecipientID, KindMessageNew, "New message", preview(m.Content), m.ID))
	return errors.Join(errs...)
}

func preview(s string) string {
	const limit = 140
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
