package alerts

import "time"

// Task type constants
const (
	TaskOrderCreated    = "email:order_created"
	TaskPaymentReceived = "email:payment_received"
	TaskOrderCancelled  = "email:order_cancelled"
	TaskMessageNew      = "email:message_new"
)

const emailQueue = "emails"

// Common envelope for email-like notifications
type EmailEnvelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// OrderEmailPayload covers every order lifecycle email.
type OrderEmailPayload struct {
	OrderID  string        `json:"order_id"`
	BuyerID  string        `json:"buyer_id"`
	SellerID string        `json:"seller_id"`
	Total    string        `json:"total"`
	Envelope EmailEnvelope `json:"envelope"`
	SentAt   time.Time     `json:"sent_at"`
}

// Message new payload (sent to recipient on new message)
type MessageNewPayload struct {
	MessageID string        `json:"message_id"`
	ListingID string        `json:"listing_id"`
	SenderID  string        `json:"sender_id"`
	Recipient string        `json:"recipient"`
	Envelope  EmailEnvelope `json:"envelope"`
	SentAt    time.Time     `json:"sent_at"`
}

// In-app notification types.
const (
	KindOrderCreated   = "order_created"
	KindOrderPaid      = "order_paid"
	KindOrderCancelled = "order_cancelled"
	KindMessageNew     = "message_new"
)
