package messaging

import "time"

// Message is one chat line in a listing's thread.
type Message struct {
	ID          string     `json:"id"`
	ListingID   string     `json:"listing_id"`
	SenderID    string     `json:"sender_id"`
	RecipientID string     `json:"recipient_id"`
	ParentID    *string    `json:"parent_id,omitempty"`
	Content     string     `json:"content"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadAt      *time.Time `json:"read_at"`
}

type SendInput struct {
	ListingID   string  `json:"listing_id" validate:"required"`
	Content     string  `json:"content" validate:"required,max=5000"`
	RecipientID *string `json:"recipient_id"`
	ParentID    *string `json:"parent_id"`
}

// inboundFrame is what clients write on /ws/messages/:listing_id.
type inboundFrame struct {
	Message string `json:"message"`
}

// OutboundFrame is broadcast to every subscriber of a listing.
type OutboundFrame struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Sender    string    `json:"sender"`
	ListingID string    `json:"listing_id"`
	Timestamp time.Time `json:"timestamp"`
}

// userFrame is pushed on a user's personal channel.
type userFrame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
