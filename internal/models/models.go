package models

import "time"

// MaxBodyChars bounds NormalizedMessage.Body.
const MaxBodyChars = 5000

// NormalizedMessage is the stored form of an ingested email. It is written
// once by the poller and never modified afterwards.
type NormalizedMessage struct {
	MessageID  string    `json:"message_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	Date       string    `json:"date"`
	ReceivedAt time.Time `json:"received_at"`
	Body       string    `json:"body"`
	RawSource  string    `json:"raw_source"`
}

type SubscriberStatus string

const (
	StatusActive   SubscriberStatus = "active"
	StatusInactive SubscriberStatus = "inactive"
)

// Subscriber is a registered chat recipient. Records are never deleted; the
// lifecycle is expressed through Status.
type Subscriber struct {
	SubscriberID  string           `json:"subscriber_id"`
	Alias         string           `json:"alias"`
	Status        SubscriberStatus `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	LastMessageAt *time.Time       `json:"last_message_at"`
}

func (s *Subscriber) Active() bool {
	return s != nil && s.Status == StatusActive
}

// SubscriberField names a mutable subscriber attribute.
type SubscriberField string

const (
	FieldStatus        SubscriberField = "status"
	FieldLastMessageAt SubscriberField = "last_message_at"
)
