package events

import (
	"context"
	"time"
)

const (
	TopicCart = "cart_events"

	TypeCartFlushed     = "cart_flushed"
	TypeCartLineRemoved = "cart_line_removed"
	TypeCartCleared     = "cart_cleared"
	TypeOrderConfirmed  = "order_confirmed"
)

type Line struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

// Event is the payload written to TopicCart. The message key is UserID so
// that one user's events stay ordered within a partition.
type Event struct {
	Type               string    `json:"type"`
	UserID             string    `json:"user_id"`
	Lines              []Line    `json:"lines,omitempty"`
	TotalCount         int       `json:"total_count,omitempty"`
	TotalPrice         int64     `json:"total_price,omitempty"`
	TotalDiscountPrice int64     `json:"total_discount_price,omitempty"`
	At                 time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Noop drops every event. Used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
