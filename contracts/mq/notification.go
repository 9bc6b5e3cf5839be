package mq

import "time"

// NotificationCreatedPayload is published on "notification.created" after
// the Router persists a row. It carries the routed channel list so the
// transport adapters never re-derive channel policy.
type NotificationCreatedPayload struct {
	NotificationID int       `json:"notification_id"`
	UserID         int       `json:"user_id"`
	Type           string    `json:"type"`
	Priority       string    `json:"priority"`
	Channels       []string  `json:"channels"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	DeepLink       string    `json:"deep_link,omitempty"`
	IsDigest       bool      `json:"is_digest"`
	CreatedAt      time.Time `json:"created_at"`
}
