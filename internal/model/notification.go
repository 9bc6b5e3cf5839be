package model

import "time"

// NotificationType is the category of a notification. Each category has its
// own channel list in the user's preferences.
type NotificationType string

const (
	TypeDeadline   NotificationType = "deadline"
	TypeApproval   NotificationType = "approval"
	TypeUpdate     NotificationType = "update"
	TypeReminder   NotificationType = "reminder"
	TypeEscalation NotificationType = "escalation"
)

// Priority of a notification. Critical and urgent bypass quiet hours and
// weekend mode during routing.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityUrgent   Priority = "urgent"
	PriorityCritical Priority = "critical"
)

// Channel is a delivery channel. The engine only decides which channels
// apply; delivery itself is done by external transport adapters.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// ActionKind identifies what an inline notification action does when the
// user taps it. The UI maps kinds to concrete screens.
type ActionKind string

const (
	ActionView     ActionKind = "view"
	ActionReassign ActionKind = "reassign"
	ActionApprove  ActionKind = "approve"
	ActionReject   ActionKind = "reject"
	ActionExtend   ActionKind = "extend"
)

// Action is an inline button attached to a notification.
type Action struct {
	Label string     `json:"label"`
	Kind  ActionKind `json:"kind"`
	Style string     `json:"style,omitempty"`
}

// Notification represents one row in the notifications table. Rows are
// never deleted, only superseded; read/acted timestamps are set once.
type Notification struct {
	ID        int              `json:"id"`
	UserID    int              `json:"user_id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Priority  Priority         `json:"priority"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
	Deadline  *time.Time       `json:"deadline,omitempty"`
	Actions   []Action         `json:"actions,omitempty"`
	DeepLink  string           `json:"deep_link,omitempty"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	ActedAt   *time.Time       `json:"acted_at,omitempty"`
	IsDigest  bool             `json:"is_digest"`
	CreatedAt time.Time        `json:"created_at"`
}
