package model

import "time"

// TriggerEvent names the condition a rule watches for. The set of valid
// entity type / trigger event combinations is closed; the escalation
// engine skips rules outside it.
type TriggerEvent string

const (
	TriggerOverdue             TriggerEvent = "overdue"
	TriggerDeadlineApproaching TriggerEvent = "deadline_approaching"
	TriggerPending             TriggerEvent = "pending"
	TriggerContractExpiring    TriggerEvent = "contract_expiring"
)

// EscalationStep is one link in a rule's chain: either a concrete user or
// a role resolved at escalation time. The role "manager" is special-cased
// to the entity's own manager relation.
type EscalationStep struct {
	Position int    `json:"position"`
	UserID   *int   `json:"user_id,omitempty"`
	Role     string `json:"role,omitempty"`
}

// NotificationRule is an administrator-managed escalation rule. The engine
// treats rules as read-only during a scan.
type NotificationRule struct {
	ID           int              `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	EntityType   EntityType       `json:"entity_type"`
	TriggerEvent TriggerEvent     `json:"trigger_event"`
	DelayHours   int              `json:"delay_hours"`
	Chain        []EscalationStep `json:"escalation_chain"`
	Active       bool             `json:"active"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// EscalationHistory is one append-only ledger row: who was escalated to,
// at which chain level, for which entity under which rule. The ledger
// drives both the per-entity throttle and the next-level computation.
type EscalationHistory struct {
	ID             int        `json:"id"`
	NotificationID int        `json:"notification_id"`
	RuleID         int        `json:"rule_id"`
	EntityType     EntityType `json:"entity_type"`
	EntityID       int        `json:"entity_id"`
	FromUserID     int        `json:"from_user_id"`
	ToUserID       int        `json:"to_user_id"`
	Level          int        `json:"escalation_level"`
	Reason         string     `json:"reason"`
	CreatedAt      time.Time  `json:"created_at"`
}
