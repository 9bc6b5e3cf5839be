package model

import "time"

// PriorityTier is the preference bucket a priority falls into. Critical
// shares the urgent bucket: there is no separate channel list for it.
type PriorityTier string

const (
	TierUrgent PriorityTier = "urgent"
	TierHigh   PriorityTier = "high"
	TierNormal PriorityTier = "normal"
	TierLow    PriorityTier = "low"
)

// Tier maps a priority onto its preference bucket.
func (p Priority) Tier() PriorityTier {
	switch p {
	case PriorityCritical, PriorityUrgent:
		return TierUrgent
	case PriorityHigh:
		return TierHigh
	case PriorityLow:
		return TierLow
	default:
		return TierNormal
	}
}

// NotificationPreferences holds one user's routing settings. A row is
// materialized lazily: until the user saves something, routing runs on the
// injected defaults.
type NotificationPreferences struct {
	UserID           int                            `json:"user_id"`
	DigestFrequency  string                         `json:"digest_frequency"`
	QuietHoursStart  string                         `json:"quiet_hours_start"` // "HH:MM"
	QuietHoursEnd    string                         `json:"quiet_hours_end"`   // "HH:MM"
	WeekendMode      bool                           `json:"weekend_mode"`
	VacationMode     bool                           `json:"vacation_mode"`
	DelegateUserID   *int                           `json:"delegate_user_id,omitempty"`
	CategoryChannels map[NotificationType][]Channel `json:"category_channels"`
	PriorityChannels map[PriorityTier][]Channel     `json:"priority_channels"`
	UpdatedAt        time.Time                      `json:"updated_at"`
}

// PreferencesUpdate is a partial merge: nil fields keep their current
// value, provided map keys replace only those keys.
type PreferencesUpdate struct {
	DigestFrequency  *string                        `json:"digest_frequency,omitempty"`
	QuietHoursStart  *string                        `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd    *string                        `json:"quiet_hours_end,omitempty"`
	WeekendMode      *bool                          `json:"weekend_mode,omitempty"`
	VacationMode     *bool                          `json:"vacation_mode,omitempty"`
	DelegateUserID   *int                           `json:"delegate_user_id,omitempty"`
	CategoryChannels map[NotificationType][]Channel `json:"category_channels,omitempty"`
	PriorityChannels map[PriorityTier][]Channel     `json:"priority_channels,omitempty"`
}

// DefaultPreferences returns the fallback settings applied when a user has
// no stored row, or when a stored row is missing a category or tier.
// Construct once at startup and pass by reference; nothing mutates it.
func DefaultPreferences() NotificationPreferences {
	return NotificationPreferences{
		DigestFrequency: "immediate",
		QuietHoursStart: "22:00",
		QuietHoursEnd:   "07:00",
		CategoryChannels: map[NotificationType][]Channel{
			TypeDeadline:   {ChannelInApp, ChannelEmail, ChannelPush},
			TypeApproval:   {ChannelInApp, ChannelEmail},
			TypeUpdate:     {ChannelInApp},
			TypeReminder:   {ChannelInApp, ChannelPush},
			TypeEscalation: {ChannelInApp, ChannelEmail, ChannelPush},
		},
		PriorityChannels: map[PriorityTier][]Channel{
			TierUrgent: {ChannelInApp, ChannelEmail, ChannelSMS, ChannelPush},
			TierHigh:   {ChannelInApp, ChannelEmail, ChannelPush},
			TierNormal: {ChannelInApp, ChannelEmail},
			TierLow:    {ChannelInApp},
		},
	}
}

// Clone deep-copies the preferences, including the channel maps, so a
// row materialized from the shared defaults can be mutated safely.
func (p *NotificationPreferences) Clone() NotificationPreferences {
	out := *p
	out.CategoryChannels = make(map[NotificationType][]Channel, len(p.CategoryChannels))
	for cat, chs := range p.CategoryChannels {
		out.CategoryChannels[cat] = append([]Channel(nil), chs...)
	}
	out.PriorityChannels = make(map[PriorityTier][]Channel, len(p.PriorityChannels))
	for tier, chs := range p.PriorityChannels {
		out.PriorityChannels[tier] = append([]Channel(nil), chs...)
	}
	return out
}

// Apply merges an update into the preferences.
func (p *NotificationPreferences) Apply(upd PreferencesUpdate) {
	if upd.DigestFrequency != nil {
		p.DigestFrequency = *upd.DigestFrequency
	}
	if upd.QuietHoursStart != nil {
		p.QuietHoursStart = *upd.QuietHoursStart
	}
	if upd.QuietHoursEnd != nil {
		p.QuietHoursEnd = *upd.QuietHoursEnd
	}
	if upd.WeekendMode != nil {
		p.WeekendMode = *upd.WeekendMode
	}
	if upd.VacationMode != nil {
		p.VacationMode = *upd.VacationMode
	}
	if upd.DelegateUserID != nil {
		p.DelegateUserID = upd.DelegateUserID
	}
	for cat, chs := range upd.CategoryChannels {
		if p.CategoryChannels == nil {
			p.CategoryChannels = map[NotificationType][]Channel{}
		}
		p.CategoryChannels[cat] = chs
	}
	for tier, chs := range upd.PriorityChannels {
		if p.PriorityChannels == nil {
			p.PriorityChannels = map[PriorityTier][]Channel{}
		}
		p.PriorityChannels[tier] = chs
	}
}

// CategoryOrDefault returns the channel list for a category, falling back
// to the defaults so the result is never empty.
func (p *NotificationPreferences) CategoryOrDefault(cat NotificationType, defaults *NotificationPreferences) []Channel {
	if chs, ok := p.CategoryChannels[cat]; ok && len(chs) > 0 {
		return chs
	}
	return defaults.CategoryChannels[cat]
}

// TierOrDefault returns the channel list for a priority tier, falling back
// to the defaults so the result is never empty.
func (p *NotificationPreferences) TierOrDefault(tier PriorityTier, defaults *NotificationPreferences) []Channel {
	if chs, ok := p.PriorityChannels[tier]; ok && len(chs) > 0 {
		return chs
	}
	return defaults.PriorityChannels[tier]
}
