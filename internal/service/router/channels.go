package router

import (
	"time"

	"peopleflow/internal/model"
)

// ChannelsFor decides which delivery channels apply to a notification. It
// is a pure function so transport adapters can consult the same policy
// without re-deriving it. Rules are evaluated in strict order, first match
// wins:
//
//  1. critical/urgent priority -> the urgent channel list
//  2. high priority            -> the high channel list
//  3. quiet hours              -> in_app only (critical additionally keeps push)
//  4. weekend + weekend mode   -> in_app only (urgent/critical keep the urgent list)
//  5. otherwise                -> the category's own channel list
//
// A category without a configured list falls back to the normal or low
// tier list depending on priority. The result is never empty.
func ChannelsFor(typ model.NotificationType, priority model.Priority, prefs, defaults *model.NotificationPreferences, now time.Time) []model.Channel {
	if prefs == nil {
		prefs = defaults
	}

	switch priority {
	case model.PriorityCritical, model.PriorityUrgent:
		return nonEmpty(prefs.TierOrDefault(model.TierUrgent, defaults))
	case model.PriorityHigh:
		return nonEmpty(prefs.TierOrDefault(model.TierHigh, defaults))
	}

	if IsQuietHours(prefs, now) {
		if priority == model.PriorityCritical {
			return []model.Channel{model.ChannelInApp, model.ChannelPush}
		}
		return []model.Channel{model.ChannelInApp}
	}

	if isWeekend(now) && prefs.WeekendMode {
		if priority == model.PriorityUrgent || priority == model.PriorityCritical {
			return nonEmpty(prefs.TierOrDefault(model.TierUrgent, defaults))
		}
		return []model.Channel{model.ChannelInApp}
	}

	if chs := prefs.CategoryOrDefault(typ, defaults); len(chs) > 0 {
		return chs
	}

	tier := model.TierLow
	if priority == model.PriorityNormal {
		tier = model.TierNormal
	}
	return nonEmpty(prefs.TierOrDefault(tier, defaults))
}

// IsQuietHours reports whether now falls inside the user's quiet window
// [start, end). A start later than the end means the window wraps
// midnight (e.g. 20:00-08:00). Equal or unparseable bounds disable the
// window.
func IsQuietHours(prefs *model.NotificationPreferences, now time.Time) bool {
	start, okStart := parseClock(prefs.QuietHoursStart)
	end, okEnd := parseClock(prefs.QuietHoursEnd)
	if !okStart || !okEnd || start == end {
		return false
	}

	cur := now.Hour()*60 + now.Minute()
	if start > end {
		return cur >= start || cur < end
	}
	return cur >= start && cur < end
}

func isWeekend(now time.Time) bool {
	wd := now.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

func nonEmpty(chs []model.Channel) []model.Channel {
	if len(chs) == 0 {
		return []model.Channel{model.ChannelInApp}
	}
	return chs
}
