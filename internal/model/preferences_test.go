package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityTier(t *testing.T) {
	assert.Equal(t, TierUrgent, PriorityCritical.Tier(), "critical shares the urgent bucket")
	assert.Equal(t, TierUrgent, PriorityUrgent.Tier())
	assert.Equal(t, TierHigh, PriorityHigh.Tier())
	assert.Equal(t, TierNormal, PriorityNormal.Tier())
	assert.Equal(t, TierLow, PriorityLow.Tier())
	assert.Equal(t, TierNormal, Priority("??").Tier())
}

func TestApplyMergesPartially(t *testing.T) {
	p := DefaultPreferences()
	weekend := true
	start := "21:00"

	p.Apply(PreferencesUpdate{
		WeekendMode:     &weekend,
		QuietHoursStart: &start,
		CategoryChannels: map[NotificationType][]Channel{
			TypeUpdate: {ChannelEmail},
		},
	})

	assert.True(t, p.WeekendMode)
	assert.Equal(t, "21:00", p.QuietHoursStart)
	assert.Equal(t, "07:00", p.QuietHoursEnd, "untouched fields keep their value")
	assert.Equal(t, []Channel{ChannelEmail}, p.CategoryChannels[TypeUpdate])
	assert.Equal(t, DefaultPreferences().CategoryChannels[TypeDeadline], p.CategoryChannels[TypeDeadline],
		"map keys not named in the update stay")
}

func TestCloneIsolatesChannelMaps(t *testing.T) {
	defaults := DefaultPreferences()
	clone := defaults.Clone()

	clone.CategoryChannels[TypeUpdate] = []Channel{ChannelSMS}
	clone.PriorityChannels[TierLow] = nil

	assert.Equal(t, []Channel{ChannelInApp}, defaults.CategoryChannels[TypeUpdate],
		"mutating a clone must not reach the shared defaults")
	assert.Equal(t, []Channel{ChannelInApp}, defaults.PriorityChannels[TierLow])
}
