package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNotificationType(t *testing.T) {
	for _, typ := range AllNotificationTypes() {
		got, err := ParseNotificationType(string(typ))
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}

	_, err := ParseNotificationType("APPROVAL_PENDING")
	require.Error(t, err)
	assert.Len(t, AllNotificationTypes(), 9)
}

func TestNotificationType_Category(t *testing.T) {
	tests := []struct {
		typ  NotificationType
		want Category
	}{
		{TypeAssignmentCreated, CategoryAssignments},
		{TypeAssignmentDueSoon, CategoryAssignments},
		{TypeAssignmentGraded, CategoryGrades},
		{TypeClassAnnouncement, CategoryAnnouncements},
		{TypeNewMessage, CategoryMessages},
		{TypeLiveClassStarting, CategoryLiveClasses},
		{TypeAchievementEarned, CategoryNone},
		{TypeSubscriptionExpiring, CategoryNone},
		{TypeSystemAlert, CategoryNone},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.Category())
		})
	}
}

func TestDefaultPreferences_AllowEverything(t *testing.T) {
	p := DefaultPreferences("user-1")
	assert.Equal(t, "user-1", p.UserID)

	for _, cat := range []Category{CategoryAssignments, CategoryGrades, CategoryAnnouncements, CategoryMessages} {
		assert.True(t, p.Allows(ChannelEmail, cat), "email %s", cat)
		assert.True(t, p.Allows(ChannelPush, cat), "push %s", cat)
	}
	assert.True(t, p.Allows(ChannelPush, CategoryLiveClasses))
	assert.True(t, p.Allows(ChannelInApp, CategoryNone))
}

func TestPreferences_Allows(t *testing.T) {
	p := DefaultPreferences("user-1")
	p.EmailAssignments = false
	p.PushMessages = false

	assert.False(t, p.Allows(ChannelEmail, CategoryAssignments))
	assert.True(t, p.Allows(ChannelPush, CategoryAssignments))
	assert.False(t, p.Allows(ChannelPush, CategoryMessages))
	assert.True(t, p.Allows(ChannelEmail, CategoryMessages))

	// no email switch for live classes, no external channel for uncategorised types
	assert.False(t, p.Allows(ChannelEmail, CategoryLiveClasses))
	assert.False(t, p.Allows(ChannelEmail, CategoryNone))
	assert.False(t, p.Allows(ChannelPush, CategoryNone))

	p.InAppAll = false
	assert.False(t, p.Allows(ChannelInApp, CategoryAssignments))
}
