// Package domain holds the notification data model shared by the server,
// the dispatcher and the client session.
package domain

import (
	"fmt"
	"time"
)

// NotificationType is the closed set of notification kinds.
type NotificationType string

const (
	TypeAssignmentCreated    NotificationType = "ASSIGNMENT_CREATED"
	TypeAssignmentDueSoon    NotificationType = "ASSIGNMENT_DUE_SOON"
	TypeAssignmentGraded     NotificationType = "ASSIGNMENT_GRADED"
	TypeClassAnnouncement    NotificationType = "CLASS_ANNOUNCEMENT"
	TypeLiveClassStarting    NotificationType = "LIVE_CLASS_STARTING"
	TypeNewMessage           NotificationType = "NEW_MESSAGE"
	TypeAchievementEarned    NotificationType = "ACHIEVEMENT_EARNED"
	TypeSubscriptionExpiring NotificationType = "SUBSCRIPTION_EXPIRING"
	TypeSystemAlert          NotificationType = "SYSTEM_ALERT"
)

var allTypes = []NotificationType{
	TypeAssignmentCreated,
	TypeAssignmentDueSoon,
	TypeAssignmentGraded,
	TypeClassAnnouncement,
	TypeLiveClassStarting,
	TypeNewMessage,
	TypeAchievementEarned,
	TypeSubscriptionExpiring,
	TypeSystemAlert,
}

// AllNotificationTypes returns every valid type in declaration order.
func AllNotificationTypes() []NotificationType {
	out := make([]NotificationType, len(allTypes))
	copy(out, allTypes)
	return out
}

// Valid reports whether t is one of the nine known types.
func (t NotificationType) Valid() bool {
	for _, known := range allTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseNotificationType validates a wire value.
func ParseNotificationType(s string) (NotificationType, error) {
	t := NotificationType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown notification type %q", s)
	}
	return t, nil
}

// Category groups types for per-channel preferences.
type Category string

const (
	CategoryAssignments   Category = "assignments"
	CategoryGrades        Category = "grades"
	CategoryAnnouncements Category = "announcements"
	CategoryMessages      Category = "messages"
	CategoryLiveClasses   Category = "live_classes"
	// CategoryNone types are delivered in-app only.
	CategoryNone Category = ""
)

// Category returns the preference category for t.
func (t NotificationType) Category() Category {
	switch t {
	case TypeAssignmentCreated, TypeAssignmentDueSoon:
		return CategoryAssignments
	case TypeAssignmentGraded:
		return CategoryGrades
	case TypeClassAnnouncement:
		return CategoryAnnouncements
	case TypeNewMessage:
		return CategoryMessages
	case TypeLiveClassStarting:
		return CategoryLiveClasses
	default:
		return CategoryNone
	}
}

// Channel is a delivery path for a persisted notification.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

// Notification is one inbox entry for one recipient.
// Title, Message and Data are immutable after creation. Read only moves
// false → true, and ReadAt is set at that transition.
type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipient_id"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Data        map[string]any   `json:"data,omitempty"`
	Read        bool             `json:"read"`
	ReadAt      *time.Time       `json:"read_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Preferences are per-user channel switches. A user with no stored row
// behaves as DefaultPreferences.
type Preferences struct {
	UserID string `json:"user_id"`

	EmailAssignments   bool `json:"email_assignments"`
	EmailGrades        bool `json:"email_grades"`
	EmailAnnouncements bool `json:"email_announcements"`
	EmailMessages      bool `json:"email_messages"`

	PushAssignments   bool `json:"push_assignments"`
	PushGrades        bool `json:"push_grades"`
	PushAnnouncements bool `json:"push_announcements"`
	PushMessages      bool `json:"push_messages"`
	PushLiveClasses   bool `json:"push_live_classes"`

	InAppAll bool `json:"in_app_all"`

	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// DefaultPreferences enables every channel.
func DefaultPreferences(userID string) Preferences {
	return Preferences{
		UserID:             userID,
		EmailAssignments:   true,
		EmailGrades:        true,
		EmailAnnouncements: true,
		EmailMessages:      true,
		PushAssignments:    true,
		PushGrades:         true,
		PushAnnouncements:  true,
		PushMessages:       true,
		PushLiveClasses:    true,
		InAppAll:           true,
	}
}

// Allows reports whether ch is enabled for notifications in cat.
// In-app is governed by InAppAll alone. Email has no live-class switch.
func (p Preferences) Allows(ch Channel, cat Category) bool {
	switch ch {
	case ChannelInApp:
		return p.InAppAll
	case ChannelEmail:
		switch cat {
		case CategoryAssignments:
			return p.EmailAssignments
		case CategoryGrades:
			return p.EmailGrades
		case CategoryAnnouncements:
			return p.EmailAnnouncements
		case CategoryMessages:
			return p.EmailMessages
		}
	case ChannelPush:
		switch cat {
		case CategoryAssignments:
			return p.PushAssignments
		case CategoryGrades:
			return p.PushGrades
		case CategoryAnnouncements:
			return p.PushAnnouncements
		case CategoryMessages:
			return p.PushMessages
		case CategoryLiveClasses:
			return p.PushLiveClasses
		}
	}
	return false
}
