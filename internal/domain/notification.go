package domain

import (
	"strings"
	"time"
)

type NotificationType string

const (
	NotifNewMessages        NotificationType = "new_messages"
	NotifSpaceJoinRequest   NotificationType = "space_join_request"
	NotifSpaceInvitation    NotificationType = "space_invitation"
	NotifVEInvitation       NotificationType = "ve_invitation"
	NotifVEInvitationReply  NotificationType = "ve_invitation_reply"
	NotifAchievementLevelUp NotificationType = "achievement_level_up"
	NotifPlanAccessGranted  NotificationType = "plan_access_granted"
	NotifPlanAddedAsPartner NotificationType = "plan_added_as_partner"
)

const notifReminderPrefix = "reminder_"

// ReminderType builds a type of the reminder_* family.
func ReminderType(name string) NotificationType {
	return NotificationType(notifReminderPrefix + name)
}

func (t NotificationType) Valid() bool {
	switch t {
	case NotifNewMessages, NotifSpaceJoinRequest, NotifSpaceInvitation, NotifVEInvitation,
		NotifVEInvitationReply, NotifAchievementLevelUp, NotifPlanAccessGranted, NotifPlanAddedAsPartner:
		return true
	}
	return strings.HasPrefix(string(t), notifReminderPrefix) && len(t) > len(notifReminderPrefix)
}

// Category maps the type to the preference that routes it.
func (t NotificationType) Category() Category {
	switch t {
	case NotifNewMessages:
		return CategoryMessages
	case NotifVEInvitation, NotifVEInvitationReply, NotifPlanAccessGranted, NotifPlanAddedAsPartner:
		return CategoryVEInvite
	case NotifSpaceJoinRequest, NotifSpaceInvitation:
		return CategoryGroupInvite
	default:
		return CategorySystem
	}
}

// Template names the mail template rendered for the type.
func (t NotificationType) Template() string {
	if strings.HasPrefix(string(t), notifReminderPrefix) {
		return "reminder"
	}
	return string(t)
}

type ReceiveState string

const (
	StatePending      ReceiveState = "pending"
	StateSent         ReceiveState = "sent"
	StateAcknowledged ReceiveState = "acknowledged"
)

func (s ReceiveState) rank() int {
	switch s {
	case StatePending:
		return 0
	case StateSent:
		return 1
	case StateAcknowledged:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether from → to moves forward in pending → sent → acknowledged.
func CanTransition(from, to ReceiveState) bool {
	return from.rank() >= 0 && to.rank() > from.rank()
}

type Notification struct {
	ID                ID               `json:"_id"`
	To                string           `json:"to"`
	Type              NotificationType `json:"type"`
	ReceiveState      ReceiveState     `json:"receive_state"`
	CreationTimestamp time.Time        `json:"creation_timestamp"`
	Payload           map[string]any   `json:"payload"`
}
