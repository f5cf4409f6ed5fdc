package domain

import "errors"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

var Roles = []Role{RoleAdmin, RoleUser, RoleGuest}

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleUser || r == RoleGuest }

// Preference is the delivery channel a user chose for a notification category.
type Preference string

const (
	PreferenceNone  Preference = "none"
	PreferencePush  Preference = "push"
	PreferenceEmail Preference = "email"
)

func (p Preference) Valid() bool {
	return p == PreferenceNone || p == PreferencePush || p == PreferenceEmail
}

// Category groups notification types under one user preference.
type Category string

const (
	CategoryMessages    Category = "messages"
	CategoryVEInvite    Category = "ve_invite"
	CategoryGroupInvite Category = "group_invite"
	CategorySystem      Category = "system"
)

var Categories = []Category{CategoryMessages, CategoryVEInvite, CategoryGroupInvite, CategorySystem}

var ErrInvalidNotificationSettings = errors.New("invalid notification settings")

func DefaultNotificationSettings() map[Category]Preference {
	return map[Category]Preference{
		CategoryMessages:    PreferenceEmail,
		CategoryVEInvite:    PreferencePush,
		CategoryGroupInvite: PreferencePush,
		CategorySystem:      PreferencePush,
	}
}

// ValidateNotificationSettings accepts a partial map over the closed category set.
func ValidateNotificationSettings(settings map[Category]Preference) error {
	for c, p := range settings {
		known := false
		for _, k := range Categories {
			if c == k {
				known = true
				break
			}
		}
		if !known || !p.Valid() {
			return ErrInvalidNotificationSettings
		}
	}
	return nil
}

// Achievement counters.
const (
	AchievementPosts      = "posts"
	AchievementGiveLikes  = "give_likes"
	AchievementPostsLiked = "posts_liked"
)

// AchievementLevels are the counter values at which a user levels up.
var AchievementLevels = []int{5, 25, 100, 250}

// Level returns how many thresholds count has reached.
func Level(count int) int {
	level := 0
	for _, t := range AchievementLevels {
		if count >= t {
			level++
		}
	}
	return level
}

type Profile struct {
	Username             string                  `json:"username"`
	Role                 Role                    `json:"role"`
	FirstName            string                  `json:"first_name"`
	LastName             string                  `json:"last_name"`
	Institution          string                  `json:"institution"`
	Bio                  string                  `json:"bio"`
	ProfilePic           ID                      `json:"profile_pic"`
	Follows              []string                `json:"follows"`
	Achievements         map[string]int          `json:"achievements"`
	NotificationSettings map[Category]Preference `json:"notification_settings"`
	Email                string                  `json:"email,omitempty"`
}

// PreferenceFor resolves the channel for category, falling back to the defaults.
func (p Profile) PreferenceFor(c Category) Preference {
	if pref, ok := p.NotificationSettings[c]; ok && pref.Valid() {
		return pref
	}
	return DefaultNotificationSettings()[c]
}

func (p Profile) IsFollowing(username string) bool { return containsString(p.Follows, username) }

// ProfileUpdate carries the user-editable display metadata. Nil fields are left unchanged.
type ProfileUpdate struct {
	FirstName   *string
	LastName    *string
	Institution *string
	Bio         *string
	ProfilePic  *ID
}
