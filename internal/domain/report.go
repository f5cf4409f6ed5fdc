package domain

import "time"

type ReportType string

const (
	ReportPost     ReportType = "post"
	ReportComment  ReportType = "comment"
	ReportPlan     ReportType = "plan"
	ReportProfile  ReportType = "profile"
	ReportGroup    ReportType = "group"
	ReportChatroom ReportType = "chatroom"
)

var ReportTypes = []ReportType{ReportPost, ReportComment, ReportPlan, ReportProfile, ReportGroup, ReportChatroom}

func (t ReportType) Valid() bool {
	for _, k := range ReportTypes {
		if t == k {
			return true
		}
	}
	return false
}

type ReportState string

const (
	ReportOpen   ReportState = "open"
	ReportClosed ReportState = "closed"
)

// Report flags an item for moderation. ItemID is a hex id, except for profiles where it is a username.
type Report struct {
	ID        ID          `json:"_id"`
	Type      ReportType  `json:"type"`
	ItemID    string      `json:"item_id"`
	Reason    string      `json:"reason"`
	Reporter  string      `json:"reporter"`
	State     ReportState `json:"state"`
	Timestamp time.Time   `json:"timestamp"`
}
