package request

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/vecollab/backend/internal/domain"
)

var errNotReportable = errors.New("is not a reportable item type")

type ReportRequest struct {
	Type   string `json:"type"`
	ItemID string `json:"item_id"`
	Reason string `json:"reason"`
}

func (req *ReportRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Type, validation.Required, validation.By(reportType)),
		validation.Field(&req.ItemID, validation.Required),
		validation.Field(&req.Reason, validation.Required, validation.Length(1, 2000)),
	)
}

func reportType(v any) error {
	t, _ := v.(string)
	if !domain.ReportType(t).Valid() {
		return errNotReportable
	}
	return nil
}

type ACLRuleRequest struct {
	Role       string `json:"role"`
	Scope      string `json:"scope"`
	Capability string `json:"capability"`
	Value      *bool  `json:"value"`
}

func (req *ACLRuleRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Role, validation.Required),
		validation.Field(&req.Scope, validation.Required),
		validation.Field(&req.Capability, validation.Required),
		validation.Field(&req.Value, validation.NotNil),
	)
}

type RoomRequest struct {
	Members []string `json:"members"`
	Name    *string  `json:"name"`
}

func (req *RoomRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Members, validation.Required, validation.Each(validation.Required)),
		validation.Field(&req.Name, validation.Length(0, 100)),
	)
}

type MessageRequest struct {
	Text string `json:"text"`
}

func (req *MessageRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Text, validation.Required, validation.Length(1, 10000)),
	)
}
