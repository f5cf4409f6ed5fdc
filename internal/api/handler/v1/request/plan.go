package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

type UpdateFieldRequest struct {
	FieldName string `json:"field_name"`
	Value     any    `json:"value"`
	Upsert    bool   `json:"upsert"`
}

func (req *UpdateFieldRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.FieldName, validation.Required),
	)
}

type PermissionsRequest struct {
	Usernames []string `json:"usernames"`
}

func (req *PermissionsRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Usernames, validation.Required, validation.Each(validation.Required)),
	)
}

type InvitationRequest struct {
	PlanID    *string `json:"plan_id"`
	Recipient string  `json:"recipient"`
	Message   string  `json:"message"`
}

func (req *InvitationRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.PlanID, validation.NilOrNotEmpty, is.MongoID),
		validation.Field(&req.Recipient, validation.Required),
		validation.Field(&req.Message, validation.Length(0, 5000)),
	)
}

type InvitationReplyRequest struct {
	Accepted *bool `json:"accepted"`
}

func (req *InvitationReplyRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Accepted, validation.NotNil),
	)
}

type PlanListQuery struct {
	Access       string `form:"access"`
	GoodPractise *bool  `form:"good_practise"`
	Search       string `form:"search"`
	SortBy       string `form:"sort_by"`
	Descending   bool   `form:"desc"`
	Limit        int    `form:"limit"`
	Offset       int    `form:"offset"`
}

func (q *PlanListQuery) Validate() error {
	return validation.ValidateStruct(
		q,
		validation.Field(&q.Access, validation.In("own", "shared", "all")),
		validation.Field(&q.Limit, validation.Min(0), validation.Max(500)),
		validation.Field(&q.Offset, validation.Min(0)),
	)
}
