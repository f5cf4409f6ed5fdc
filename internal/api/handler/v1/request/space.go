package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

type CreateSpaceRequest struct {
	Name        string `json:"name"`
	Invisible   bool   `json:"invisible"`
	Joinable    bool   `json:"joinable"`
	Description string `json:"space_description"`
}

func (req *CreateSpaceRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&req.Description, validation.Length(0, 2000)),
	)
}

type UpdateSpaceRequest struct {
	Name        *string `json:"name"`
	Invisible   *bool   `json:"invisible"`
	Joinable    *bool   `json:"joinable"`
	Description *string `json:"space_description"`
	PictureID   *string `json:"space_pic"`
}

func (req *UpdateSpaceRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Name, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&req.Description, validation.Length(0, 2000)),
		validation.Field(&req.PictureID, validation.NilOrNotEmpty, is.MongoID),
	)
}

type MemberRequest struct {
	Username string `json:"username"`
}

func (req *MemberRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Username, validation.Required),
	)
}
