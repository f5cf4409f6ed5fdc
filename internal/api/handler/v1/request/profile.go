package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/vecollab/backend/internal/domain"
)

type UpdateProfileRequest struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	Institution *string `json:"institution"`
	Bio         *string `json:"bio"`
	ProfilePic  *string `json:"profile_pic"`
}

func (req *UpdateProfileRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.FirstName, validation.Length(0, 100)),
		validation.Field(&req.LastName, validation.Length(0, 100)),
		validation.Field(&req.Institution, validation.Length(0, 200)),
		validation.Field(&req.Bio, validation.Length(0, 2000)),
		validation.Field(&req.ProfilePic, validation.NilOrNotEmpty, is.MongoID),
	)
}

type NotificationSettingsRequest struct {
	Settings map[domain.Category]domain.Preference `json:"notification_settings"`
}

func (req *NotificationSettingsRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Settings, validation.Required),
	)
}

type RoleRequest struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (req *RoleRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Username, validation.Required),
		validation.Field(&req.Role, validation.Required, validation.In(
			string(domain.RoleAdmin), string(domain.RoleUser), string(domain.RoleGuest),
		)),
	)
}
