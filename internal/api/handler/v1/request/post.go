package request

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const maxPostLength = 10000

// CreatePostRequest is bound from a multipart form; files arrive under "file".
type CreatePostRequest struct {
	Text  string   `form:"text"`
	Space string   `form:"space"`
	Tags  []string `form:"tags"`
	Plans []string `form:"plans"`
}

func (req *CreatePostRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Text, validation.Required, validation.Length(1, maxPostLength)),
		validation.Field(&req.Space, is.MongoID),
		validation.Field(&req.Plans, validation.Each(is.MongoID)),
	)
}

type EditPostRequest struct {
	Text  *string  `json:"text"`
	Tags  []string `json:"tags"`
	Plans []string `json:"plans"`
}

func (req *EditPostRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Text, validation.NilOrNotEmpty, validation.Length(1, maxPostLength)),
		validation.Field(&req.Plans, validation.Each(is.MongoID)),
	)
}

type RepostRequest struct {
	Text  *string `json:"text"`
	Space *string `json:"space"`
}

func (req *RepostRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Text, validation.Length(0, maxPostLength)),
		validation.Field(&req.Space, validation.NilOrNotEmpty, is.MongoID),
	)
}

type CommentRequest struct {
	Text string `json:"text"`
}

func (req *CommentRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Text, validation.Required, validation.Length(1, maxPostLength)),
	)
}

type PinRequest struct {
	Pinned bool `json:"pinned"`
}

// TimelineQuery pages a timeline; Before is RFC 3339.
type TimelineQuery struct {
	Before string `form:"before"`
	Limit  int    `form:"limit"`
}

func (q *TimelineQuery) Validate() error {
	return validation.ValidateStruct(
		q,
		validation.Field(&q.Before, validation.Date(time.RFC3339)),
		validation.Field(&q.Limit, validation.Min(0)),
	)
}
