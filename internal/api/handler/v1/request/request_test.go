package request

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestValidate(t *testing.T) {
	objectID := "5f50c31e8a7d4b1c9c8e4a11"

	tests := []struct {
		name    string
		req     interface{ Validate() error }
		wantErr bool
	}{
		{"field update", &UpdateFieldRequest{FieldName: "topics", Value: []string{"x"}}, false},
		{"field update without name", &UpdateFieldRequest{Value: 1}, true},
		{"permissions", &PermissionsRequest{Usernames: []string{"bob"}}, false},
		{"permissions empty", &PermissionsRequest{}, true},
		{"permissions blank name", &PermissionsRequest{Usernames: []string{"bob", ""}}, true},
		{"invitation without plan", &InvitationRequest{Recipient: "bob"}, false},
		{"invitation with plan", &InvitationRequest{PlanID: ptr(objectID), Recipient: "bob"}, false},
		{"invitation bad plan id", &InvitationRequest{PlanID: ptr("nope"), Recipient: "bob"}, true},
		{"invitation without recipient", &InvitationRequest{}, true},
		{"reply", &InvitationReplyRequest{Accepted: ptr(false)}, false},
		{"reply missing", &InvitationReplyRequest{}, true},
		{"plan list", &PlanListQuery{Access: "own", Limit: 20}, false},
		{"plan list bad access", &PlanListQuery{Access: "everyone"}, true},
		{"plan list over limit", &PlanListQuery{Limit: 501}, true},
		{"post", &CreatePostRequest{Text: "hi", Space: objectID, Plans: []string{objectID}}, false},
		{"post empty", &CreatePostRequest{}, true},
		{"post too long", &CreatePostRequest{Text: strings.Repeat("a", maxPostLength+1)}, true},
		{"post bad plan", &CreatePostRequest{Text: "hi", Plans: []string{"x"}}, true},
		{"edit nothing", &EditPostRequest{}, false},
		{"edit empty text", &EditPostRequest{Text: ptr("")}, true},
		{"repost", &RepostRequest{Space: ptr(objectID)}, false},
		{"repost bad space", &RepostRequest{Space: ptr("x")}, true},
		{"comment", &CommentRequest{Text: "nice"}, false},
		{"comment empty", &CommentRequest{}, true},
		{"timeline", &TimelineQuery{Before: "2024-05-01T10:00:00Z", Limit: 10}, false},
		{"timeline bad date", &TimelineQuery{Before: "yesterday"}, true},
		{"space", &CreateSpaceRequest{Name: "Biology"}, false},
		{"space without name", &CreateSpaceRequest{}, true},
		{"space update", &UpdateSpaceRequest{Invisible: ptr(true)}, false},
		{"space update empty name", &UpdateSpaceRequest{Name: ptr("")}, true},
		{"member", &MemberRequest{Username: "bob"}, false},
		{"member missing", &MemberRequest{}, true},
		{"report", &ReportRequest{Type: "post", ItemID: objectID, Reason: "spam"}, false},
		{"report unknown type", &ReportRequest{Type: "meme", ItemID: objectID, Reason: "spam"}, true},
		{"report without reason", &ReportRequest{Type: "profile", ItemID: "bob"}, true},
		{"acl rule", &ACLRuleRequest{Role: "user", Scope: "global", Capability: "create_space", Value: ptr(true)}, false},
		{"acl rule without value", &ACLRuleRequest{Role: "user", Scope: "global", Capability: "create_space"}, true},
		{"room", &RoomRequest{Members: []string{"bob"}}, false},
		{"room without members", &RoomRequest{}, true},
		{"message", &MessageRequest{Text: "hello"}, false},
		{"message empty", &MessageRequest{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
