package domain

// FileEntry is a file reference held by a post or a space repository. PostID is set on space
// entries mirrored from a post.
type FileEntry struct {
	FileID           ID     `json:"file_id"`
	FileName         string `json:"file_name"`
	Author           string `json:"author"`
	ManuallyUploaded bool   `json:"manually_uploaded"`
	PostID           *ID    `json:"post_id,omitempty"`
}

type Space struct {
	ID          ID          `json:"_id"`
	Name        string      `json:"name"`
	Invisible   bool        `json:"invisible"`
	Joinable    bool        `json:"joinable"`
	Members     []string    `json:"members"`
	Admins      []string    `json:"admins"`
	Invites     []string    `json:"invites"`
	Requests    []string    `json:"requests"`
	Files       []FileEntry `json:"files"`
	PictureID   *ID         `json:"space_pic"`
	Description string      `json:"space_description"`
}

type MembershipState string

const (
	StateNotMember MembershipState = "not_member"
	StateInvited   MembershipState = "invited"
	StateRequested MembershipState = "requested"
	StateMember    MembershipState = "member"
	StateAdmin     MembershipState = "admin"
)

func (s Space) State(user string) MembershipState {
	switch {
	case containsString(s.Admins, user):
		return StateAdmin
	case containsString(s.Members, user):
		return StateMember
	case containsString(s.Invites, user):
		return StateInvited
	case containsString(s.Requests, user):
		return StateRequested
	default:
		return StateNotMember
	}
}

func (s Space) IsMember(user string) bool { return containsString(s.Members, user) }
func (s Space) IsAdmin(user string) bool  { return containsString(s.Admins, user) }

// VisibleTo reports whether the space shows up in listings for user.
func (s Space) VisibleTo(user string) bool { return !s.Invisible || s.IsMember(user) }

// The transitions below mutate the receiver only on success. A false result with a nil error is
// an idempotent no-op.

func (s *Space) Invite(user string) (bool, error) {
	if s.IsMember(user) {
		return false, ErrAlreadyMember
	}
	if containsString(s.Invites, user) {
		return false, nil
	}
	s.Invites = append(s.Invites, user)
	return true, nil
}

func (s *Space) AcceptInvite(user string) error {
	if !containsString(s.Invites, user) {
		return ErrUserNotInvited
	}
	s.Invites = without(s.Invites, user)
	s.Requests = without(s.Requests, user)
	s.Members = append(s.Members, user)
	return nil
}

func (s *Space) DeclineInvite(user string) error {
	if !containsString(s.Invites, user) {
		return ErrUserNotInvited
	}
	s.Invites = without(s.Invites, user)
	return nil
}

func (s *Space) RequestJoin(user string) error {
	if s.IsMember(user) {
		return ErrAlreadyMember
	}
	if containsString(s.Requests, user) {
		return ErrAlreadyRequested
	}
	s.Requests = append(s.Requests, user)
	return nil
}

func (s *Space) AcceptRequest(user string) error {
	if !containsString(s.Requests, user) {
		return ErrNotRequested
	}
	s.Requests = without(s.Requests, user)
	s.Invites = without(s.Invites, user)
	s.Members = append(s.Members, user)
	return nil
}

func (s *Space) RejectRequest(user string) error {
	if !containsString(s.Requests, user) {
		return ErrNotRequested
	}
	s.Requests = without(s.Requests, user)
	return nil
}

func (s *Space) Join(user string) error {
	if !s.Joinable {
		return ErrSpaceNotJoinable
	}
	if s.IsMember(user) {
		return ErrAlreadyMember
	}
	s.Invites = without(s.Invites, user)
	s.Requests = without(s.Requests, user)
	s.Members = append(s.Members, user)
	return nil
}

func (s *Space) Leave(user string) error {
	if !s.IsMember(user) {
		return ErrUserNotMember
	}
	if s.IsAdmin(user) && len(s.Admins) == 1 {
		return ErrSpaceOnlyAdmin
	}
	s.Members = without(s.Members, user)
	s.Admins = without(s.Admins, user)
	return nil
}

func (s *Space) Kick(user string) error {
	if !s.IsMember(user) {
		return ErrUserNotMember
	}
	if s.IsAdmin(user) && len(s.Admins) == 1 {
		return ErrSpaceOnlyAdmin
	}
	s.Members = without(s.Members, user)
	s.Admins = without(s.Admins, user)
	return nil
}

func (s *Space) Promote(user string) error {
	if !s.IsMember(user) {
		return ErrUserNotMember
	}
	if s.IsAdmin(user) {
		return ErrAlreadyAdmin
	}
	s.Admins = append(s.Admins, user)
	return nil
}

func (s *Space) Demote(user string) error {
	if !s.IsAdmin(user) {
		return ErrUserNotAdmin
	}
	if len(s.Admins) == 1 {
		return ErrSpaceOnlyAdmin
	}
	s.Admins = without(s.Admins, user)
	return nil
}

// FileByID returns the repository entry for id.
func (s Space) FileByID(id ID) (FileEntry, bool) {
	for _, f := range s.Files {
		if f.FileID == id {
			return f, true
		}
	}
	return FileEntry{}, false
}

func without(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
