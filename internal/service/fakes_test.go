package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/repository"
)

// profiles

type fakeProfiles struct {
	byName map[string]domain.Profile
}

func newFakeProfiles(profiles ...domain.Profile) *fakeProfiles {
	f := &fakeProfiles{byName: map[string]domain.Profile{}}
	for _, p := range profiles {
		if p.Achievements == nil {
			p.Achievements = map[string]int{}
		}
		f.byName[p.Username] = p
	}
	return f
}

func (f *fakeProfiles) Create(_ context.Context, p domain.Profile) (domain.Profile, error) {
	if _, ok := f.byName[p.Username]; ok {
		return domain.Profile{}, ErrProfileExists
	}
	f.byName[p.Username] = p
	return p, nil
}

func (f *fakeProfiles) FindByUsername(_ context.Context, username string) (domain.Profile, error) {
	p, ok := f.byName[username]
	if !ok {
		return domain.Profile{}, ErrProfileNotFound
	}
	return p, nil
}

func (f *fakeProfiles) FindByUsernames(_ context.Context, usernames []string) ([]domain.Profile, error) {
	var out []domain.Profile
	for _, u := range usernames {
		if p, ok := f.byName[u]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProfiles) FindByRole(_ context.Context, role domain.Role) ([]domain.Profile, error) {
	var out []domain.Profile
	for _, p := range f.byName {
		if p.Role == role {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProfiles) FindFollowers(_ context.Context, username string) ([]domain.Profile, error) {
	var out []domain.Profile
	for _, p := range f.byName {
		if p.IsFollowing(username) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (f *fakeProfiles) Update(_ context.Context, username string, u domain.ProfileUpdate) error {
	p, ok := f.byName[username]
	if !ok {
		return ErrProfileNotFound
	}
	if u.FirstName != nil {
		p.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		p.LastName = *u.LastName
	}
	if u.Institution != nil {
		p.Institution = *u.Institution
	}
	if u.Bio != nil {
		p.Bio = *u.Bio
	}
	if u.ProfilePic != nil {
		p.ProfilePic = *u.ProfilePic
	}
	f.byName[username] = p
	return nil
}

func (f *fakeProfiles) SetRole(_ context.Context, username string, role domain.Role) error {
	p, ok := f.byName[username]
	if !ok {
		return ErrProfileNotFound
	}
	p.Role = role
	f.byName[username] = p
	return nil
}

func (f *fakeProfiles) SetEmail(_ context.Context, username, email string) error {
	p, ok := f.byName[username]
	if !ok {
		return ErrProfileNotFound
	}
	p.Email = email
	f.byName[username] = p
	return nil
}

func (f *fakeProfiles) SetNotificationSettings(_ context.Context, username string, settings map[domain.Category]domain.Preference) error {
	p, ok := f.byName[username]
	if !ok {
		return ErrProfileNotFound
	}
	p.NotificationSettings = settings
	f.byName[username] = p
	return nil
}

func (f *fakeProfiles) Follow(_ context.Context, username, target string) (bool, error) {
	p, ok := f.byName[username]
	if !ok {
		return false, ErrProfileNotFound
	}
	if p.IsFollowing(target) {
		return false, nil
	}
	p.Follows = append(append([]string{}, p.Follows...), target)
	f.byName[username] = p
	return true, nil
}

func (f *fakeProfiles) Unfollow(_ context.Context, username, target string) (bool, error) {
	p, ok := f.byName[username]
	if !ok {
		return false, ErrProfileNotFound
	}
	kept := []string{}
	for _, u := range p.Follows {
		if u != target {
			kept = append(kept, u)
		}
	}
	changed := len(kept) != len(p.Follows)
	p.Follows = kept
	f.byName[username] = p
	return changed, nil
}

func (f *fakeProfiles) IncrementAchievement(_ context.Context, username, counter string, by int) (int, int, error) {
	p, ok := f.byName[username]
	if !ok {
		return 0, 0, ErrProfileNotFound
	}
	if p.Achievements == nil {
		p.Achievements = map[string]int{}
	}
	before := p.Achievements[counter]
	p.Achievements[counter] = before + by
	f.byName[username] = p
	return before, before + by, nil
}

// acl

type fakeACL struct {
	rules  map[string]domain.ACLRule
	spaces *fakeSpaces
}

func newFakeACL(spaces *fakeSpaces) *fakeACL {
	return &fakeACL{rules: map[string]domain.ACLRule{}, spaces: spaces}
}

func ruleKey(role domain.Role, scope string) string { return string(role) + "/" + scope }

func (f *fakeACL) Seed(_ context.Context, rules ...domain.ACLRule) error {
	for _, r := range rules {
		if _, ok := f.rules[ruleKey(r.Role, r.Scope)]; !ok {
			f.rules[ruleKey(r.Role, r.Scope)] = r
		}
	}
	return nil
}

func (f *fakeACL) Find(_ context.Context, role domain.Role, scope string) (domain.ACLRule, error) {
	r, ok := f.rules[ruleKey(role, scope)]
	if !ok {
		return domain.ACLRule{}, ErrRuleNotFound
	}
	return r, nil
}

func (f *fakeACL) FindByScope(_ context.Context, scope string) ([]domain.ACLRule, error) {
	var out []domain.ACLRule
	for _, r := range f.rules {
		if r.Scope == scope {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeACL) SetCapability(_ context.Context, role domain.Role, scope string, c domain.Capability, value bool) error {
	r, ok := f.rules[ruleKey(role, scope)]
	if !ok {
		r = domain.ACLRule{Role: role, Scope: scope, Capabilities: map[domain.Capability]bool{}}
	}
	r.Capabilities[c] = value
	f.rules[ruleKey(role, scope)] = r
	return nil
}

func (f *fakeACL) DeleteByScope(_ context.Context, scope string) (int64, error) {
	var n int64
	for k, r := range f.rules {
		if r.Scope == scope {
			delete(f.rules, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeACL) DeleteOrphans(_ context.Context) (int64, error) {
	var n int64
	for k, r := range f.rules {
		if r.Scope == domain.GlobalScope {
			continue
		}
		id, err := domain.ParseID(r.Scope)
		if err == nil {
			if _, ok := f.spaces.byID[id]; ok {
				continue
			}
		}
		delete(f.rules, k)
		n++
	}
	return n, nil
}

// spaces

type fakeSpaces struct {
	byID map[domain.ID]domain.Space
	// conflicts makes the next SaveMembership calls fail as if another writer got there first.
	conflicts int
}

func newFakeSpaces() *fakeSpaces {
	return &fakeSpaces{byID: map[domain.ID]domain.Space{}}
}

func (f *fakeSpaces) Create(_ context.Context, s domain.Space) (domain.Space, error) {
	f.byID[s.ID] = s
	return s, nil
}

func (f *fakeSpaces) FindByID(_ context.Context, id domain.ID) (domain.Space, error) {
	s, ok := f.byID[id]
	if !ok {
		return domain.Space{}, ErrSpaceNotFound
	}
	return cloneMembership(s), nil
}

func (f *fakeSpaces) FindAll(_ context.Context) ([]domain.Space, error) {
	out := make([]domain.Space, 0, len(f.byID))
	for _, s := range f.byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeSpaces) filter(keep func(domain.Space) bool) []domain.Space {
	var out []domain.Space
	for _, s := range f.byID {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (f *fakeSpaces) FindByMember(_ context.Context, username string) ([]domain.Space, error) {
	return f.filter(func(s domain.Space) bool { return s.IsMember(username) }), nil
}

func (f *fakeSpaces) FindByInvite(_ context.Context, username string) ([]domain.Space, error) {
	return f.filter(func(s domain.Space) bool { return containsUser(s.Invites, username) }), nil
}

func (f *fakeSpaces) FindByRequest(_ context.Context, username string) ([]domain.Space, error) {
	return f.filter(func(s domain.Space) bool { return containsUser(s.Requests, username) }), nil
}

func (f *fakeSpaces) Update(_ context.Context, id domain.ID, u repository.SpaceUpdate) error {
	s, ok := f.byID[id]
	if !ok {
		return ErrSpaceNotFound
	}
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.Invisible != nil {
		s.Invisible = *u.Invisible
	}
	if u.Joinable != nil {
		s.Joinable = *u.Joinable
	}
	if u.Description != nil {
		s.Description = *u.Description
	}
	if u.PictureID != nil {
		s.PictureID = u.PictureID
	}
	f.byID[id] = s
	return nil
}

func (f *fakeSpaces) SaveMembership(_ context.Context, before, after domain.Space) error {
	if f.conflicts > 0 {
		f.conflicts--
		return ErrSpaceStateChanged
	}
	if _, ok := f.byID[before.ID]; !ok {
		return ErrSpaceNotFound
	}
	f.byID[after.ID] = after
	return nil
}

func (f *fakeSpaces) AddFile(_ context.Context, id domain.ID, entry domain.FileEntry) error {
	s, ok := f.byID[id]
	if !ok {
		return ErrSpaceNotFound
	}
	s.Files = append(append([]domain.FileEntry{}, s.Files...), entry)
	f.byID[id] = s
	return nil
}

func (f *fakeSpaces) RemoveFile(_ context.Context, id, fileID domain.ID) error {
	s, ok := f.byID[id]
	if !ok {
		return ErrSpaceNotFound
	}
	kept := []domain.FileEntry{}
	for _, e := range s.Files {
		if e.FileID != fileID {
			kept = append(kept, e)
		}
	}
	s.Files = kept
	f.byID[id] = s
	return nil
}

func (f *fakeSpaces) RemovePostFiles(_ context.Context, id, postID domain.ID) error {
	s, ok := f.byID[id]
	if !ok {
		return ErrSpaceNotFound
	}
	kept := []domain.FileEntry{}
	for _, e := range s.Files {
		if e.PostID == nil || *e.PostID != postID {
			kept = append(kept, e)
		}
	}
	s.Files = kept
	f.byID[id] = s
	return nil
}

func (f *fakeSpaces) Delete(_ context.Context, id domain.ID) error {
	if _, ok := f.byID[id]; !ok {
		return ErrSpaceNotFound
	}
	delete(f.byID, id)
	return nil
}

// posts

type fakePosts struct {
	byID map[domain.ID]domain.Post
}

func newFakePosts() *fakePosts {
	return &fakePosts{byID: map[domain.ID]domain.Post{}}
}

func (f *fakePosts) Create(_ context.Context, p domain.Post) (domain.Post, error) {
	f.byID[p.ID] = p
	return p, nil
}

func (f *fakePosts) FindByID(_ context.Context, id domain.ID) (domain.Post, error) {
	p, ok := f.byID[id]
	if !ok {
		return domain.Post{}, ErrPostNotFound
	}
	return p, nil
}

func (f *fakePosts) FindByCommentID(_ context.Context, commentID domain.ID) (domain.Post, error) {
	for _, p := range f.byID {
		if _, ok := p.Comment(commentID); ok {
			return p, nil
		}
	}
	return domain.Post{}, ErrPostNotFound
}

func (f *fakePosts) sorted(keep func(domain.Post) bool) []domain.Post {
	var out []domain.Post
	for _, p := range f.byID {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreationDate.After(out[j].CreationDate) })
	return out
}

func (f *fakePosts) Timeline(_ context.Context, t repository.Timeline) ([]domain.Post, error) {
	out := f.sorted(func(p domain.Post) bool {
		if !p.CreationDate.Before(t.Before) {
			return false
		}
		if t.Space != nil && (p.Space == nil || *p.Space != *t.Space) {
			return false
		}
		if t.Author != nil && p.Author != *t.Author {
			return false
		}
		if t.Viewer != nil && !domain.PersonalTimelineVisible(p, *t.Viewer) {
			return false
		}
		return true
	})
	if len(out) > t.Limit {
		out = out[:t.Limit]
	}
	return out, nil
}

func (f *fakePosts) FindPinned(_ context.Context, space domain.ID) ([]domain.Post, error) {
	return f.sorted(func(p domain.Post) bool { return p.Pinned && p.Space != nil && *p.Space == space }), nil
}

func (f *fakePosts) FindBySpace(_ context.Context, space domain.ID) ([]domain.Post, error) {
	return f.sorted(func(p domain.Post) bool { return p.Space != nil && *p.Space == space }), nil
}

func (f *fakePosts) FindByTag(_ context.Context, tag string, before time.Time, limit int) ([]domain.Post, error) {
	out := f.sorted(func(p domain.Post) bool {
		if !p.CreationDate.Before(before) {
			return false
		}
		for _, t := range p.Tags {
			if t == tag {
				return true
			}
		}
		return false
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakePosts) Update(_ context.Context, id domain.ID, u repository.PostUpdate) error {
	p, ok := f.byID[id]
	if !ok {
		return ErrPostNotFound
	}
	if u.Text != nil {
		p.Text = *u.Text
	}
	if u.Tags != nil {
		p.Tags = u.Tags
	}
	if u.Plans != nil {
		p.Plans = u.Plans
	}
	if u.Files != nil {
		p.Files = u.Files
	}
	if u.Pinned != nil {
		p.Pinned = *u.Pinned
	}
	f.byID[id] = p
	return nil
}

func (f *fakePosts) AddLiker(_ context.Context, id domain.ID, username string) (bool, error) {
	p, ok := f.byID[id]
	if !ok {
		return false, ErrPostNotFound
	}
	if p.LikedBy(username) {
		return false, nil
	}
	p.Likers = append(append([]string{}, p.Likers...), username)
	f.byID[id] = p
	return true, nil
}

func (f *fakePosts) RemoveLiker(_ context.Context, id domain.ID, username string) (bool, error) {
	p, ok := f.byID[id]
	if !ok {
		return false, ErrPostNotFound
	}
	if !p.LikedBy(username) {
		return false, nil
	}
	kept := []string{}
	for _, l := range p.Likers {
		if l != username {
			kept = append(kept, l)
		}
	}
	p.Likers = kept
	f.byID[id] = p
	return true, nil
}

func (f *fakePosts) AddComment(_ context.Context, id domain.ID, c domain.Comment) error {
	p, ok := f.byID[id]
	if !ok {
		return ErrPostNotFound
	}
	p.Comments = append(append([]domain.Comment{}, p.Comments...), c)
	f.byID[id] = p
	return nil
}

func (f *fakePosts) RemoveComment(_ context.Context, id, commentID domain.ID) error {
	p, ok := f.byID[id]
	if !ok {
		return ErrPostNotFound
	}
	kept := []domain.Comment{}
	for _, c := range p.Comments {
		if c.ID != commentID {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(p.Comments) {
		return ErrCommentNotFound
	}
	p.Comments = kept
	f.byID[id] = p
	return nil
}

func (f *fakePosts) SetCommentPinned(_ context.Context, id, commentID domain.ID, pinned bool) error {
	p, ok := f.byID[id]
	if !ok {
		return ErrPostNotFound
	}
	comments := append([]domain.Comment{}, p.Comments...)
	found := false
	for i := range comments {
		if comments[i].ID == commentID {
			comments[i].Pinned = pinned
			found = true
		}
	}
	if !found {
		return ErrCommentNotFound
	}
	p.Comments = comments
	f.byID[id] = p
	return nil
}

func (f *fakePosts) Delete(_ context.Context, id domain.ID) error {
	if _, ok := f.byID[id]; !ok {
		return ErrPostNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakePosts) DeleteBySpace(_ context.Context, space domain.ID) ([]domain.Post, error) {
	deleted := f.sorted(func(p domain.Post) bool { return p.Space != nil && *p.Space == space })
	for _, p := range deleted {
		delete(f.byID, p.ID)
	}
	return deleted, nil
}

// plans

type fieldUpdate struct {
	id     domain.ID
	fields map[string]any
}

type fakePlans struct {
	byID    map[domain.ID]domain.VEPlan
	updates []fieldUpdate
}

func newFakePlans() *fakePlans {
	return &fakePlans{byID: map[domain.ID]domain.VEPlan{}}
}

func (f *fakePlans) Create(_ context.Context, plan domain.VEPlan) (domain.VEPlan, error) {
	if _, ok := f.byID[plan.ID]; ok {
		return domain.VEPlan{}, ErrPlanExists
	}
	f.byID[plan.ID] = plan
	return plan, nil
}

func (f *fakePlans) FindByID(_ context.Context, id domain.ID) (domain.VEPlan, error) {
	p, ok := f.byID[id]
	if !ok {
		return domain.VEPlan{}, ErrPlanNotFound
	}
	return p, nil
}

func (f *fakePlans) FindByIDs(_ context.Context, ids []domain.ID) ([]domain.VEPlan, error) {
	var out []domain.VEPlan
	for _, id := range ids {
		if p, ok := f.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePlans) List(_ context.Context, flt repository.PlanFilter) ([]domain.VEPlan, error) {
	var out []domain.VEPlan
	for _, p := range f.byID {
		if p.CanRead(flt.Username) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePlans) Replace(_ context.Context, plan domain.VEPlan) error {
	if _, ok := f.byID[plan.ID]; !ok {
		return ErrPlanNotFound
	}
	f.byID[plan.ID] = plan
	return nil
}

// UpdateFields records the serialized fields; the stored plan is updated by the caller's copy
// through later Replace calls only.
func (f *fakePlans) UpdateFields(_ context.Context, id domain.ID, fields map[string]any, lastModified time.Time) error {
	p, ok := f.byID[id]
	if !ok {
		return ErrPlanNotFound
	}
	f.updates = append(f.updates, fieldUpdate{id: id, fields: fields})
	if partners, ok := fields["partners"].([]string); ok {
		p.Partners = partners
	}
	p.LastModified = &lastModified
	f.byID[id] = p
	return nil
}

func (f *fakePlans) GrantAccess(_ context.Context, id domain.ID, usernames []string, write bool) error {
	p, ok := f.byID[id]
	if !ok {
		return ErrPlanNotFound
	}
	for _, u := range usernames {
		p.ReadAccess = appendUnique(p.ReadAccess, u)
		if write {
			p.WriteAccess = appendUnique(p.WriteAccess, u)
		}
	}
	f.byID[id] = p
	return nil
}

func (f *fakePlans) RevokeAccess(_ context.Context, id domain.ID, usernames []string, read bool) error {
	p, ok := f.byID[id]
	if !ok {
		return ErrPlanNotFound
	}
	drop := func(list []string) []string {
		kept := []string{}
		for _, u := range list {
			if !containsUser(usernames, u) {
				kept = append(kept, u)
			}
		}
		return kept
	}
	p.WriteAccess = drop(p.WriteAccess)
	if read {
		p.ReadAccess = drop(p.ReadAccess)
	}
	f.byID[id] = p
	return nil
}

func (f *fakePlans) Delete(_ context.Context, id domain.ID) error {
	if _, ok := f.byID[id]; !ok {
		return ErrPlanNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeInvitations struct {
	byID map[domain.ID]domain.Invitation
}

func newFakeInvitations() *fakeInvitations {
	return &fakeInvitations{byID: map[domain.ID]domain.Invitation{}}
}

func (f *fakeInvitations) Create(_ context.Context, inv domain.Invitation) (domain.Invitation, error) {
	f.byID[inv.ID] = inv
	return inv, nil
}

func (f *fakeInvitations) FindByID(_ context.Context, id domain.ID) (domain.Invitation, error) {
	inv, ok := f.byID[id]
	if !ok {
		return domain.Invitation{}, ErrInvitationNotFound
	}
	return inv, nil
}

func (f *fakeInvitations) SetReply(_ context.Context, id domain.ID, accepted bool) error {
	inv, ok := f.byID[id]
	if !ok {
		return ErrInvitationNotFound
	}
	inv.Accepted = &accepted
	f.byID[id] = inv
	return nil
}

// notifications

type fakeNotificationRepo struct {
	byID  map[domain.ID]domain.Notification
	order []domain.ID
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{byID: map[domain.ID]domain.Notification{}}
}

func (f *fakeNotificationRepo) Create(_ context.Context, n domain.Notification) (domain.Notification, error) {
	if _, ok := f.byID[n.ID]; ok {
		return domain.Notification{}, domain.ErrAlreadyExists
	}
	f.byID[n.ID] = n
	f.order = append(f.order, n.ID)
	return n, nil
}

func (f *fakeNotificationRepo) FindByRecipient(_ context.Context, to string, includeAcknowledged bool) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, id := range f.order {
		n, ok := f.byID[id]
		if !ok || n.To != to {
			continue
		}
		if !includeAcknowledged && n.ReceiveState == domain.StateAcknowledged {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// Advance only moves forward, like the real store.
func (f *fakeNotificationRepo) Advance(_ context.Context, to string, ids []domain.ID, state domain.ReceiveState) (int64, error) {
	var n int64
	for id, item := range f.byID {
		if item.To != to || (ids != nil && !containsID(ids, id)) {
			continue
		}
		if domain.CanTransition(item.ReceiveState, state) {
			item.ReceiveState = state
			f.byID[id] = item
			n++
		}
	}
	return n, nil
}

func (f *fakeNotificationRepo) Exists(_ context.Context, to string, id domain.ID) (bool, error) {
	n, ok := f.byID[id]
	return ok && n.To == to, nil
}

// chat

type fakeChat struct {
	rooms map[domain.ID]domain.Room
}

func newFakeChat() *fakeChat {
	return &fakeChat{rooms: map[domain.ID]domain.Room{}}
}

func sameName(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (f *fakeChat) GetOrCreateRoom(_ context.Context, members []string, name *string) (domain.Room, error) {
	key := domain.MemberKey(members)
	for _, r := range f.rooms {
		if equalStrings(domain.MemberKey(r.Members), key) && sameName(r.Name, name) {
			return r, nil
		}
	}
	r := domain.Room{ID: domain.NewID(), Name: name, Members: key, Messages: []domain.Message{}}
	f.rooms[r.ID] = r
	return r, nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (f *fakeChat) FindRoom(_ context.Context, id domain.ID, withMessages bool) (domain.Room, error) {
	r, ok := f.rooms[id]
	if !ok {
		return domain.Room{}, ErrRoomNotFound
	}
	if !withMessages {
		r.Messages = nil
	}
	return r, nil
}

func (f *fakeChat) FindRoomsByMember(_ context.Context, username string) ([]domain.Room, error) {
	var out []domain.Room
	for _, r := range f.rooms {
		if r.IsMember(username) {
			r.Messages = nil
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeChat) AddMessage(_ context.Context, roomID domain.ID, msg domain.Message) (domain.Message, error) {
	r, ok := f.rooms[roomID]
	if !ok {
		return domain.Message{}, ErrRoomNotFound
	}
	r.Messages = append(r.Messages, msg)
	f.rooms[roomID] = r
	return msg, nil
}

func (f *fakeChat) AdvanceStates(_ context.Context, username string, ids []domain.ID, state domain.ReceiveState) (int64, error) {
	var n int64
	for rid, r := range f.rooms {
		for i, m := range r.Messages {
			if !containsID(ids, m.ID) {
				continue
			}
			for j, s := range m.SendStates {
				if s.Username == username && s.SendState != domain.StateAcknowledged && s.SendState != state {
					r.Messages[i].SendStates[j].SendState = state
					n++
				}
			}
		}
		f.rooms[rid] = r
	}
	return n, nil
}

func (f *fakeChat) HasSendState(_ context.Context, username string, messageID domain.ID) (bool, error) {
	for _, r := range f.rooms {
		for _, m := range r.Messages {
			if m.ID == messageID {
				_, ok := m.StateOf(username)
				return ok, nil
			}
		}
	}
	return false, nil
}

func (f *fakeChat) FindUnacknowledged(_ context.Context, username string) ([]domain.Room, error) {
	var out []domain.Room
	for _, r := range f.rooms {
		var unread []domain.Message
		for _, m := range r.Messages {
			if s, ok := m.StateOf(username); ok && s != domain.StateAcknowledged {
				unread = append(unread, m)
			}
		}
		if len(unread) > 0 {
			r.Messages = unread
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeChat) CountUnreadSince(_ context.Context, since time.Time) ([]repository.UnreadCount, error) {
	counts := map[string]int{}
	for _, r := range f.rooms {
		for _, m := range r.Messages {
			if m.CreationDate.Before(since) {
				continue
			}
			for _, s := range m.SendStates {
				if s.SendState != domain.StateAcknowledged {
					counts[s.Username]++
				}
			}
		}
	}
	var out []repository.UnreadCount
	for u, c := range counts {
		out = append(out, repository.UnreadCount{Username: u, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (f *fakeChat) DeleteRoom(_ context.Context, id domain.ID) error {
	if _, ok := f.rooms[id]; !ok {
		return ErrRoomNotFound
	}
	delete(f.rooms, id)
	return nil
}

// reports

type fakeReports struct {
	byID map[domain.ID]domain.Report
}

func newFakeReports() *fakeReports {
	return &fakeReports{byID: map[domain.ID]domain.Report{}}
}

func (f *fakeReports) Create(_ context.Context, r domain.Report) (domain.Report, error) {
	f.byID[r.ID] = r
	return r, nil
}

func (f *fakeReports) FindByID(_ context.Context, id domain.ID) (domain.Report, error) {
	r, ok := f.byID[id]
	if !ok {
		return domain.Report{}, ErrReportNotFound
	}
	return r, nil
}

func (f *fakeReports) FindOpen(_ context.Context) ([]domain.Report, error) {
	var out []domain.Report
	for _, r := range f.byID {
		if r.State == domain.ReportOpen {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReports) Close(_ context.Context, id domain.ID) error {
	r, ok := f.byID[id]
	if !ok {
		return ErrReportNotFound
	}
	r.State = domain.ReportClosed
	f.byID[id] = r
	return nil
}

// adapters

type fakeBlobs struct {
	objects map[domain.ID]Object
	failPut bool
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[domain.ID]Object{}}
}

func (f *fakeBlobs) Put(ctx context.Context, data []byte, filename, contentType, uploader string) (domain.ID, error) {
	if f.failPut {
		return domain.NilID, errors.New("object store down")
	}
	id := domain.NewID()
	return id, f.PutWithID(ctx, id, data, filename, contentType, uploader)
}

func (f *fakeBlobs) PutWithID(_ context.Context, id domain.ID, data []byte, filename, contentType, uploader string) error {
	f.objects[id] = Object{ID: id, Data: data, FileName: filename, ContentType: contentType, Uploader: uploader}
	return nil
}

func (f *fakeBlobs) Get(_ context.Context, id domain.ID) (Object, error) {
	o, ok := f.objects[id]
	if !ok {
		return Object{}, domain.ErrNotFound
	}
	return o, nil
}

func (f *fakeBlobs) Delete(_ context.Context, id domain.ID) error {
	if _, ok := f.objects[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.objects, id)
	return nil
}

func (f *fakeBlobs) Exists(_ context.Context, id domain.ID) (bool, error) {
	_, ok := f.objects[id]
	return ok, nil
}

type fakeSearch struct {
	docs map[string]map[string]any
	hits []string
}

func newFakeSearch() *fakeSearch {
	return &fakeSearch{docs: map[string]map[string]any{}}
}

func (f *fakeSearch) OnInsert(_ context.Context, id string, projection map[string]any, _ string) error {
	f.docs[id] = projection
	return nil
}

func (f *fakeSearch) OnUpdate(_ context.Context, id, _ string, projection map[string]any) error {
	f.docs[id] = projection
	return nil
}

func (f *fakeSearch) OnDelete(_ context.Context, id, _ string) error {
	delete(f.docs, id)
	return nil
}

func (f *fakeSearch) Query(_ context.Context, _, _ string, limit int) ([]string, error) {
	if len(f.hits) > limit {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

type sentMail struct {
	username string
	email    string
	template string
	payload  map[string]any
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(_ context.Context, username, email string, _ *string, templateName string, payload map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{username: username, email: email, template: templateName, payload: payload})
	return nil
}

type emitted struct {
	event   string
	payload any
	sid     string
}

type fakeTransport struct {
	sids    map[string]string
	emitted []emitted
}

func newFakeTransport(online ...string) *fakeTransport {
	f := &fakeTransport{sids: map[string]string{}}
	for _, u := range online {
		f.sids[u] = "sid-" + u
	}
	return f
}

func (f *fakeTransport) Online(username string) bool {
	_, ok := f.sids[username]
	return ok
}

func (f *fakeTransport) SidOf(username string) (string, bool) {
	sid, ok := f.sids[username]
	return sid, ok
}

func (f *fakeTransport) Emit(event string, payload any, sid string) error {
	f.emitted = append(f.emitted, emitted{event: event, payload: payload, sid: sid})
	return nil
}

func (f *fakeTransport) to(sid string) []emitted {
	var out []emitted
	for _, e := range f.emitted {
		if e.sid == sid {
			out = append(out, e)
		}
	}
	return out
}

type sentNotification struct {
	to      string
	t       domain.NotificationType
	payload map[string]any
}

type fakeNotifier struct {
	sent []sentNotification
}

func (f *fakeNotifier) Send(_ context.Context, to string, t domain.NotificationType, payload map[string]any) error {
	f.sent = append(f.sent, sentNotification{to: to, t: t, payload: payload})
	return nil
}

func (f *fakeNotifier) of(t domain.NotificationType) []sentNotification {
	var out []sentNotification
	for _, n := range f.sent {
		if n.t == t {
			out = append(out, n)
		}
	}
	return out
}

// inlineTasks runs submitted tasks right away.
type inlineTasks struct {
	names []string
}

func (r *inlineTasks) Submit(name string, fn func(ctx context.Context) error) {
	r.names = append(r.names, name)
	_ = fn(context.Background())
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// world wires every service over fresh fakes.
type world struct {
	profileRepo *fakeProfiles
	aclRepo     *fakeACL
	spaceRepo   *fakeSpaces
	postRepo    *fakePosts
	planRepo    *fakePlans
	invRepo     *fakeInvitations
	blobs       *fakeBlobs
	search      *fakeSearch
	notifier    *fakeNotifier
	tasks       *inlineTasks

	acl      *ACLService
	profiles *ProfileService
	spaces   *SpaceService
	posts    *PostService
	plans    *PlanService
}

func newWorld(profiles ...domain.Profile) *world {
	w := &world{
		profileRepo: newFakeProfiles(profiles...),
		spaceRepo:   newFakeSpaces(),
		postRepo:    newFakePosts(),
		planRepo:    newFakePlans(),
		invRepo:     newFakeInvitations(),
		blobs:       newFakeBlobs(),
		search:      newFakeSearch(),
		notifier:    &fakeNotifier{},
		tasks:       &inlineTasks{},
	}
	w.aclRepo = newFakeACL(w.spaceRepo)
	w.acl = NewACLService(w.aclRepo, w.profileRepo, w.spaceRepo)
	w.profiles = NewProfileService(w.profileRepo, w.notifier)
	w.spaces = NewSpaceService(w.spaceRepo, w.postRepo, w.acl, w.blobs, w.notifier)
	w.posts = NewPostService(w.postRepo, w.spaceRepo, w.acl, w.profileRepo, w.profiles, w.blobs)
	w.plans = NewPlanService(w.planRepo, w.invRepo, w.profileRepo, w.blobs, w.search, w.notifier, w.tasks)
	_ = w.acl.SeedGlobal(context.Background())
	return w
}

func user(name string) domain.Profile {
	return domain.Profile{Username: name, Role: domain.RoleUser, Email: name + "@example.org"}
}

func admin(name string) domain.Profile {
	return domain.Profile{Username: name, Role: domain.RoleAdmin, Email: name + "@example.org"}
}
