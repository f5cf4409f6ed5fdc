package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/repository"
)

var (
	ErrSpaceNotFound     = repository.ErrSpaceNotFound
	ErrSpaceExists       = repository.ErrSpaceExists
	ErrSpaceStateChanged = repository.ErrSpaceStateChanged
	ErrEmptySpaceName    = &domain.FieldError{Kind: domain.ErrMissingKey, Field: "name"}
)

const maxTransitionAttempts = 3

type SpaceRepository interface {
	Create(ctx context.Context, s domain.Space) (domain.Space, error)
	FindByID(ctx context.Context, id domain.ID) (domain.Space, error)
	FindAll(ctx context.Context) ([]domain.Space, error)
	FindByMember(ctx context.Context, username string) ([]domain.Space, error)
	FindByInvite(ctx context.Context, username string) ([]domain.Space, error)
	FindByRequest(ctx context.Context, username string) ([]domain.Space, error)
	Update(ctx context.Context, id domain.ID, u repository.SpaceUpdate) error
	SaveMembership(ctx context.Context, before, after domain.Space) error
	AddFile(ctx context.Context, id domain.ID, f domain.FileEntry) error
	RemoveFile(ctx context.Context, id, fileID domain.ID) error
	RemovePostFiles(ctx context.Context, id, postID domain.ID) error
	Delete(ctx context.Context, id domain.ID) error
}

// SpacePosts is the part of the post store a space deletion cascades into.
type SpacePosts interface {
	DeleteBySpace(ctx context.Context, space domain.ID) ([]domain.Post, error)
}

// AccessControl answers capability questions.
type AccessControl interface {
	Ask(ctx context.Context, username, scope string, c domain.Capability) (bool, error)
	AskSpace(ctx context.Context, username string, space domain.Space, c domain.Capability) (bool, error)
	Authority(ctx context.Context, username string, space *domain.Space) (domain.PostAuthority, error)
	IsPlatformAdmin(ctx context.Context, username string) (bool, error)
	SeedSpace(ctx context.Context, spaceID domain.ID) error
	RemoveSpace(ctx context.Context, spaceID domain.ID) error
}

type SpaceService struct {
	repo     SpaceRepository
	posts    SpacePosts
	acl      AccessControl
	blobs    ObjectStore
	notifier Notifier
}

func NewSpaceService(repo SpaceRepository, posts SpacePosts, acl AccessControl, blobs ObjectStore, notifier Notifier) *SpaceService {
	return &SpaceService{
		repo:     repo,
		posts:    posts,
		acl:      acl,
		blobs:    blobs,
		notifier: notifier,
	}
}

// NewSpace is the input of Create.
type NewSpace struct {
	Name        string
	Invisible   bool
	Joinable    bool
	Description string
}

// Create stores a space with actor as its first member and admin.
func (s *SpaceService) Create(ctx context.Context, actor string, in NewSpace) (domain.Space, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Space{}, ErrEmptySpaceName
	}
	ok, err := s.acl.Ask(ctx, actor, domain.GlobalScope, domain.CapCreateSpace)
	if err != nil {
		return domain.Space{}, fmt.Errorf("s.acl.Ask -> %w", err)
	}
	if !ok {
		return domain.Space{}, domain.ErrInsufficientPermission
	}

	pic := domain.DefaultGroupPicID
	created, err := s.repo.Create(ctx, domain.Space{
		ID:          domain.NewID(),
		Name:        name,
		Invisible:   in.Invisible,
		Joinable:    in.Joinable,
		Members:     []string{actor},
		Admins:      []string{actor},
		Invites:     []string{},
		Requests:    []string{},
		Files:       []domain.FileEntry{},
		PictureID:   &pic,
		Description: in.Description,
	})
	if err != nil {
		return domain.Space{}, fmt.Errorf("s.repo.Create -> %w", err)
	}
	if err := s.acl.SeedSpace(ctx, created.ID); err != nil {
		return domain.Space{}, fmt.Errorf("s.acl.SeedSpace -> %w", err)
	}

	return created, nil
}

func (s *SpaceService) find(ctx context.Context, id domain.ID) (domain.Space, error) {
	space, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Space{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	return space, nil
}

// Get returns a space. Invisible spaces do not exist for outsiders.
func (s *SpaceService) Get(ctx context.Context, actor string, id domain.ID) (domain.Space, error) {
	space, err := s.find(ctx, id)
	if err != nil {
		return domain.Space{}, err
	}
	if space.VisibleTo(actor) {
		return space, nil
	}
	admin, err := s.acl.IsPlatformAdmin(ctx, actor)
	if err != nil {
		return domain.Space{}, err
	}
	if !admin {
		return domain.Space{}, ErrSpaceNotFound
	}

	return space, nil
}

func (s *SpaceService) List(ctx context.Context, actor string) ([]domain.Space, error) {
	spaces, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindAll -> %w", err)
	}
	admin, err := s.acl.IsPlatformAdmin(ctx, actor)
	if err != nil {
		return nil, err
	}
	if admin {
		return spaces, nil
	}
	visible := make([]domain.Space, 0, len(spaces))
	for _, sp := range spaces {
		if sp.VisibleTo(actor) {
			visible = append(visible, sp)
		}
	}

	return visible, nil
}

func (s *SpaceService) ListMine(ctx context.Context, actor string) ([]domain.Space, error) {
	spaces, err := s.repo.FindByMember(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindByMember -> %w", err)
	}

	return spaces, nil
}

// ListPendingInvites returns the spaces that invited username.
func (s *SpaceService) ListPendingInvites(ctx context.Context, username string) ([]domain.Space, error) {
	spaces, err := s.repo.FindByInvite(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindByInvite -> %w", err)
	}

	return spaces, nil
}

// ListPendingRequests returns the spaces username asked to join.
func (s *SpaceService) ListPendingRequests(ctx context.Context, username string) ([]domain.Space, error) {
	spaces, err := s.repo.FindByRequest(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindByRequest -> %w", err)
	}

	return spaces, nil
}

// ListJoinRequests returns the open join requests of a space to its admins.
func (s *SpaceService) ListJoinRequests(ctx context.Context, actor string, id domain.ID) ([]string, error) {
	space, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, actor, space); err != nil {
		return nil, err
	}

	return space.Requests, nil
}

func (s *SpaceService) requireAdmin(ctx context.Context, actor string, space domain.Space) error {
	if space.IsAdmin(actor) {
		return nil
	}
	admin, err := s.acl.IsPlatformAdmin(ctx, actor)
	if err != nil {
		return err
	}
	if !admin {
		return domain.ErrInsufficientPermission
	}

	return nil
}

func (s *SpaceService) Update(ctx context.Context, actor string, id domain.ID, u repository.SpaceUpdate) (domain.Space, error) {
	space, err := s.find(ctx, id)
	if err != nil {
		return domain.Space{}, err
	}
	if err := s.requireAdmin(ctx, actor, space); err != nil {
		return domain.Space{}, err
	}
	if u.Name != nil {
		trimmed := strings.TrimSpace(*u.Name)
		if trimmed == "" {
			return domain.Space{}, ErrEmptySpaceName
		}
		u.Name = &trimmed
	}
	if err := s.repo.Update(ctx, id, u); err != nil {
		return domain.Space{}, fmt.Errorf("s.repo.Update -> %w", err)
	}

	return s.find(ctx, id)
}

// transition applies fn to a fresh copy of the space and saves the membership difference. A
// concurrent change of the same entries makes it start over.
func (s *SpaceService) transition(ctx context.Context, id domain.ID, fn func(sp *domain.Space) error) (domain.Space, error) {
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		before, err := s.find(ctx, id)
		if err != nil {
			return domain.Space{}, err
		}
		after := cloneMembership(before)
		if err := fn(&after); err != nil {
			return domain.Space{}, err
		}
		err = s.repo.SaveMembership(ctx, before, after)
		if errors.Is(err, ErrSpaceStateChanged) {
			zap.L().Debug("space membership changed concurrently, retrying", zap.String("space", id.Hex()))
			continue
		}
		if err != nil {
			return domain.Space{}, fmt.Errorf("s.repo.SaveMembership -> %w", err)
		}
		return after, nil
	}

	return domain.Space{}, ErrSpaceStateChanged
}

func cloneMembership(sp domain.Space) domain.Space {
	c := sp
	c.Members = append([]string(nil), sp.Members...)
	c.Admins = append([]string(nil), sp.Admins...)
	c.Invites = append([]string(nil), sp.Invites...)
	c.Requests = append([]string(nil), sp.Requests...)
	return c
}

// adminTransition runs fn on behalf of actor, who must administer the space.
func (s *SpaceService) adminTransition(ctx context.Context, actor string, id domain.ID, fn func(sp *domain.Space) error) (domain.Space, error) {
	platformAdmin, err := s.acl.IsPlatformAdmin(ctx, actor)
	if err != nil {
		return domain.Space{}, err
	}
	return s.transition(ctx, id, func(sp *domain.Space) error {
		if !platformAdmin && !sp.IsAdmin(actor) {
			return domain.ErrInsufficientPermission
		}
		return fn(sp)
	})
}

// Invite puts user on the invite list. Inviting twice is a no-op.
func (s *SpaceService) Invite(ctx context.Context, actor string, id domain.ID, user string) error {
	var changed bool
	space, err := s.adminTransition(ctx, actor, id, func(sp *domain.Space) error {
		var err error
		changed, err = sp.Invite(user)
		return err
	})
	if err != nil {
		return err
	}
	if changed {
		s.notify(ctx, user, domain.NotifSpaceInvitation, space, actor)
	}

	return nil
}

func (s *SpaceService) AcceptInvite(ctx context.Context, user string, id domain.ID) error {
	_, err := s.transition(ctx, id, func(sp *domain.Space) error { return sp.AcceptInvite(user) })
	return err
}

func (s *SpaceService) DeclineInvite(ctx context.Context, user string, id domain.ID) error {
	_, err := s.transition(ctx, id, func(sp *domain.Space) error { return sp.DeclineInvite(user) })
	return err
}

func (s *SpaceService) canJoin(ctx context.Context, user string, id domain.ID) error {
	ok, err := s.acl.Ask(ctx, user, id.Hex(), domain.CapJoinSpace)
	if err != nil {
		return fmt.Errorf("s.acl.Ask -> %w", err)
	}
	if !ok {
		return domain.ErrInsufficientPermission
	}

	return nil
}

// RequestJoin asks the admins of the space to let user in.
func (s *SpaceService) RequestJoin(ctx context.Context, user string, id domain.ID) error {
	if err := s.canJoin(ctx, user, id); err != nil {
		return err
	}
	space, err := s.transition(ctx, id, func(sp *domain.Space) error { return sp.RequestJoin(user) })
	if err != nil {
		return err
	}
	for _, admin := range space.Admins {
		s.notify(ctx, admin, domain.NotifSpaceJoinRequest, space, user)
	}

	return nil
}

func (s *SpaceService) AcceptRequest(ctx context.Context, actor string, id domain.ID, user string) error {
	_, err := s.adminTransition(ctx, actor, id, func(sp *domain.Space) error { return sp.AcceptRequest(user) })
	return err
}

func (s *SpaceService) RejectRequest(ctx context.Context, actor string, id domain.ID, user string) error {
	_, err := s.adminTransition(ctx, actor, id, func(sp *domain.Space) error { return sp.RejectRequest(user) })
	return err
}

// Join lets user in directly; only joinable spaces allow it.
func (s *SpaceService) Join(ctx context.Context, user string, id domain.ID) error {
	if err := s.canJoin(ctx, user, id); err != nil {
		return err
	}
	_, err := s.transition(ctx, id, func(sp *domain.Space) error { return sp.Join(user) })
	return err
}

func (s *SpaceService) Leave(ctx context.Context, user string, id domain.ID) error {
	_, err := s.transition(ctx, id, func(sp *domain.Space) error { return sp.Leave(user) })
	return err
}

func (s *SpaceService) Kick(ctx context.Context, actor string, id domain.ID, user string) error {
	_, err := s.adminTransition(ctx, actor, id, func(sp *domain.Space) error { return sp.Kick(user) })
	return err
}

func (s *SpaceService) Promote(ctx context.Context, actor string, id domain.ID, user string) error {
	_, err := s.adminTransition(ctx, actor, id, func(sp *domain.Space) error { return sp.Promote(user) })
	return err
}

func (s *SpaceService) Demote(ctx context.Context, actor string, id domain.ID, user string) error {
	_, err := s.adminTransition(ctx, actor, id, func(sp *domain.Space) error { return sp.Demote(user) })
	return err
}

func (s *SpaceService) notify(ctx context.Context, to string, t domain.NotificationType, space domain.Space, from string) {
	payload := map[string]any{"space_id": space.ID.Hex(), "space_name": space.Name, "from": from}
	if err := s.notifier.Send(ctx, to, t, payload); err != nil {
		zap.L().Warn("space notification failed", zap.String("to", to), zap.String("type", string(t)), zap.Error(err))
	}
}

// Delete removes the space with its posts, files and rules.
func (s *SpaceService) Delete(ctx context.Context, actor string, id domain.ID) error {
	space, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireAdmin(ctx, actor, space); err != nil {
		return err
	}

	return s.remove(ctx, space)
}

func (s *SpaceService) remove(ctx context.Context, space domain.Space) error {
	posts, err := s.posts.DeleteBySpace(ctx, space.ID)
	if err != nil {
		return fmt.Errorf("s.posts.DeleteBySpace -> %w", err)
	}
	if err := s.repo.Delete(ctx, space.ID); err != nil {
		return fmt.Errorf("s.repo.Delete -> %w", err)
	}

	seen := map[domain.ID]struct{}{}
	var blobs []domain.ID
	collect := func(files []domain.FileEntry) {
		for _, f := range files {
			if _, ok := seen[f.FileID]; !ok {
				seen[f.FileID] = struct{}{}
				blobs = append(blobs, f.FileID)
			}
		}
	}
	collect(space.Files)
	for _, p := range posts {
		collect(p.Files)
	}
	if err := deleteBlobs(ctx, s.blobs, blobs...); err != nil {
		zap.L().Warn("space files not deleted", zap.String("space", space.ID.Hex()), zap.Error(err))
	}
	if err := s.acl.RemoveSpace(ctx, space.ID); err != nil {
		return fmt.Errorf("s.acl.RemoveSpace -> %w", err)
	}

	return nil
}

// requireCapability checks that actor is a member of space holding c.
func (s *SpaceService) requireCapability(ctx context.Context, actor string, space domain.Space, c domain.Capability) error {
	a, err := s.acl.Authority(ctx, actor, &space)
	if err != nil {
		return fmt.Errorf("s.acl.Authority -> %w", err)
	}
	if a.PlatformAdmin || (a.Member && a.Can(c)) {
		return nil
	}

	return domain.ErrInsufficientPermission
}

func (s *SpaceService) GetFiles(ctx context.Context, actor string, id domain.ID) ([]domain.FileEntry, error) {
	space, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireCapability(ctx, actor, space, domain.CapReadFiles); err != nil {
		return nil, err
	}

	return space.Files, nil
}

func (s *SpaceService) GetFile(ctx context.Context, actor string, id, fileID domain.ID) (Object, error) {
	space, err := s.find(ctx, id)
	if err != nil {
		return Object{}, err
	}
	if err := s.requireCapability(ctx, actor, space, domain.CapReadFiles); err != nil {
		return Object{}, err
	}
	if _, ok := space.FileByID(fileID); !ok {
		return Object{}, fmt.Errorf("space file %w", domain.ErrNotFound)
	}
	obj, err := s.blobs.Get(ctx, fileID)
	if err != nil {
		return Object{}, fmt.Errorf("s.blobs.Get -> %w", err)
	}

	return obj, nil
}

// AddRepoFile uploads a file into the repository of the space.
func (s *SpaceService) AddRepoFile(ctx context.Context, actor string, id domain.ID, upload Upload) (domain.FileEntry, error) {
	space, err := s.find(ctx, id)
	if err != nil {
		return domain.FileEntry{}, err
	}
	if err := s.requireCapability(ctx, actor, space, domain.CapWriteFiles); err != nil {
		return domain.FileEntry{}, err
	}

	blobID, err := s.blobs.Put(ctx, upload.Data, upload.FileName, upload.ContentType, actor)
	if err != nil {
		return domain.FileEntry{}, fmt.Errorf("s.blobs.Put -> %w", err)
	}
	entry := domain.FileEntry{FileID: blobID, FileName: upload.FileName, Author: actor, ManuallyUploaded: true}
	if err := s.repo.AddFile(ctx, id, entry); err != nil {
		discardBlobs(s.blobs, blobID)
		return domain.FileEntry{}, fmt.Errorf("s.repo.AddFile -> %w", err)
	}

	return entry, nil
}

// RemoveRepoFile deletes a manually uploaded file. Files mirrored from posts go with their post.
func (s *SpaceService) RemoveRepoFile(ctx context.Context, actor string, id, fileID domain.ID) error {
	space, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	entry, ok := space.FileByID(fileID)
	if !ok {
		return fmt.Errorf("space file %w", domain.ErrNotFound)
	}
	if !entry.ManuallyUploaded {
		return domain.ErrPostFileNotDeletable
	}
	if entry.Author != actor {
		if err := s.requireAdmin(ctx, actor, space); err != nil {
			return err
		}
	} else if err := s.requireCapability(ctx, actor, space, domain.CapWriteFiles); err != nil {
		return err
	}

	if err := s.repo.RemoveFile(ctx, id, fileID); err != nil {
		return fmt.Errorf("s.repo.RemoveFile -> %w", err)
	}
	if err := deleteBlobs(ctx, s.blobs, fileID); err != nil {
		return fmt.Errorf("deleteBlobs -> %w", err)
	}

	return nil
}
