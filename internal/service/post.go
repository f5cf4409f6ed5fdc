package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/repository"
)

var (
	ErrPostNotFound    = repository.ErrPostNotFound
	ErrCommentNotFound = repository.ErrCommentNotFound
	ErrEmptyPostText   = &domain.FieldError{Kind: domain.ErrMissingKey, Field: "text"}
)

const (
	defaultTimelineLimit = 10
	maxTimelineLimit     = 100
)

type PostRepository interface {
	Create(ctx context.Context, p domain.Post) (domain.Post, error)
	FindByID(ctx context.Context, id domain.ID) (domain.Post, error)
	FindByCommentID(ctx context.Context, commentID domain.ID) (domain.Post, error)
	Timeline(ctx context.Context, t repository.Timeline) ([]domain.Post, error)
	FindPinned(ctx context.Context, space domain.ID) ([]domain.Post, error)
	FindByTag(ctx context.Context, tag string, before time.Time, limit int) ([]domain.Post, error)
	Update(ctx context.Context, id domain.ID, u repository.PostUpdate) error
	AddLiker(ctx context.Context, id domain.ID, username string) (bool, error)
	RemoveLiker(ctx context.Context, id domain.ID, username string) (bool, error)
	AddComment(ctx context.Context, id domain.ID, c domain.Comment) error
	RemoveComment(ctx context.Context, id, commentID domain.ID) error
	SetCommentPinned(ctx context.Context, id, commentID domain.ID, pinned bool) error
	Delete(ctx context.Context, id domain.ID) error
}

// SpaceFiles is the part of the space store posts need: lookups and the mirrored file list.
type SpaceFiles interface {
	FindByID(ctx context.Context, id domain.ID) (domain.Space, error)
	FindByMember(ctx context.Context, username string) ([]domain.Space, error)
	AddFile(ctx context.Context, id domain.ID, f domain.FileEntry) error
	RemovePostFiles(ctx context.Context, id, postID domain.ID) error
}

// Achievements counts what users do.
type Achievements interface {
	IncrementAchievement(ctx context.Context, username, counter string, by int) error
}

type PostService struct {
	repo         PostRepository
	spaces       SpaceFiles
	acl          AccessControl
	profiles     RoleLookup
	achievements Achievements
	blobs        ObjectStore
	now          func() time.Time
}

func NewPostService(repo PostRepository, spaces SpaceFiles, acl AccessControl, profiles RoleLookup, achievements Achievements, blobs ObjectStore) *PostService {
	return &PostService{
		repo:         repo,
		spaces:       spaces,
		acl:          acl,
		profiles:     profiles,
		achievements: achievements,
		blobs:        blobs,
		now:          time.Now,
	}
}

// NewPost is the input of Create. Nil Tags are extracted from the hashtags of Text.
type NewPost struct {
	Text    string
	Space   *domain.ID
	Tags    []string
	Plans   []domain.ID
	Uploads []Upload
}

// PostEdit carries the editable parts of a post. Nil fields stay unchanged.
type PostEdit struct {
	Text  *string
	Tags  []string
	Plans []domain.ID
}

// TimelinePage is a cursor over a timeline: posts strictly older than Before, at most Limit.
type TimelinePage struct {
	Before time.Time
	Limit  int
}

func (s *PostService) page(p TimelinePage) TimelinePage {
	if p.Before.IsZero() {
		p.Before = s.now().UTC()
	}
	if p.Limit <= 0 {
		p.Limit = defaultTimelineLimit
	}
	if p.Limit > maxTimelineLimit {
		p.Limit = maxTimelineLimit
	}
	return p
}

func (s *PostService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *PostService) find(ctx context.Context, id domain.ID) (domain.Post, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Post{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	return p, nil
}

// authority resolves what actor holds in the space of a post.
func (s *PostService) authority(ctx context.Context, actor string, space *domain.ID) (domain.PostAuthority, error) {
	if space == nil {
		return s.acl.Authority(ctx, actor, nil)
	}
	sp, err := s.spaces.FindByID(ctx, *space)
	if err != nil {
		return domain.PostAuthority{}, fmt.Errorf("s.spaces.FindByID -> %w", err)
	}

	return s.acl.Authority(ctx, actor, &sp)
}

func visible(p domain.Post, a domain.PostAuthority) bool {
	return a.PlatformAdmin || p.VisibleTo(a)
}

// Create stores a post of actor. Attached files go to the object store and, for posts in a space,
// into the file list of the space.
func (s *PostService) Create(ctx context.Context, actor string, in NewPost) (domain.Post, error) {
	if strings.TrimSpace(in.Text) == "" && len(in.Uploads) == 0 {
		return domain.Post{}, ErrEmptyPostText
	}
	if in.Space != nil {
		a, err := s.authority(ctx, actor, in.Space)
		if err != nil {
			return domain.Post{}, err
		}
		if !a.Member && !a.PlatformAdmin {
			return domain.Post{}, domain.ErrUserNotMember
		}
		if !a.Can(domain.CapPost) {
			return domain.Post{}, domain.ErrInsufficientPermission
		}
	}

	tags := in.Tags
	if tags == nil {
		tags = domain.ExtractTags(in.Text)
	}
	id := domain.NewID()
	blobIDs, err := putBlobs(ctx, s.blobs, in.Uploads, actor)
	if err != nil {
		return domain.Post{}, fmt.Errorf("putBlobs -> %w", err)
	}
	files := make([]domain.FileEntry, 0, len(blobIDs))
	for i, b := range blobIDs {
		postID := id
		files = append(files, domain.FileEntry{
			FileID:   b,
			FileName: in.Uploads[i].FileName,
			Author:   actor,
			PostID:   &postID,
		})
	}

	created, err := s.repo.Create(ctx, domain.Post{
		ID:           id,
		Author:       actor,
		CreationDate: s.timestamp(),
		Text:         in.Text,
		Space:        in.Space,
		Tags:         tags,
		Plans:        nonNilIDs(in.Plans),
		Files:        files,
		Comments:     []domain.Comment{},
		Likers:       []string{},
	})
	if err != nil {
		discardBlobs(s.blobs, blobIDs...)
		return domain.Post{}, fmt.Errorf("s.repo.Create -> %w", err)
	}
	if in.Space != nil {
		for _, f := range files {
			if err := s.spaces.AddFile(ctx, *in.Space, f); err != nil {
				return domain.Post{}, fmt.Errorf("s.spaces.AddFile -> %w", err)
			}
		}
	}
	if err := s.achievements.IncrementAchievement(ctx, actor, domain.AchievementPosts, 1); err != nil {
		zap.L().Warn("post achievement not counted", zap.String("user", actor), zap.Error(err))
	}

	return created, nil
}

func nonNilIDs(ids []domain.ID) []domain.ID {
	if ids == nil {
		return []domain.ID{}
	}
	return ids
}

// Get returns a post visible to actor. Invisible posts do not exist for actor.
func (s *PostService) Get(ctx context.Context, actor string, id domain.ID) (domain.Post, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return domain.Post{}, err
	}
	a, err := s.authority(ctx, actor, p.Space)
	if err != nil {
		return domain.Post{}, err
	}
	if !visible(p, a) {
		return domain.Post{}, ErrPostNotFound
	}

	return p, nil
}

func (s *PostService) Edit(ctx context.Context, actor string, id domain.ID, e PostEdit) (domain.Post, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return domain.Post{}, err
	}
	a, err := s.authority(ctx, actor, p.Space)
	if err != nil {
		return domain.Post{}, err
	}
	if !p.CanEdit(actor, a) {
		return domain.Post{}, domain.ErrInsufficientPermission
	}

	u := repository.PostUpdate{Text: e.Text, Tags: e.Tags, Plans: e.Plans}
	if e.Text != nil && e.Tags == nil {
		u.Tags = domain.ExtractTags(*e.Text)
	}
	if err := s.repo.Update(ctx, id, u); err != nil {
		return domain.Post{}, fmt.Errorf("s.repo.Update -> %w", err)
	}

	return s.find(ctx, id)
}

// Delete removes a post with its files. The author, a platform admin or an admin of the space may
// do so.
func (s *PostService) Delete(ctx context.Context, actor string, id domain.ID) error {
	p, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	a, err := s.authority(ctx, actor, p.Space)
	if err != nil {
		return err
	}
	if !p.CanRedact(actor, p.Author, a) {
		return domain.ErrInsufficientPermission
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("s.repo.Delete -> %w", err)
	}
	if p.InSpace() && len(p.Files) > 0 {
		if err := s.spaces.RemovePostFiles(ctx, *p.Space, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("s.spaces.RemovePostFiles -> %w", err)
		}
	}
	ids := make([]domain.ID, 0, len(p.Files))
	for _, f := range p.Files {
		ids = append(ids, f.FileID)
	}
	if err := deleteBlobs(ctx, s.blobs, ids...); err != nil {
		return fmt.Errorf("deleteBlobs -> %w", err)
	}

	return nil
}

// Repost shares a visible post as a new post of actor, optionally into a space. Files stay with
// the original.
func (s *PostService) Repost(ctx context.Context, actor string, id domain.ID, text *string, space *domain.ID) (domain.Post, error) {
	original, err := s.Get(ctx, actor, id)
	if err != nil {
		return domain.Post{}, err
	}
	if space != nil {
		a, err := s.authority(ctx, actor, space)
		if err != nil {
			return domain.Post{}, err
		}
		if !a.Member || !a.Can(domain.CapPost) {
			return domain.Post{}, domain.ErrInsufficientPermission
		}
	}

	author := original.Author
	created := original.CreationDate
	if original.IsRepost && original.RepostAuthor != nil {
		author = *original.RepostAuthor
		if original.OriginalCreationDate != nil {
			created = *original.OriginalCreationDate
		}
	}
	p, err := s.repo.Create(ctx, domain.Post{
		ID:                   domain.NewID(),
		Author:               actor,
		CreationDate:         s.timestamp(),
		Text:                 original.Text,
		Space:                space,
		Tags:                 original.Tags,
		Plans:                nonNilIDs(original.Plans),
		Files:                []domain.FileEntry{},
		Comments:             []domain.Comment{},
		Likers:               []string{},
		IsRepost:             true,
		RepostAuthor:         &author,
		OriginalCreationDate: &created,
		RepostText:           text,
	})
	if err != nil {
		return domain.Post{}, fmt.Errorf("s.repo.Create -> %w", err)
	}

	return p, nil
}

// Like adds actor to the likers of a post. Liking twice returns ErrNotModified.
func (s *PostService) Like(ctx context.Context, actor string, id domain.ID) error {
	p, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	added, err := s.repo.AddLiker(ctx, id, actor)
	if err != nil {
		return fmt.Errorf("s.repo.AddLiker -> %w", err)
	}
	if !added {
		return domain.ErrNotModified
	}

	if err := s.achievements.IncrementAchievement(ctx, actor, domain.AchievementGiveLikes, 1); err != nil {
		zap.L().Warn("like achievement not counted", zap.String("user", actor), zap.Error(err))
	}
	if p.Author != actor {
		if err := s.achievements.IncrementAchievement(ctx, p.Author, domain.AchievementPostsLiked, 1); err != nil {
			zap.L().Warn("like achievement not counted", zap.String("user", p.Author), zap.Error(err))
		}
	}

	return nil
}

func (s *PostService) Unlike(ctx context.Context, actor string, id domain.ID) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	removed, err := s.repo.RemoveLiker(ctx, id, actor)
	if err != nil {
		return fmt.Errorf("s.repo.RemoveLiker -> %w", err)
	}
	if !removed {
		return domain.ErrNotModified
	}

	return nil
}

func (s *PostService) Comment(ctx context.Context, actor string, postID domain.ID, text string) (domain.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Comment{}, ErrEmptyPostText
	}
	p, err := s.find(ctx, postID)
	if err != nil {
		return domain.Comment{}, err
	}
	a, err := s.authority(ctx, actor, p.Space)
	if err != nil {
		return domain.Comment{}, err
	}
	if !visible(p, a) {
		return domain.Comment{}, ErrPostNotFound
	}
	if p.InSpace() && !a.Can(domain.CapComment) {
		return domain.Comment{}, domain.ErrInsufficientPermission
	}

	c := domain.Comment{ID: domain.NewID(), Author: actor, CreationDate: s.timestamp(), Text: text}
	if err := s.repo.AddComment(ctx, postID, c); err != nil {
		return domain.Comment{}, fmt.Errorf("s.repo.AddComment -> %w", err)
	}

	return c, nil
}

func (s *PostService) commentPost(ctx context.Context, actor string, commentID domain.ID) (domain.Post, domain.Comment, domain.PostAuthority, error) {
	p, err := s.repo.FindByCommentID(ctx, commentID)
	if err != nil {
		return domain.Post{}, domain.Comment{}, domain.PostAuthority{}, fmt.Errorf("s.repo.FindByCommentID -> %w", err)
	}
	c, _ := p.Comment(commentID)
	a, err := s.authority(ctx, actor, p.Space)
	if err != nil {
		return domain.Post{}, domain.Comment{}, domain.PostAuthority{}, err
	}

	return p, c, a, nil
}

func (s *PostService) DeleteComment(ctx context.Context, actor string, commentID domain.ID) error {
	p, c, a, err := s.commentPost(ctx, actor, commentID)
	if err != nil {
		return err
	}
	if !p.CanRedact(actor, c.Author, a) {
		return domain.ErrInsufficientPermission
	}
	if err := s.repo.RemoveComment(ctx, p.ID, commentID); err != nil {
		return fmt.Errorf("s.repo.RemoveComment -> %w", err)
	}

	return nil
}

func (s *PostService) PinComment(ctx context.Context, actor string, commentID domain.ID, pinned bool) error {
	p, _, a, err := s.commentPost(ctx, actor, commentID)
	if err != nil {
		return err
	}
	if !p.CanPinComment(actor, a) {
		return domain.ErrInsufficientPermission
	}
	if err := s.repo.SetCommentPinned(ctx, p.ID, commentID, pinned); err != nil {
		return fmt.Errorf("s.repo.SetCommentPinned -> %w", err)
	}

	return nil
}

// PinPost pins or unpins a post in its space.
func (s *PostService) PinPost(ctx context.Context, actor string, id domain.ID, pinned bool) error {
	p, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	a, err := s.authority(ctx, actor, p.Space)
	if err != nil {
		return err
	}
	if !p.CanPin(a) {
		return domain.ErrInsufficientPermission
	}
	if err := s.repo.Update(ctx, id, repository.PostUpdate{Pinned: &pinned}); err != nil {
		return fmt.Errorf("s.repo.Update -> %w", err)
	}

	return nil
}

// SpaceTimeline returns one page of a space timeline plus every pinned post of the space.
func (s *PostService) SpaceTimeline(ctx context.Context, actor string, space domain.ID, page TimelinePage) ([]domain.Post, []domain.Post, error) {
	a, err := s.authority(ctx, actor, &space)
	if err != nil {
		return nil, nil, err
	}
	if !a.PlatformAdmin && !(a.Member && a.Can(domain.CapReadTimeline)) {
		return nil, nil, domain.ErrInsufficientPermission
	}

	page = s.page(page)
	posts, err := s.repo.Timeline(ctx, repository.Timeline{Before: page.Before, Limit: page.Limit, Space: &space})
	if err != nil {
		return nil, nil, fmt.Errorf("s.repo.Timeline -> %w", err)
	}
	pinned, err := s.repo.FindPinned(ctx, space)
	if err != nil {
		return nil, nil, fmt.Errorf("s.repo.FindPinned -> %w", err)
	}

	return posts, pinned, nil
}

// UserTimeline returns the posts of author that actor may see.
func (s *PostService) UserTimeline(ctx context.Context, actor, author string, page TimelinePage) ([]domain.Post, error) {
	page = s.page(page)
	return s.visiblePage(ctx, actor, page.Limit, nil, func(n int) ([]domain.Post, bool, error) {
		posts, err := s.repo.Timeline(ctx, repository.Timeline{Before: page.Before, Limit: n, Author: &author})
		if err != nil {
			return nil, false, fmt.Errorf("s.repo.Timeline -> %w", err)
		}
		return posts, len(posts) == n, nil
	})
}

func (s *PostService) TagTimeline(ctx context.Context, actor, tag string, page TimelinePage) ([]domain.Post, error) {
	page = s.page(page)
	tag = strings.ToLower(tag)
	return s.visiblePage(ctx, actor, page.Limit, nil, func(n int) ([]domain.Post, bool, error) {
		posts, err := s.repo.FindByTag(ctx, tag, page.Before, n)
		if err != nil {
			return nil, false, fmt.Errorf("s.repo.FindByTag -> %w", err)
		}
		return posts, len(posts) == n, nil
	})
}

// PersonalTimeline returns own posts, posts of followed users outside spaces and posts in the
// spaces of actor.
func (s *PostService) PersonalTimeline(ctx context.Context, actor string, page TimelinePage) ([]domain.Post, error) {
	viewer := domain.TimelineViewer{Username: actor, Follows: []string{}, MemberSpaces: []domain.ID{}}
	profile, err := s.profiles.FindByUsername(ctx, actor)
	switch {
	case err == nil:
		viewer.Follows = profile.Follows
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("s.profiles.FindByUsername -> %w", err)
	}
	spaces, err := s.spaces.FindByMember(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("s.spaces.FindByMember -> %w", err)
	}
	known := make(map[domain.ID]domain.Space, len(spaces))
	for _, sp := range spaces {
		viewer.MemberSpaces = append(viewer.MemberSpaces, sp.ID)
		known[sp.ID] = sp
	}

	page = s.page(page)
	return s.visiblePage(ctx, actor, page.Limit, known, func(n int) ([]domain.Post, bool, error) {
		posts, err := s.repo.Timeline(ctx, repository.Timeline{Before: page.Before, Limit: n, Viewer: &viewer})
		if err != nil {
			return nil, false, fmt.Errorf("s.repo.Timeline -> %w", err)
		}
		more := len(posts) == n
		filtered := posts[:0]
		for _, p := range posts {
			if domain.PersonalTimelineVisible(p, viewer) {
				filtered = append(filtered, p)
			}
		}
		return filtered, more, nil
	})
}

// visiblePage reads ever larger windows from the same cursor until limit visible posts are found
// or fetch reports the source is exhausted. Re-reading from the cursor keeps posts sharing a
// creation date on the page boundary.
func (s *PostService) visiblePage(
	ctx context.Context,
	actor string,
	limit int,
	known map[domain.ID]domain.Space,
	fetch func(n int) ([]domain.Post, bool, error),
) ([]domain.Post, error) {
	for n := limit; ; n *= 2 {
		posts, more, err := fetch(n)
		if err != nil {
			return nil, err
		}
		visible, err := s.filterVisible(ctx, actor, posts, known)
		if err != nil {
			return nil, err
		}
		if len(visible) >= limit || !more {
			if len(visible) > limit {
				visible = visible[:limit]
			}
			return visible, nil
		}
	}
}

// filterVisible drops the posts actor may not see. The authority per space is resolved once.
func (s *PostService) filterVisible(ctx context.Context, actor string, posts []domain.Post, known map[domain.ID]domain.Space) ([]domain.Post, error) {
	base, err := s.acl.Authority(ctx, actor, nil)
	if err != nil {
		return nil, err
	}
	authorities := map[domain.ID]domain.PostAuthority{}
	out := make([]domain.Post, 0, len(posts))
	for _, p := range posts {
		if !p.InSpace() || base.PlatformAdmin {
			out = append(out, p)
			continue
		}
		a, ok := authorities[*p.Space]
		if !ok {
			sp, found := known[*p.Space]
			if !found {
				sp, err = s.spaces.FindByID(ctx, *p.Space)
				if errors.Is(err, domain.ErrNotFound) {
					authorities[*p.Space] = domain.PostAuthority{}
					continue
				}
				if err != nil {
					return nil, fmt.Errorf("s.spaces.FindByID -> %w", err)
				}
			}
			if a, err = s.acl.Authority(ctx, actor, &sp); err != nil {
				return nil, err
			}
			authorities[*p.Space] = a
		}
		if p.VisibleTo(a) {
			out = append(out, p)
		}
	}

	return out, nil
}

// GetByComment returns the post holding comment commentID if actor may see it.
func (s *PostService) GetByComment(ctx context.Context, actor string, commentID domain.ID) (domain.Post, error) {
	p, _, a, err := s.commentPost(ctx, actor, commentID)
	if err != nil {
		return domain.Post{}, err
	}
	if !visible(p, a) {
		return domain.Post{}, ErrPostNotFound
	}

	return p, nil
}
