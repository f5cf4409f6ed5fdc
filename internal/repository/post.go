package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"

	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/repository/dao"
)

var (
	ErrPostNotFound    = dao.ErrPostNotFound
	ErrCommentNotFound = dao.ErrCommentNotFound
)

type PostDAO interface {
	Insert(ctx context.Context, post dao.Post) (dao.Post, error)
	FindByID(ctx context.Context, id string) (dao.Post, error)
	FindByCommentID(ctx context.Context, commentID string) (dao.Post, error)
	Timeline(ctx context.Context, q dao.TimelineQuery) ([]dao.Post, error)
	FindPinned(ctx context.Context, space string) ([]dao.Post, error)
	FindBySpace(ctx context.Context, space string) ([]dao.Post, error)
	FindByTag(ctx context.Context, tag string, before time.Time, limit int) ([]dao.Post, error)
	Update(ctx context.Context, id string, columns map[string]any) error
	UpdateLikers(ctx context.Context, id string, op dao.ArrayOp) (bool, error)
	AppendComment(ctx context.Context, id string, comment datatypes.JSON) error
	RemoveComment(ctx context.Context, id, commentID string) error
	SetCommentPinned(ctx context.Context, id, commentID string, pinned bool) error
	Delete(ctx context.Context, id string) error
	DeleteBySpace(ctx context.Context, space string) ([]dao.Post, error)
}

// Timeline selects at most Limit posts strictly older than Before, newest first. Space, Author and
// Viewer narrow the selection; Viewer applies the personal timeline predicate.
type Timeline struct {
	Before time.Time
	Limit  int
	Space  *domain.ID
	Author *string
	Viewer *domain.TimelineViewer
}

// PostUpdate carries editable post attributes. Nil fields are left unchanged.
type PostUpdate struct {
	Text   *string
	Tags   []string
	Plans  []domain.ID
	Files  []domain.FileEntry
	Pinned *bool
}

type PostRepository struct {
	dao PostDAO
}

func NewPostRepository(dao PostDAO) *PostRepository {
	return &PostRepository{
		dao: dao,
	}
}

func (r *PostRepository) Create(ctx context.Context, p domain.Post) (domain.Post, error) {
	row, err := r.domainToDao(p)
	if err != nil {
		return domain.Post{}, err
	}

	created, err := r.dao.Insert(ctx, row)
	if err != nil {
		return domain.Post{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return r.daoToDomain(created)
}

func (r *PostRepository) FindByID(ctx context.Context, id domain.ID) (domain.Post, error) {
	found, err := r.dao.FindByID(ctx, id.Hex())
	if err != nil {
		return domain.Post{}, fmt.Errorf("r.dao.FindByID -> %w", err)
	}

	return r.daoToDomain(found)
}

func (r *PostRepository) FindByCommentID(ctx context.Context, commentID domain.ID) (domain.Post, error) {
	found, err := r.dao.FindByCommentID(ctx, commentID.Hex())
	if err != nil {
		return domain.Post{}, fmt.Errorf("r.dao.FindByCommentID -> %w", err)
	}

	return r.daoToDomain(found)
}

func (r *PostRepository) Timeline(ctx context.Context, t Timeline) ([]domain.Post, error) {
	q := dao.TimelineQuery{
		Before: t.Before,
		Limit:  t.Limit,
		Author: t.Author,
		Space:  hexOrNil(t.Space),
	}
	if t.Viewer != nil {
		q.Viewer = &t.Viewer.Username
		q.Follows = nonNil(t.Viewer.Follows)
		q.MemberSpaces = hexes(t.Viewer.MemberSpaces)
	}

	found, err := r.dao.Timeline(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("r.dao.Timeline -> %w", err)
	}

	return r.daosToDomain(found)
}

func (r *PostRepository) FindPinned(ctx context.Context, space domain.ID) ([]domain.Post, error) {
	found, err := r.dao.FindPinned(ctx, space.Hex())
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindPinned -> %w", err)
	}

	return r.daosToDomain(found)
}

func (r *PostRepository) FindBySpace(ctx context.Context, space domain.ID) ([]domain.Post, error) {
	found, err := r.dao.FindBySpace(ctx, space.Hex())
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindBySpace -> %w", err)
	}

	return r.daosToDomain(found)
}

func (r *PostRepository) FindByTag(ctx context.Context, tag string, before time.Time, limit int) ([]domain.Post, error) {
	found, err := r.dao.FindByTag(ctx, tag, before, limit)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByTag -> %w", err)
	}

	return r.daosToDomain(found)
}

func (r *PostRepository) Update(ctx context.Context, id domain.ID, u PostUpdate) error {
	columns := map[string]any{}
	if u.Text != nil {
		columns["text"] = *u.Text
	}
	if u.Tags != nil {
		columns["tags"] = pq.StringArray(u.Tags)
	}
	if u.Plans != nil {
		columns["plans"] = pq.StringArray(hexes(u.Plans))
	}
	if u.Files != nil {
		files, err := toJSON(spaceFiles(u.Files))
		if err != nil {
			return err
		}
		columns["files"] = files
	}
	if u.Pinned != nil {
		columns["pinned"] = *u.Pinned
	}
	if len(columns) == 0 {
		return nil
	}

	if err := r.dao.Update(ctx, id.Hex(), columns); err != nil {
		return fmt.Errorf("r.dao.Update -> %w", err)
	}

	return nil
}

// AddLiker reports whether username was not a liker before.
func (r *PostRepository) AddLiker(ctx context.Context, id domain.ID, username string) (bool, error) {
	changed, err := r.dao.UpdateLikers(ctx, id.Hex(), dao.AddTo("likers", username))
	if err != nil {
		return false, fmt.Errorf("r.dao.UpdateLikers -> %w", err)
	}

	return changed, nil
}

func (r *PostRepository) RemoveLiker(ctx context.Context, id domain.ID, username string) (bool, error) {
	changed, err := r.dao.UpdateLikers(ctx, id.Hex(), dao.RemoveFrom("likers", username))
	if err != nil {
		return false, fmt.Errorf("r.dao.UpdateLikers -> %w", err)
	}

	return changed, nil
}

func (r *PostRepository) AddComment(ctx context.Context, id domain.ID, c domain.Comment) error {
	raw, err := toJSON(postComment(c))
	if err != nil {
		return err
	}

	if err := r.dao.AppendComment(ctx, id.Hex(), raw); err != nil {
		return fmt.Errorf("r.dao.AppendComment -> %w", err)
	}

	return nil
}

func (r *PostRepository) RemoveComment(ctx context.Context, id, commentID domain.ID) error {
	if err := r.dao.RemoveComment(ctx, id.Hex(), commentID.Hex()); err != nil {
		return fmt.Errorf("r.dao.RemoveComment -> %w", err)
	}

	return nil
}

func (r *PostRepository) SetCommentPinned(ctx context.Context, id, commentID domain.ID, pinned bool) error {
	if err := r.dao.SetCommentPinned(ctx, id.Hex(), commentID.Hex(), pinned); err != nil {
		return fmt.Errorf("r.dao.SetCommentPinned -> %w", err)
	}

	return nil
}

func (r *PostRepository) Delete(ctx context.Context, id domain.ID) error {
	if err := r.dao.Delete(ctx, id.Hex()); err != nil {
		return fmt.Errorf("r.dao.Delete -> %w", err)
	}

	return nil
}

// DeleteBySpace removes every post of space and returns what was removed.
func (r *PostRepository) DeleteBySpace(ctx context.Context, space domain.ID) ([]domain.Post, error) {
	deleted, err := r.dao.DeleteBySpace(ctx, space.Hex())
	if err != nil {
		return nil, fmt.Errorf("r.dao.DeleteBySpace -> %w", err)
	}

	return r.daosToDomain(deleted)
}

func (r *PostRepository) domainToDao(p domain.Post) (dao.Post, error) {
	files, err := toJSON(spaceFiles(p.Files))
	if err != nil {
		return dao.Post{}, err
	}
	comments := make([]dao.PostComment, 0, len(p.Comments))
	for _, c := range p.Comments {
		comments = append(comments, postComment(c))
	}
	rawComments, err := toJSON(comments)
	if err != nil {
		return dao.Post{}, err
	}

	return dao.Post{
		ID:                   p.ID.Hex(),
		Author:               p.Author,
		CreationDate:         p.CreationDate,
		Text:                 p.Text,
		Space:                hexOrNil(p.Space),
		Pinned:               p.Pinned,
		Tags:                 pq.StringArray(nonNil(p.Tags)),
		Plans:                pq.StringArray(hexes(p.Plans)),
		Files:                files,
		Comments:             rawComments,
		Likers:               pq.StringArray(nonNil(p.Likers)),
		IsRepost:             p.IsRepost,
		RepostAuthor:         p.RepostAuthor,
		OriginalCreationDate: p.OriginalCreationDate,
		RepostText:           p.RepostText,
	}, nil
}

func (r *PostRepository) daoToDomain(p dao.Post) (domain.Post, error) {
	files, err := fromJSON[[]dao.SpaceFile](p.Files)
	if err != nil {
		return domain.Post{}, fmt.Errorf("post %s files: %w", p.ID, err)
	}
	stored, err := fromJSON[[]dao.PostComment](p.Comments)
	if err != nil {
		return domain.Post{}, fmt.Errorf("post %s comments: %w", p.ID, err)
	}
	comments := make([]domain.Comment, 0, len(stored))
	for _, c := range stored {
		cid, err := domain.ParseID(c.ID)
		if err != nil {
			continue
		}
		comments = append(comments, domain.Comment{
			ID:           cid,
			Author:       c.Author,
			CreationDate: c.CreationDate,
			Text:         c.Text,
			Pinned:       c.Pinned,
		})
	}
	id, _ := domain.ParseID(p.ID)

	return domain.Post{
		ID:                   id,
		Author:               p.Author,
		CreationDate:         p.CreationDate.UTC(),
		Text:                 p.Text,
		Space:                idOrNil(p.Space),
		Pinned:               p.Pinned,
		Tags:                 nonNil(p.Tags),
		Plans:                parseHexes(p.Plans),
		Files:                fileEntries(files),
		Comments:             comments,
		Likers:               nonNil(p.Likers),
		IsRepost:             p.IsRepost,
		RepostAuthor:         p.RepostAuthor,
		OriginalCreationDate: p.OriginalCreationDate,
		RepostText:           p.RepostText,
	}, nil
}

func (r *PostRepository) daosToDomain(rows []dao.Post) ([]domain.Post, error) {
	posts := make([]domain.Post, 0, len(rows))
	for _, row := range rows {
		p, err := r.daoToDomain(row)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}

	return posts, nil
}

func postComment(c domain.Comment) dao.PostComment {
	return dao.PostComment{
		ID:           c.ID.Hex(),
		Author:       c.Author,
		CreationDate: c.CreationDate,
		Text:         c.Text,
		Pinned:       c.Pinned,
	}
}
