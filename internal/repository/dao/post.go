package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vecollab/backend/internal/domain"
)

var (
	ErrPostNotFound    = fmt.Errorf("post %w", domain.ErrNotFound)
	ErrCommentNotFound = fmt.Errorf("comment %w", domain.ErrNotFound)
)

// hasComment matches posts whose comments array holds an element with the given _id.
const hasComment = "comments @> jsonb_build_array(jsonb_build_object('_id', ?::text))"

type Post struct {
	ID           string         `gorm:"primaryKey;type:varchar(24)"`
	Author       string         `gorm:"not null;index"`
	CreationDate time.Time      `gorm:"not null;index:idx_posts_creation_date,sort:desc"`
	Text         string         `gorm:"not null;default:''"`
	Space        *string        `gorm:"type:varchar(24);index"`
	Pinned       bool           `gorm:"not null;default:false"`
	Tags         pq.StringArray `gorm:"type:text[];not null;default:'{}'"`
	Plans        pq.StringArray `gorm:"type:text[];not null;default:'{}'"`
	Files        datatypes.JSON `gorm:"not null;default:'[]'"`
	Comments     datatypes.JSON `gorm:"not null;default:'[]'"`
	Likers       pq.StringArray `gorm:"type:text[];not null;default:'{}'"`

	IsRepost             bool `gorm:"not null;default:false"`
	RepostAuthor         *string
	OriginalCreationDate *time.Time
	RepostText           *string
}

// PostComment is the stored shape of an entry in Post.Comments.
type PostComment struct {
	ID           string    `json:"_id"`
	Author       string    `json:"author"`
	CreationDate time.Time `json:"creation_date"`
	Text         string    `json:"text"`
	Pinned       bool      `json:"pinned"`
}

// TimelineQuery selects posts strictly older than Before, newest first.
type TimelineQuery struct {
	Before time.Time
	Limit  int

	Space  *string
	Author *string

	// Personal timeline viewer. Set together.
	Viewer       *string
	Follows      []string
	MemberSpaces []string
}

type PostDAO struct {
	db *gorm.DB
}

func NewPostDAO(db *gorm.DB) *PostDAO {
	return &PostDAO{
		db: db,
	}
}

func (d *PostDAO) Insert(ctx context.Context, post Post) (Post, error) {
	result := d.db.WithContext(ctx).Create(&post)
	if result.Error != nil {
		return Post{}, result.Error
	}

	return post, nil
}

func (d *PostDAO) FindByID(ctx context.Context, id string) (Post, error) {
	var post Post

	result := d.db.WithContext(ctx).First(&post, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Post{}, ErrPostNotFound
		}

		return Post{}, result.Error
	}

	return post, nil
}

// FindByCommentID returns the post holding the comment id.
func (d *PostDAO) FindByCommentID(ctx context.Context, commentID string) (Post, error) {
	var post Post

	result := d.db.WithContext(ctx).
		Where("comments @> ?::jsonb", fmt.Sprintf(`[{"_id": %q}]`, commentID)).
		First(&post)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Post{}, ErrPostNotFound
		}

		return Post{}, result.Error
	}

	return post, nil
}

func (d *PostDAO) Timeline(ctx context.Context, q TimelineQuery) ([]Post, error) {
	var posts []Post

	tx := d.db.WithContext(ctx).Where("creation_date < ?", q.Before)
	if q.Space != nil {
		tx = tx.Where("space = ?", *q.Space)
	}
	if q.Author != nil {
		tx = tx.Where("author = ?", *q.Author)
	}
	if q.Viewer != nil {
		follows := pq.StringArray(q.Follows)
		spaces := pq.StringArray(q.MemberSpaces)
		tx = tx.Where(
			"(author = ? OR (space IS NOT NULL AND space = ANY(?::text[])) OR (space IS NULL AND author = ANY(?::text[])))",
			*q.Viewer, spaces, follows,
		)
	}
	tx = tx.Order("creation_date DESC").Order("id DESC")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	if result := tx.Find(&posts); result.Error != nil {
		return nil, result.Error
	}

	return posts, nil
}

func (d *PostDAO) FindPinned(ctx context.Context, space string) ([]Post, error) {
	var posts []Post

	result := d.db.WithContext(ctx).Where("space = ? AND pinned", space).Order("creation_date DESC").Find(&posts)
	if result.Error != nil {
		return nil, result.Error
	}

	return posts, nil
}

func (d *PostDAO) FindBySpace(ctx context.Context, space string) ([]Post, error) {
	var posts []Post

	result := d.db.WithContext(ctx).Where("space = ?", space).Find(&posts)
	if result.Error != nil {
		return nil, result.Error
	}

	return posts, nil
}

func (d *PostDAO) FindByTag(ctx context.Context, tag string, before time.Time, limit int) ([]Post, error) {
	var posts []Post

	tx := d.db.WithContext(ctx).
		Where("? = ANY(tags) AND creation_date < ?", tag, before).
		Order("creation_date DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if result := tx.Find(&posts); result.Error != nil {
		return nil, result.Error
	}

	return posts, nil
}

func (d *PostDAO) Update(ctx context.Context, id string, columns map[string]any) error {
	result := d.db.WithContext(ctx).Model(&Post{}).Where("id = ?", id).Updates(columns)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPostNotFound
	}

	return nil
}

// UpdateLikers adds or removes a liker and reports whether the set changed.
func (d *PostDAO) UpdateLikers(ctx context.Context, id string, op ArrayOp) (bool, error) {
	guard := "NOT ? = ANY(likers)"
	if op.Remove {
		guard = "? = ANY(likers)"
	}

	result := d.db.WithContext(ctx).Model(&Post{}).Where("id = ?", id).Where(guard, op.Value).
		Updates(arrayUpdates([]ArrayOp{op}))
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (d *PostDAO) AppendComment(ctx context.Context, id string, comment datatypes.JSON) error {
	result := d.db.WithContext(ctx).Model(&Post{}).Where("id = ?", id).
		Update("comments", gorm.Expr("comments || jsonb_build_array(?::jsonb)", string(comment)))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPostNotFound
	}

	return nil
}

func (d *PostDAO) RemoveComment(ctx context.Context, id, commentID string) error {
	result := d.db.WithContext(ctx).Model(&Post{}).Where("id = ?", id).Where(hasComment, commentID).
		Update("comments", gorm.Expr(
			`(SELECT COALESCE(jsonb_agg(c ORDER BY ord), '[]'::jsonb)
			FROM jsonb_array_elements(comments) WITH ORDINALITY AS t(c, ord)
			WHERE c->>'_id' <> ?)`,
			commentID,
		))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCommentNotFound
	}

	return nil
}

func (d *PostDAO) SetCommentPinned(ctx context.Context, id, commentID string, pinned bool) error {
	result := d.db.WithContext(ctx).Model(&Post{}).Where("id = ?", id).Where(hasComment, commentID).Update("comments", gorm.Expr(
		`(SELECT COALESCE(jsonb_agg(CASE WHEN c->>'_id' = ? THEN jsonb_set(c, '{pinned}', to_jsonb(?::boolean)) ELSE c END
			ORDER BY ord), '[]'::jsonb)
		FROM jsonb_array_elements(comments) WITH ORDINALITY AS t(c, ord))`,
		commentID, pinned,
	))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCommentNotFound
	}

	return nil
}

func (d *PostDAO) Delete(ctx context.Context, id string) error {
	result := d.db.WithContext(ctx).Delete(&Post{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPostNotFound
	}

	return nil
}

// DeleteBySpace removes every post of space and returns them.
func (d *PostDAO) DeleteBySpace(ctx context.Context, space string) ([]Post, error) {
	var posts []Post

	result := d.db.WithContext(ctx).Clauses(clause.Returning{}).Where("space = ?", space).Delete(&posts)
	if result.Error != nil {
		return nil, result.Error
	}

	return posts, nil
}
