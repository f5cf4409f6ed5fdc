package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"gorm.io/datatypes"

	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/repository/dao"
)

var (
	ErrSpaceExists       = dao.ErrSpaceExists
	ErrSpaceNotFound     = dao.ErrSpaceNotFound
	ErrSpaceStateChanged = dao.ErrSpaceStateChanged
)

type SpaceDAO interface {
	Insert(ctx context.Context, space dao.Space) (dao.Space, error)
	FindByID(ctx context.Context, id string) (dao.Space, error)
	FindAll(ctx context.Context) ([]dao.Space, error)
	FindByArrayMember(ctx context.Context, column, username string) ([]dao.Space, error)
	FindIDs(ctx context.Context) ([]string, error)
	Update(ctx context.Context, id string, columns map[string]any) error
	Transition(ctx context.Context, id, guard string, guardArgs []any, ops ...dao.ArrayOp) error
	AppendFile(ctx context.Context, id string, file datatypes.JSON) error
	RemoveFiles(ctx context.Context, id, key, value string) error
	Delete(ctx context.Context, id string) error
}

// SpaceUpdate carries admin-editable attributes. Nil fields are left unchanged.
type SpaceUpdate struct {
	Name        *string
	Invisible   *bool
	Joinable    *bool
	Description *string
	PictureID   *domain.ID
}

type SpaceRepository struct {
	dao SpaceDAO
}

func NewSpaceRepository(dao SpaceDAO) *SpaceRepository {
	return &SpaceRepository{
		dao: dao,
	}
}

func (r *SpaceRepository) Create(ctx context.Context, s domain.Space) (domain.Space, error) {
	files, err := toJSON(spaceFiles(s.Files))
	if err != nil {
		return domain.Space{}, err
	}

	created, err := r.dao.Insert(ctx, dao.Space{
		ID:          s.ID.Hex(),
		Name:        s.Name,
		Invisible:   s.Invisible,
		Joinable:    s.Joinable,
		Members:     pq.StringArray(nonNil(s.Members)),
		Admins:      pq.StringArray(nonNil(s.Admins)),
		Invites:     pq.StringArray(nonNil(s.Invites)),
		Requests:    pq.StringArray(nonNil(s.Requests)),
		Files:       files,
		PictureID:   hexOrNil(s.PictureID),
		Description: s.Description,
	})
	if err != nil {
		return domain.Space{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return r.daoToDomain(created)
}

func (r *SpaceRepository) FindByID(ctx context.Context, id domain.ID) (domain.Space, error) {
	found, err := r.dao.FindByID(ctx, id.Hex())
	if err != nil {
		return domain.Space{}, fmt.Errorf("r.dao.FindByID -> %w", err)
	}

	return r.daoToDomain(found)
}

func (r *SpaceRepository) FindAll(ctx context.Context) ([]domain.Space, error) {
	found, err := r.dao.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindAll -> %w", err)
	}

	return r.daosToDomain(found)
}

// FindByMember returns the spaces where username is a member.
func (r *SpaceRepository) FindByMember(ctx context.Context, username string) ([]domain.Space, error) {
	return r.findByArrayMember(ctx, "members", username)
}

// FindByInvite returns the spaces holding a pending invitation for username.
func (r *SpaceRepository) FindByInvite(ctx context.Context, username string) ([]domain.Space, error) {
	return r.findByArrayMember(ctx, "invites", username)
}

func (r *SpaceRepository) FindByRequest(ctx context.Context, username string) ([]domain.Space, error) {
	return r.findByArrayMember(ctx, "requests", username)
}

func (r *SpaceRepository) findByArrayMember(ctx context.Context, column, username string) ([]domain.Space, error) {
	found, err := r.dao.FindByArrayMember(ctx, column, username)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByArrayMember -> %w", err)
	}

	return r.daosToDomain(found)
}

func (r *SpaceRepository) FindIDs(ctx context.Context) ([]domain.ID, error) {
	ids, err := r.dao.FindIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindIDs -> %w", err)
	}

	return parseHexes(ids), nil
}

func (r *SpaceRepository) Update(ctx context.Context, id domain.ID, u SpaceUpdate) error {
	columns := map[string]any{}
	if u.Name != nil {
		columns["name"] = *u.Name
	}
	if u.Invisible != nil {
		columns["invisible"] = *u.Invisible
	}
	if u.Joinable != nil {
		columns["joinable"] = *u.Joinable
	}
	if u.Description != nil {
		columns["description"] = *u.Description
	}
	if u.PictureID != nil {
		columns["picture_id"] = u.PictureID.Hex()
	}
	if len(columns) == 0 {
		return nil
	}

	if err := r.dao.Update(ctx, id.Hex(), columns); err != nil {
		return fmt.Errorf("r.dao.Update -> %w", err)
	}

	return nil
}

// SaveMembership persists the membership difference between before and after. The write only
// happens while the stored row still matches before on every touched entry, otherwise
// ErrSpaceStateChanged is returned and nothing changes.
func (r *SpaceRepository) SaveMembership(ctx context.Context, before, after domain.Space) error {
	var (
		ops    []dao.ArrayOp
		guards []string
		args   []any
	)
	columns := []struct {
		name          string
		before, after []string
	}{
		{"members", before.Members, after.Members},
		{"admins", before.Admins, after.Admins},
		{"invites", before.Invites, after.Invites},
		{"requests", before.Requests, after.Requests},
	}
	for _, c := range columns {
		removed, added := diff(c.before, c.after)
		for _, u := range removed {
			ops = append(ops, dao.RemoveFrom(c.name, u))
			guards = append(guards, fmt.Sprintf("? = ANY(%s)", c.name))
			args = append(args, u)
		}
		for _, u := range added {
			ops = append(ops, dao.AddTo(c.name, u))
			guards = append(guards, fmt.Sprintf("NOT ? = ANY(%s)", c.name))
			args = append(args, u)
		}
	}
	if len(ops) == 0 {
		return nil
	}
	if len(after.Admins) < len(before.Admins) {
		guards = append(guards, "cardinality(admins) = ?")
		args = append(args, len(before.Admins))
	}

	if err := r.dao.Transition(ctx, before.ID.Hex(), strings.Join(guards, " AND "), args, ops...); err != nil {
		return fmt.Errorf("r.dao.Transition -> %w", err)
	}

	return nil
}

func (r *SpaceRepository) AddFile(ctx context.Context, id domain.ID, f domain.FileEntry) error {
	raw, err := toJSON(spaceFile(f))
	if err != nil {
		return err
	}

	if err := r.dao.AppendFile(ctx, id.Hex(), raw); err != nil {
		return fmt.Errorf("r.dao.AppendFile -> %w", err)
	}

	return nil
}

func (r *SpaceRepository) RemoveFile(ctx context.Context, id, fileID domain.ID) error {
	if err := r.dao.RemoveFiles(ctx, id.Hex(), "file_id", fileID.Hex()); err != nil {
		return fmt.Errorf("r.dao.RemoveFiles -> %w", err)
	}

	return nil
}

// RemovePostFiles drops the entries mirrored from post.
func (r *SpaceRepository) RemovePostFiles(ctx context.Context, id, postID domain.ID) error {
	if err := r.dao.RemoveFiles(ctx, id.Hex(), "post_id", postID.Hex()); err != nil {
		return fmt.Errorf("r.dao.RemoveFiles -> %w", err)
	}

	return nil
}

func (r *SpaceRepository) Delete(ctx context.Context, id domain.ID) error {
	if err := r.dao.Delete(ctx, id.Hex()); err != nil {
		return fmt.Errorf("r.dao.Delete -> %w", err)
	}

	return nil
}

func (r *SpaceRepository) daoToDomain(s dao.Space) (domain.Space, error) {
	stored, err := fromJSON[[]dao.SpaceFile](s.Files)
	if err != nil {
		return domain.Space{}, fmt.Errorf("space %s files: %w", s.ID, err)
	}
	id, _ := domain.ParseID(s.ID)

	return domain.Space{
		ID:          id,
		Name:        s.Name,
		Invisible:   s.Invisible,
		Joinable:    s.Joinable,
		Members:     nonNil(s.Members),
		Admins:      nonNil(s.Admins),
		Invites:     nonNil(s.Invites),
		Requests:    nonNil(s.Requests),
		Files:       fileEntries(stored),
		PictureID:   idOrNil(s.PictureID),
		Description: s.Description,
	}, nil
}

func (r *SpaceRepository) daosToDomain(rows []dao.Space) ([]domain.Space, error) {
	spaces := make([]domain.Space, 0, len(rows))
	for _, row := range rows {
		s, err := r.daoToDomain(row)
		if err != nil {
			return nil, err
		}
		spaces = append(spaces, s)
	}

	return spaces, nil
}

func spaceFile(f domain.FileEntry) dao.SpaceFile {
	return dao.SpaceFile{
		FileID:           f.FileID.Hex(),
		FileName:         f.FileName,
		Author:           f.Author,
		ManuallyUploaded: f.ManuallyUploaded,
		PostID:           hexOrNil(f.PostID),
	}
}

func spaceFiles(files []domain.FileEntry) []dao.SpaceFile {
	out := make([]dao.SpaceFile, 0, len(files))
	for _, f := range files {
		out = append(out, spaceFile(f))
	}
	return out
}

func fileEntries(stored []dao.SpaceFile) []domain.FileEntry {
	out := make([]domain.FileEntry, 0, len(stored))
	for _, f := range stored {
		id, err := domain.ParseID(f.FileID)
		if err != nil {
			continue
		}
		out = append(out, domain.FileEntry{
			FileID:           id,
			FileName:         f.FileName,
			Author:           f.Author,
			ManuallyUploaded: f.ManuallyUploaded,
			PostID:           idOrNil(f.PostID),
		})
	}
	return out
}

// diff returns the values of before missing from after and the values of after missing from before.
func diff(before, after []string) (removed, added []string) {
	in := func(list []string, s string) bool {
		for _, v := range list {
			if v == s {
				return true
			}
		}
		return false
	}
	for _, v := range before {
		if !in(after, v) {
			removed = append(removed, v)
		}
	}
	for _, v := range after {
		if !in(before, v) {
			added = append(added, v)
		}
	}
	return removed, added
}
