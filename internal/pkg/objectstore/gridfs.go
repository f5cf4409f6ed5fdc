package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vecollab/backend/internal/domain"
)

var ErrObjectNotFound = fmt.Errorf("object %w", domain.ErrNotFound)

// Object is a stored blob with its metadata.
type Object struct {
	ID          domain.ID
	FileName    string
	ContentType string
	Uploader    string
	Length      int64
	UploadDate  time.Time
	Data        []byte
}

// GridFS keeps blobs in a mongo GridFS bucket.
type GridFS struct {
	db      *mongo.Database
	name    string
	timeout time.Duration
}

func NewGridFS(db *mongo.Database) *GridFS {
	return &GridFS{
		db:      db,
		name:    options.DefaultName,
		timeout: 30 * time.Second,
	}
}

// bucket returns a bucket bound to the deadline of ctx. Buckets are cheap and keep their
// deadlines as state, so every operation gets its own.
func (s *GridFS) bucket(ctx context.Context) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(s.name))
	if err != nil {
		return nil, fmt.Errorf("gridfs.NewBucket -> %w", err)
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(s.timeout)
	}
	if err := b.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("b.SetReadDeadline -> %w", err)
	}
	if err := b.SetWriteDeadline(deadline); err != nil {
		return nil, fmt.Errorf("b.SetWriteDeadline -> %w", err)
	}

	return b, nil
}

// Put stores data under a fresh id.
func (s *GridFS) Put(ctx context.Context, data []byte, filename, contentType, uploader string) (domain.ID, error) {
	id := domain.NewID()
	if err := s.PutWithID(ctx, id, data, filename, contentType, uploader); err != nil {
		return domain.NilID, err
	}

	return id, nil
}

// PutWithID stores data under id, used for the reserved picture ids.
func (s *GridFS) PutWithID(ctx context.Context, id domain.ID, data []byte, filename, contentType, uploader string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := s.bucket(ctx)
	if err != nil {
		return err
	}

	opts := options.GridFSUpload().SetMetadata(bson.M{
		"uploader":     uploader,
		"content_type": contentType,
	})
	if err := b.UploadFromStreamWithID(id, filename, bytes.NewReader(data), opts); err != nil {
		return fmt.Errorf("b.UploadFromStreamWithID -> %w", err)
	}

	return nil
}

func (s *GridFS) Get(ctx context.Context, id domain.ID) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	b, err := s.bucket(ctx)
	if err != nil {
		return Object{}, err
	}

	stream, err := b.OpenDownloadStream(id)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return Object{}, ErrObjectNotFound
		}
		return Object{}, fmt.Errorf("b.OpenDownloadStream -> %w", err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return Object{}, fmt.Errorf("io.ReadAll -> %w", err)
	}

	file := stream.GetFile()
	obj := Object{
		ID:         id,
		FileName:   file.Name,
		Length:     file.Length,
		UploadDate: file.UploadDate,
		Data:       data,
	}
	if file.Metadata != nil {
		if v, err := file.Metadata.LookupErr("uploader"); err == nil {
			obj.Uploader, _ = v.StringValueOK()
		}
		if v, err := file.Metadata.LookupErr("content_type"); err == nil {
			obj.ContentType, _ = v.StringValueOK()
		}
	}

	return obj, nil
}

// Delete removes id. Deleting a missing blob returns ErrObjectNotFound.
func (s *GridFS) Delete(ctx context.Context, id domain.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := s.bucket(ctx)
	if err != nil {
		return err
	}

	if err := b.Delete(id); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("b.Delete -> %w", err)
	}

	return nil
}

func (s *GridFS) Exists(ctx context.Context, id domain.ID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b, err := s.bucket(ctx)
	if err != nil {
		return false, err
	}

	cursor, err := b.Find(bson.M{"_id": id}, options.GridFSFind().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("b.Find -> %w", err)
	}
	defer cursor.Close(ctx)

	return cursor.Next(ctx), cursor.Err()
}
