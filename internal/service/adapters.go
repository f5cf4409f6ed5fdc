package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/pkg/objectstore"
)

// Object is a stored blob with its metadata.
type Object = objectstore.Object

// ObjectStore keeps uploaded blobs.
type ObjectStore interface {
	Put(ctx context.Context, data []byte, filename, contentType, uploader string) (domain.ID, error)
	PutWithID(ctx context.Context, id domain.ID, data []byte, filename, contentType, uploader string) error
	Get(ctx context.Context, id domain.ID) (Object, error)
	Delete(ctx context.Context, id domain.ID) error
	Exists(ctx context.Context, id domain.ID) (bool, error)
}

type SearchIndex interface {
	OnInsert(ctx context.Context, id string, projection map[string]any, collection string) error
	OnUpdate(ctx context.Context, id, collection string, projection map[string]any) error
	OnDelete(ctx context.Context, id, collection string) error
	Query(ctx context.Context, collection, text string, limit int) ([]string, error)
}

type Mailer interface {
	Send(ctx context.Context, username, email string, subject *string, templateName string, payload map[string]any) error
}

// Transport is the read side of the socket hub.
type Transport interface {
	Online(username string) bool
	SidOf(username string) (string, bool)
	Emit(event string, payload any, sid string) error
}

type TaskRunner interface {
	Submit(name string, fn func(ctx context.Context) error)
}

// Notifier delivers a notification according to the recipient's preferences.
type Notifier interface {
	Send(ctx context.Context, to string, t domain.NotificationType, payload map[string]any) error
}

// Upload is a file received from a client.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

const plansCollection = "plans"

// deleteBlobs removes ids from the object store. Blobs that are already gone are skipped.
func deleteBlobs(ctx context.Context, blobs ObjectStore, ids ...domain.ID) error {
	var errs []error
	for _, id := range ids {
		if err := blobs.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// putBlobs stores uploads and returns their entries. On failure every blob stored so far is removed.
func putBlobs(ctx context.Context, blobs ObjectStore, uploads []Upload, uploader string) ([]domain.ID, error) {
	ids := make([]domain.ID, 0, len(uploads))
	for _, u := range uploads {
		id, err := blobs.Put(ctx, u.Data, u.FileName, u.ContentType, uploader)
		if err != nil {
			discardBlobs(blobs, ids...)
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// discardBlobs removes blobs whose referencing write failed. It runs detached from the request so a
// cancelled request still cleans up.
func discardBlobs(blobs ObjectStore, ids ...domain.ID) {
	if len(ids) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := deleteBlobs(ctx, blobs, ids...); err != nil {
		zap.L().Error("orphan blob cleanup failed", zap.Any("ids", ids), zap.Error(err))
	}
}
