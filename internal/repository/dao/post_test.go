package dao

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecollab/backend/internal/domain"
)

func TestPostDAO_RemoveComment(t *testing.T) {
	const update = `(?s)UPDATE "posts" SET "comments"=\(SELECT COALESCE\(jsonb_agg\(c ORDER BY ord\).*` +
		`WITH ORDINALITY AS t\(c, ord\).*WHERE id = \$2 AND comments @> jsonb_build_array`

	t.Run("keeps the remaining comments in order", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec(update).WithArgs("c1", "p1", "c1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, NewPostDAO(db).RemoveComment(context.Background(), "p1", "c1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown comment", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec(update).WithArgs("c9", "p1", "c9").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := NewPostDAO(db).RemoveComment(context.Background(), "p1", "c9")
		assert.ErrorIs(t, err, ErrCommentNotFound)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
