package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	body   map[string]any
}

func newServer(t *testing.T, status int, reply string, calls *[]recorded) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "elastic", user)
		assert.Equal(t, "pw", pass)

		rec := recorded{method: r.Method, path: r.URL.Path}
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			require.NoError(t, json.Unmarshal(raw, &rec.body))
		}
		*calls = append(*calls, rec)

		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIndex_Replication(t *testing.T) {
	var calls []recorded
	srv := newServer(t, http.StatusOK, `{}`, &calls)
	idx := NewIndex(Config{BaseURL: srv.URL, Username: "elastic", Password: "pw"}, srv.Client())
	ctx := context.Background()

	require.NoError(t, idx.OnInsert(ctx, "p1", map[string]any{"name": "P1"}, "plans"))
	require.NoError(t, idx.OnUpdate(ctx, "p1", "plans", map[string]any{"name": "P2"}))
	require.NoError(t, idx.OnDelete(ctx, "p1", "plans"))

	require.Len(t, calls, 3)
	assert.Equal(t, recorded{method: http.MethodPut, path: "/plans/_doc/p1", body: map[string]any{"name": "P1"}}, calls[0])
	assert.Equal(t, "/plans/_update/p1", calls[1].path)
	assert.Equal(t, map[string]any{"name": "P2"}, calls[1].body["doc"])
	assert.Equal(t, true, calls[1].body["doc_as_upsert"])
	assert.Equal(t, http.MethodDelete, calls[2].method)
}

func TestIndex_DeleteMissingIsNoop(t *testing.T) {
	var calls []recorded
	srv := newServer(t, http.StatusNotFound, `{"result":"not_found"}`, &calls)
	idx := NewIndex(Config{BaseURL: srv.URL, Username: "elastic", Password: "pw"}, srv.Client())

	assert.NoError(t, idx.OnDelete(context.Background(), "p1", "plans"))
}

func TestIndex_Query(t *testing.T) {
	var calls []recorded
	srv := newServer(t, http.StatusOK, `{"hits":{"hits":[{"_id":"a"},{"_id":"b"}]}}`, &calls)
	idx := NewIndex(Config{BaseURL: srv.URL + "/", Username: "elastic", Password: "pw"}, srv.Client())

	ids, err := idx.Query(context.Background(), "plans", "climate", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Equal(t, "/plans/_search", calls[0].path)
}

func TestIndex_ErrorStatus(t *testing.T) {
	var calls []recorded
	srv := newServer(t, http.StatusBadRequest, `{"error":{"reason":"mapper_parsing_exception"}}`, &calls)
	idx := NewIndex(Config{BaseURL: srv.URL, Username: "elastic", Password: "pw"}, srv.Client())

	err := idx.OnInsert(context.Background(), "p1", map[string]any{}, "plans")
	assert.ErrorContains(t, err, "mapper_parsing_exception")
}
