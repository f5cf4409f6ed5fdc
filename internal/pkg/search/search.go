package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

type Config struct {
	BaseURL  string
	Username string
	Password string
}

// Index replicates minimal document projections into the full-text search service.
type Index struct {
	cfg  Config
	http *http.Client
}

func NewIndex(cfg Config, httpClient *http.Client) *Index {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Index{
		cfg:  cfg,
		http: httpClient,
	}
}

func (i *Index) OnInsert(ctx context.Context, id string, projection map[string]any, collection string) error {
	_, err := i.do(ctx, http.MethodPut, i.docURL(collection, "_doc", id), projection)
	return err
}

func (i *Index) OnUpdate(ctx context.Context, id, collection string, projection map[string]any) error {
	_, err := i.do(ctx, http.MethodPost, i.docURL(collection, "_update", id), map[string]any{
		"doc":           projection,
		"doc_as_upsert": true,
	})
	return err
}

// OnDelete succeeds when the document is already gone.
func (i *Index) OnDelete(ctx context.Context, id, collection string) error {
	_, err := i.do(ctx, http.MethodDelete, i.docURL(collection, "_doc", id), nil)
	if err == errNotFound {
		return nil
	}
	return err
}

// Query returns the ids of the documents of collection matching text, best match first.
func (i *Index) Query(ctx context.Context, collection, text string, limit int) ([]string, error) {
	body, err := i.do(ctx, http.MethodPost, fmt.Sprintf("%s/%s/_search", i.cfg.BaseURL, url.PathEscape(collection)), map[string]any{
		"size": limit,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  text,
				"fields": []string{"name^2", "topics", "abstract"},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, hit := range gjson.GetBytes(body, "hits.hits.#._id").Array() {
		ids = append(ids, hit.String())
	}

	return ids, nil
}

var errNotFound = fmt.Errorf("search document not found")

func (i *Index) docURL(collection, op, id string) string {
	return fmt.Sprintf("%s/%s/%s/%s", i.cfg.BaseURL, url.PathEscape(collection), op, url.PathEscape(id))
}

func (i *Index) do(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("json.Marshal -> %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("http.NewRequestWithContext -> %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if i.cfg.Username != "" {
		req.SetBasicAuth(i.cfg.Username, i.cfg.Password)
	}

	resp, err := i.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("i.http.Do -> %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("io.ReadAll -> %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode >= 300 {
		reason := gjson.GetBytes(body, "error.reason").String()
		return nil, fmt.Errorf("search %s %s: status %d %s", method, req.URL.Path, resp.StatusCode, reason)
	}

	return body, nil
}
