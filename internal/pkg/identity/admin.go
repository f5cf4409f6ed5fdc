package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/vecollab/backend/internal/domain"
)

const userCacheTTL = 10 * time.Minute

// User is the identity-provider view of an account.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type AdminConfig struct {
	BaseURL  string
	Realm    string
	Username string
	Password string
}

// AdminClient talks to the identity provider admin API with a master-realm password grant.
type AdminClient struct {
	cfg   AdminConfig
	http  *http.Client
	cache Cache

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewAdminClient(cfg AdminConfig, httpClient *http.Client, cache Cache) *AdminClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cache == nil {
		cache = NopCache{}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &AdminClient{
		cfg:   cfg,
		http:  httpClient,
		cache: cache,
	}
}

func (c *AdminClient) ListUsers(ctx context.Context) ([]User, error) {
	body, err := c.get(ctx, "/users", url.Values{"max": {"10000"}})
	if err != nil {
		return nil, err
	}

	return parseUsers(body), nil
}

func (c *AdminClient) UserByUsername(ctx context.Context, username string) (User, error) {
	key := "username:" + username
	if u, ok := c.cached(ctx, key); ok {
		return u, nil
	}

	body, err := c.get(ctx, "/users", url.Values{"username": {username}, "exact": {"true"}})
	if err != nil {
		return User{}, err
	}
	users := parseUsers(body)
	if len(users) == 0 {
		return User{}, fmt.Errorf("identity user %s: %w", username, domain.ErrNotFound)
	}
	c.store(ctx, key, users[0])

	return users[0], nil
}

func (c *AdminClient) UserByID(ctx context.Context, id string) (User, error) {
	key := "id:" + id
	if u, ok := c.cached(ctx, key); ok {
		return u, nil
	}

	body, err := c.get(ctx, "/users/"+url.PathEscape(id), nil)
	if err != nil {
		return User{}, err
	}
	u := parseUser(gjson.ParseBytes(body))
	c.store(ctx, key, u)

	return u, nil
}

func (c *AdminClient) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/admin/realms/%s%s", c.cfg.BaseURL, url.PathEscape(c.cfg.Realm), path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("http.NewRequestWithContext -> %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	return c.do(req)
}

func (c *AdminClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expires) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type": {"password"},
		"client_id":  {"admin-cli"},
		"username":   {c.cfg.Username},
		"password":   {c.cfg.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/realms/master/protocol/openid-connect/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("http.NewRequestWithContext -> %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req)
	if err != nil {
		return "", err
	}
	res := gjson.ParseBytes(body)
	token := res.Get("access_token").String()
	if token == "" {
		return "", fmt.Errorf("identity token response without access_token")
	}
	// refresh a little before the provider expires it
	ttl := time.Duration(res.Get("expires_in").Int())*time.Second - 10*time.Second
	c.token, c.expires = token, time.Now().Add(ttl)

	return c.token, nil
}

func (c *AdminClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("c.http.Do -> %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("io.ReadAll -> %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("identity %s: %w", req.URL.Path, domain.ErrNotFound)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("identity %s: unexpected status %d", req.URL.Path, resp.StatusCode)
	}

	return body, nil
}

func (c *AdminClient) cached(ctx context.Context, key string) (User, bool) {
	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		zap.L().Warn("identity cache get failed", zap.String("key", key), zap.Error(err))
		return User{}, false
	}
	if !ok {
		return User{}, false
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return User{}, false
	}

	return u, true
}

func (c *AdminClient) store(ctx context.Context, key string, u User) {
	raw, err := json.Marshal(u)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw, userCacheTTL); err != nil {
		zap.L().Warn("identity cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func parseUsers(body []byte) []User {
	var users []User
	gjson.ParseBytes(body).ForEach(func(_, v gjson.Result) bool {
		users = append(users, parseUser(v))
		return true
	})
	return users
}

func parseUser(v gjson.Result) User {
	return User{
		ID:        v.Get("id").String(),
		Username:  v.Get("username").String(),
		Email:     v.Get("email").String(),
		FirstName: v.Get("firstName").String(),
		LastName:  v.Get("lastName").String(),
	}
}
