package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecollab/backend/internal/domain"
)

func newKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return key, base64.StdEncoding.EncodeToString(der)
}

func sign(t *testing.T, key *rsa.PrivateKey, c jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, c).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestVerifier(t *testing.T) {
	key, bare := newKey(t)
	v, err := NewVerifier(bare)
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		token := sign(t, key, jwt.MapClaims{
			"preferred_username": "alice",
			"sub":                "f1d2",
			"email":              "alice@example.org",
			"orcid":              "0000-0001",
			"exp":                time.Now().Add(time.Hour).Unix(),
		})

		p, err := v.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "alice", p.Username)
		assert.Equal(t, "f1d2", p.ID)
		assert.Equal(t, "alice@example.org", p.Email)
		require.NotNil(t, p.Orcid)
		assert.Equal(t, "0000-0001", *p.Orcid)
	})

	t.Run("expired token", func(t *testing.T) {
		token := sign(t, key, jwt.MapClaims{
			"preferred_username": "alice",
			"exp":                time.Now().Add(-time.Minute).Unix(),
		})

		_, err := v.Verify(token)
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	})

	t.Run("foreign key", func(t *testing.T) {
		other, _ := newKey(t)
		token := sign(t, other, jwt.MapClaims{
			"preferred_username": "alice",
			"exp":                time.Now().Add(time.Hour).Unix(),
		})

		_, err := v.Verify(token)
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	})

	t.Run("hmac token", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"preferred_username": "alice",
			"exp":                time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = v.Verify(token)
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	})
}

func TestNewVerifier_AcceptsPEM(t *testing.T) {
	_, bare := newKey(t)
	der, err := base64.StdEncoding.DecodeString(bare)
	require.NoError(t, err)
	block := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	_, err = NewVerifier(string(block))
	assert.NoError(t, err)

	_, err = NewVerifier("not a key")
	assert.ErrorIs(t, err, ErrInvalidPublicKey)
}

type mapCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

func TestAdminClient(t *testing.T) {
	var tokenCalls, userCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/realms/master/protocol/openid-connect/token":
			tokenCalls.Add(1)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "admin-cli", r.PostForm.Get("client_id"))
			assert.Equal(t, "root", r.PostForm.Get("username"))
			_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":300}`))
		case "/admin/realms/ve/users":
			userCalls.Add(1)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			if r.URL.Query().Get("username") == "ghost" {
				_, _ = w.Write([]byte(`[]`))
				return
			}
			_, _ = w.Write([]byte(`[{"id":"1","username":"alice","email":"alice@example.org","firstName":"Alice"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cache := &mapCache{m: map[string][]byte{}}
	c := NewAdminClient(AdminConfig{BaseURL: srv.URL + "/", Realm: "ve", Username: "root", Password: "pw"}, srv.Client(), cache)
	ctx := context.Background()

	u, err := c.UserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, User{ID: "1", Username: "alice", Email: "alice@example.org", FirstName: "Alice"}, u)

	_, err = c.UserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1, userCalls.Load())

	users, err := c.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.EqualValues(t, 1, tokenCalls.Load())

	_, err = c.UserByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = c.UserByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
