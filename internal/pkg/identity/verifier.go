package identity

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vecollab/backend/internal/domain"
)

var ErrInvalidPublicKey = errors.New("invalid identity provider public key")

type claims struct {
	PreferredUsername string  `json:"preferred_username"`
	Email             string  `json:"email"`
	Orcid             *string `json:"orcid,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks bearer tokens issued by the identity provider.
type Verifier struct {
	key *rsa.PublicKey
}

// NewVerifier accepts the realm public key either as PEM or as the bare base64 body the identity
// provider shows in its realm settings.
func NewVerifier(publicKey string) (*Verifier, error) {
	pem := strings.TrimSpace(publicKey)
	if !strings.HasPrefix(pem, "-----BEGIN") {
		pem = "-----BEGIN PUBLIC KEY-----\n" + pem + "\n-----END PUBLIC KEY-----"
	}

	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}

	return &Verifier{key: key}, nil
}

// Verify resolves token to a principal. Any invalid, expired or foreign token yields
// domain.ErrUnauthenticated.
func (v *Verifier) Verify(token string) (domain.Principal, error) {
	c := &claims{}
	parsed, err := jwt.ParseWithClaims(token, c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.key, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return domain.Principal{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if c.PreferredUsername == "" {
		return domain.Principal{}, fmt.Errorf("%w: token without preferred_username", domain.ErrUnauthenticated)
	}

	return domain.Principal{
		Username: c.PreferredUsername,
		ID:       c.Subject,
		Email:    c.Email,
		Orcid:    c.Orcid,
	}, nil
}
