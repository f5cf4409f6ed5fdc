package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vecollab/backend/internal/api/handler/v1/response"
	"github.com/vecollab/backend/internal/domain"
)

const principalKey = "principal"

var errMissingBearer = fmt.Errorf("missing bearer token: %w", domain.ErrUnauthenticated)

type TokenVerifier interface {
	Verify(token string) (domain.Principal, error)
}

type ProfileEnsurer interface {
	EnsureProfile(ctx context.Context, p domain.Principal) (domain.Profile, error)
}

type Authenticator struct {
	verifier TokenVerifier
	profiles ProfileEnsurer
}

func NewAuthenticator(verifier TokenVerifier, profiles ProfileEnsurer) *Authenticator {
	return &Authenticator{
		verifier: verifier,
		profiles: profiles,
	}
}

// VerifyJWT rejects requests without a valid bearer token. The principal's profile is created on
// first sight and the principal is stored in the context.
func (a *Authenticator) VerifyJWT() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, ok := bearer(ctx.GetHeader("Authorization"))
		if !ok {
			response.RenderErr(ctx, response.ErrUnauthenticated(errMissingBearer))
			return
		}

		p, err := a.verifier.Verify(token)
		if err != nil {
			if !errors.Is(err, domain.ErrUnauthenticated) {
				err = fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
			}
			response.RenderErr(ctx, response.ErrUnauthenticated(err))
			return
		}

		if _, err := a.profiles.EnsureProfile(ctx.Request.Context(), p); err != nil {
			response.Render(ctx, "middleware.VerifyJWT -> a.profiles.EnsureProfile", err)
			return
		}

		ctx.Set(principalKey, p)
		ctx.Next()
	}
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)

	return token, token != ""
}

// Principal returns the principal stored by VerifyJWT.
func Principal(ctx *gin.Context) (domain.Principal, bool) {
	v, ok := ctx.Get(principalKey)
	if !ok {
		return domain.Principal{}, false
	}
	p, ok := v.(domain.Principal)

	return p, ok && p.Authenticated()
}

// SetPrincipal stores p as if VerifyJWT had authenticated it.
func SetPrincipal(ctx *gin.Context, p domain.Principal) {
	ctx.Set(principalKey, p)
}
