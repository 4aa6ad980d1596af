package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/diamond-portal"
)

var tracer = otel.Tracer("service")

// IdentityResolver exchanges an access token for the user it was issued to.
type IdentityResolver interface {
	UserInfo(ctx context.Context, token string) (diamond.User, error)
}

type AuthService struct {
	identity IdentityResolver
	cache    *cache.Cache
}

func NewAuthService(identity IdentityResolver) *AuthService {
	return &AuthService{
		identity: identity,
		cache:    cache.New(5*time.Minute, 10*time.Minute),
	}
}

type AuthResult struct {
	Subject string
}

// AuthToken resolves a bearer token to its subject. Successful lookups are
// cached for a few minutes, keyed by a digest of the token.
func (s *AuthService) AuthToken(ctx context.Context, token string) (*AuthResult, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.AuthToken")
	defer span.End()

	if token == "" {
		err := fmt.Errorf("empty token")
		span.RecordError(err)
		return nil, err
	}

	digest := sha256.Sum256([]byte(token))
	cacheKey := "token:" + hex.EncodeToString(digest[:])

	if x, found := s.cache.Get(cacheKey); found {
		return x.(*AuthResult), nil
	}

	user, err := s.identity.UserInfo(ctx, token)
	if err != nil {
		span.RecordError(errors.Wrap(err, "userinfo lookup failed"))
		return nil, err
	}

	result := &AuthResult{Subject: user.Sub}
	s.cache.Set(cacheKey, result, cache.DefaultExpiration)

	return result, nil
}
