package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/totegamma/diamond-portal"
	"github.com/totegamma/diamond-portal/internal/domain"
)

// IdentityGateway resolves bearer tokens through an OpenID userinfo endpoint.
type IdentityGateway struct {
	client      *http.Client
	userinfoURL string
}

func NewIdentityGateway(userinfoURL string) *IdentityGateway {
	return &IdentityGateway{
		client:      &http.Client{Timeout: defaultTimeout},
		userinfoURL: userinfoURL,
	}
}

func (g *IdentityGateway) UserInfo(ctx context.Context, token string) (diamond.User, error) {
	ctx, span := tracer.Start(ctx, "Identity.Gateway.UserInfo")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userinfoURL, nil)
	if err != nil {
		return diamond.User{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", domain.UserAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return diamond.User{}, fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("userinfo rejected token: status %d", resp.StatusCode)
		span.RecordError(err)
		return diamond.User{}, err
	}

	var user diamond.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return diamond.User{}, fmt.Errorf("failed to decode userinfo: %w", err)
	}
	if user.Sub == "" {
		return diamond.User{}, fmt.Errorf("userinfo response has no subject")
	}

	return user, nil
}
