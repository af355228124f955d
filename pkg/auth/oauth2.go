package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// oauth2Cache keeps one token per (token_url, client_id) so a workflow with
// several steps sharing the same descriptor doesn't re-authenticate per step.
type oauth2Cache struct {
	mu     sync.Mutex
	tokens map[string]cachedToken
}

type cachedToken struct {
	value  string
	expiry time.Time
}

var defaultOAuth2Cache = &oauth2Cache{tokens: make(map[string]cachedToken)}

// ResolveOAuth2Token fetches (or returns a cached, unexpired) access token for
// desc and stamps it onto desc.Token so Apply can treat it as a plain bearer
// descriptor. Only the client_credentials grant is supported; it is the only
// grant that needs no end-user interaction, which is the scenario a workflow
// step can run unattended.
func ResolveOAuth2Token(ctx context.Context, desc Descriptor) (Descriptor, error) {
	if desc.Type != OAuth2ClientCredentials {
		return desc, fmt.Errorf("auth: ResolveOAuth2Token called on non-oauth2 descriptor %q", desc.Type)
	}
	if desc.TokenURL == "" || desc.ClientID == "" || desc.ClientSecret == "" {
		return desc, fmt.Errorf("auth: oauth2_client_credentials requires token_url, client_id, client_secret")
	}

	key := desc.TokenURL + "|" + desc.ClientID

	defaultOAuth2Cache.mu.Lock()
	if cached, ok := defaultOAuth2Cache.tokens[key]; ok && time.Now().Before(cached.expiry) {
		defaultOAuth2Cache.mu.Unlock()
		desc.Token = cached.value
		return desc, nil
	}
	defaultOAuth2Cache.mu.Unlock()

	cfg := clientcredentials.Config{
		ClientID:     desc.ClientID,
		ClientSecret: desc.ClientSecret,
		TokenURL:     desc.TokenURL,
		Scopes:       desc.Scopes,
	}

	token, err := cfg.Token(ctx)
	if err != nil {
		return desc, fmt.Errorf("auth: oauth2 client_credentials fetch failed: %w", err)
	}

	expiry := token.Expiry
	if expiry.IsZero() {
		expiry = time.Now().Add(5 * time.Minute)
	}

	defaultOAuth2Cache.mu.Lock()
	defaultOAuth2Cache.tokens[key] = cachedToken{value: token.AccessToken, expiry: expiry}
	defaultOAuth2Cache.mu.Unlock()

	desc.Token = token.AccessToken
	return desc, nil
}
