// Package auth turns an auth descriptor into the header set an HTTP request
// should carry. It is a pure function over a tagged variant — no I/O except
// for the oauth2_client_credentials variant's token fetch, which callers
// resolve once at workflow-load time via ResolveOAuth2Token before Apply ever runs.
package auth

import (
	"encoding/base64"
	"fmt"
	"net/http"
)

// Type enumerates the supported AuthDescriptor variants.
type Type string

const (
	None                     Type = "none"
	Bearer                   Type = "bearer"
	APIKey                   Type = "api_key"
	Basic                    Type = "basic"
	Custom                   Type = "custom"
	OAuth2ClientCredentials  Type = "oauth2_client_credentials"
)

// Descriptor is the tagged variant described in the data model: exactly the
// fields relevant to Type are populated by the caller.
type Descriptor struct {
	Type Type

	// Bearer
	Token string

	// APIKey
	HeaderName string
	Value      string

	// Basic
	Username string
	Password string

	// Custom
	Headers map[string]string

	// OAuth2ClientCredentials — resolved to a Bearer token by ResolveOAuth2Token
	// before Apply runs; Apply only ever sees it as a plain Token on Bearer.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// Apply merges the effect of desc into base and returns the result. base is
// not mutated in place; the returned header set is a copy.
func Apply(desc Descriptor, base http.Header) (http.Header, error) {
	out := base.Clone()
	if out == nil {
		out = make(http.Header)
	}

	switch desc.Type {
	case "", None:
		return out, nil

	case Bearer:
		if desc.Token == "" {
			return nil, fmt.Errorf("auth: bearer variant requires a non-empty token")
		}
		out.Set("Authorization", "Bearer "+desc.Token)
		return out, nil

	case APIKey:
		if desc.HeaderName == "" {
			return nil, fmt.Errorf("auth: api_key variant requires a header name")
		}
		if desc.Value == "" {
			return nil, fmt.Errorf("auth: api_key variant requires a value")
		}
		out.Set(desc.HeaderName, desc.Value)
		return out, nil

	case Basic:
		if desc.Username == "" || desc.Password == "" {
			return nil, fmt.Errorf("auth: basic variant requires username and password")
		}
		creds := base64.StdEncoding.EncodeToString([]byte(desc.Username + ":" + desc.Password))
		out.Set("Authorization", "Basic "+creds)
		return out, nil

	case Custom:
		if len(desc.Headers) == 0 {
			return nil, fmt.Errorf("auth: custom variant requires at least one header")
		}
		for k, v := range desc.Headers {
			out.Set(k, v)
		}
		return out, nil

	case OAuth2ClientCredentials:
		if desc.Token == "" {
			return nil, fmt.Errorf("auth: oauth2_client_credentials requires a resolved token (call ResolveOAuth2Token first)")
		}
		out.Set("Authorization", "Bearer "+desc.Token)
		return out, nil

	default:
		return nil, fmt.Errorf("auth: unknown descriptor type %q", desc.Type)
	}
}
