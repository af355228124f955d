package auth

import (
	"net/http"
	"testing"
)

func TestApplyBearer(t *testing.T) {
	h, err := Apply(Descriptor{Type: Bearer, Token: "abc123"}, http.Header{})
	if err != nil {
		t.Fatal(err)
	}
	if got := h.Get("Authorization"); got != "Bearer abc123" {
		t.Errorf("got %q", got)
	}
}

func TestApplyBearerMissingToken(t *testing.T) {
	if _, err := Apply(Descriptor{Type: Bearer}, http.Header{}); err == nil {
		t.Error("expected error for empty token")
	}
}

func TestApplyAPIKey(t *testing.T) {
	h, err := Apply(Descriptor{Type: APIKey, HeaderName: "X-Api-Key", Value: "Token zz"}, http.Header{})
	if err != nil {
		t.Fatal(err)
	}
	if got := h.Get("X-Api-Key"); got != "Token zz" {
		t.Errorf("got %q", got)
	}
}

func TestApplyBasic(t *testing.T) {
	h, err := Apply(Descriptor{Type: Basic, Username: "admin", Password: "secret123"}, http.Header{})
	if err != nil {
		t.Fatal(err)
	}
	if got := h.Get("Authorization"); got != "Basic YWRtaW46c2VjcmV0MTIz" {
		t.Errorf("got %q", got)
	}
}

func TestApplyCustomMergeWins(t *testing.T) {
	base := http.Header{}
	base.Set("X-Trace", "base-value")
	h, err := Apply(Descriptor{Type: Custom, Headers: map[string]string{"X-Trace": "custom-value"}}, base)
	if err != nil {
		t.Fatal(err)
	}
	if got := h.Get("X-Trace"); got != "custom-value" {
		t.Errorf("custom should win over base, got %q", got)
	}
}

func TestApplyNoneIsIdentity(t *testing.T) {
	base := http.Header{}
	base.Set("X-Existing", "v")
	h, err := Apply(Descriptor{Type: None}, base)
	if err != nil {
		t.Fatal(err)
	}
	if got := h.Get("X-Existing"); got != "v" {
		t.Errorf("got %q", got)
	}
}

func TestApplyUnknownVariant(t *testing.T) {
	if _, err := Apply(Descriptor{Type: "bogus"}, http.Header{}); err == nil {
		t.Error("expected error for unknown variant")
	}
}
