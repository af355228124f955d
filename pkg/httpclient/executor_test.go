package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blackcoderx/gimmeflow/pkg/retry"
)

func newTestExecutor(t *testing.T, baseURL string) *Executor {
	t.Helper()
	pool := NewPool(DefaultPoolLimits())
	return NewExecutor(baseURL, map[string]string{}, pool, nil)
}

func TestExecuteJSONRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		w.Write([]byte(`{"ok":true,"n":1}`))
	}))
	defer srv.Close()

	e := newTestExecutor(t, srv.URL)
	result, err := e.Execute(context.Background(), Request{
		Endpoint: "/echo",
		Method:   "POST",
		Payload:  map[string]interface{}{"a": 1},
		Timeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	m, ok := result.Value.(map[string]interface{})
	if !ok {
		t.Fatalf("expected map, got %#v", result.Value)
	}
	if m["ok"] != true || m["n"] != float64(1) {
		t.Errorf("unexpected body: %#v", m)
	}
}

func TestExecute401IsAuthenticationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte("nope"))
	}))
	defer srv.Close()

	e := newTestExecutor(t, srv.URL)
	_, err := e.Execute(context.Background(), Request{Endpoint: "/secure", Method: "GET", Timeout: 5 * time.Second})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*AuthenticationError); !ok {
		t.Errorf("expected *AuthenticationError, got %T: %v", err, err)
	}
}

func TestExecuteRetriesOn503ThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(503)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	e := newTestExecutor(t, srv.URL)
	result, err := e.Execute(context.Background(), Request{
		Endpoint: "/flaky",
		Method:   "GET",
		Timeout:  5 * time.Second,
		Retry: &retry.Policy{
			Limit:   3,
			Delay:   10 * time.Millisecond,
			Backoff: retry.Exponential,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.RetryCount != 2 {
		t.Errorf("expected 2 retries, got %d", result.RetryCount)
	}
}

func TestExecuteExtractFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"user":{"id":"u1"}}}`))
	}))
	defer srv.Close()

	e := newTestExecutor(t, srv.URL)
	result, err := e.Execute(context.Background(), Request{
		Endpoint:      "/user",
		Method:        "GET",
		Timeout:       5 * time.Second,
		ExtractFields: map[string]string{"user_id": "data.user.id"},
	})
	if err != nil {
		t.Fatal(err)
	}
	m := result.Value.(map[string]interface{})
	if m["user_id"] != "u1" {
		t.Errorf("got %#v", m)
	}
}
