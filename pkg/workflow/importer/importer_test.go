package importer

import "testing"

const sampleOpenAPI = `{
  "openapi": "3.0.0",
  "info": {"title": "sample", "version": "1.0.0"},
  "paths": {
    "/users": {
      "get": {"operationId": "listUsers"},
      "post": {"operationId": "createUser", "requestBody": {"content": {}}}
    },
    "/users/{id}": {
      "get": {"operationId": "getUser"}
    }
  }
}`

func TestOpenAPIImportProducesOneStepPerOperation(t *testing.T) {
	w, err := OpenAPI([]byte(sampleOpenAPI), "imported", "https://api.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(w.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d: %+v", len(w.Steps), w.Steps)
	}
	for i := 1; i < len(w.Steps); i++ {
		if len(w.Steps[i].DependsOn) != 1 || w.Steps[i].DependsOn[0] != w.Steps[i-1].Name {
			t.Errorf("step %d should chain onto step %d", i, i-1)
		}
	}
}

func TestSanitizeStepName(t *testing.T) {
	cases := map[string]string{
		"listUsers":       "listUsers",
		"get_/users/{id}": "get__users__id",
		"":                "step",
	}
	for in, want := range cases {
		if got := sanitizeStepName(in); got != want {
			t.Errorf("sanitizeStepName(%q) = %q, want %q", in, got, want)
		}
	}
}

const samplePostmanCollection = `{
  "info": {"name": "sample", "schema": "https://schema.getpostman.com/json/collection/v2.1.0/collection.json"},
  "item": [
    {
      "name": "list users",
      "request": {"method": "GET", "url": {"raw": "https://api.example.com/users"}}
    },
    {
      "name": "create user",
      "request": {
        "method": "POST",
        "url": {"raw": "https://api.example.com/users"},
        "body": {"mode": "raw", "raw": "{}"}
      }
    }
  ]
}`

func TestPostmanImportChainsRequestsSequentially(t *testing.T) {
	w, err := PostmanCollection([]byte(samplePostmanCollection), "imported", "https://api.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(w.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(w.Steps))
	}
	if w.Steps[0].Endpoint != "/users" {
		t.Errorf("expected path /users, got %q", w.Steps[0].Endpoint)
	}
	if len(w.Steps[1].DependsOn) != 1 || w.Steps[1].DependsOn[0] != w.Steps[0].Name {
		t.Error("expected second step to depend on first")
	}
}
