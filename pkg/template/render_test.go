package template

import (
	"reflect"
	"testing"
)

func ctxFixture() map[string]interface{} {
	return map[string]interface{}{
		"steps": map[string]interface{}{
			"create_user": map[string]interface{}{
				"body": map[string]interface{}{
					"id":   "usr_123",
					"tags": []interface{}{"a", "b"},
				},
				"status": float64(201),
			},
		},
		"vars": map[string]interface{}{
			"env": "staging",
		},
	}
}

func TestRenderWholePlaceholderKeepsType(t *testing.T) {
	v, err := Render("{{ steps.create_user.status }}", ctxFixture())
	if err != nil {
		t.Fatal(err)
	}
	if v != float64(201) {
		t.Errorf("expected float64(201), got %#v", v)
	}
}

func TestRenderEmbeddedPlaceholderStringifies(t *testing.T) {
	v, err := Render("user is {{ steps.create_user.body.id }} in {{ vars.env }}", ctxFixture())
	if err != nil {
		t.Fatal(err)
	}
	if v != "user is usr_123 in staging" {
		t.Errorf("got %q", v)
	}
}

func TestRenderListIndex(t *testing.T) {
	v, err := Render("{{ steps.create_user.body.tags[1] }}", ctxFixture())
	if err != nil {
		t.Fatal(err)
	}
	if v != "b" {
		t.Errorf("got %#v", v)
	}
}

func TestRenderTojsonFilter(t *testing.T) {
	v, err := Render("{{ steps.create_user.body | tojson }}", ctxFixture())
	if err != nil {
		t.Fatal(err)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		t.Errorf("expected non-empty JSON string, got %#v", v)
	}
}

func TestRenderMissingPathErrors(t *testing.T) {
	_, err := Render("{{ steps.nope.body }}", ctxFixture())
	if err == nil {
		t.Error("expected error for missing path")
	}
}

func TestRenderListSlice(t *testing.T) {
	v, err := Render("{{ steps.create_user.body.tags[0:1] }}", ctxFixture())
	if err != nil {
		t.Fatal(err)
	}
	want := []interface{}{"a"}
	if !reflect.DeepEqual(v, want) {
		t.Errorf("got %#v, want %#v", v, want)
	}
}

func TestRenderListSliceOpenBounds(t *testing.T) {
	v, err := Render("{{ steps.create_user.body.tags[1:] }}", ctxFixture())
	if err != nil {
		t.Fatal(err)
	}
	want := []interface{}{"b"}
	if !reflect.DeepEqual(v, want) {
		t.Errorf("got %#v, want %#v", v, want)
	}
}

func TestRenderNestedMapAndSlice(t *testing.T) {
	payload := map[string]interface{}{
		"user_id": "{{ steps.create_user.body.id }}",
		"tags":    []interface{}{"{{ steps.create_user.body.tags[0] }}", "literal"},
	}
	v, err := Render(payload, ctxFixture())
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]interface{}{
		"user_id": "usr_123",
		"tags":    []interface{}{"a", "literal"},
	}
	if !reflect.DeepEqual(v, want) {
		t.Errorf("got %#v, want %#v", v, want)
	}
}
