package secretsource

import (
	"os"
	"testing"
)

func TestEnvGet(t *testing.T) {
	os.Setenv("GIMMEFLOW_TEST_KEY", "value123")
	defer os.Unsetenv("GIMMEFLOW_TEST_KEY")

	v, ok := Env{}.Get("GIMMEFLOW_TEST_KEY")
	if !ok || v != "value123" {
		t.Errorf("got (%q, %v), want (\"value123\", true)", v, ok)
	}

	if _, ok := Env{}.Get("GIMMEFLOW_TEST_KEY_MISSING"); ok {
		t.Error("expected missing key to report not found")
	}
}

func TestStaticGet(t *testing.T) {
	s := Static{"API_KEY": "abc"}
	if v, ok := s.Get("API_KEY"); !ok || v != "abc" {
		t.Errorf("got (%q, %v), want (\"abc\", true)", v, ok)
	}
	if _, ok := s.Get("NOPE"); ok {
		t.Error("expected missing key to report not found")
	}
}

func TestChainReturnsFirstHit(t *testing.T) {
	c := Chain{
		Static{},
		Static{"TOKEN": "second"},
		Static{"TOKEN": "third"},
	}
	v, ok := c.Get("TOKEN")
	if !ok || v != "second" {
		t.Errorf("got (%q, %v), want (\"second\", true)", v, ok)
	}
}

func TestChainMissEverywhere(t *testing.T) {
	c := Chain{Static{}, Static{}}
	if _, ok := c.Get("MISSING"); ok {
		t.Error("expected chain miss when no source has the key")
	}
}
