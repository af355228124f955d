package retry

import (
	"testing"
	"time"
)

func TestDelayExponential(t *testing.T) {
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, w := range want {
		got := Delay(time.Second, Exponential, i+1)
		if got != w {
			t.Errorf("attempt %d: got %v, want %v", i+1, got, w)
		}
	}
}

func TestDelayLinear(t *testing.T) {
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 4 * time.Second}
	for i, w := range want {
		got := Delay(time.Second, Linear, i+1)
		if got != w {
			t.Errorf("attempt %d: got %v, want %v", i+1, got, w)
		}
	}
}

func TestDelayConstant(t *testing.T) {
	for attempt := 1; attempt <= 4; attempt++ {
		if got := Delay(time.Second, Constant, attempt); got != time.Second {
			t.Errorf("attempt %d: got %v, want 1s", attempt, got)
		}
	}
}

func TestDelayAttemptZeroIsUndelayed(t *testing.T) {
	if got := Delay(time.Second, Exponential, 0); got != 0 {
		t.Errorf("attempt 0 should never be delayed, got %v", got)
	}
}

func TestParseRetryDelayAcceptsDecimal(t *testing.T) {
	d, err := ParseRetryDelay("1.5s")
	if err != nil {
		t.Fatal(err)
	}
	if d != 1500*time.Millisecond {
		t.Errorf("got %v", d)
	}
}

func TestParseIntegerDurationRejectsDecimal(t *testing.T) {
	if _, err := ParseIntegerDuration("1.5s"); err == nil {
		t.Error("poll/timeout durations must reject decimals")
	}
}

func TestParseDurationBoundaries(t *testing.T) {
	cases := map[string]time.Duration{
		"5s": 5 * time.Second,
		"1m": time.Minute,
		"2h": 2 * time.Hour,
	}
	for lit, want := range cases {
		got, err := ParseIntegerDuration(lit)
		if err != nil {
			t.Fatalf("%q: %v", lit, err)
		}
		if got != want {
			t.Errorf("%q: got %v, want %v", lit, got, want)
		}
	}

	rejects := []string{"5sec", "5", "5ms"}
	for _, lit := range rejects {
		if _, err := ParseIntegerDuration(lit); err == nil {
			t.Errorf("%q should be rejected", lit)
		}
	}
}

func TestClassifyStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		want   Classification
	}{
		{401, Authentication},
		{404, NonRetriable},
		{500, Retriable},
		{503, Retriable},
	}
	for _, c := range cases {
		if got := Classify(nil, c.status); got != c.want {
			t.Errorf("status %d: got %v, want %v", c.status, got, c.want)
		}
	}
}
