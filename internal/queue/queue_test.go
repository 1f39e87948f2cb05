package queue

import (
	"testing"
	"time"
)

func TestBackoffGrowsToCap(t *testing.T) {
	base := 5 * time.Second
	cap := 30 * time.Second

	want := []time.Duration{
		5 * time.Second,
		10 * time.Second,
		20 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}

	var last time.Duration
	for i, expected := range want {
		got := Backoff(i+1, base, cap)
		if got != expected {
			t.Fatalf("Backoff(%d) = %s, want %s", i+1, got, expected)
		}
		if got < last {
			t.Fatalf("backoff regressed at attempt %d: %s < %s", i+1, got, last)
		}
		last = got
	}
}

func TestBackoffClampsBadAttempt(t *testing.T) {
	if got := Backoff(0, 5*time.Second, 30*time.Second); got != 5*time.Second {
		t.Fatalf("Backoff(0) = %s, want base", got)
	}
}

func TestAttemptFromHeaders(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]interface{}
		want    int
	}{
		{"missing", nil, 1},
		{"int32", map[string]interface{}{attemptHeader: int32(2)}, 2},
		{"int64", map[string]interface{}{attemptHeader: int64(3)}, 3},
		{"garbage", map[string]interface{}{attemptHeader: "two"}, 1},
	}

	for _, tc := range cases {
		if got := attemptFrom(tc.headers); got != tc.want {
			t.Fatalf("%s: attemptFrom = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestMessageRoundTrip(t *testing.T) {
	msg := Message{}
	body, err := msg.Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if len(body) == 0 {
		t.Fatal("empty payload")
	}
}
