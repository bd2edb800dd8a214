package stream

import (
	"context"
	"testing"
	"time"

	"github.com/BBerastegui/domain-stream/internal/config"
	"github.com/BBerastegui/domain-stream/internal/models"
)

func newTestListener(skipIssuers []string) (*Listener, chan models.Candidate) {
	out := make(chan models.Candidate, 100)
	l := NewListener(&config.Config{
		StreamURL:   config.DefaultStreamURL,
		SkipIssuers: skipIssuers,
		Patterns:    []string{"dev-%s", "%s-backup"},
	}, out)
	return l, out
}

func drain(out chan models.Candidate) []models.Candidate {
	var got []models.Candidate
	for {
		select {
		case c := <-out:
			got = append(got, c)
		default:
			return got
		}
	}
}

const certUpdate = `{
	"message_type": "certificate_update",
	"data": {
		"leaf_cert": {"all_domains": ["example.com", "*.example.com", "EXAMPLE.com"]},
		"chain": [{"subject": {"aggregated": "/C=US/O=Example CA"}}]
	}
}`

func TestProcessEnqueuesPermutations(t *testing.T) {
	l, out := newTestListener(nil)

	if err := l.process(context.Background(), []byte(certUpdate)); err != nil {
		t.Fatalf("process: %v", err)
	}

	got := drain(out)
	if len(got) == 0 {
		t.Fatalf("expected candidates to be enqueued")
	}
	names := map[string]bool{}
	for _, c := range got {
		if c.Origin != "example.com" {
			t.Fatalf("unexpected origin %q", c.Origin)
		}
		if names[c.Name] {
			t.Fatalf("duplicate candidate %q despite SAN dedupe", c.Name)
		}
		names[c.Name] = true
	}
	if !names["dev-example"] || !names["example-backup.com"] {
		t.Fatalf("expected permuted names, got %v", names)
	}
}

func TestProcessSkipsHeartbeats(t *testing.T) {
	l, out := newTestListener(nil)

	if err := l.process(context.Background(), []byte(`{"message_type": "heartbeat"}`)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := drain(out); len(got) != 0 {
		t.Fatalf("heartbeat must not enqueue candidates, got %v", got)
	}
}

func TestProcessSkipsConfiguredIssuer(t *testing.T) {
	l, out := newTestListener([]string{"Let's Encrypt"})

	msg := `{
		"message_type": "certificate_update",
		"data": {
			"leaf_cert": {"all_domains": ["example.com"]},
			"chain": [{"subject": {"aggregated": "/C=US/O=Let's Encrypt/CN=R3"}}]
		}
	}`
	if err := l.process(context.Background(), []byte(msg)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := drain(out); len(got) != 0 {
		t.Fatalf("skip-listed issuer must be dropped, got %v", got)
	}
}

func TestProcessDeduplicatesAcrossMessages(t *testing.T) {
	l, out := newTestListener(nil)

	if err := l.process(context.Background(), []byte(certUpdate)); err != nil {
		t.Fatalf("process: %v", err)
	}
	first := drain(out)

	if err := l.process(context.Background(), []byte(certUpdate)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if second := drain(out); len(second) != 0 {
		t.Fatalf("recently seen domain re-enqueued %v (first batch %d)", second, len(first))
	}
}

func TestBackoffDoublesUpToCapAndResets(t *testing.T) {
	l, _ := newTestListener(nil)

	want := initialBackoff
	for i := 0; i < 10; i++ {
		got := l.nextBackoff()
		if got != want {
			t.Fatalf("step %d: backoff = %s, want %s", i, got, want)
		}
		if got > maxBackoff {
			t.Fatalf("step %d: backoff %s exceeds cap %s", i, got, maxBackoff)
		}
		want *= 2
		if want > maxBackoff {
			want = maxBackoff
		}
	}
	if l.backoff != maxBackoff {
		t.Fatalf("backoff = %s after repeated failures, want cap %s", l.backoff, maxBackoff)
	}

	l.resetBackoff()
	if l.backoff != initialBackoff {
		t.Fatalf("backoff = %s after reset, want %s", l.backoff, initialBackoff)
	}
	if got := l.nextBackoff(); got != initialBackoff {
		t.Fatalf("first backoff after reset = %s, want %s", got, initialBackoff)
	}
}

func TestSleepReturnsOnCancelledContext(t *testing.T) {
	l, _ := newTestListener(nil)
	l.backoff = maxBackoff

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	l.sleep(ctx)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("sleep did not honor cancelled context, took %s", elapsed)
	}
}

func TestProcessIgnoresMalformedJSON(t *testing.T) {
	l, out := newTestListener(nil)

	if err := l.process(context.Background(), []byte("not-json")); err != nil {
		t.Fatalf("malformed message must not kill the stream: %v", err)
	}
	if got := drain(out); len(got) != 0 {
		t.Fatalf("unexpected candidates %v", got)
	}
}
