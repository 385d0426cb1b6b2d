package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testDeliverer(maxAttempts int, sleeps *[]time.Duration) *Deliverer {
	d := NewDeliverer(maxAttempts, zerolog.New(io.Discard))
	d.sleep = func(wait time.Duration) {
		*sleeps = append(*sleeps, wait)
	}
	return d
}

func TestDeliverFirstAttemptSuccess(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var sleeps []time.Duration
	d := testDeliverer(5, &sleeps)

	ok := d.Deliver(context.Background(), srv.URL, Payload{
		JobID:     "job-1",
		Status:    "completed",
		Result:    map[string]any{"image_url": "https://cdn.example.com/a.png"},
		Timestamp: time.Now().UTC(),
	})
	if !ok {
		t.Fatal("delivery must succeed")
	}
	if len(sleeps) != 0 {
		t.Fatalf("no backoff expected, got %v", sleeps)
	}
	if got.JobID != "job-1" || got.Status != "completed" {
		t.Fatalf("payload mismatch: %+v", got)
	}
}

func TestDeliverBackoffSchedule(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var sleeps []time.Duration
	d := testDeliverer(5, &sleeps)

	if d.Deliver(context.Background(), srv.URL, Payload{JobID: "job-1", Status: "failed"}) {
		t.Fatal("delivery must be abandoned")
	}
	if n := hits.Load(); n != 5 {
		t.Fatalf("attempts = %d, want 5", n)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	if len(sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", sleeps, want)
	}
	total := time.Duration(0)
	for i := range want {
		if sleeps[i] != want[i] {
			t.Fatalf("sleep %d = %v, want %v", i, sleeps[i], want[i])
		}
		total += sleeps[i]
	}
	if total != 30*time.Second {
		t.Fatalf("total backoff = %v, want 30s", total)
	}
}

func TestDeliverRecoversAfterFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var sleeps []time.Duration
	d := testDeliverer(5, &sleeps)

	if !d.Deliver(context.Background(), srv.URL, Payload{JobID: "job-1", Status: "completed"}) {
		t.Fatal("delivery must eventually succeed")
	}
	if n := hits.Load(); n != 2 {
		t.Fatalf("attempts = %d, want 2", n)
	}
	if len(sleeps) != 1 || sleeps[0] != 2*time.Second {
		t.Fatalf("sleeps = %v, want [2s]", sleeps)
	}
}

func TestDeliverTransportErrorRetries(t *testing.T) {
	var sleeps []time.Duration
	d := testDeliverer(3, &sleeps)

	// No listener on this address.
	if d.Deliver(context.Background(), "http://127.0.0.1:1/hook", Payload{JobID: "job-1", Status: "failed"}) {
		t.Fatal("delivery must fail")
	}
	if len(sleeps) != 2 {
		t.Fatalf("sleeps = %v, want two retries", sleeps)
	}
}

func TestDeliverHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var sleeps []time.Duration
	d := NewDeliverer(5, zerolog.New(io.Discard))
	d.sleep = func(wait time.Duration) {
		sleeps = append(sleeps, wait)
		cancel()
	}

	if d.Deliver(ctx, srv.URL, Payload{JobID: "job-1", Status: "failed"}) {
		t.Fatal("delivery must stop on cancellation")
	}
	if len(sleeps) != 1 {
		t.Fatalf("delivery must stop after the first backoff, got %v", sleeps)
	}
}

func TestBackoffDelay(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 0},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
	}
	for _, tc := range cases {
		if got := backoffDelay(tc.attempt); got != tc.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}
