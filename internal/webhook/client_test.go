package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestSendSignsEnvelope(t *testing.T) {
	var (
		gotHeader http.Header
		gotBody   []byte
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(Config{
		SigningSecret:  "test-secret",
		Timeout:        2 * time.Second,
		MaxAttempts:    1,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
	})

	err := client.Send(context.Background(), srv.URL, Event{
		Type:  EventJobSucceeded,
		JobID: "job-1",
		Data:  map[string]any{"paths": 3},
	})
	if err != nil {
		t.Fatalf("send returned error: %v", err)
	}

	if gotEvt := gotHeader.Get(HeaderEvent); gotEvt != EventJobSucceeded {
		t.Fatalf("expected event header %s, got %q", EventJobSucceeded, gotEvt)
	}

	var ev Event
	if err := json.Unmarshal(gotBody, &ev); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if ev.ID == "" || ev.ID != gotHeader.Get(HeaderDelivery) {
		t.Fatalf("expected delivery header to match event id, got id=%q header=%q", ev.ID, gotHeader.Get(HeaderDelivery))
	}
	if ev.JobID != "job-1" || ev.CreatedAt.IsZero() {
		t.Fatalf("unexpected envelope: %+v", ev)
	}

	if err := Verify("test-secret", gotHeader, gotBody, time.Minute, time.Now()); err != nil {
		t.Fatalf("expected delivery to verify, got %v", err)
	}
	if err := Verify("other-secret", gotHeader, gotBody, time.Minute, time.Now()); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for wrong secret, got %v", err)
	}
	if err := Verify("test-secret", gotHeader, gotBody, time.Minute, time.Now().Add(time.Hour)); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected stale delivery to be rejected, got %v", err)
	}
}

func TestSendRetriesWithStableDeliveryID(t *testing.T) {
	var (
		calls int32
		ids   = make(chan string, 3)
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids <- r.Header.Get(HeaderDelivery)
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get(HeaderAttempt) != "3" {
			t.Errorf("expected attempt header 3, got %q", r.Header.Get(HeaderAttempt))
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(Config{
		SigningSecret:  "test-secret",
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})

	if err := client.Send(context.Background(), srv.URL, Event{Type: EventJobFailed, JobID: "job-2"}); err != nil {
		t.Fatalf("send returned error: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	close(ids)
	first := <-ids
	for id := range ids {
		if id != first {
			t.Fatalf("expected one delivery id across retries, got %q and %q", first, id)
		}
	}
}

func TestSendStopsOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	client := NewClient(Config{MaxAttempts: 4, InitialBackoff: time.Millisecond})
	err := client.Send(context.Background(), srv.URL, Event{Type: EventJobFailed, JobID: "job-3"})
	if !errors.Is(err, errRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected a single attempt for 410, got %d", got)
	}
}

func TestSendGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(Config{MaxAttempts: 2, InitialBackoff: time.Millisecond})
	if err := client.Send(context.Background(), srv.URL, Event{Type: EventJobSucceeded}); err == nil {
		t.Fatal("expected delivery failure")
	}
}

func TestRetryWait(t *testing.T) {
	p := retryPolicy{attempts: 5, initial: 100 * time.Millisecond, max: 350 * time.Millisecond}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 350 * time.Millisecond, 350 * time.Millisecond}
	for i, w := range want {
		if got := p.wait(i + 1); got != w {
			t.Fatalf("wait(%d): expected %s, got %s", i+1, w, got)
		}
	}
}
