// Package webhook delivers signed job notifications to caller-supplied URLs.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/vectorflow/internal/id"
)

const (
	EventJobSucceeded = "job.succeeded"
	EventJobFailed    = "job.failed"
)

const (
	HeaderSignature = "X-Vectorflow-Signature"
	HeaderTimestamp = "X-Vectorflow-Timestamp"
	HeaderEvent     = "X-Vectorflow-Event"
	HeaderDelivery  = "X-Vectorflow-Delivery"
	HeaderAttempt   = "X-Vectorflow-Attempt"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// errRejected marks a response that another attempt would not change.
var errRejected = errors.New("webhook rejected")

// Event is the JSON envelope of every delivery. ID is fixed across the
// retries of one delivery so receivers can drop duplicates.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	JobID     string    `json:"job_id"`
	CreatedAt time.Time `json:"created_at"`
	Data      any       `json:"data"`
}

type Config struct {
	SigningSecret  string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type Client struct {
	httpClient *http.Client
	secret     string
	retry      retryPolicy
	now        func() time.Time
}

type retryPolicy struct {
	attempts int
	initial  time.Duration
	max      time.Duration
}

// wait returns the pause after the given failed attempt, doubling from
// initial and capped at max.
func (p retryPolicy) wait(attempt int) time.Duration {
	d := p.initial
	for i := 1; i < attempt && d < p.max; i++ {
		d *= 2
	}
	return min(d, p.max)
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	initial := cfg.InitialBackoff
	if initial <= 0 {
		initial = time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		secret:     cfg.SigningSecret,
		retry: retryPolicy{
			attempts: max(1, cfg.MaxAttempts),
			initial:  initial,
			max:      max(initial, cfg.MaxBackoff),
		},
		now: time.Now,
	}
}

// Send posts ev to endpoint, filling in its ID and CreatedAt when unset.
// Transport errors, 408, 429 and 5xx responses are retried with backoff;
// any other non-2xx status ends delivery at once. An empty endpoint is a
// no-op.
func (c *Client) Send(ctx context.Context, endpoint string, ev Event) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil
	}
	if ev.ID == "" {
		ev.ID = "evt_" + id.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = c.now().UTC()
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal webhook event: %w", err)
	}
	timestamp := strconv.FormatInt(c.now().UTC().Unix(), 10)
	signature := Sign(c.secret, timestamp, body)

	var lastErr error
	for attempt := 1; attempt <= c.retry.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retry.wait(attempt - 1)):
			}
		}

		lastErr = c.post(ctx, endpoint, ev, body, timestamp, signature, attempt)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, errRejected) || ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("deliver %s event=%s: %w", ev.ID, ev.Type, lastErr)
}

func (c *Client) post(ctx context.Context, endpoint string, ev Event, body []byte, timestamp, signature string, attempt int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", errRejected, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderTimestamp, timestamp)
	req.Header.Set(HeaderSignature, signature)
	req.Header.Set(HeaderEvent, ev.Type)
	req.Header.Set(HeaderDelivery, ev.ID)
	req.Header.Set(HeaderAttempt, strconv.Itoa(attempt))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return fmt.Errorf("webhook returned status=%d", code)
	default:
		return fmt.Errorf("%w: status=%d", errRejected, code)
	}
}

// Sign computes the signature header value for body sent at timestamp.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a delivery on the receiving side. Timestamps older than
// tolerance are rejected to limit replays; a zero tolerance skips that check.
func Verify(secret string, header http.Header, body []byte, tolerance time.Duration, now time.Time) error {
	timestamp := header.Get(HeaderTimestamp)
	sent, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp %q", ErrInvalidSignature, timestamp)
	}
	if tolerance > 0 && now.Sub(time.Unix(sent, 0)) > tolerance {
		return fmt.Errorf("%w: timestamp too old", ErrInvalidSignature)
	}
	want := Sign(secret, timestamp, body)
	if !hmac.Equal([]byte(want), []byte(header.Get(HeaderSignature))) {
		return ErrInvalidSignature
	}
	return nil
}
