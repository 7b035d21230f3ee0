package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/authhub/internal/jobs"
	"github.com/geocoder89/authhub/internal/queue/redisqueue"
	"github.com/gin-gonic/gin"
)

type fakeQueue struct {
	mu      sync.Mutex
	ready   []jobs.Job
	retried []jobs.Job
	delays  []time.Duration
	dead    []jobs.Job
	pingErr error
}

func (q *fakeQueue) Dequeue(ctx context.Context, _ time.Duration) (jobs.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ready) == 0 {
		return jobs.Job{}, redisqueue.ErrEmpty
	}
	j := q.ready[0]
	q.ready = q.ready[1:]
	return j, nil
}

func (q *fakeQueue) Retry(_ context.Context, j jobs.Job, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.retried = append(q.retried, j)
	q.delays = append(q.delays, delay)
	return nil
}

func (q *fakeQueue) DeadLetter(_ context.Context, j jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = append(q.dead, j)
	return nil
}

func (q *fakeQueue) PromoteDue(context.Context, time.Time, int) (int, error) { return 0, nil }

func (q *fakeQueue) Depth(context.Context) (redisqueue.Depth, error) {
	return redisqueue.Depth{}, nil
}

func (q *fakeQueue) Ping(context.Context) error { return q.pingErr }

type fakeNotifier struct {
	mu      sync.Mutex
	otps    []string
	links   []string
	sendErr error
}

func (n *fakeNotifier) SendOtpEmail(_ context.Context, to, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sendErr != nil {
		return n.sendErr
	}
	n.otps = append(n.otps, to+":"+code)
	return nil
}

func (n *fakeNotifier) SendResetLink(_ context.Context, to, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sendErr != nil {
		return n.sendErr
	}
	n.links = append(n.links, to+":"+url)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustJob(t *testing.T, typ jobs.JobType, payload any) jobs.Job {
	t.Helper()

	b, err := jobs.EncodePayload(typ, payload)
	if err != nil {
		t.Fatalf("EncodePayload: %v", err)
	}
	j, err := jobs.NewJob(typ, b, time.Time{})
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	return j
}

func TestProcessOne_SendsEmails(t *testing.T) {
	q := &fakeQueue{ready: []jobs.Job{
		mustJob(t, jobs.JobSendOtpEmail, jobs.SendOtpEmailPayload{Email: "a@x.com", Code: "4821"}),
		mustJob(t, jobs.JobSendResetLink, jobs.SendResetLinkPayload{Email: "b@x.com", URL: "http://x/reset"}),
	}}
	n := &fakeNotifier{}
	w := New(Config{WorkerID: "test"}, q, n, quietLogger(), nil)

	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := w.ProcessOne(ctx, ctx)
		if err != nil || !ok {
			t.Fatalf("ProcessOne #%d: ok=%v err=%v", i, ok, err)
		}
	}

	ok, err := w.ProcessOne(ctx, ctx)
	if ok || err != nil {
		t.Fatalf("empty queue: ok=%v err=%v", ok, err)
	}

	if len(n.otps) != 1 || n.otps[0] != "a@x.com:4821" {
		t.Fatalf("otp emails: %v", n.otps)
	}
	if len(n.links) != 1 || n.links[0] != "b@x.com:http://x/reset" {
		t.Fatalf("reset links: %v", n.links)
	}

	if s := w.Stats(); s.Done != 2 || s.Dequeued != 2 {
		t.Fatalf("stats: %+v", s)
	}
}

func TestProcessOne_MarksJobSucceeded(t *testing.T) {
	q := &fakeQueue{ready: []jobs.Job{
		mustJob(t, jobs.JobSendOtpEmail, jobs.SendOtpEmailPayload{Email: "a@x.com", Code: "4821"}),
	}}

	var buf bytes.Buffer
	w := New(Config{}, q, &fakeNotifier{}, slog.New(slog.NewJSONHandler(&buf, nil)), nil)

	ctx := context.Background()
	if _, err := w.ProcessOne(ctx, ctx); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	if !strings.Contains(buf.String(), `"status":"succeeded"`) {
		t.Fatalf("expected succeeded status in log, got %s", buf.String())
	}
}

func TestProcessOne_RetriesWithBackoff(t *testing.T) {
	q := &fakeQueue{ready: []jobs.Job{
		mustJob(t, jobs.JobSendOtpEmail, jobs.SendOtpEmailPayload{Email: "a@x.com", Code: "4821"}),
	}}
	n := &fakeNotifier{sendErr: errors.New("smtp 451")}
	w := New(Config{}, q, n, quietLogger(), nil)
	w.backoff = func(attempt int) time.Duration { return time.Duration(attempt+1) * time.Second }

	ctx := context.Background()
	if _, err := w.ProcessOne(ctx, ctx); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	if len(q.retried) != 1 || len(q.dead) != 0 {
		t.Fatalf("expected one retry, got retried=%d dead=%d", len(q.retried), len(q.dead))
	}
	if q.retried[0].Status != jobs.JobPending {
		t.Fatalf("retried status: got %q want %q", q.retried[0].Status, jobs.JobPending)
	}
	if q.retried[0].Attempts != 1 || q.retried[0].LastError == nil {
		t.Fatalf("unexpected retried job: %+v", q.retried[0])
	}
	if q.delays[0] != time.Second {
		t.Fatalf("delay: got %v want 1s", q.delays[0])
	}
}

func TestProcessOne_DeadLettersWhenExhausted(t *testing.T) {
	j := mustJob(t, jobs.JobSendOtpEmail, jobs.SendOtpEmailPayload{Email: "a@x.com", Code: "4821"})
	j.Attempts = j.MaxTries - 1

	q := &fakeQueue{ready: []jobs.Job{j}}
	w := New(Config{}, q, &fakeNotifier{sendErr: errors.New("smtp down")}, quietLogger(), nil)

	ctx := context.Background()
	if _, err := w.ProcessOne(ctx, ctx); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	if len(q.dead) != 1 || len(q.retried) != 0 {
		t.Fatalf("expected dead letter, got retried=%d dead=%d", len(q.retried), len(q.dead))
	}
	if q.dead[0].Status != jobs.JobFailed {
		t.Fatalf("dead status: got %q want %q", q.dead[0].Status, jobs.JobFailed)
	}
	if s := w.Stats(); s.DeadLettered != 1 {
		t.Fatalf("stats: %+v", s)
	}
}

func TestProcessOne_BadPayloadIsPermanent(t *testing.T) {
	j := jobs.Job{ID: "j1", Type: jobs.JobSendOtpEmail, Status: jobs.JobPending, MaxTries: 5, Payload: json.RawMessage(`{"email":""}`)}

	q := &fakeQueue{ready: []jobs.Job{j}}
	w := New(Config{}, q, &fakeNotifier{}, quietLogger(), nil)

	ctx := context.Background()
	if _, err := w.ProcessOne(ctx, ctx); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	if len(q.dead) != 1 {
		t.Fatalf("expected bad payload to be dead-lettered, dead=%d retried=%d", len(q.dead), len(q.retried))
	}
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		min     time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 8 * time.Second},
		{20, 5 * time.Minute},
	}

	for _, tc := range tests {
		got := ExponentialBackoff(tc.attempt)
		if got < tc.min || got >= tc.min+250*time.Millisecond {
			t.Fatalf("attempt %d: got %v, want [%v, %v)", tc.attempt, got, tc.min, tc.min+250*time.Millisecond)
		}
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	q := &fakeQueue{}
	w := New(Config{PollWait: 10 * time.Millisecond, PromoteInterval: 10 * time.Millisecond, ShutdownGrace: time.Second}, q, &fakeNotifier{}, quietLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)

	go func() { errCh <- w.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for !w.isReady() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !w.isReady() {
		t.Fatalf("worker never became ready")
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}

	if w.isReady() {
		t.Fatalf("worker should not be ready after shutdown")
	}
}

func TestHealthHandler_Readiness(t *testing.T) {
	gin.SetMode(gin.TestMode)

	q := &fakeQueue{}
	w := New(Config{}, q, &fakeNotifier{}, quietLogger(), nil)
	h := w.HealthHandler(nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("not started: got %d want 503", rec.Code)
	}

	w.setReady(true)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ready: got %d want 200", rec.Code)
	}

	q.pingErr = errors.New("redis down")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("redis down: got %d want 503", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: got %d want 200", rec.Code)
	}
}
