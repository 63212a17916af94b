package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/sendpigeon/cli/internal/message"
	"github.com/sendpigeon/cli/internal/request"
)

type call struct {
	Method string
	Path   string
	Query  string
	Body   string
	Header http.Header
}

type recorder struct {
	mu     sync.Mutex
	calls  []call
	status int
	body   string
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	b, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.calls = append(r.calls, call{req.Method, req.URL.EscapedPath(), req.URL.RawQuery, string(b), req.Header.Clone()})
	status, body := r.status, r.body
	r.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func (r *recorder) last(t *testing.T) call {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		t.Fatal("no requests recorded")
	}
	return r.calls[len(r.calls)-1]
}

func newTestClient(t *testing.T, rec *recorder) *Client {
	t.Helper()
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)
	return New("sp_test_key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithMaxRetries(0))
}

func TestSend(t *testing.T) {
	rec := &recorder{status: http.StatusAccepted, body: `{"id":"em_1","status":"scheduled","scheduled_at":"2030-01-01T00:00:00Z"}`}
	c := newTestClient(t, rec)

	got, err := c.Send(context.Background(), message.SendEmailRequest{
		From:        "hello@example.com",
		To:          message.Addresses{"a@b.com"},
		Subject:     "Hi",
		Content:     message.RawContent{HTML: "<p>Hi</p>", Text: "Hi"},
		ScheduledAt: "2030-01-01T00:00:00Z",
	}, WithIdempotencyKey("order-42"))
	if err != nil {
		t.Fatalf("Send() = %v", err)
	}
	want := &message.SendEmailResponse{ID: "em_1", Status: "scheduled", ScheduledAt: "2030-01-01T00:00:00Z"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}

	c1 := rec.last(t)
	if c1.Method != "POST" || c1.Path != "/v1/emails" {
		t.Errorf("request = %s %s, want POST /v1/emails", c1.Method, c1.Path)
	}
	if got := c1.Header.Get("idempotency-key"); got != "order-42" {
		t.Errorf("idempotency-key = %q, want order-42", got)
	}
	if got := c1.Header.Get("Authorization"); got != "Bearer sp_test_key" {
		t.Errorf("Authorization = %q", got)
	}
	wantBody := `{"from":"hello@example.com","to":"a@b.com","subject":"Hi","html":"<p>Hi</p>","text":"Hi","scheduled_at":"2030-01-01T00:00:00Z"}`
	if c1.Body != wantBody {
		t.Errorf("body = %s\nwant %s", c1.Body, wantBody)
	}
}

func TestSendWithoutIdempotencyKey(t *testing.T) {
	rec := &recorder{body: `{"id":"em_1","status":"pending"}`}
	c := newTestClient(t, rec)
	got, err := c.Send(context.Background(), message.SendEmailRequest{From: "a@b.com", To: message.Addresses{"c@d.com"}, Text: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if got.ScheduledAt != "" {
		t.Errorf("ScheduledAt = %q, want empty", got.ScheduledAt)
	}
	if h := rec.last(t).Header.Get("idempotency-key"); h != "" {
		t.Errorf("idempotency-key = %q, want none", h)
	}
}

func TestSendRejectsContentAndHTML(t *testing.T) {
	rec := &recorder{}
	c := newTestClient(t, rec)
	_, err := c.Send(context.Background(), message.SendEmailRequest{HTML: "x", Content: message.RawContent{HTML: "y"}})
	if err != message.ErrContentAndHTML {
		t.Errorf("Send() = %v, want ErrContentAndHTML", err)
	}
	if len(rec.calls) != 0 {
		t.Errorf("made %d requests, want 0", len(rec.calls))
	}
}

func TestSendAPIError(t *testing.T) {
	rec := &recorder{status: http.StatusPaymentRequired, body: `{"message":"Quota exceeded","code":"QUOTA_EXCEEDED"}`}
	c := newTestClient(t, rec)
	_, err := c.Send(context.Background(), message.SendEmailRequest{From: "a@b.com", To: message.Addresses{"c@d.com"}})
	want := &request.Error{Message: "Quota exceeded", Kind: request.KindAPI, APICode: "QUOTA_EXCEEDED", Status: 402}
	got, _ := request.AsError(err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("error mismatch (-want +got):\n%s", diff)
	}
}

func TestSendBatch(t *testing.T) {
	results := make([]message.BatchEmailResult, 100)
	for i := range results {
		results[i] = message.BatchEmailResult{Index: i, Status: "sent", ID: fmt.Sprintf("em_%d", i)}
	}
	results[37] = message.BatchEmailResult{Index: 37, Status: "error", Error: &message.BatchError{Code: "VALIDATION_ERROR", Message: "Invalid to"}}
	respBody, _ := json.Marshal(message.SendBatchResponse{Data: results, Summary: message.BatchSummary{Total: 100, Sent: 99, Failed: 1}})
	rec := &recorder{body: string(respBody)}
	c := newTestClient(t, rec)

	emails := make([]message.BatchEmail, 100)
	for i := range emails {
		emails[i] = message.BatchEmail{SendEmailRequest: message.SendEmailRequest{
			From: "a@b.com", To: message.Addresses{"c@d.com"}, Text: "x",
		}}
	}
	emails[3].ScheduledAt = "2030-01-01T00:00:00Z"

	got, err := c.SendBatch(context.Background(), emails)
	if err != nil {
		t.Fatalf("SendBatch() = %v", err)
	}
	if len(got.Data) != 100 || got.Summary.Failed != 1 {
		t.Fatalf("got %d results, summary %+v", len(got.Data), got.Summary)
	}
	var failed []int
	for _, r := range got.Data {
		if r.Status == "error" {
			failed = append(failed, r.Index)
		}
	}
	if diff := cmp.Diff([]int{37}, failed); diff != "" {
		t.Errorf("failed indexes mismatch (-want +got):\n%s", diff)
	}

	var sent struct {
		Emails []map[string]any `json:"emails"`
	}
	if err := json.Unmarshal([]byte(rec.last(t).Body), &sent); err != nil {
		t.Fatal(err)
	}
	if len(sent.Emails) != 100 {
		t.Fatalf("sent %d entries, want 100", len(sent.Emails))
	}
	if sent.Emails[3]["scheduled_at"] != "2030-01-01T00:00:00Z" {
		t.Errorf("entry 3 = %v, want scheduled_at", sent.Emails[3])
	}
	if _, ok := sent.Emails[4]["scheduled_at"]; ok {
		t.Errorf("entry 4 carries scheduled_at: %v", sent.Emails[4])
	}
}

func TestSendBatchSize(t *testing.T) {
	rec := &recorder{}
	c := newTestClient(t, rec)
	for _, n := range []int{0, 101} {
		if _, err := c.SendBatch(context.Background(), make([]message.BatchEmail, n)); err == nil {
			t.Errorf("SendBatch(%d emails) = nil error", n)
		}
	}
	if len(rec.calls) != 0 {
		t.Errorf("made %d requests, want 0", len(rec.calls))
	}
}

func TestRoutes(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		call   func(c *Client) error
		method string
		path   string
		query  string
	}{
		{"emails get", func(c *Client) error { _, err := c.Emails.Get(ctx, "em_1"); return err }, "GET", "/v1/emails/em_1", ""},
		{"emails cancel", func(c *Client) error { return c.Emails.Cancel(ctx, "em_1") }, "DELETE", "/v1/emails/em_1/schedule", ""},
		{"templates list", func(c *Client) error { _, err := c.Templates.List(ctx); return err }, "GET", "/v1/templates", ""},
		{"templates create", func(c *Client) error {
			_, err := c.Templates.Create(ctx, CreateTemplateRequest{TemplateID: "welcome", Subject: "Hi"})
			return err
		}, "POST", "/v1/templates", ""},
		{"templates get", func(c *Client) error { _, err := c.Templates.Get(ctx, "t1"); return err }, "GET", "/v1/templates/t1", ""},
		{"templates update", func(c *Client) error { _, err := c.Templates.Update(ctx, "t1", UpdateTemplateRequest{}); return err }, "PATCH", "/v1/templates/t1", ""},
		{"templates delete", func(c *Client) error { return c.Templates.Delete(ctx, "t1") }, "DELETE", "/v1/templates/t1", ""},
		{"templates publish", func(c *Client) error { _, err := c.Templates.Publish(ctx, "t1"); return err }, "POST", "/v1/templates/t1/publish", ""},
		{"templates unpublish", func(c *Client) error { _, err := c.Templates.Unpublish(ctx, "t1"); return err }, "POST", "/v1/templates/t1/unpublish", ""},
		{"templates test", func(c *Client) error {
			_, err := c.Templates.Test(ctx, "t1", TestTemplateRequest{To: "a@b.com"})
			return err
		}, "POST", "/v1/templates/t1/test", ""},
		{"domains list", func(c *Client) error { _, err := c.Domains.List(ctx); return err }, "GET", "/v1/domains", ""},
		{"domains create", func(c *Client) error {
			_, err := c.Domains.Create(ctx, CreateDomainRequest{Name: "mail.example.com"})
			return err
		}, "POST", "/v1/domains", ""},
		{"domains get", func(c *Client) error { _, err := c.Domains.Get(ctx, "d1"); return err }, "GET", "/v1/domains/d1", ""},
		{"domains verify", func(c *Client) error { _, err := c.Domains.Verify(ctx, "d1"); return err }, "POST", "/v1/domains/d1/verify", ""},
		{"domains delete", func(c *Client) error { return c.Domains.Delete(ctx, "d1") }, "DELETE", "/v1/domains/d1", ""},
		{"api keys list", func(c *Client) error { _, err := c.APIKeys.List(ctx); return err }, "GET", "/v1/api-keys", ""},
		{"api keys create", func(c *Client) error {
			_, err := c.APIKeys.Create(ctx, CreateAPIKeyRequest{Name: "ci"})
			return err
		}, "POST", "/v1/api-keys", ""},
		{"api keys delete", func(c *Client) error { return c.APIKeys.Delete(ctx, "k1") }, "DELETE", "/v1/api-keys/k1", ""},
		{"suppressions list", func(c *Client) error { _, err := c.Suppressions.List(ctx, 50, 100); return err }, "GET", "/v1/suppressions", "limit=50&offset=100"},
		{"suppressions list defaults", func(c *Client) error { _, err := c.Suppressions.List(ctx, 0, 0); return err }, "GET", "/v1/suppressions", ""},
		{"suppressions delete", func(c *Client) error { return c.Suppressions.Delete(ctx, "a/b@example.com") }, "DELETE", "/v1/suppressions/a%2Fb@example.com", ""},
		{"status", func(c *Client) error { _, err := c.Status(ctx); return err }, "GET", "/v1/status", ""},
		{"logs list", func(c *Client) error { _, err := c.Logs.List(ctx, "bounced", 20); return err }, "GET", "/v1/logs", "limit=20&status=bounced"},
		{"logs list all", func(c *Client) error { _, err := c.Logs.List(ctx, "", 10); return err }, "GET", "/v1/logs", "limit=10"},
		{"logs get", func(c *Client) error { _, err := c.Logs.Get(ctx, "em_1"); return err }, "GET", "/v1/logs/em_1", ""},
		{"webhooks config", func(c *Client) error { _, err := c.Webhooks.Config(ctx); return err }, "GET", "/v1/webhooks", ""},
		{"webhooks test", func(c *Client) error { _, err := c.Webhooks.Test(ctx); return err }, "POST", "/v1/webhooks/test", ""},
		{"webhooks deliveries", func(c *Client) error { _, err := c.Webhooks.Deliveries(ctx); return err }, "GET", "/v1/webhooks/deliveries", ""},
	}
	for _, tc := range cases {
		rec := &recorder{body: `{}`}
		if err := tc.call(newTestClient(t, rec)); err != nil {
			t.Errorf("%s: error %v", tc.name, err)
			continue
		}
		got := rec.last(t)
		if got.Method != tc.method || got.Path != tc.path || got.Query != tc.query {
			t.Errorf("%s: request = %s %s?%s, want %s %s?%s", tc.name, got.Method, got.Path, got.Query, tc.method, tc.path, tc.query)
		}
	}
}

func TestDeleteNoContent(t *testing.T) {
	rec := &recorder{status: http.StatusNoContent}
	c := newTestClient(t, rec)
	if err := c.Domains.Delete(context.Background(), "d1"); err != nil {
		t.Errorf("Delete() = %v, want nil", err)
	}
}

func TestRetriesThroughFacade(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `[{"id":"d1","name":"example.com","status":"verified"}]`)
	}))
	defer srv.Close()

	c := New("k", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithMaxRetries(9), WithTimeout(time.Second))
	ds, err := c.Domains.List(context.Background())
	if err != nil {
		t.Fatalf("List() = %v", err)
	}
	if len(ds) != 1 || ds[0].Name != "example.com" || calls != 2 {
		t.Errorf("List() = %+v after %d calls", ds, calls)
	}
}

func TestWithTracing(t *testing.T) {
	rec := &recorder{body: `{"plan":"free"}`}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	base := srv.Client()
	c := New("k", WithBaseURL(srv.URL), WithHTTPClient(base), WithTracing())
	if _, ok := c.httpClient.Transport.(*otelhttp.Transport); !ok {
		t.Fatalf("Transport = %T, want *otelhttp.Transport", c.httpClient.Transport)
	}
	if _, ok := base.Transport.(*otelhttp.Transport); ok {
		t.Error("WithTracing modified the caller's http.Client")
	}
	st, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() = %v", err)
	}
	if st.Plan != "free" || rec.last(t).Path != "/v1/status" {
		t.Errorf("Status() = %+v via %+v", st, rec.last(t))
	}

	if _, ok := New("k").httpClient.Transport.(*otelhttp.Transport); ok {
		t.Error("tracing enabled without WithTracing")
	}
}

func TestWithRateLimit(t *testing.T) {
	rec := &recorder{body: `[]`}
	srv := httptest.NewServer(rec)
	defer srv.Close()
	c := New("k", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithMaxRetries(0),
		WithRateLimit(rate.NewLimiter(rate.Every(time.Hour), 1)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.Domains.List(ctx); err != nil {
		t.Fatalf("first List() = %v", err)
	}
	_, err := c.Domains.List(ctx)
	if err == nil {
		t.Fatal("second List() = nil, want limiter error")
	}
	if _, ok := request.AsError(err); ok {
		t.Errorf("second List() = %v, want a limiter error, not an API error", err)
	}
	rec.mu.Lock()
	n := len(rec.calls)
	rec.mu.Unlock()
	if n != 1 {
		t.Errorf("server saw %d requests, want 1", n)
	}

	cctx, ccancel := context.WithCancel(context.Background())
	ccancel()
	if _, err := c.Domains.List(cctx); !errors.Is(err, context.Canceled) {
		t.Errorf("List(cancelled) = %v, want context.Canceled", err)
	}
}

func TestNewDefaults(t *testing.T) {
	t.Setenv("SENDPIGEON_DEV", "true")
	c := New("k")
	if c.BaseURL() != "http://localhost:4100" {
		t.Errorf("BaseURL() = %q, want dev server", c.BaseURL())
	}
	if c.maxRetries != 2 || c.timeout != 30*time.Second {
		t.Errorf("defaults = %d retries, %v timeout", c.maxRetries, c.timeout)
	}
	if got := New("k", WithMaxRetries(50)).maxRetries; got != 5 {
		t.Errorf("WithMaxRetries(50) = %d, want 5", got)
	}
	if got := New("k", WithMaxRetries(-1)).maxRetries; got != 0 {
		t.Errorf("WithMaxRetries(-1) = %d, want 0", got)
	}
	if got := New("k", WithBaseURL("http://x")).BaseURL(); got != "http://x" {
		t.Errorf("WithBaseURL = %q", got)
	}
}

func TestNewSince(t *testing.T) {
	page := []EmailLog{{ID: "e5"}, {ID: "e4"}, {ID: "e3"}, {ID: "e2"}}
	cases := []struct {
		lastID string
		want   []string
	}{
		{"e3", []string{"e4", "e5"}},
		{"e5", nil},
		{"gone", []string{"e2", "e3", "e4", "e5"}},
	}
	for _, tc := range cases {
		var got []string
		for _, l := range NewSince(page, tc.lastID) {
			got = append(got, l.ID)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("NewSince(%q) mismatch (-want +got):\n%s", tc.lastID, diff)
		}
	}
}
