package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/sendpigeon/cli/internal/message"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(Config{Logger: zerolog.Nop()})
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func call(t *testing.T, ts *httptest.Server, method, path, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, strings.TrimSpace(string(b))
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)
	status, body := call(t, ts, "GET", "/health", "")
	if status != 200 || body != `{"status":"ok"}` {
		t.Errorf("GET /health = %d %s", status, body)
	}
}

func TestSendValidation(t *testing.T) {
	_, ts := newTestServer(t)
	cases := []struct {
		body string
		want string
	}{
		{`{"from":`, "Invalid JSON body"},
		{`[1,2]`, "Invalid request body"},
		{`null`, "Invalid request body"},
		{`{}`, "Missing required fields: from, to, subject, html or text"},
		{`{"from":"a@b.com","to":["x@y.com"],"subject":"s"}`, "Missing required fields: html or text"},
		{`{"from":"a@b.com","to":7,"subject":"s","text":"t"}`, "Missing required fields: to"},
		{`{"from":"a@b.com","to":["x@y.com",3],"subject":"s","text":"t"}`, "Missing required fields: to"},
	}
	for _, tc := range cases {
		status, body := call(t, ts, "POST", "/v1/emails", tc.body)
		want := fmt.Sprintf(`{"error":%q}`, tc.want)
		if status != 400 || body != want {
			t.Errorf("POST %s = %d %s, want 400 %s", tc.body, status, body, want)
		}
	}
}

func TestSendAndRead(t *testing.T) {
	_, ts := newTestServer(t)
	status, body := call(t, ts, "POST", "/v1/emails",
		`{"from":"a@b.com","to":"x@y.com","subject":"Hi","html":"<p>hi</p>","headers":{"X-Test":"1"},"attachments":[{"filename":"a.txt","content":"aGVsbG8="}]}`)
	if status != 200 {
		t.Fatalf("POST /v1/emails = %d %s", status, body)
	}
	var sent struct{ ID string }
	if err := json.Unmarshal([]byte(body), &sent); err != nil || !strings.HasPrefix(sent.ID, "dev_") {
		t.Fatalf("POST /v1/emails body = %s", body)
	}

	status, body = call(t, ts, "GET", "/api/emails/"+sent.ID, "")
	if status != 200 {
		t.Fatalf("GET email = %d %s", status, body)
	}
	var got Email
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatal(err)
	}
	want := Email{
		ID:          sent.ID,
		From:        "a@b.com",
		To:          message.Addresses{"x@y.com"},
		Subject:     "Hi",
		HTML:        "<p>hi</p>",
		Headers:     map[string]string{"X-Test": "1"},
		Attachments: []message.AttachmentMeta{{Filename: "a.txt", Size: 8}},
		Source:      SourceHTTP,
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("email mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(body, `"to":"x@y.com"`) {
		t.Errorf("single recipient not kept as a string: %s", body)
	}

	status, body = call(t, ts, "GET", "/api/emails/dev_missing", "")
	if status != 404 || body != `{"error":"Not found"}` {
		t.Errorf("GET missing = %d %s", status, body)
	}
}

func TestListAndClear(t *testing.T) {
	_, ts := newTestServer(t)
	if _, body := call(t, ts, "GET", "/api/emails", ""); body != "[]" {
		t.Errorf("GET /api/emails on empty store = %s, want []", body)
	}
	for i := 0; i < 2; i++ {
		call(t, ts, "POST", "/v1/emails", fmt.Sprintf(`{"from":"a@b.com","to":"x@y.com","subject":"n%d","text":"t"}`, i))
	}
	_, body := call(t, ts, "GET", "/api/emails", "")
	var list []Email
	if err := json.Unmarshal([]byte(body), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Subject != "n1" {
		t.Errorf("GET /api/emails = %s, want newest first", body)
	}

	status, body := call(t, ts, "DELETE", "/api/emails", "")
	if status != 200 || body != `{"ok":true}` {
		t.Errorf("DELETE /api/emails = %d %s", status, body)
	}
	if _, body := call(t, ts, "GET", "/api/emails", ""); body != "[]" {
		t.Errorf("GET /api/emails after clear = %s", body)
	}
}

func TestBatchIsolatesBadEntries(t *testing.T) {
	s, ts := newTestServer(t)
	var entries []string
	for i := 0; i < 100; i++ {
		if i == 37 {
			entries = append(entries, `{"from":"a@b.com","subject":"bad"}`)
			continue
		}
		entries = append(entries, fmt.Sprintf(`{"from":"a@b.com","to":"u%d@y.com","subject":"s","text":"t"}`, i))
	}
	status, body := call(t, ts, "POST", "/v1/emails/batch", `{"emails":[`+strings.Join(entries, ",")+`]}`)
	if status != 200 {
		t.Fatalf("POST batch = %d %s", status, body)
	}
	var resp message.SendBatchResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(message.BatchSummary{Total: 100, Sent: 99, Failed: 1}, resp.Summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	for i, r := range resp.Data {
		if r.Index != i {
			t.Fatalf("Data[%d].Index = %d", i, r.Index)
		}
		if i == 37 {
			want := &message.BatchError{Code: "VALIDATION_ERROR", Message: "Missing required fields: to, html or text"}
			if r.Status != "error" || cmp.Diff(want, r.Error) != "" {
				t.Errorf("Data[37] = %+v", r)
			}
			continue
		}
		if r.Status != "sent" || r.ID == "" || r.Error != nil {
			t.Errorf("Data[%d] = %+v", i, r)
		}
	}
	stored, _ := s.Store().List(context.Background())
	if len(stored) != 99 {
		t.Errorf("stored %d emails, want 99", len(stored))
	}
}

func TestBatchRejectsBadShape(t *testing.T) {
	_, ts := newTestServer(t)
	cases := []struct {
		body, want string
	}{
		{`{"emails":{}}`, "Invalid request body"},
		{`"x"`, "Invalid request body"},
		{`{"emails":[]}`, "Batch must contain between 1 and 100 emails"},
	}
	for _, tc := range cases {
		status, body := call(t, ts, "POST", "/v1/emails/batch", tc.body)
		if want := fmt.Sprintf(`{"error":%q}`, tc.want); status != 400 || body != want {
			t.Errorf("POST batch %s = %d %s, want 400 %s", tc.body, status, body, want)
		}
	}
}

func TestUI(t *testing.T) {
	_, ts := newTestServer(t)
	status, body := call(t, ts, "GET", "/", "")
	if status != 200 || !strings.Contains(body, "SendPigeon Dev") {
		t.Errorf("GET / = %d, body without title", status)
	}
	if status, _ := call(t, ts, "GET", "/app.js", ""); status != 200 {
		t.Errorf("GET /app.js = %d", status)
	}
}
