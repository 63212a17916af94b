package message

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestAddressesJSON(t *testing.T) {
	cases := []struct {
		in   Addresses
		want string
	}{
		{Addresses{"a@b.com"}, `"a@b.com"`},
		{Addresses{"a@b.com", "c@d.com"}, `["a@b.com","c@d.com"]`},
	}
	for _, tc := range cases {
		b, err := json.Marshal(tc.in)
		if err != nil || string(b) != tc.want {
			t.Errorf("json.Marshal(%#v) = %s, %v, want %s", tc.in, b, err, tc.want)
		}
		var back Addresses
		if err := json.Unmarshal(b, &back); err != nil {
			t.Errorf("json.Unmarshal(%s) = %v", b, err)
		}
		if diff := cmp.Diff(tc.in, back); diff != "" {
			t.Errorf("decode mismatch (-want +got):\n%s", diff)
		}
	}
	var a Addresses
	if err := json.Unmarshal([]byte(`42`), &a); err == nil {
		t.Errorf("json.Unmarshal(42) = nil, want error")
	}
}

func TestScheduledAtWireName(t *testing.T) {
	b, err := json.Marshal(SendEmailRequest{From: "a@b.com", To: Addresses{"c@d.com"}, ScheduledAt: "2030-01-01T00:00:00Z"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"from":"a@b.com","to":"c@d.com","scheduled_at":"2030-01-01T00:00:00Z"}`
	if string(b) != want {
		t.Errorf("json.Marshal() = %s, want %s", b, want)
	}

	b, _ = json.Marshal(SendEmailRequest{From: "a@b.com", To: Addresses{"c@d.com"}})
	if want := `{"from":"a@b.com","to":"c@d.com"}`; string(b) != want {
		t.Errorf("json.Marshal() = %s, want %s", b, want)
	}

	var resp SendEmailResponse
	if err := json.Unmarshal([]byte(`{"id":"em_1","status":"scheduled","scheduled_at":"2030-01-01T00:00:00Z"}`), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ScheduledAt != "2030-01-01T00:00:00Z" {
		t.Errorf("ScheduledAt = %q", resp.ScheduledAt)
	}
}

func TestBatchEmailFlattens(t *testing.T) {
	b, _ := json.Marshal(BatchEmail{
		SendEmailRequest: SendEmailRequest{From: "a@b.com", To: Addresses{"c@d.com"}, ScheduledAt: "x"},
		IdempotencyKey:   "k1",
	})
	want := `{"from":"a@b.com","to":"c@d.com","scheduled_at":"x","idempotencyKey":"k1"}`
	if string(b) != want {
		t.Errorf("json.Marshal() = %s, want %s", b, want)
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name    string
		in      SendEmailRequest
		want    SendEmailRequest
		wantErr error
	}{
		{
			name: "no content",
			in:   SendEmailRequest{HTML: "<p>x</p>"},
			want: SendEmailRequest{HTML: "<p>x</p>"},
		},
		{
			name: "raw",
			in:   SendEmailRequest{Content: RawContent{HTML: "<b>hi</b>", Text: "hi"}},
			want: SendEmailRequest{HTML: "<b>hi</b>", Text: "hi"},
		},
		{
			name: "caller text wins",
			in:   SendEmailRequest{Text: "mine", Content: RawContent{HTML: "<b>hi</b>", Text: "hi"}},
			want: SendEmailRequest{HTML: "<b>hi</b>", Text: "mine"},
		},
		{
			name: "renderer",
			in: SendEmailRequest{Content: RendererFunc(func(context.Context) (string, string, error) {
				return "<h1>Welcome</h1>", "Welcome", nil
			})},
			want: SendEmailRequest{HTML: "<h1>Welcome</h1>", Text: "Welcome"},
		},
		{
			name:    "both",
			in:      SendEmailRequest{HTML: "<p>x</p>", Content: RawContent{HTML: "y"}},
			wantErr: ErrContentAndHTML,
		},
	}
	for _, tc := range cases {
		req := tc.in
		err := req.Resolve(ctx)
		if err != tc.wantErr {
			t.Errorf("%s: Resolve() = %v, want %v", tc.name, err, tc.wantErr)
			continue
		}
		if err != nil {
			continue
		}
		if diff := cmp.Diff(tc.want, req); diff != "" {
			t.Errorf("%s: request mismatch (-want +got):\n%s", tc.name, diff)
		}
	}
}

func TestResolveRendererError(t *testing.T) {
	boom := errors.New("boom")
	req := SendEmailRequest{Content: RendererFunc(func(context.Context) (string, string, error) {
		return "", "", boom
	})}
	if err := req.Resolve(context.Background()); errors.Cause(err) != boom {
		t.Errorf("Resolve() = %v, want cause %v", err, boom)
	}
}
