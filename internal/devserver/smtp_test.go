package devserver

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/sendpigeon/cli/internal/message"
)

const multipartMessage = "From: Sender <sender@example.com>\r\n" +
	"To: one@example.com\r\n" +
	"Subject: =?UTF-8?Q?Caf=C3=A9_report?=\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=outer\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: multipart/alternative; boundary=inner\r\n" +
	"\r\n" +
	"--inner\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Plain body\r\n" +
	"--inner\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"Content-Transfer-Encoding: quoted-printable\r\n" +
	"\r\n" +
	"<p class=3D\"x\">HTML body</p>\r\n" +
	"--inner--\r\n" +
	"--outer\r\n" +
	"Content-Type: application/pdf; name=\"report.pdf\"\r\n" +
	"Content-Disposition: attachment; filename=\"report.pdf\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"aGVsbG8g\r\nd29ybGQ=\r\n" +
	"--outer--\r\n"

func TestParseMessageMultipart(t *testing.T) {
	got, err := parseMessage(strings.NewReader(multipartMessage), "bounce@example.com", nil)
	if err != nil {
		t.Fatalf("parseMessage() = %v", err)
	}
	if got.From != "Sender <sender@example.com>" {
		t.Errorf("From = %q", got.From)
	}
	if diff := cmp.Diff(message.Addresses{"one@example.com"}, got.To); diff != "" {
		t.Errorf("To mismatch (-want +got):\n%s", diff)
	}
	if got.Subject != "Café report" {
		t.Errorf("Subject = %q", got.Subject)
	}
	if got.Text != "Plain body" {
		t.Errorf("Text = %q", got.Text)
	}
	if got.HTML != `<p class="x">HTML body</p>` {
		t.Errorf("HTML = %q", got.HTML)
	}
	want := []message.AttachmentMeta{{Filename: "report.pdf", Size: int64(len("hello world")), ContentType: "application/pdf"}}
	if diff := cmp.Diff(want, got.Attachments); diff != "" {
		t.Errorf("Attachments mismatch (-want +got):\n%s", diff)
	}
	if got.Source != SourceSMTP || got.Headers["Mime-Version"] != "1.0" {
		t.Errorf("Source = %q, headers = %v", got.Source, got.Headers)
	}
}

func TestParseMessageEnvelope(t *testing.T) {
	raw := "Subject: plain\r\n\r\nhello\r\n"
	got, err := parseMessage(strings.NewReader(raw), "env@example.com", []string{"a@example.com", "b@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if got.From != "env@example.com" || got.Text != "hello\r\n" {
		t.Errorf("parseMessage() = %+v", got)
	}
	if diff := cmp.Diff(message.Addresses{"a@example.com", "b@example.com"}, got.To); diff != "" {
		t.Errorf("To mismatch (-want +got):\n%s", diff)
	}

	if _, err := parseMessage(strings.NewReader("not a header line\r\n"), "", nil); err == nil {
		t.Errorf("parseMessage(garbage) = nil error")
	}
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestServeCapturesSMTP(t *testing.T) {
	s := New(Config{Logger: zerolog.Nop()})
	hl, sl := listen(t), listen(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, hl, sl) }()

	c, err := smtp.Dial(sl.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SendMail("sender@example.com", []string{"rcpt@example.com"}, strings.NewReader(multipartMessage)); err != nil {
		t.Fatalf("SendMail() = %v", err)
	}
	c.Quit()

	emails, err := s.Store().List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(emails) != 1 {
		t.Fatalf("captured %d emails, want 1", len(emails))
	}
	if e := emails[0]; e.Source != SourceSMTP || e.To.String() != "rcpt@example.com" || !strings.HasPrefix(e.ID, "dev_") {
		t.Errorf("captured %+v", e)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() = %v, want nil after cancel", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
