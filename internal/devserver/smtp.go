// Copyright 2026 The SendPigeon Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package devserver

import (
	"context"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"

	"github.com/emersion/go-smtp"
	"github.com/pkg/errors"

	"github.com/sendpigeon/cli/internal/message"
)

// backend hands every SMTP connection a session that captures into the
// server's store.
type backend struct {
	s *Server
}

func (b *backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &session{s: b.s}, nil
}

type session struct {
	s    *Server
	from string
	to   []string
}

func (ss *session) Mail(from string, opts *smtp.MailOptions) error {
	ss.from = from
	return nil
}

func (ss *session) Rcpt(to string, opts *smtp.RcptOptions) error {
	ss.to = append(ss.to, to)
	return nil
}

func (ss *session) Data(r io.Reader) error {
	e, err := parseMessage(r, ss.from, ss.to)
	if err != nil {
		ss.s.log.Warn().Err(err).Str("from", ss.from).Msg("rejecting unparsable message")
		return &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "Unable to parse message",
		}
	}
	if _, err := ss.s.capture(context.Background(), e); err != nil {
		ss.s.log.Error().Err(err).Msg("storing email")
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "Unable to store message",
		}
	}
	return nil
}

func (ss *session) Reset() {
	ss.from = ""
	ss.to = nil
}

func (ss *session) Logout() error {
	return nil
}

// parseMessage turns an RFC 5322 message into an Email.  Envelope
// recipients win over the To header when present.
func parseMessage(r io.Reader, envFrom string, envTo []string) (Email, error) {
	defer io.Copy(io.Discard, r)

	msg, err := mail.ReadMessage(r)
	if err != nil {
		return Email{}, errors.Wrap(err, "reading message header")
	}
	e := Email{
		From:    msg.Header.Get("From"),
		Subject: decodeHeader(msg.Header.Get("Subject")),
		Headers: make(map[string]string, len(msg.Header)),
		Source:  SourceSMTP,
	}
	if e.From == "" {
		e.From = envFrom
	}
	for k, v := range msg.Header {
		if len(v) > 0 {
			e.Headers[k] = decodeHeader(v[0])
		}
	}
	if len(envTo) > 0 {
		e.To = message.Addresses(envTo)
	} else if list, err := msg.Header.AddressList("To"); err == nil {
		for _, a := range list {
			e.To = append(e.To, a.Address)
		}
	}

	hdr := textproto.MIMEHeader(msg.Header)
	if err := walkPart(&e, hdr, msg.Body); err != nil {
		return Email{}, err
	}
	return e, nil
}

var wordDecoder = new(mime.WordDecoder)

func decodeHeader(v string) string {
	d, err := wordDecoder.DecodeHeader(v)
	if err != nil {
		return v
	}
	return d
}

// walkPart collects text bodies and attachment metadata from a MIME
// entity, descending into multiparts.
func walkPart(e *Email, hdr textproto.MIMEHeader, body io.Reader) error {
	ctype := hdr.Get("Content-Type")
	if ctype == "" {
		ctype = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(ctype)
	if err != nil {
		mediaType, params = "text/plain", nil
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return errors.Errorf("%s without boundary", mediaType)
		}
		mr := multipart.NewReader(body, boundary)
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return errors.Wrap(err, "reading multipart")
			}
			if err := walkPart(e, p.Header, p); err != nil {
				return err
			}
		}
	}

	content, err := io.ReadAll(decodeTransfer(body, hdr.Get("Content-Transfer-Encoding")))
	if err != nil {
		return errors.Wrapf(err, "reading %s body", mediaType)
	}
	if name := attachmentName(hdr, params); name != "" {
		e.Attachments = append(e.Attachments, message.AttachmentMeta{
			Filename:    name,
			Size:        int64(len(content)),
			ContentType: mediaType,
		})
		return nil
	}
	switch {
	case mediaType == "text/html" && e.HTML == "":
		e.HTML = string(content)
	case mediaType == "text/plain" && e.Text == "":
		e.Text = string(content)
	}
	return nil
}

func decodeTransfer(r io.Reader, encoding string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	}
	return r
}

// attachmentName returns the file name of an attachment part, or "" for
// an inline body.
func attachmentName(hdr textproto.MIMEHeader, ctypeParams map[string]string) string {
	disp, dparams, err := mime.ParseMediaType(hdr.Get("Content-Disposition"))
	if err == nil {
		if name := dparams["filename"]; name != "" {
			return decodeHeader(name)
		}
		if disp == "attachment" {
			return "attachment"
		}
	}
	if name := ctypeParams["name"]; name != "" {
		return decodeHeader(name)
	}
	return ""
}
