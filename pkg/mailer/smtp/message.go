package smtp

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
)

type envelope struct {
	from mail.Address
	to   mail.Address
}

func parseEnvelope(from, to string) (envelope, error) {
	f, err := mail.ParseAddress(from)
	if err != nil {
		return envelope{}, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	t, err := mail.ParseAddress(to)
	if err != nil {
		return envelope{}, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	return envelope{from: *f, to: *t}, nil
}

// messageID returns a new RFC 5322 Message-ID in the sender's domain.
func messageID(sender string) string {
	domain := "localhost"
	if i := strings.LastIndexByte(sender, '@'); i >= 0 && i < len(sender)-1 {
		domain = sender[i+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

type mimeHeader struct {
	key, value string
}

// buildMessage renders headers and body. With both bodies present the
// message is multipart/alternative; otherwise a single part is sent.
func buildMessage(env envelope, subject, text, html, msgType, id string, now time.Time) ([]byte, error) {
	headers := []mimeHeader{
		{"From", env.from.String()},
		{"To", env.to.String()},
		{"Subject", mime.QEncoding.Encode("utf-8", headerValue(subject))},
		{"Date", now.Format(time.RFC1123Z)},
		{"Message-ID", id},
		{"MIME-Version", "1.0"},
	}
	if msgType != "" {
		headers = append(headers, mimeHeader{"X-Email-Type", headerValue(msgType)})
	}

	var body bytes.Buffer
	switch {
	case text != "" && html != "":
		mw := multipart.NewWriter(&body)
		headers = append(headers, mimeHeader{"Content-Type", `multipart/alternative; boundary="` + mw.Boundary() + `"`})
		for _, p := range []struct{ ctype, content string }{
			{"text/plain; charset=UTF-8", text},
			{"text/html; charset=UTF-8", html},
		} {
			part, err := mw.CreatePart(textproto.MIMEHeader{
				"Content-Type":              {p.ctype},
				"Content-Transfer-Encoding": {"quoted-printable"},
			})
			if err != nil {
				return nil, err
			}
			if err := writeQP(part, p.content); err != nil {
				return nil, err
			}
		}
		if err := mw.Close(); err != nil {
			return nil, err
		}
	case html != "":
		headers = append(headers,
			mimeHeader{"Content-Type", "text/html; charset=UTF-8"},
			mimeHeader{"Content-Transfer-Encoding", "quoted-printable"})
		if err := writeQP(&body, html); err != nil {
			return nil, err
		}
	default:
		headers = append(headers,
			mimeHeader{"Content-Type", "text/plain; charset=UTF-8"},
			mimeHeader{"Content-Transfer-Encoding", "quoted-printable"})
		if err := writeQP(&body, text); err != nil {
			return nil, err
		}
	}

	var out bytes.Buffer
	for _, h := range headers {
		out.WriteString(h.key)
		out.WriteString(": ")
		out.WriteString(h.value)
		out.WriteString("\r\n")
	}
	out.WriteString("\r\n")
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

func writeQP(w io.Writer, s string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := qp.Write([]byte(crlf(s))); err != nil {
		return err
	}
	return qp.Close()
}

func crlf(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}

// headerValue strips line breaks so values cannot inject headers.
func headerValue(s string) string {
	return strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(s))
}
