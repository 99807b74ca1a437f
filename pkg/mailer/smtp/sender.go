// Package smtp delivers mail through an SMTP relay using net/smtp.
//
// Every Send opens its own connection and closes it afterwards, so no
// session or credential outlives a single message. Connect, greeting and
// per-command socket timeouts are bounded separately.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"os"
	"strconv"
	"time"

	"github.com/spana/mailgate/pkg/mailer"
)

// Sender implements mailer.Provider over an SMTP relay.
type Sender struct {
	dial      func(ctx context.Context, network, addr string) (net.Conn, error)
	now       func() time.Time
	tls       *tls.Config
	localName string
	cfg       Config
}

// Option configures a Sender.
type Option func(*Sender)

// WithTLSConfig overrides the TLS settings derived from Config.
// ServerName defaults to the relay host.
func WithTLSConfig(c *tls.Config) Option {
	return func(s *Sender) {
		if c != nil {
			s.tls = c.Clone()
		}
	}
}

// WithLocalName sets the EHLO name. Default: the machine hostname.
func WithLocalName(name string) Option {
	return func(s *Sender) {
		if name != "" {
			s.localName = name
		}
	}
}

// New creates a relay sender. Host, user and password are required.
func New(cfg Config, opts ...Option) (*Sender, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("smtp: %w: SMTP_HOST, SMTP_USER and SMTP_PASS are required", mailer.ErrNotConfigured)
	}
	cfg = cfg.withDefaults()

	s := &Sender{
		cfg:       cfg,
		now:       time.Now,
		localName: "localhost",
		tls: &tls.Config{
			ServerName:         cfg.Host,
			InsecureSkipVerify: !cfg.RejectUnauthorized, //nolint:gosec // operator opt-out via SMTP_REJECT_UNAUTHORIZED
			MinVersion:         tls.VersionTLS12,
		},
	}
	if h, err := os.Hostname(); err == nil && h != "" {
		s.localName = h
	}
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	s.dial = dialer.DialContext

	for _, opt := range opts {
		opt(s)
	}
	if s.tls.ServerName == "" {
		s.tls.ServerName = cfg.Host
	}
	return s, nil
}

func (s *Sender) Name() string { return mailer.ProviderRelay }

// Send implements mailer.Provider. The returned id is the Message-ID header.
func (s *Sender) Send(ctx context.Context, msg *mailer.Message) (string, error) {
	env, err := parseEnvelope(s.cfg.Sender(msg.From), msg.To)
	if err != nil {
		return "", relayError(CodeEnvelope, "address", err)
	}

	id := messageID(env.from.Address)
	body, err := buildMessage(env, msg.Subject, msg.Text, msg.HTML, msg.Type, id, s.now())
	if err != nil {
		return "", relayError(CodeData, "build", err)
	}

	err = s.session(ctx, func(c *smtp.Client, step stepFunc) error {
		if err := step(CodeEnvelope, "mail", func() error { return c.Mail(env.from.Address) }); err != nil {
			return err
		}
		if err := step(CodeEnvelope, "rcpt", func() error { return c.Rcpt(env.to.Address) }); err != nil {
			return err
		}
		return step(CodeData, "data", func() error {
			w, err := c.Data()
			if err != nil {
				return err
			}
			if _, err := w.Write(body); err != nil {
				_ = w.Close()
				return err
			}
			return w.Close()
		})
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Verify connects, negotiates TLS and authenticates without sending.
func (s *Sender) Verify(ctx context.Context) error {
	return s.session(ctx, func(*smtp.Client, stepFunc) error { return nil })
}

type stepFunc func(code, op string, fn func() error) error

// session runs fn on an authenticated connection and always closes it.
func (s *Sender) session(ctx context.Context, fn func(*smtp.Client, stepFunc) error) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	conn, err := s.dial(dialCtx, "tcp", addr)
	cancel()
	if err != nil {
		return relayError(CodeConnect, "dial", err)
	}
	defer conn.Close()

	// Unblock pending reads and writes when the caller gives up.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if s.cfg.ImplicitTLS() {
		_ = conn.SetDeadline(s.now().Add(s.cfg.ConnectTimeout))
		tc := tls.Client(conn, s.tls)
		if err := tc.HandshakeContext(ctx); err != nil {
			return relayError(CodeTLS, "handshake", err)
		}
		conn = tc
	}

	_ = conn.SetDeadline(s.now().Add(s.cfg.GreetingTimeout))
	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return relayError(CodeGreeting, "greeting", err)
	}
	defer c.Close()

	step := func(code, op string, fn func() error) error {
		_ = conn.SetDeadline(s.now().Add(s.cfg.SocketTimeout))
		if err := fn(); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = errors.Join(ctxErr, err)
			}
			return relayError(code, op, err)
		}
		return nil
	}

	if err := step(CodeGreeting, "ehlo", func() error { return c.Hello(s.localName) }); err != nil {
		return err
	}

	if !s.cfg.ImplicitTLS() {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return relayError(CodeTLS, "starttls", ErrSTARTTLSUnsupported)
		}
		if err := step(CodeTLS, "starttls", func() error { return c.StartTLS(s.tls) }); err != nil {
			return err
		}
	}

	_, mechs := c.Extension("AUTH")
	auth, err := pickAuth(mechs, s.cfg)
	if err != nil {
		return relayError(CodeAuth, "auth", err)
	}
	if err := step(CodeAuth, "auth", func() error { return c.Auth(auth) }); err != nil {
		return err
	}

	if err := fn(c, step); err != nil {
		return err
	}

	// The message is accepted once DATA completes; a failed QUIT is not an error.
	_ = step(CodeData, "quit", c.Quit)
	return nil
}

var _ mailer.Provider = (*Sender)(nil)
