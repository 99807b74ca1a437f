// Package resend delivers mail through the Resend HTTP API.
package resend

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/resend/resend-go/v3"

	"github.com/spana/mailgate/pkg/mailer"
)

type emailAPI interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type domainAPI interface {
	ListWithContext(ctx context.Context) (resend.ListDomainsResponse, error)
}

// APIError wraps a failed Resend call.
type APIError struct {
	Err error
	Op  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("resend %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// ErrorCode implements mailer.Coder.
func (e *APIError) ErrorCode() string { return "api" }

// Sender implements mailer.Provider on top of the Resend API.
// The per-message From override is ignored; Resend only accepts verified senders.
type Sender struct {
	emails  emailAPI
	domains domainAPI
	from    string
}

// Option configures a Sender.
type Option func(*Sender)

// WithFallbackFrom sets the sender used when Config.From is empty,
// typically the relay's configured sender.
func WithFallbackFrom(addr string) Option {
	return func(s *Sender) {
		if s.from == "" && addr != "" {
			s.from = addr
		}
	}
}

// New creates a Resend sender. A missing API key is a configuration error.
func New(cfg Config, opts ...Option) (*Sender, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("resend: %w: RESEND_API_KEY is empty", mailer.ErrNotConfigured)
	}

	client := resend.NewClient(cfg.APIKey)
	s := &Sender{
		emails:  client.Emails,
		domains: client.Domains,
		from:    cfg.From,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.from == "" {
		s.from = DefaultFrom
	}
	s.from = mailer.Recipient(cfg.FromName, s.from)
	return s, nil
}

func (s *Sender) Name() string { return mailer.ProviderHostedAPI }

// From returns the resolved sender address.
func (s *Sender) From() string { return s.from }

// Send implements mailer.Provider.
func (s *Sender) Send(ctx context.Context, msg *mailer.Message) (string, error) {
	req := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		Tags:    []resend.Tag{{Name: "type", Value: tagValue(msg.Classification())}},
	}

	resp, err := s.emails.SendWithContext(ctx, req)
	if err != nil {
		return "", &APIError{Op: "send", Err: err}
	}
	if resp == nil {
		return "", &APIError{Op: "send", Err: errors.New("empty response")}
	}
	return resp.Id, nil
}

// ListDomains returns the names of the domains owned by the API key.
func (s *Sender) ListDomains(ctx context.Context) ([]string, error) {
	resp, err := s.domains.ListWithContext(ctx)
	if err != nil {
		return nil, &APIError{Op: "list_domains", Err: err}
	}
	names := make([]string, 0, len(resp.Data))
	for _, d := range resp.Data {
		names = append(names, d.Name)
	}
	return names, nil
}

// Verify implements mailer.Provider. A send-only key cannot list domains,
// but the rejection still proves the key is valid, so it counts as verified.
func (s *Sender) Verify(ctx context.Context) error {
	_, err := s.ListDomains(ctx)
	if err != nil && restricted(err) {
		return nil
	}
	return err
}

func restricted(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "restricted")
}

var tagUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// tagValue maps a classification onto Resend's tag alphabet.
func tagValue(v string) string {
	return tagUnsafe.ReplaceAllString(v, "_")
}

var _ mailer.Provider = (*Sender)(nil)
