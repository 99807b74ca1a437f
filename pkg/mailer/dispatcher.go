package mailer

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// Dispatcher authorizes, validates and delivers messages through an
// ordered list of providers. The first provider to accept a message wins.
type Dispatcher struct {
	liveness  *LivenessCache
	observer  Observer
	logger    *slog.Logger
	now       func() time.Time
	secret    string
	providers []Provider
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithProviders appends providers in priority order. Nil values are skipped.
func WithProviders(providers ...Provider) Option {
	return func(d *Dispatcher) {
		for _, p := range providers {
			if p != nil {
				d.providers = append(d.providers, p)
			}
		}
	}
}

// WithSharedSecret sets the secret callers must present.
// A blank secret leaves the dispatcher open.
func WithSharedSecret(secret string) Option {
	return func(d *Dispatcher) {
		d.secret = secret
	}
}

// WithLivenessCache replaces the default in-memory liveness cache.
func WithLivenessCache(c *LivenessCache) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.liveness = c
		}
	}
}

// WithObserver registers a dispatch observer.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		if o != nil {
			d.observer = o
		}
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithClock replaces the time source used for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		observer: nopObserver{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.liveness == nil {
		d.liveness = NewLivenessCache(nil)
	}
	return d
}

// Open reports whether no shared secret is configured.
func (d *Dispatcher) Open() bool {
	return strings.TrimSpace(d.secret) == ""
}

// Authorize checks credential against the shared secret.
// Every credential is accepted while the dispatcher is open.
func (d *Dispatcher) Authorize(credential string) error {
	if d.Open() {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(credential), []byte(d.secret)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Providers returns the configured provider names in priority order.
func (d *Dispatcher) Providers() []string {
	names := make([]string, 0, len(d.providers))
	for _, p := range d.providers {
		names = append(names, p.Name())
	}
	return names
}

// Configured reports whether a provider with the given name is present.
func (d *Dispatcher) Configured(name string) bool {
	return d.provider(name) != nil
}

func (d *Dispatcher) provider(name string) Provider {
	for _, p := range d.providers {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// Dispatch delivers msg through the first provider that accepts it.
//
// Authorization is checked before field validation. Providers are tried
// strictly in order, one attempt each. When all of them fail the returned
// *DeliveryError lists every attempt.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *Message) (*Result, error) {
	if msg == nil {
		return nil, NewValidationError("to", "subject")
	}
	if err := d.Authorize(msg.Credential); err != nil {
		d.logger.WarnContext(ctx, "email rejected: invalid credential",
			slog.String("type", msg.Classification()))
		return nil, err
	}
	if err := validate(msg); err != nil {
		return nil, err
	}
	if len(d.providers) == 0 {
		return nil, ErrNotConfigured
	}

	attempts := make([]Attempt, 0, len(d.providers))
	for _, p := range d.providers {
		start := d.now()
		id, err := p.Send(ctx, msg)
		d.observer.AttemptFinished(p.Name(), msg.Classification(), err, d.now().Sub(start))

		if err == nil {
			d.logger.InfoContext(ctx, "email sent",
				slog.String("provider", p.Name()),
				slog.String("type", msg.Classification()),
				slog.String("message_id", id),
			)
			return &Result{
				Success:   true,
				Provider:  p.Name(),
				MessageID: id,
				Type:      msg.Classification(),
				To:        msg.To,
				Subject:   msg.Subject,
				Timestamp: d.now().UTC(),
			}, nil
		}

		d.logger.WarnContext(ctx, "email provider failed",
			slog.String("provider", p.Name()),
			slog.String("type", msg.Classification()),
			slog.String("code", ErrorCode(err)),
			slog.Any("error", err),
		)
		attempts = append(attempts, Attempt{Provider: p.Name(), Err: err})
	}

	derr := &DeliveryError{Attempts: attempts}
	d.logger.ErrorContext(ctx, "email delivery failed",
		slog.String("type", msg.Classification()),
		slog.Any("error", derr),
	)
	return nil, derr
}

func validate(msg *Message) error {
	if strings.TrimSpace(msg.To) == "" || strings.TrimSpace(msg.Subject) == "" {
		return NewValidationError("to", "subject")
	}
	return nil
}

// CheckRelayLiveness handshakes with the relay on every call.
// Liveness is advisory and never gates Dispatch.
func (d *Dispatcher) CheckRelayLiveness(ctx context.Context) bool {
	p := d.provider(ProviderRelay)
	if p == nil {
		return false
	}
	return d.verify(ctx, p)
}

// CheckHostedAPILiveness reports whether the hosted API accepted its key.
// Results are served from the liveness cache until they expire.
func (d *Dispatcher) CheckHostedAPILiveness(ctx context.Context) bool {
	p := d.provider(ProviderHostedAPI)
	if p == nil {
		return false
	}
	entry := d.liveness.Check(ctx, ProviderHostedAPI, func(ctx context.Context) bool {
		return d.verify(ctx, p)
	})
	return entry.Verified
}

func (d *Dispatcher) verify(ctx context.Context, p Provider) bool {
	err := p.Verify(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		d.logger.WarnContext(ctx, "email provider liveness check failed",
			slog.String("provider", p.Name()),
			slog.Any("error", err),
		)
	}
	d.observer.LivenessChecked(p.Name(), err == nil)
	return err == nil
}

// Close releases the liveness cache.
func (d *Dispatcher) Close() error {
	return d.liveness.Close()
}
