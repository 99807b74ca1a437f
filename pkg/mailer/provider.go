package mailer

import (
	"context"
	"time"
)

// Provider is a delivery channel the dispatcher can try.
// Implementations are leaves: they perform exactly one network send per call
// and never retry on their own.
type Provider interface {
	// Name identifies the provider (ProviderRelay or ProviderHostedAPI).
	Name() string

	// Send delivers msg and returns the provider's message id.
	Send(ctx context.Context, msg *Message) (string, error)

	// Verify performs a lightweight check that the provider is usable.
	Verify(ctx context.Context) error
}

// Observer receives dispatch events, typically to record metrics.
type Observer interface {
	// AttemptFinished is called once per provider attempt.
	AttemptFinished(provider, msgType string, err error, elapsed time.Duration)

	// LivenessChecked is called after every uncached liveness check.
	LivenessChecked(provider string, live bool)
}

type nopObserver struct{}

func (nopObserver) AttemptFinished(string, string, error, time.Duration) {}
func (nopObserver) LivenessChecked(string, bool)                         {}
