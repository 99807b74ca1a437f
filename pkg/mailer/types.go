package mailer

import (
	"fmt"
	"time"
)

// Provider names reported in results, logs and metrics.
const (
	ProviderRelay     = "relay"
	ProviderHostedAPI = "hosted_api"
)

// TypeGeneric is the classification used when a message carries none.
const TypeGeneric = "generic"

// Recipient formats a name and email into RFC 5322 address format.
// Returns "Name <email>" if name is provided, otherwise just email.
func Recipient(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

// Message is a fully rendered email handed to the dispatcher.
// It lives for a single request and is never shared between calls.
type Message struct {
	To         string // Single recipient
	Subject    string // Required
	Text       string // Plain text body
	HTML       string // HTML body
	From       string // Optional sender override (relay only)
	Type       string // Classification tag, e.g. "otp" or "welcome"
	Credential string // Shared secret presented by the caller
}

// Classification returns the message type, falling back to TypeGeneric.
func (m *Message) Classification() string {
	if m.Type == "" {
		return TypeGeneric
	}
	return m.Type
}

// Result describes a successful delivery.
// MessageID is opaque and only meant for display and tracing.
type Result struct {
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"`
	MessageID string    `json:"messageId"`
	Type      string    `json:"type"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Success   bool      `json:"success"`
}
