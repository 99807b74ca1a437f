package resend

// DefaultFrom is used when neither RESEND_FROM nor a fallback sender is set.
const DefaultFrom = "onboarding@resend.dev"

// Config holds Resend credentials and sender identity.
type Config struct {
	APIKey   string `env:"RESEND_API_KEY"`
	From     string `env:"RESEND_FROM"`
	FromName string `env:"RESEND_FROM_NAME"`
}

// Configured reports whether an API key is present.
func (c Config) Configured() bool {
	return c.APIKey != ""
}
