package handlers

import (
	"strings"

	"github.com/spana/mailgate/pkg/mailer"
)

// SecretHeader carries the shared secret. It wins over the body field.
const SecretHeader = "X-Api-Secret"

// credentialed is embedded by every request body.
type credentialed struct {
	APISecret string `json:"apiSecret,omitempty"`
}

func (c credentialed) credential(header string) string {
	if header != "" {
		return header
	}
	return c.APISecret
}

type sendRequest struct {
	credentialed
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text,omitempty"`
	HTML    string `json:"html,omitempty"`
	From    string `json:"from,omitempty"`
	Type    string `json:"type,omitempty"`
}

type otpRequest struct {
	credentialed
	To   string `json:"to"`
	OTP  string `json:"otp"`
	Name string `json:"name,omitempty"`
}

func (r otpRequest) validate() error {
	return require("to", r.To, "otp", r.OTP)
}

type verificationRequest struct {
	credentialed
	To               string `json:"to"`
	VerificationLink string `json:"verificationLink"`
	Name             string `json:"name,omitempty"`
}

func (r verificationRequest) validate() error {
	return require("to", r.To, "verificationLink", r.VerificationLink)
}

type welcomeRequest struct {
	credentialed
	To   string `json:"to"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

func (r welcomeRequest) validate() error {
	return require("to", r.To, "name", r.Name)
}

type providerCredentialsRequest struct {
	credentialed
	To              string `json:"to"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	Name            string `json:"name,omitempty"`
	AppDownloadLink string `json:"appDownloadLink,omitempty"`
}

func (r providerCredentialsRequest) validate() error {
	return require("to", r.To, "email", r.Email, "password", r.Password)
}

// require takes name/value pairs. When any value is blank it returns a
// ValidationError listing every name, matching the endpoint's contract.
func require(pairs ...string) error {
	names := make([]string, 0, len(pairs)/2)
	missing := false
	for i := 0; i+1 < len(pairs); i += 2 {
		names = append(names, pairs[i])
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = true
		}
	}
	if missing {
		return mailer.NewValidationError(names...)
	}
	return nil
}
