package mailer

import (
	"sync"
	"time"

	"github.com/spana/mailgate/pkg/mailer/templates"
)

// Kind names a built-in email template.
type Kind string

const (
	KindOTP                 Kind = "otp"
	KindVerification        Kind = "verification"
	KindWelcome             Kind = "welcome"
	KindProviderCredentials Kind = "provider_credentials"
)

// Default links used when the caller supplies none.
const (
	DefaultDownloadLink = "https://spana.co.za/download"
	DefaultLoginURL     = "https://app.spana.co.za/login"
)

// Account roles understood by the welcome template.
const (
	RoleCustomer        = "customer"
	RoleServiceProvider = "service_provider"
	RoleAdmin           = "admin"
)

// TemplateParams are the values interpolated into built-in templates.
// Zero values are replaced with defaults before rendering.
type TemplateParams struct {
	Name             string
	Role             string
	OTP              string
	VerificationLink string
	Email            string
	Password         string
	DownloadLink     string
	LoginURL         string
	LogoURL          string
	Year             int
}

// RoleLabel is the human-readable role shown in the welcome email.
func (p TemplateParams) RoleLabel() string {
	switch p.Role {
	case RoleServiceProvider:
		return "Service Provider"
	case RoleAdmin:
		return "Admin"
	default:
		return "Customer"
	}
}

func (p TemplateParams) withDefaults(kind Kind) TemplateParams {
	if p.Name == "" {
		p.Name = "there"
		if kind == KindOTP {
			p.Name = "Admin"
		}
	}
	if p.Role != RoleServiceProvider && p.Role != RoleAdmin {
		p.Role = RoleCustomer
	}
	if p.DownloadLink == "" {
		p.DownloadLink = DefaultDownloadLink
	}
	if p.LoginURL == "" {
		p.LoginURL = DefaultLoginURL
	}
	if p.Year == 0 {
		p.Year = time.Now().Year()
	}
	return p
}

var (
	builtinOnce     sync.Once
	builtinRenderer *Renderer
)

// RenderTemplate renders a built-in template. It has no side effects and
// its output depends only on kind and params.
func RenderTemplate(kind Kind, params TemplateParams) (*Rendered, error) {
	builtinOnce.Do(func() {
		builtinRenderer = NewRenderer(templates.FS)
	})
	return builtinRenderer.RenderKind(kind, params)
}

// RenderKind renders a built-in kind using this renderer's templates.
func (r *Renderer) RenderKind(kind Kind, params TemplateParams) (*Rendered, error) {
	return r.Render(string(kind), params.withDefaults(kind))
}
