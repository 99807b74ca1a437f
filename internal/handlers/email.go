package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/spana/mailgate/internal"
	"github.com/spana/mailgate/pkg/mailer"
	"github.com/spana/mailgate/pkg/sanitizer"
)

// Dispatcher delivers rendered messages.
type Dispatcher interface {
	Authorize(credential string) error
	Dispatch(ctx context.Context, msg *mailer.Message) (*mailer.Result, error)
}

// RenderFunc renders a built-in template kind.
type RenderFunc func(kind mailer.Kind, params mailer.TemplateParams) (*mailer.Rendered, error)

// Failure messages returned in 500 bodies, one per endpoint.
const (
	msgSendFailed                = "Failed to send email"
	msgOTPFailed                 = "Failed to send OTP email"
	msgVerificationFailed        = "Failed to send verification email"
	msgWelcomeFailed             = "Failed to send welcome email"
	msgProviderCredentialsFailed = "Failed to send provider credentials email"
)

// Email serves the send endpoints.
type Email struct {
	dispatcher Dispatcher
	render     RenderFunc
	defaults   func(mailer.TemplateParams) mailer.TemplateParams
}

// EmailOption configures Email.
type EmailOption func(*Email)

// WithRenderFunc replaces the built-in template renderer.
func WithRenderFunc(fn RenderFunc) EmailOption {
	return func(h *Email) {
		if fn != nil {
			h.render = fn
		}
	}
}

// WithTemplateDefaults fills template parameters the caller left blank,
// typically configured links.
func WithTemplateDefaults(fn func(mailer.TemplateParams) mailer.TemplateParams) EmailOption {
	return func(h *Email) {
		if fn != nil {
			h.defaults = fn
		}
	}
}

// NewEmail creates the send endpoints backed by d.
func NewEmail(d Dispatcher, opts ...EmailOption) *Email {
	h := &Email{
		dispatcher: d,
		render:     mailer.RenderTemplate,
		defaults:   func(p mailer.TemplateParams) mailer.TemplateParams { return p },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers the send endpoints.
func (h *Email) Routes(r internal.Router) {
	r.POST("/send", h.send)
	r.POST("/otp", h.otp)
	r.POST("/verification", h.verification)
	r.POST("/welcome", h.welcome)
	r.POST("/provider-credentials", h.providerCredentials)
}

func (h *Email) send(c internal.Context) error {
	var req sendRequest
	if err := h.decode(c, &req, msgSendFailed); err != nil {
		return err
	}
	credential := req.credential(c.Header(SecretHeader))
	if err := h.dispatcher.Authorize(credential); err != nil {
		return failure(err, msgSendFailed)
	}

	text := req.Text
	if strings.TrimSpace(text) == "" && req.HTML != "" {
		text = sanitizer.PlainText(req.HTML)
	}

	res, err := h.dispatcher.Dispatch(c, &mailer.Message{
		To:         req.To,
		Subject:    req.Subject,
		Text:       text,
		HTML:       req.HTML,
		From:       req.From,
		Type:       req.Type,
		Credential: credential,
	})
	if err != nil {
		return failure(err, msgSendFailed)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Email) otp(c internal.Context) error {
	var req otpRequest
	if err := h.decode(c, &req, msgOTPFailed); err != nil {
		return err
	}
	res, err := h.deliver(c, req.credential(c.Header(SecretHeader)), req.validate,
		req.To, mailer.KindOTP, mailer.TemplateParams{Name: req.Name, OTP: req.OTP})
	if err != nil {
		return failure(err, msgOTPFailed)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Email) verification(c internal.Context) error {
	var req verificationRequest
	if err := h.decode(c, &req, msgVerificationFailed); err != nil {
		return err
	}
	res, err := h.deliver(c, req.credential(c.Header(SecretHeader)), req.validate,
		req.To, mailer.KindVerification, mailer.TemplateParams{
			Name:             req.Name,
			VerificationLink: req.VerificationLink,
		})
	if err != nil {
		return failure(err, msgVerificationFailed)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Email) welcome(c internal.Context) error {
	var req welcomeRequest
	if err := h.decode(c, &req, msgWelcomeFailed); err != nil {
		return err
	}
	res, err := h.deliver(c, req.credential(c.Header(SecretHeader)), req.validate,
		req.To, mailer.KindWelcome, mailer.TemplateParams{Name: req.Name, Role: req.Role})
	if err != nil {
		return failure(err, msgWelcomeFailed)
	}
	return c.JSON(http.StatusOK, res)
}

type providerCredentialsResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
	Success   bool   `json:"success"`
}

func (h *Email) providerCredentials(c internal.Context) error {
	var req providerCredentialsRequest
	if err := h.decode(c, &req, msgProviderCredentialsFailed); err != nil {
		return err
	}
	res, err := h.deliver(c, req.credential(c.Header(SecretHeader)), req.validate,
		req.To, mailer.KindProviderCredentials, mailer.TemplateParams{
			Name:         req.Name,
			Email:        req.Email,
			Password:     req.Password,
			DownloadLink: req.AppDownloadLink,
		})
	if err != nil {
		return failure(err, msgProviderCredentialsFailed)
	}
	return c.JSON(http.StatusOK, providerCredentialsResponse{
		Success:   true,
		Message:   "Provider credentials email sent",
		MessageID: res.MessageID,
	})
}

// decode reads the body into req. A credential sent in the header is
// checked first. A body that cannot be parsed carries no credential, so a
// protected dispatcher answers it with 401 rather than 400.
func (h *Email) decode(c internal.Context, req any, message string) error {
	header := c.Header(SecretHeader)
	if header != "" {
		if err := h.dispatcher.Authorize(header); err != nil {
			return failure(err, message)
		}
	}
	if err := c.DecodeJSON(req); err != nil {
		if header == "" {
			if authErr := h.dispatcher.Authorize(""); authErr != nil {
				return failure(authErr, message)
			}
		}
		return err
	}
	return nil
}

// deliver authorizes, validates, renders and dispatches a templated email.
func (h *Email) deliver(
	ctx context.Context,
	credential string,
	validate func() error,
	to string,
	kind mailer.Kind,
	params mailer.TemplateParams,
) (*mailer.Result, error) {
	if err := h.dispatcher.Authorize(credential); err != nil {
		return nil, err
	}
	if err := validate(); err != nil {
		return nil, err
	}

	rendered, err := h.render(kind, h.defaults(params))
	if err != nil {
		return nil, err
	}

	return h.dispatcher.Dispatch(ctx, &mailer.Message{
		To:         to,
		Subject:    rendered.Subject,
		Text:       rendered.Text,
		HTML:       rendered.HTML,
		Type:       string(kind),
		Credential: credential,
	})
}

// failure turns a dispatch error into an HTTPError carrying its status.
func failure(err error, message string) error {
	var verr *mailer.ValidationError
	switch {
	case errors.Is(err, mailer.ErrUnauthorized):
		return internal.ErrUnauthorized(msgUnauthorized, internal.WithError(err))
	case errors.As(err, &verr):
		return internal.ErrBadRequest(
			"Missing required fields: "+strings.Join(verr.Required, ", "),
			internal.WithError(err),
		)
	case errors.Is(err, mailer.ErrValidation):
		return internal.ErrBadRequest("Missing required fields", internal.WithError(err))
	}
	return internal.ErrInternal(message,
		internal.WithError(err),
		internal.WithErrorCode(mailer.ErrorCode(err)),
	)
}
