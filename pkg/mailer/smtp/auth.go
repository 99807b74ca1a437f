package smtp

import (
	"fmt"
	"net/smtp"
	"slices"
	"strings"
)

// loginAuth implements the LOGIN mechanism, which net/smtp lacks.
type loginAuth struct {
	user, password, host string
}

func (a *loginAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	if !server.TLS {
		return "", nil, fmt.Errorf("LOGIN auth requires an encrypted connection")
	}
	if server.Name != a.host {
		return "", nil, fmt.Errorf("wrong host name %q", server.Name)
	}
	return "LOGIN", nil, nil
}

func (a *loginAuth) Next(challenge []byte, more bool) ([]byte, error) {
	if !more {
		return nil, nil
	}
	switch strings.ToLower(strings.TrimSpace(string(challenge))) {
	case "username:", "user:":
		return []byte(a.user), nil
	case "password:", "pass:":
		return []byte(a.password), nil
	default:
		return nil, fmt.Errorf("unexpected LOGIN challenge %q", challenge)
	}
}

// pickAuth prefers PLAIN and falls back to LOGIN based on the EHLO reply.
func pickAuth(advertised string, cfg Config) (smtp.Auth, error) {
	mechs := strings.Fields(strings.ToUpper(advertised))

	switch {
	case slices.Contains(mechs, "PLAIN"):
		return smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host), nil
	case slices.Contains(mechs, "LOGIN"):
		return &loginAuth{user: cfg.User, password: cfg.Password, host: cfg.Host}, nil
	default:
		return nil, ErrAuthUnsupported
	}
}
