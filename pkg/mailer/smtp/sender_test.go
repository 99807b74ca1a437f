package smtp

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spana/mailgate/pkg/mailer"
)

func TestNew_RequiresRelayCredentials(t *testing.T) {
	t.Parallel()

	for _, cfg := range []Config{
		{},
		{Host: "smtp.example.com", User: "u"},
		{Host: "smtp.example.com", Password: "p"},
		{User: "u", Password: "p"},
	} {
		s, err := New(cfg)
		require.Nil(t, s)
		require.ErrorIs(t, err, mailer.ErrNotConfigured)
	}
}

func TestConfig(t *testing.T) {
	t.Parallel()

	t.Run("implicit tls", func(t *testing.T) {
		t.Parallel()

		require.True(t, Config{Port: 465}.ImplicitTLS())
		require.True(t, Config{Port: 587, Secure: true}.ImplicitTLS())
		require.False(t, Config{Port: 587}.ImplicitTLS())
	})

	t.Run("sender resolution", func(t *testing.T) {
		t.Parallel()

		require.Equal(t, "override@x.com", Config{From: "from@x.com"}.Sender("override@x.com"))
		require.Equal(t, "from@x.com", Config{From: "from@x.com", User: "user@x.com"}.Sender(""))
		require.Equal(t, "user@x.com", Config{User: "user@x.com"}.Sender(" "))
		require.Equal(t, DefaultFrom, Config{User: "apikey"}.Sender(""))
	})

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		c := Config{}.withDefaults()
		require.Equal(t, 587, c.Port)
		require.Equal(t, 30*time.Second, c.ConnectTimeout)
		require.Equal(t, 5*time.Second, c.GreetingTimeout)
		require.Equal(t, 30*time.Second, c.SocketTimeout)
	})
}

func newSender(t *testing.T, cfg Config) *Sender {
	t.Helper()

	s, err := New(cfg, WithLocalName("test.local"))
	require.NoError(t, err)
	return s
}

func TestSender_SendSTARTTLS(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	s := newSender(t, srv.config())
	require.Equal(t, mailer.ProviderRelay, s.Name())

	id, err := s.Send(context.Background(), &mailer.Message{
		To:      "Ann <ann@example.com>",
		Subject: "Your code 🔐",
		Text:    "Code: 1234",
		HTML:    "<p>Code: <b>1234</b></p>",
		Type:    "otp",
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(id, "<"))
	require.True(t, strings.HasSuffix(id, "@spana.co.za>"))

	msgs := srv.received()
	require.Len(t, msgs, 1)

	m, err := mail.ReadMessage(strings.NewReader(msgs[0]))
	require.NoError(t, err)
	require.Equal(t, id, m.Header.Get("Message-ID"))
	require.Equal(t, "otp", m.Header.Get("X-Email-Type"))
	require.Equal(t, "<mailer@spana.co.za>", m.Header.Get("From"))

	subject, err := new(mime.WordDecoder).DecodeHeader(m.Header.Get("Subject"))
	require.NoError(t, err)
	require.Equal(t, "Your code 🔐", subject)

	mediaType, params, err := mime.ParseMediaType(m.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/alternative", mediaType)

	mr := multipart.NewReader(m.Body, params["boundary"])
	var parts []string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		// multipart.Reader decodes quoted-printable parts transparently.
		b, err := io.ReadAll(p)
		require.NoError(t, err)
		parts = append(parts, p.Header.Get("Content-Type")+"|"+string(b))
	}
	require.Equal(t, []string{
		"text/plain; charset=UTF-8|Code: 1234",
		"text/html; charset=UTF-8|<p>Code: <b>1234</b></p>",
	}, parts)
}

func TestSender_SendImplicitTLS(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t, withImplicitTLS())
	s := newSender(t, srv.config())

	_, err := s.Send(context.Background(), &mailer.Message{
		To:      "bob@example.com",
		From:    "Ops <ops@spana.co.za>",
		Subject: "Hi",
		Text:    "hello",
	})
	require.NoError(t, err)

	msgs := srv.received()
	require.Len(t, msgs, 1)
	m, err := mail.ReadMessage(strings.NewReader(msgs[0]))
	require.NoError(t, err)
	require.Equal(t, `"Ops" <ops@spana.co.za>`, m.Header.Get("From"))
	require.Equal(t, "text/plain; charset=UTF-8", m.Header.Get("Content-Type"))

	body, err := io.ReadAll(quotedprintable.NewReader(m.Body))
	require.NoError(t, err)
	require.Equal(t, "hello", string(body))
}

func TestSender_LoginAuth(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t, withAuthMechs("LOGIN"))
	s := newSender(t, srv.config())

	require.NoError(t, s.Verify(context.Background()))
	require.Empty(t, srv.received())
}

func TestSender_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		setup    func(t *testing.T) Config
		msg      *mailer.Message
		wantCode string
	}{
		{
			name: "connection refused",
			setup: func(t *testing.T) Config {
				return Config{Host: "127.0.0.1", Port: closedPort(t), User: "u", Password: "p", ConnectTimeout: time.Second}
			},
			wantCode: CodeConnect,
		},
		{
			name: "greeting timeout",
			setup: func(t *testing.T) Config {
				return newFakeServer(t, withSilentGreeting()).config()
			},
			wantCode: CodeGreeting,
		},
		{
			name: "starttls unsupported",
			setup: func(t *testing.T) Config {
				return newFakeServer(t, withoutSTARTTLS()).config()
			},
			wantCode: CodeTLS,
		},
		{
			name: "bad password",
			setup: func(t *testing.T) Config {
				cfg := newFakeServer(t).config()
				cfg.Password = "wrong"
				return cfg
			},
			wantCode: CodeAuth,
		},
		{
			name: "no usable auth mechanism",
			setup: func(t *testing.T) Config {
				return newFakeServer(t, withAuthMechs("CRAM-MD5")).config()
			},
			wantCode: CodeAuth,
		},
		{
			name: "invalid recipient",
			setup: func(t *testing.T) Config {
				return Config{Host: "127.0.0.1", Port: closedPort(t), User: "u", Password: "p"}
			},
			msg:      &mailer.Message{To: "not an address", Subject: "Hi"},
			wantCode: CodeEnvelope,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newSender(t, tt.setup(t))
			msg := tt.msg
			if msg == nil {
				msg = &mailer.Message{To: "a@b.com", Subject: "Hi", Text: "x"}
			}

			_, err := s.Send(context.Background(), msg)
			require.Error(t, err)

			var rerr *RelayError
			require.ErrorAs(t, err, &rerr)
			require.Equal(t, tt.wantCode, rerr.Code)
			require.Equal(t, tt.wantCode, mailer.ErrorCode(err))
		})
	}
}

func TestSender_GreetingTimeoutIsReported(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t, withSilentGreeting())
	s := newSender(t, srv.config())

	err := s.Verify(context.Background())
	var rerr *RelayError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, CodeGreeting, rerr.Code)
	require.True(t, rerr.Timeout())
}

func TestRelayError_TimeoutCode(t *testing.T) {
	t.Parallel()

	timeout := &timeoutErr{}
	require.Equal(t, CodeTimeout, relayError(CodeData, "data", timeout).Code)
	require.Equal(t, CodeGreeting, relayError(CodeGreeting, "greeting", timeout).Code)
	require.Equal(t, CodeAuth, relayError(CodeAuth, "auth", errors.New("535")).Code)
}

type timeoutErr struct{}

func (*timeoutErr) Error() string   { return "i/o timeout" }
func (*timeoutErr) Timeout() bool   { return true }
func (*timeoutErr) Temporary() bool { return true }

func TestBuildMessage_HeaderInjection(t *testing.T) {
	t.Parallel()

	env, err := parseEnvelope("a@spana.co.za", "b@example.com")
	require.NoError(t, err)

	raw, err := buildMessage(env, "Hi\r\nBcc: victim@example.com", "", "<p>x</p>", "", "<id@spana.co.za>", time.Unix(0, 0))
	require.NoError(t, err)

	m, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)
	require.Empty(t, m.Header.Get("Bcc"))
	require.Equal(t, "text/html; charset=UTF-8", m.Header.Get("Content-Type"))
}
