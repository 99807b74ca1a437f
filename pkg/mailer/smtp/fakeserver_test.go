package smtp

import (
	"bufio"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"math/big"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func selfSignedCert(t *testing.T) tls.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

// fakeServer is a minimal SMTP server for exercising the client.
type fakeServer struct {
	tls         *tls.Config
	ln          net.Listener
	user        string
	password    string
	authMechs   string
	messages    []string
	mu          sync.Mutex
	implicitTLS bool
	noSTARTTLS  bool
	silent      bool
}

type serverOption func(*fakeServer)

func withImplicitTLS() serverOption       { return func(s *fakeServer) { s.implicitTLS = true } }
func withoutSTARTTLS() serverOption       { return func(s *fakeServer) { s.noSTARTTLS = true } }
func withSilentGreeting() serverOption    { return func(s *fakeServer) { s.silent = true } }
func withAuthMechs(m string) serverOption { return func(s *fakeServer) { s.authMechs = m } }

func newFakeServer(t *testing.T, opts ...serverOption) *fakeServer {
	t.Helper()

	s := &fakeServer{
		user:      "mailer@spana.co.za",
		password:  "secret",
		authMechs: "PLAIN LOGIN",
		tls:       &tls.Config{Certificates: []tls.Certificate{selfSignedCert(t)}},
	}
	for _, opt := range opts {
		opt(s)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	if s.implicitTLS {
		ln = tls.NewListener(ln, s.tls)
	}
	s.ln = ln
	t.Cleanup(func() { _ = ln.Close() })

	go s.serve()
	return s
}

func (s *fakeServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeServer) config() Config {
	return Config{
		Host:               "127.0.0.1",
		Port:               s.port(),
		User:               s.user,
		Password:           s.password,
		Secure:             s.implicitTLS,
		RejectUnauthorized: false,
		ConnectTimeout:     2 * time.Second,
		GreetingTimeout:    200 * time.Millisecond,
		SocketTimeout:      2 * time.Second,
	}
}

func (s *fakeServer) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

func (s *fakeServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeServer) handle(conn net.Conn) {
	defer conn.Close()

	if s.silent {
		time.Sleep(time.Second)
		return
	}

	_, encrypted := conn.(*tls.Conn)
	r := bufio.NewReader(conn)
	reply := func(lines ...string) {
		for _, l := range lines {
			_, _ = conn.Write([]byte(l + "\r\n"))
		}
	}
	reply("220 fake ESMTP ready")

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])

		switch verb {
		case "EHLO", "HELO":
			lines := []string{"250-fake greets you"}
			if !encrypted && !s.noSTARTTLS {
				lines = append(lines, "250-STARTTLS")
			}
			lines = append(lines, "250 AUTH "+s.authMechs)
			reply(lines...)
		case "STARTTLS":
			reply("220 go ahead")
			tc := tls.Server(conn, s.tls)
			if err := tc.Handshake(); err != nil {
				return
			}
			conn, r, encrypted = tc, bufio.NewReader(tc), true
		case "AUTH":
			s.auth(line, r, reply)
		case "MAIL", "RCPT", "RSET", "NOOP":
			reply("250 ok")
		case "DATA":
			reply("354 end with <CRLF>.<CRLF>")
			var b strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(l)
			}
			s.mu.Lock()
			s.messages = append(s.messages, b.String())
			s.mu.Unlock()
			reply("250 queued")
		case "QUIT":
			reply("221 bye")
			return
		default:
			reply("502 unknown command")
		}
	}
}

func (s *fakeServer) auth(line string, r *bufio.Reader, reply func(...string)) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		reply("501 syntax")
		return
	}

	var user, pass string
	switch strings.ToUpper(fields[1]) {
	case "PLAIN":
		if len(fields) < 3 {
			reply("501 initial response required")
			return
		}
		raw, _ := base64.StdEncoding.DecodeString(fields[2])
		parts := strings.Split(string(raw), "\x00")
		if len(parts) == 3 {
			user, pass = parts[1], parts[2]
		}
	case "LOGIN":
		read := func(prompt string) string {
			reply("334 " + base64.StdEncoding.EncodeToString([]byte(prompt)))
			l, _ := r.ReadString('\n')
			v, _ := base64.StdEncoding.DecodeString(strings.TrimSpace(l))
			return string(v)
		}
		user, pass = read("Username:"), read("Password:")
	default:
		reply("504 unrecognized mechanism")
		return
	}

	if user == s.user && pass == s.password {
		reply("235 authenticated")
		return
	}
	reply("535 authentication failed")
}

func closedPort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}
