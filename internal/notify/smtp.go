package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultSMTPHost = "smtp.gmail.com"
	DefaultSMTPPort = 587
)

// SMTPConfig describes the outgoing mail server. Sender doubles as the login name.
type SMTPConfig struct {
	Host     string
	Port     int
	Sender   string
	Password string
}

// SMTPMailer sends mail over SMTP with STARTTLS and PLAIN auth.
type SMTPMailer struct {
	host     string
	port     int
	sender   string
	password string
	logger   *zap.Logger

	dialer    func(ctx context.Context, network, addr string) (net.Conn, error)
	tlsConfig *tls.Config
	now       func() time.Time
}

// NewSMTPMailer validates cfg and applies the gmail defaults.
func NewSMTPMailer(cfg SMTPConfig, logger *zap.Logger) (*SMTPMailer, error) {
	sender := strings.TrimSpace(cfg.Sender)
	if sender == "" || cfg.Password == "" {
		return nil, errors.New("smtp sender and password are required")
	}
	if _, err := mail.ParseAddress(sender); err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", sender, err)
	}

	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = DefaultSMTPHost
	}
	port := cfg.Port
	if port <= 0 {
		port = DefaultSMTPPort
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &net.Dialer{}
	return &SMTPMailer{
		host:      host,
		port:      port,
		sender:    sender,
		password:  cfg.Password,
		logger:    logger,
		dialer:    d.DialContext,
		tlsConfig: &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12},
		now:       time.Now,
	}, nil
}

// Send delivers one plain-text message. The whole exchange is bound to ctx.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))

	conn, err := m.dialer(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); !ok {
		return fmt.Errorf("server %s does not support STARTTLS", addr)
	}
	if err := client.StartTLS(m.tlsConfig); err != nil {
		return fmt.Errorf("starttls: %w", err)
	}
	if err := client.Auth(smtp.PlainAuth("", m.sender, m.password, m.host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(m.sender); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(m.compose(to, subject, body)); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	if err := client.Quit(); err != nil {
		m.logger.Debug("smtp quit failed", zap.Error(err))
	}

	m.logger.Debug("email delivered", zap.String("to", to), zap.String("server", addr))
	return nil
}

func (m *SMTPMailer) compose(to, subject, body string) []byte {
	var b bytes.Buffer
	header := func(k, v string) {
		b.WriteString(k + ": " + v + "\r\n")
	}

	header("From", m.sender)
	header("To", to)
	header("Subject", mime.QEncoding.Encode("utf-8", subject))
	header("Date", m.now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="utf-8"`)
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))

	return b.Bytes()
}
