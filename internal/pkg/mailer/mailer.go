package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/gomail.v2"
)

// ErrDisabled is returned when email delivery is switched off
var ErrDisabled = errors.New("email is disabled")

// Message is one outgoing email
type Message struct {
	To       []string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mailer sends email
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// Config holds SMTP settings
type Config struct {
	Enabled  bool
	From     string
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
	Timeout  time.Duration
}

// SMTPMailer delivers mail through an SMTP server
type SMTPMailer struct {
	cfg Config
}

// NewSMTPMailer creates an SMTP mailer
func NewSMTPMailer(cfg Config) *SMTPMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPMailer{cfg: cfg}
}

// Send delivers m, bounded by ctx and the configured timeout. The deadline is
// set on the connection itself so a stalled server cannot hold the session.
func (s *SMTPMailer) Send(ctx context.Context, m Message) error {
	if !s.cfg.Enabled {
		return ErrDisabled
	}

	msg, err := buildMessage(s.cfg.From, m)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	conn, err := s.dial(ctx)
	if err != nil {
		return sendError(ctx, "smtp dial", err)
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(dl); err != nil {
			return fmt.Errorf("smtp deadline: %w", err)
		}
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := s.deliver(conn, msg); err != nil {
		return sendError(ctx, "smtp send", err)
	}
	return nil
}

func (s *SMTPMailer) tlsConfig() *tls.Config {
	return &tls.Config{ServerName: s.cfg.Host}
}

func (s *SMTPMailer) dial(ctx context.Context) (net.Conn, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	nd := &net.Dialer{}
	if s.cfg.UseTLS {
		td := &tls.Dialer{NetDialer: nd, Config: s.tlsConfig()}
		return td.DialContext(ctx, "tcp", addr)
	}
	return nd.DialContext(ctx, "tcp", addr)
}

// deliver runs one SMTP session on conn and hands the gomail message to it
func (s *SMTPMailer) deliver(conn net.Conn, msg *gomail.Message) error {
	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer c.Close()

	if !s.cfg.UseTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(s.tlsConfig()); err != nil {
				return err
			}
		}
	}
	if s.cfg.Username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
				return err
			}
		}
	}

	sender := gomail.SendFunc(func(from string, to []string, body io.WriterTo) error {
		if err := c.Mail(from); err != nil {
			return err
		}
		for _, addr := range to {
			if err := c.Rcpt(addr); err != nil {
				return err
			}
		}
		w, err := c.Data()
		if err != nil {
			return err
		}
		if _, err := body.WriteTo(w); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	})
	if err := gomail.Send(sender, msg); err != nil {
		return err
	}
	return c.Quit()
}

func sendError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, context.DeadlineExceeded)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func buildMessage(from string, m Message) (*gomail.Message, error) {
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, errors.New("invalid email message: from is required")
	}

	to := make([]string, 0, len(m.To))
	for _, addr := range m.To {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	if len(to) == 0 {
		return nil, errors.New("invalid email message: recipient is required")
	}

	subject := strings.TrimSpace(m.Subject)
	if subject == "" {
		return nil, errors.New("invalid email message: subject is required")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)

	hasText := strings.TrimSpace(m.TextBody) != ""
	hasHTML := strings.TrimSpace(m.HTMLBody) != ""
	switch {
	case hasText && hasHTML:
		msg.SetBody("text/plain", m.TextBody)
		msg.AddAlternative("text/html", m.HTMLBody)
	case hasHTML:
		msg.SetBody("text/html", m.HTMLBody)
	case hasText:
		msg.SetBody("text/plain", m.TextBody)
	default:
		return nil, errors.New("invalid email message: body is required")
	}
	return msg, nil
}
