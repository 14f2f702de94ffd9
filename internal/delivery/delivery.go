// Package delivery sends composed pitches through an authenticated SMTP
// relay.
package delivery

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/go-playground/validator/v10"

	"github.com/jmylchreest/leadhunter/internal/compose"
	"github.com/jmylchreest/leadhunter/internal/logger"
	"github.com/jmylchreest/leadhunter/pkg/lead"
)

// Security selects how the relay connection is protected.
type Security string

const (
	SecurityStartTLS Security = "starttls"
	SecurityTLS      Security = "tls"
	SecurityNone     Security = "none" // Local test relays only
)

// Config configures the relay.
type Config struct {
	Host     string        `mapstructure:"host" validate:"required,hostname_rfc1123|ip"`
	Port     int           `mapstructure:"port" validate:"min=1,max=65535"`
	Username string        `mapstructure:"username" validate:"required"`
	Password string        `mapstructure:"password" validate:"required"`
	From     string        `mapstructure:"from" validate:"omitempty,email"`
	Security Security      `mapstructure:"security" validate:"oneof=starttls tls none"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns the Gmail submission relay.
func DefaultConfig() Config {
	return Config{
		Host:     "smtp.gmail.com",
		Port:     587,
		Security: SecurityStartTLS,
		Timeout:  30 * time.Second,
	}
}

// Sender returns the envelope sender: From, or the login name.
func (c Config) Sender() string {
	if c.From != "" {
		return c.From
	}
	return c.Username
}

var (
	// ErrNoAddress is returned for a lead without a found contact address.
	ErrNoAddress = errors.New("lead has no contact address")
	// ErrInvalidConfig is wrapped by configuration errors.
	ErrInvalidConfig = errors.New("invalid delivery config")
)

var validate = validator.New()

// Validate checks the configuration.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", field, e.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// BuildMessage renders a single-part plain text UTF-8 message.
func BuildMessage(from, to, subject, body string, date time.Time) ([]byte, error) {
	fromAddr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	toAddr, err := mail.ParseAddress(to)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}

	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{fromAddr})
	h.SetAddressList("To", []*mail.Address{toAddr})
	h.SetSubject(subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		return nil, fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close message: %w", err)
	}
	return buf.Bytes(), nil
}

// Sender delivers pitches. One connection is opened per message.
type Sender struct {
	cfg Config
	now func() time.Time
}

// NewSender validates cfg and returns a Sender.
func NewSender(cfg Config) (*Sender, error) {
	if cfg.Security == "" {
		cfg.Security = SecurityStartTLS
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sender{cfg: cfg, now: time.Now}, nil
}

// Send delivers pitch to the lead's contact address.
func (s *Sender) Send(ctx context.Context, l lead.Lead, pitch compose.Pitch) error {
	to := l.Email()
	if to == "" {
		return fmt.Errorf("%s: %w (%s)", l.Name, ErrNoAddress, l.Contact.Display())
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := BuildMessage(s.cfg.Sender(), to, pitch.Subject, pitch.Body, s.now())
	if err != nil {
		return err
	}

	log := logger.Component("delivery").With("lead", l.Name, "to", to, "relay", s.cfg.Host)

	c, err := s.dial(ctx)
	if err != nil {
		log.Error("relay connection failed", "error", err)
		return fmt.Errorf("connect to %s: %w", s.cfg.Host, err)
	}
	defer c.Close()
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	if err := c.Auth(sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)); err != nil {
		return s.fail(ctx, "authenticate", err)
	}
	if err := c.SendMail(s.cfg.Sender(), []string{to}, bytes.NewReader(msg)); err != nil {
		return s.fail(ctx, "send", err)
	}
	if err := c.Quit(); err != nil {
		log.Debug("quit failed after delivery", "error", err)
	}

	log.Info("pitch delivered", "subject", pitch.Subject)
	return nil
}

func (s *Sender) fail(ctx context.Context, step string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%s: %w", step, err)
}

// dial connects within Timeout and ctx. The STARTTLS greeting runs before
// the client's own command timeouts apply, so it is bounded here too.
func (s *Sender) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	tlsConfig := &tls.Config{ServerName: s.cfg.Host}

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	dialer := &net.Dialer{Timeout: s.cfg.Timeout}
	var (
		conn net.Conn
		err  error
	)
	if s.cfg.Security == SecurityTLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(dialCtx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(dialCtx, "tcp", addr)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	var c *smtp.Client
	if s.cfg.Security == SecurityStartTLS {
		stop := context.AfterFunc(dialCtx, func() { _ = conn.Close() })
		c, err = smtp.NewClientStartTLS(conn, tlsConfig)
		if !stop() && err == nil {
			// The deadline fired after the handshake finished.
			_ = c.Close()
			err = dialCtx.Err()
		}
		if err != nil {
			_ = conn.Close()
			if dialCtx.Err() != nil {
				return nil, fmt.Errorf("starttls: %w", dialCtx.Err())
			}
			return nil, err
		}
	} else {
		c = smtp.NewClient(conn)
	}
	c.CommandTimeout = s.cfg.Timeout
	c.SubmissionTimeout = s.cfg.Timeout
	return c, nil
}
