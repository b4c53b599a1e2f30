// Package notify delivers account emails over SMTP.
package notify

import (
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jordan-wright/email"
	"github.com/rs/zerolog"

	"minniegallery/internal/config"
)

var verifyHTML = template.Must(template.New("verify").Parse(
	`<p>Welcome to MinnieGallery!</p>` +
		`<p><a href="{{.Link}}">Confirm your email address</a> to start sharing photos.</p>` +
		`<p>The link expires in {{.TTL}}.</p>`))

type Mailer struct {
	cfg  config.MailConfig
	ttl  time.Duration
	log  zerolog.Logger
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

func NewMailer(cfg config.MailConfig, verifyTTL time.Duration, log zerolog.Logger) *Mailer {
	return &Mailer{
		cfg:  cfg,
		ttl:  verifyTTL,
		log:  log,
		send: func(e *email.Email, addr string, auth smtp.Auth) error { return e.Send(addr, auth) },
	}
}

// VerificationLink appends the token to the configured verification URL.
func (m *Mailer) VerificationLink(token string) string {
	u, err := url.Parse(m.cfg.VerifyBaseURL)
	if err != nil {
		return m.cfg.VerifyBaseURL + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// SendVerification mails the activation link. Without an SMTP host the link
// is only logged, which is how local development works.
func (m *Mailer) SendVerification(ctx context.Context, to, token string) error {
	link := m.VerificationLink(token)
	if strings.TrimSpace(m.cfg.Host) == "" {
		m.log.Info().Str("to", to).Str("link", link).Msg("smtp disabled, verification link logged")
		return nil
	}

	var html strings.Builder
	if err := verifyHTML.Execute(&html, struct {
		Link string
		TTL  time.Duration
	}{link, m.ttl}); err != nil {
		return fmt.Errorf("render verification mail: %w", err)
	}

	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = []string{to}
	e.Subject = "Confirm your MinnieGallery account"
	e.Text = []byte("Confirm your email address: " + link + "\n")
	e.HTML = []byte(html.String())

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	done := make(chan error, 1)
	go func() {
		done <- m.send(e, m.cfg.Host+":"+strconv.Itoa(m.cfg.Port), auth)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send verification mail: %w", err)
		}
		return nil
	}
}
