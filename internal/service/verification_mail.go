package service

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

//go:embed templates/*.html
var templates embed.FS

var verificationTmpl = template.Must(template.ParseFS(templates, "templates/verification.html"))

type MailConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	FrontendURL string
}

// Enabled reports whether enough is configured to talk to an SMTP server
func (c MailConfig) Enabled() bool {
	return c.Host != "" && c.Port > 0 && c.From != ""
}

// Mailer sends verification mails over SMTP
type Mailer struct {
	dialer      *gomail.Dialer
	from        string
	frontendURL string
}

func NewMailer(c MailConfig) *Mailer {
	return &Mailer{
		dialer:      gomail.NewDialer(c.Host, c.Port, c.Username, c.Password),
		from:        c.From,
		frontendURL: c.FrontendURL,
	}
}

func (m *Mailer) SendVerification(ctx context.Context, job *MailJob) error {
	if strings.EqualFold(job.To, m.from) {
		return errors.New("invalid email address")
	}

	body, err := renderVerification(job.Name, VerificationLink(m.frontendURL, job.Token))
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", job.To)
	msg.SetHeader("Subject", "Verify Your Email Address")
	msg.SetBody("text/html", body)

	// gomail has no notion of a context, the send is abandoned instead
	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ping opens and closes an SMTP connection to check the configuration
func (m *Mailer) Ping() error {
	s, err := m.dialer.Dial()
	if err != nil {
		return err
	}

	return s.Close()
}

// LogSender is used when no SMTP server is configured. It logs the link
// so development setups can still verify accounts.
type LogSender struct {
	FrontendURL string
}

func (l LogSender) SendVerification(_ context.Context, job *MailJob) error {
	zap.L().Info("Mail delivery disabled, verification link logged instead",
		zap.String("to", job.To),
		zap.String("link", VerificationLink(l.FrontendURL, job.Token)))
	return nil
}

func VerificationLink(frontendURL, token string) string {
	return fmt.Sprintf("%v/verify?token=%v", strings.TrimRight(frontendURL, "/"), url.QueryEscape(token))
}

func renderVerification(name, link string) (string, error) {
	var buf bytes.Buffer

	err := verificationTmpl.Execute(&buf, map[string]string{
		"Name": name,
		"Link": link,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render verification mail, %w", err)
	}

	return buf.String(), nil
}
