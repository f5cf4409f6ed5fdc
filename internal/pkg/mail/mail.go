package mail

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var ErrUnknownTemplate = errors.New("unknown mail template")

var defaultSubjects = map[string]string{
	"new_messages":          "Ungelesene Nachrichten",
	"space_join_request":    "Neue Beitrittsanfrage",
	"space_invitation":      "Einladung in eine Gruppe",
	"ve_invitation":         "Neue VE-Einladung",
	"ve_invitation_reply":   "Antwort auf Ihre VE-Einladung",
	"reminder":              "Erinnerung",
	"achievement_level_up":  "Neue Stufe erreicht",
	"plan_access_granted":   "Neuer Zugriff auf einen Plan",
	"plan_added_as_partner": "Sie wurden als Partner:in hinzugefügt",
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer renders named templates and delivers them over SMTP.
type Mailer struct {
	cfg       Config
	templates *template.Template
	send      sendFunc
}

func NewMailer(cfg Config) (*Mailer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("template.ParseFS -> %w", err)
	}

	return &Mailer{
		cfg:       cfg,
		templates: tmpl,
		send:      smtp.SendMail,
	}, nil
}

type templateData struct {
	Username string
	Payload  map[string]any
}

// Send renders templateName for the recipient and mails it. A nil subject picks the template's
// default subject.
func (m *Mailer) Send(ctx context.Context, username, email string, subject *string, templateName string, payload map[string]any) error {
	if m.templates.Lookup(templateName) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTemplate, templateName)
	}

	var body bytes.Buffer
	if err := m.templates.ExecuteTemplate(&body, templateName, templateData{Username: username, Payload: payload}); err != nil {
		return fmt.Errorf("m.templates.ExecuteTemplate -> %w", err)
	}

	subj := defaultSubjects[templateName]
	if subject != nil {
		subj = *subject
	}
	msg := m.compose(email, subj, body.Bytes())

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	// net/smtp has no context support; give up waiting when ctx ends
	done := make(chan error, 1)
	go func() {
		done <- m.send(addr, auth, m.cfg.Sender, []string{email}, msg)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp.SendMail -> %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mailer) compose(to, subject string, body []byte) []byte {
	var b strings.Builder
	b.WriteString("From: " + m.cfg.Sender + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.Write(body)

	return []byte(b.String())
}
