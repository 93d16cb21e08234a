package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/iliyamo/fablab-reservation/internal/config"
	"github.com/iliyamo/fablab-reservation/internal/queue"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.New("mail").
	Funcs(template.FuncMap{"join": func(s []string) string { return strings.Join(s, ", ") }}).
	ParseFS(templatesFS, "templates/*.html"))

var subjects = map[queue.NotificationKind]string{
	queue.KindApproved:                 "Your lab reservation was approved",
	queue.KindRejected:                 "Your lab reservation was rejected",
	queue.KindCancelled:                "Your lab reservation was cancelled",
	queue.KindTeacherApprovalRequested: "Approval requested for an educational visit",
	queue.KindTeacherApproved:          "Your teacher approved the educational visit",
	queue.KindTeacherRejected:          "Your teacher rejected the educational visit",
}

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender hands a rendered message to a mail transport.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Render builds the email for ev.
func Render(ev Event) (Message, error) {
	subject, ok := subjects[ev.Kind]
	if !ok {
		return Message{}, fmt.Errorf("no template for kind %q", ev.Kind)
	}
	t := templates.Lookup(string(ev.Kind) + ".html")
	if t == nil {
		return Message{}, fmt.Errorf("no template for kind %q", ev.Kind)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, ev); err != nil {
		return Message{}, err
	}
	return Message{To: ev.RecipientEmail, Subject: subject, HTML: buf.String()}, nil
}

// Mailer renders events and sends them.  It is the queue.Handler of the
// notification consumer and the delivery step of Direct.
type Mailer struct {
	Sender Sender
}

func NewMailer(s Sender) *Mailer { return &Mailer{Sender: s} }

func (m *Mailer) Deliver(ctx context.Context, ev Event) error {
	msg, err := Render(ev)
	if err != nil {
		return err
	}
	return m.Sender.Send(ctx, msg)
}

// SMTPSender sends through an SMTP relay with PLAIN auth.  Each message
// gets a single attempt.
type SMTPSender struct {
	cfg  config.MailConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, send: smtp.SendMail}
}

func (s *SMTPSender) Send(_ context.Context, m Message) error {
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	return s.send(addr, auth, s.cfg.From, []string{m.To}, buildMIME(s.cfg.From, m))
}

func buildMIME(from string, m Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + m.To + "\r\n")
	b.WriteString("Subject: " + m.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(m.HTML)
	return []byte(b.String())
}

// LogSender stands in for SMTP when no relay is configured.
type LogSender struct {
	Log zerolog.Logger
}

func (s LogSender) Send(_ context.Context, m Message) error {
	s.Log.Info().Str("to", m.To).Str("subject", m.Subject).Msg("email not sent: SMTP disabled")
	return nil
}
