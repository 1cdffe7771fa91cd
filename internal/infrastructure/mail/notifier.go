package mail

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	gomail "github.com/wneessen/go-mail"

	"OpportunityMonitor/internal/ports"
)

// Settings carries SMTP credentials and addressing.
type Settings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// Notifier sends digests through an SMTP relay using STARTTLS and plain auth.
type Notifier struct {
	settings Settings
	timeout  time.Duration
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers SMTP settings.
func NewNotifier(settings Settings) *Notifier {
	return &Notifier{settings: settings, timeout: 30 * time.Second}
}

// SendDigest delivers an HTML message to every configured recipient.
func (n *Notifier) SendDigest(ctx context.Context, subject, htmlBody string) error {
	if err := n.settings.validate(); err != nil {
		return err
	}

	msg, err := buildMessage(n.settings, subject, htmlBody)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(n.settings.Host,
		gomail.WithPort(n.settings.Port),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(n.settings.Username),
		gomail.WithPassword(n.settings.Password),
		gomail.WithTimeout(n.timeout),
	)
	if err != nil {
		return eris.Wrap(err, "mail: new client")
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return eris.Wrap(err, "mail: send digest")
	}
	return nil
}

func buildMessage(s Settings, subject, htmlBody string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(s.From); err != nil {
		return nil, eris.Wrapf(err, "mail: from address %q", s.From)
	}
	if err := msg.To(s.To...); err != nil {
		return nil, eris.Wrap(err, "mail: recipients")
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetBodyString(gomail.TypeTextHTML, htmlBody)
	return msg, nil
}

func (s Settings) validate() error {
	var missing []string
	if s.Host == "" {
		missing = append(missing, "host")
	}
	if s.Port <= 0 {
		missing = append(missing, "port")
	}
	if s.Username == "" {
		missing = append(missing, "username")
	}
	if s.Password == "" {
		missing = append(missing, "password")
	}
	if s.From == "" {
		missing = append(missing, "from")
	}
	if len(s.To) == 0 {
		missing = append(missing, "to")
	}
	if len(missing) > 0 {
		return eris.Errorf("mail: notifier misconfigured, missing %s", strings.Join(missing, ", "))
	}
	return nil
}
