// Package notify tells the outside world that a meeting has ended.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

const (
	DefaultCompany  = "TeleHealth Connect"
	DefaultSMTPPort = 587
)

// Mailer is satisfied by *gomail.Dialer.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPConfig struct {
	Host    string
	Port    int
	User    string
	Pass    string
	From    string
	Company string
}

func (c SMTPConfig) configured() bool {
	return c.Host != "" && c.User != "" && c.Pass != ""
}

// Email sends the follow-up visit summary to the room's last patient contact.
type Email struct {
	Contacts core.ContactSource
	Mailer   Mailer
	From     string
	Company  string
}

// NewEmail returns an Email whose Mailer is nil when SMTP is not configured;
// such a notifier skips every meeting.
func NewEmail(cfg SMTPConfig, contacts core.ContactSource) *Email {
	e := &Email{Contacts: contacts, Company: cfg.Company}
	if e.Company == "" {
		e.Company = DefaultCompany
	}
	if !cfg.configured() {
		return e
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultSMTPPort
	}
	d := gomail.NewDialer(cfg.Host, port, cfg.User, cfg.Pass)
	d.SSL = port == 465
	e.Mailer = d
	e.From = cfg.From
	if e.From == "" {
		e.From = fmt.Sprintf("%s <%s>", e.Company, cfg.User)
	}
	return e
}

func (e *Email) NotifyEnd(ctx context.Context, room domain.RoomName, summary *string, durationSeconds int64) error {
	if e.Mailer == nil {
		log.Debug().Str("module", "adapters.notify").Str("room", string(room)).Msg("SMTP not configured, skipping follow-up email")
		return nil
	}
	to, err := e.Contacts.LatestPatientContact(ctx, room)
	if err != nil {
		return fmt.Errorf("lookup contact: %w", err)
	}
	if to == "" {
		return nil
	}

	body, err := e.render(summary, durationSeconds)
	if err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", e.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Your consultation summary - "+e.Company)
	m.SetBody("text/html", body)

	if err := e.Mailer.DialAndSend(m); err != nil {
		return fmt.Errorf("send follow-up email: %w", err)
	}
	log.Info().Str("module", "adapters.notify").Str("room", string(room)).Str("to", to).Msg("follow-up email sent")
	return nil
}

var followUpTmpl = template.Must(template.New("follow-up").Parse(`<!DOCTYPE html><html><body style="font-family:Inter,Arial,sans-serif;background:#f8fafc;padding:32px 0;margin:0;">
<div style="max-width:600px;margin:0 auto;background:#fff;border-radius:12px;border:1px solid #e2e8f0;">
  <div style="background:#0d9488;padding:28px 32px;">
    <h2 style="color:#fff;margin:0;">{{.Company}}</h2>
    <p style="color:#e6fffa;margin:6px 0 0;font-size:14px;">Thank you for your telehealth consultation</p>
  </div>
  <div style="padding:28px 32px;">
    <h3 style="color:#0f172a;margin-top:0;">Visit Summary</h3>
    <div style="background:#f1f5f9;border-left:4px solid #0d9488;padding:16px 20px;color:#334155;line-height:1.7;font-size:14px;">{{range $i, $l := .Summary}}{{if $i}}<br>{{end}}{{$l}}{{end}}</div>
    <table style="width:100%;margin-top:20px;font-size:13px;">
      <tr><td style="padding:10px 0;color:#64748b;">Duration</td><td style="text-align:right;color:#0f172a;font-weight:600;">{{.Duration}}</td></tr>
    </table>
  </div>
  <div style="padding:18px 32px;text-align:center;border-top:1px solid #e2e8f0;">
    <p style="font-size:12px;color:#94a3b8;margin:0;">This is an automated message from {{.Company}}. Please contact your provider if you have questions.</p>
  </div>
</div></body></html>`))

func (e *Email) render(summary *string, durationSeconds int64) (string, error) {
	lines := []string{"No summary available for this visit."}
	if summary != nil && *summary != "" {
		lines = strings.Split(*summary, "\n")
	}
	dur := "N/A"
	if durationSeconds > 0 {
		dur = domain.FormatDuration(durationSeconds)
	}
	var buf bytes.Buffer
	err := followUpTmpl.Execute(&buf, struct {
		Company  string
		Summary  []string
		Duration string
	}{e.Company, lines, dur})
	if err != nil {
		return "", fmt.Errorf("render follow-up email: %w", err)
	}
	return buf.String(), nil
}
