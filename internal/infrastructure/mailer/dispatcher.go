// Package mailer delivers the per-role summary notifications over
// authenticated TLS submission. The two role templates share one rendering
// context.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/wneessen/go-mail"

	"TranscriptPipeline/internal/domain"
	"TranscriptPipeline/internal/logging"
	"TranscriptPipeline/internal/ports"
	"TranscriptPipeline/internal/retry"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	csTemplate = "cs_summary.html"
	amTemplate = "am_summary.html"
)

// Dispatcher implements ports.Dispatcher over SMTP.
type Dispatcher struct {
	client    *mail.Client
	from      string
	templates *template.Template
	policy    retry.Policy
	logger    *slog.Logger
}

var _ ports.Dispatcher = (*Dispatcher)(nil)

// Options carries the wiring for NewDispatcher.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Policy   retry.Policy
	Logger   *slog.Logger
}

// NewDispatcher parses the embedded templates and prepares the SMTP client.
// The connection is opened per send, with TLS mandatory.
func NewDispatcher(opts Options) (*Dispatcher, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}

	client, err := mail.NewClient(opts.Host,
		mail.WithPort(opts.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(opts.Username),
		mail.WithPassword(opts.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("new smtp client: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Dispatcher{
		client:    client,
		from:      opts.From,
		templates: templates,
		policy:    opts.Policy,
		logger:    logger,
	}, nil
}

// templateContext is the shared data both role templates render from.
type templateContext struct {
	AccountName   string
	AccountNumber string
	SpeakerName   string
	SpeakerEmail  string
	Summary       string
	SummaryURL    string
	LogURL        string
}

// SendSummaries delivers the CS mail first, then the AM mail, and returns
// one receipt per role.
func (d *Dispatcher) SendSummaries(ctx context.Context, record *domain.TranscriptRecord, summary string, links domain.DocumentLinks) (domain.SendReceipts, error) {
	tc := templateContext{
		AccountName:   record.AccountName,
		AccountNumber: record.AccountNumber,
		SpeakerName:   record.SpeakerName,
		SpeakerEmail:  record.SpeakerEmail,
		Summary:       summary,
		SummaryURL:    links.SummaryURL,
		LogURL:        links.LogURL,
	}

	cs, err := d.send(ctx, record.CSEmail, "Call Summary - "+record.AccountName, csTemplate, tc)
	if err != nil {
		return domain.SendReceipts{}, fmt.Errorf("send cs mail: %w", err)
	}

	am, err := d.send(ctx, record.AMEmail, "AM Summary - "+record.AccountName, amTemplate, tc)
	if err != nil {
		return domain.SendReceipts{}, fmt.Errorf("send am mail: %w", err)
	}

	d.logger.Info("notification emails sent",
		"transcript_id", record.TranscriptID,
		"cs_status", cs,
		"am_status", am)
	return domain.SendReceipts{CS: cs, AM: am}, nil
}

func (d *Dispatcher) send(ctx context.Context, to, subject, templateName string, tc templateContext) (string, error) {
	html, err := d.render(templateName, tc)
	if err != nil {
		return "", err
	}

	return retry.Do(ctx, d.policy, func() (string, error) {
		msg := mail.NewMsg()
		if err := msg.From(d.from); err != nil {
			return "", retry.Permanent(fmt.Errorf("set from: %w", err))
		}
		if err := msg.To(to); err != nil {
			return "", retry.Permanent(fmt.Errorf("set recipient: %w", err))
		}
		msg.Subject(subject)
		msg.SetBodyString(mail.TypeTextHTML, html)

		if err := d.client.DialAndSendWithContext(ctx, msg); err != nil {
			return "", fmt.Errorf("send to %s: %w", to, err)
		}
		return "EMAIL_SENT_" + to, nil
	})
}

func (d *Dispatcher) render(templateName string, tc templateContext) (string, error) {
	var buf bytes.Buffer
	if err := d.templates.ExecuteTemplate(&buf, templateName, tc); err != nil {
		return "", fmt.Errorf("render %s: %w", templateName, err)
	}
	return buf.String(), nil
}
