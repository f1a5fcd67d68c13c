package integrations

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/pkg/errors"
	"github.com/resend/resend-go/v2"

	"github.com/mbolis/leadform/model"
)

// Mailer notifies form owners about new submissions.
type Mailer interface {
	SendSubmission(ctx context.Context, to string, form model.Form, s model.Submission) error
}

// NewMailer returns a Resend-backed mailer, or one that sends nothing when
// apiKey is empty.
func NewMailer(apiKey, from, baseURL string) Mailer {
	if apiKey == "" {
		return NopMailer{}
	}
	return &resendMailer{
		client:  resend.NewClient(apiKey),
		from:    from,
		baseURL: baseURL,
	}
}

type NopMailer struct{}

func (NopMailer) SendSubmission(context.Context, string, model.Form, model.Submission) error {
	return nil
}

type resendMailer struct {
	client  *resend.Client
	from    string
	baseURL string
}

func (m *resendMailer) SendSubmission(ctx context.Context, to string, form model.Form, s model.Submission) error {
	html, err := RenderSubmission(form, s, m.baseURL)
	if err != nil {
		return err
	}
	_, err = m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: fmt.Sprintf("New submission: %s", form.Title),
		Html:    html,
	})
	return errors.Wrap(err, "resend: send submission email")
}

var submissionEmail = template.Must(template.New("submission").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family:Arial,Helvetica,sans-serif;color:#1f2937;">
  <h2 style="margin:0 0 8px 0;">{{.Title}}</h2>
  <p style="color:#6b7280;margin:0 0 16px 0;">New submission received {{.SubmittedAt}}</p>
  <table cellpadding="6" cellspacing="0" style="border-collapse:collapse;">
  {{- range .Answers}}
    <tr>
      <td style="font-weight:600;border-bottom:1px solid #e5e7eb;">{{.Label}}</td>
      <td style="border-bottom:1px solid #e5e7eb;">{{.Value}}</td>
    </tr>
  {{- end}}
  </table>
  {{- if .Link}}
  <p style="margin:16px 0 0 0;"><a href="{{.Link}}">View all submissions</a></p>
  {{- end}}
</body>
</html>`))

type emailAnswer struct {
	Label, Value string
}

// RenderSubmission renders the notification body for s.
func RenderSubmission(form model.Form, s model.Submission, baseURL string) (string, error) {
	data := struct {
		Title       string
		SubmittedAt string
		Answers     []emailAnswer
		Link        string
	}{
		Title:       form.Title,
		SubmittedAt: s.SubmittedAt.UTC().Format("2006-01-02 15:04 MST"),
	}
	for _, q := range form.Questions {
		v, ok := s.Data[q.ID]
		if !ok {
			continue
		}
		label := q.Label
		if label == "" {
			label = q.ID
		}
		data.Answers = append(data.Answers, emailAnswer{label, model.AnswerText(v)})
	}
	if baseURL != "" {
		data.Link = fmt.Sprintf("%s/forms/%d/submissions", baseURL, form.ID)
	}

	var buf bytes.Buffer
	if err := submissionEmail.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "render submission email")
	}
	return buf.String(), nil
}
